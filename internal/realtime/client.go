package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-capture/backend/internal/models"
	"github.com/aura-capture/backend/internal/recordings"
	"github.com/aura-capture/backend/pkg/response"
)

const writeWait = 10 * time.Second

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StatusReader loads the current status of a recording.
type StatusReader interface {
	Get(ctx context.Context, id string) (*models.Recording, error)
}

// Client is one status WebSocket watching a recording.
type Client struct {
	ID          string
	RecordingID string
	hub         *Hub
	conn        *websocket.Conn
	send        chan WSMessage
	logger      *zap.Logger
}

// NewUpgrader returns an upgrader accepting the given origins; an empty list or "*" accepts any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// ServeWs handles GET /api/recordings/:id/ws. The socket receives the current status right away,
// then every transition, and is closed by the server once the recording is ready or error.
func ServeWs(hub *Hub, reader StatusReader, upgrader *websocket.Upgrader, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := reader.Get(c.Request.Context(), id); err != nil {
			if errors.Is(err, recordings.ErrNotFound) {
				response.NotFound(c, "recording not found")
				return
			}
			logger.Error("load recording for websocket failed", zap.String("recording_id", id), zap.Error(err))
			response.Internal(c, "failed to load recording")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:          uuid.NewString(),
			RecordingID: id,
			hub:         hub,
			conn:        conn,
			send:        make(chan WSMessage, 16),
			logger:      logger,
		}
		hub.Register(client)

		// Snapshot after Register so a transition between the two reads is never lost.
		rec, err := reader.Get(c.Request.Context(), id)
		if err == nil {
			if data, mErr := json.Marshal(rec.StatusView()); mErr == nil {
				client.send <- WSMessage{Event: EventStatus, Data: data}
			}
		}
		go client.writePump()
		client.readPump()
	}
}

// readPump only services control frames; the socket is server-push.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
			if terminal(msg) {
				closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "terminal status")
				_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func terminal(msg WSMessage) bool {
	if msg.Event != EventStatus {
		return false
	}
	var view models.StatusView
	if err := json.Unmarshal(msg.Data, &view); err != nil {
		return false
	}
	return view.Status.Terminal()
}
