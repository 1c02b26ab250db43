package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/aura-capture/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60

	// EventStatus carries a models.StatusView.
	EventStatus = "status"
)

var connectedSockets = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "status_sockets",
	Help: "Open status WebSocket connections.",
})

// Hub maintains recording_id -> set of connections and pushes status transitions to them.
// With Redis configured every transition is published once and delivered by each instance's subscription.
type Hub struct {
	recordings map[string]map[string]*Client
	subs       map[string]func()
	mu         sync.RWMutex
	logger     *zap.Logger
	pub        StatusPublisher
	sub        StatusSubscriber
}

// StatusPublisher publishes transitions for cross-instance delivery.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, recordingID string, view models.StatusView) error
}

// StatusSubscriber delivers the transitions of one recording until cancelled.
type StatusSubscriber interface {
	SubscribeStatus(recordingID string, handler func(models.StatusView)) (cancel func(), err error)
}

// NewHub creates a status hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub StatusPublisher, sub StatusSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		recordings: make(map[string]map[string]*Client),
		subs:       make(map[string]func()),
		logger:     logger,
		pub:        pub,
		sub:        sub,
	}
}

// Register adds a client to a recording. Starts the Redis subscription for the recording on its first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.recordings[c.RecordingID] == nil {
		h.recordings[c.RecordingID] = make(map[string]*Client)
		if h.sub != nil {
			id := c.RecordingID
			cancel, err := h.sub.SubscribeStatus(id, func(view models.StatusView) {
				h.Broadcast(id, view)
			})
			if err != nil {
				h.logger.Warn("subscribe recording channel failed", zap.String("recording_id", id), zap.Error(err))
			} else {
				h.subs[id] = cancel
			}
		}
	}
	h.recordings[c.RecordingID][c.ID] = c
	h.mu.Unlock()
	connectedSockets.Inc()
	h.logger.Debug("status client connected", zap.String("client_id", c.ID), zap.String("recording_id", c.RecordingID))
}

// Unregister removes a client. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m, ok := h.recordings[c.RecordingID]
	if ok {
		if _, present := m[c.ID]; !present {
			ok = false
		}
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.recordings, c.RecordingID)
			if cancel, found := h.subs[c.RecordingID]; found {
				cancel()
				delete(h.subs, c.RecordingID)
			}
		}
	}
	h.mu.Unlock()
	if ok {
		connectedSockets.Dec()
	}
	h.logger.Debug("status client disconnected", zap.String("client_id", c.ID), zap.String("recording_id", c.RecordingID))
}

// Broadcast sends view to the local clients of a recording. Slow clients with a full buffer miss it.
func (h *Hub) Broadcast(recordingID string, view models.StatusView) {
	data, err := json.Marshal(view)
	if err != nil {
		return
	}
	msg := WSMessage{Event: EventStatus, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.recordings[recordingID] {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Notify pushes a status transition. With Redis the subscriber callback does the delivery, so local
// clients receive it exactly once.
func (h *Hub) Notify(ctx context.Context, recordingID string, view models.StatusView) {
	if h.pub != nil {
		err := h.pub.PublishStatus(ctx, recordingID, view)
		if err == nil {
			return
		}
		h.logger.Warn("publish status failed, delivering locally", zap.String("recording_id", recordingID), zap.Error(err))
	}
	h.Broadcast(recordingID, view)
}

// Watchers returns the number of local clients of a recording.
func (h *Hub) Watchers(recordingID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.recordings[recordingID])
}
