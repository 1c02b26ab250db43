package transfer

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-capture/backend/internal/models"
	"github.com/aura-capture/backend/internal/recordings"
	"github.com/aura-capture/backend/pkg/response"
)

// Handler exposes the transfer engine over HTTP.
type Handler struct {
	engine         *Engine
	maxUploadBytes int64
	publicBaseURL  string
	logger         *zap.Logger
}

// NewHandler creates a transfer handler. maxUploadBytes <= 0 leaves direct uploads unbounded.
func NewHandler(engine *Engine, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, maxUploadBytes: maxUploadBytes, logger: logger}
}

// SetPublicBaseURL sets the origin used to build absolute share links, e.g. https://capture.example.com.
func (h *Handler) SetPublicBaseURL(u string) { h.publicBaseURL = strings.TrimRight(u, "/") }

// CreateRequest is the body for POST /api/recordings.
type CreateRequest struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// CreateResponse carries the share path the client can copy before the upload starts.
type CreateResponse struct {
	Recording *models.Recording `json:"recording"`
	SharePath string            `json:"share_path"`
	ShareURL  string            `json:"share_url,omitempty"`
}

// UploadURLRequest is the optional body for POST /api/recordings/:id/upload-url.
type UploadURLRequest struct {
	ContentType string `json:"content_type"`
}

// Create handles POST /api/recordings.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid body")
			return
		}
	}
	rec, err := h.engine.Create(c.Request.Context(), recordings.CreateInput{Title: req.Title, Duration: req.Duration})
	if err != nil {
		h.writeError(c, "", err)
		return
	}
	out := CreateResponse{Recording: rec, SharePath: models.SharePath(rec.ID)}
	if h.publicBaseURL != "" {
		out.ShareURL = h.publicBaseURL + out.SharePath
	}
	response.OK(c, out)
}

// Upload handles POST /api/recordings/:id/upload. The request body is the raw video payload.
func (h *Handler) Upload(c *gin.Context) {
	id := c.Param("id")
	body := c.Request.Body
	if h.maxUploadBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.maxUploadBytes)
	}
	res, err := h.engine.UploadDirect(c.Request.Context(), id, body, c.GetHeader("Content-Type"))
	if err != nil {
		h.writeError(c, id, err)
		return
	}
	response.OK(c, res)
}

// UploadURL handles POST /api/recordings/:id/upload-url.
func (h *Handler) UploadURL(c *gin.Context) {
	id := c.Param("id")
	var req UploadURLRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid body")
			return
		}
	}
	out, err := h.engine.RequestUploadURL(c.Request.Context(), id, req.ContentType)
	if err != nil {
		h.writeError(c, id, err)
		return
	}
	response.OK(c, out)
}

// Transfer handles POST /api/recordings/:id/transfer, called once the holding upload finished.
func (h *Handler) Transfer(c *gin.Context) {
	id := c.Param("id")
	res, err := h.engine.Trigger(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, id, err)
		return
	}
	response.OK(c, res)
}

// Delete handles DELETE /api/recordings/:id.
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, id, err)
		return
	}
	response.OK(c, gin.H{"id": id, "deleted": true})
}

func (h *Handler) writeError(c *gin.Context, id string, err error) {
	status := StatusCode(err)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.RequestTooLarge(c, "upload exceeds maximum size")
		return
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("transfer request failed", zap.String("recording_id", id), zap.Error(err))
		response.Internal(c, "transfer failed")
		return
	}
	WriteError(c, err)
}

// WriteError renders err with the status from StatusCode.
func WriteError(c *gin.Context, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		response.Internal(c, "internal error")
		return
	}
	response.Error(c, status, err.Error())
}
