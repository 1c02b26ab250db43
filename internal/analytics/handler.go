package analytics

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-capture/backend/internal/recordings"
	"github.com/aura-capture/backend/pkg/response"
)

// Handler handles viewer analytics endpoints.
type Handler struct {
	ledger *Ledger
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(ledger *Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: ledger, logger: logger}
}

// RecordEvent handles POST /api/recordings/:id/analytics/events.
func (h *Handler) RecordEvent(c *gin.Context) {
	id := c.Param("id")
	var ev Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s, err := h.ledger.Record(c.Request.Context(), id, ev)
	switch {
	case err == nil:
		response.OK(c, s)
	case errors.Is(err, recordings.ErrNotFound):
		response.NotFound(c, "recording not found")
	case errors.Is(err, ErrInvalidEvent):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrSessionMismatch):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("record analytics event failed", zap.String("recording_id", id), zap.Error(err))
		response.Internal(c, "failed to record event")
	}
}

// Summary handles GET /api/recordings/:id/analytics.
func (h *Handler) Summary(c *gin.Context) {
	id := c.Param("id")
	out, err := h.ledger.Summary(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, recordings.ErrNotFound) {
			response.NotFound(c, "recording not found")
			return
		}
		h.logger.Error("analytics summary failed", zap.String("recording_id", id), zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	response.OK(c, out)
}
