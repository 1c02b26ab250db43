package recordings

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-capture/backend/pkg/response"
)

// RenameRequest is the body for PATCH /api/recordings/:id.
type RenameRequest struct {
	Title string `json:"title" binding:"required"`
}

// Handler handles recording list/read/rename endpoints. Creation, upload and delete live in the transfer handler.
type Handler struct {
	ledger *Ledger
	logger *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(ledger *Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: ledger, logger: logger}
}

// List handles GET /api/recordings?limit=. Newest first.
func (h *Handler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	list, err := h.ledger.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list recordings failed", zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/recordings/:id.
func (h *Handler) Get(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, id, err, "failed to load recording")
		return
	}
	response.OK(c, rec)
}

// Rename handles PATCH /api/recordings/:id. Only the title is client-editable.
func (h *Handler) Rename(c *gin.Context) {
	id := c.Param("id")
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		response.BadRequest(c, "title must not be blank")
		return
	}
	ctx := c.Request.Context()
	if err := h.ledger.Update(ctx, id, Patch{Title: &title}); err != nil {
		h.writeError(c, id, err, "failed to rename recording")
		return
	}
	rec, err := h.ledger.Get(ctx, id)
	if err != nil {
		h.writeError(c, id, err, "failed to load recording")
		return
	}
	response.OK(c, rec)
}

func (h *Handler) writeError(c *gin.Context, id string, err error, msg string) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "recording not found")
		return
	}
	h.logger.Error(msg, zap.String("recording_id", id), zap.Error(err))
	response.Internal(c, msg)
}
