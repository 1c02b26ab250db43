package settings

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-capture/backend/internal/models"
	"github.com/aura-capture/backend/pkg/response"
)

// UpdateRequest is the body for PUT /api/settings. Omitted fields keep their current value.
type UpdateRequest struct {
	DestinationFolderRef *string `json:"destination_folder_ref"`
	DefaultQuality       *string `json:"default_quality"`
	DefaultMicEnabled    *bool   `json:"default_mic_enabled"`
	DefaultWebcamEnabled *bool   `json:"default_webcam_enabled"`
}

// Handler handles settings HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a settings handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Get handles GET /api/settings.
func (h *Handler) Get(c *gin.Context) {
	s, err := h.store.Get(c.Request.Context())
	if err != nil {
		h.logger.Error("get settings failed", zap.Error(err))
		response.Internal(c, "failed to load settings")
		return
	}
	response.OK(c, s)
}

// Update handles PUT /api/settings. Existing recordings keep the folder they were created with.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	s, err := h.store.Get(ctx)
	if err != nil {
		h.logger.Error("get settings failed", zap.Error(err))
		response.Internal(c, "failed to load settings")
		return
	}
	if req.DestinationFolderRef != nil {
		s.DestinationFolderRef = strings.TrimSpace(*req.DestinationFolderRef)
	}
	if req.DefaultQuality != nil {
		if !models.ValidQuality(*req.DefaultQuality) {
			response.BadRequest(c, "default_quality must be one of 720p, 1080p, 1440p")
			return
		}
		s.DefaultQuality = *req.DefaultQuality
	}
	if req.DefaultMicEnabled != nil {
		s.DefaultMicEnabled = *req.DefaultMicEnabled
	}
	if req.DefaultWebcamEnabled != nil {
		s.DefaultWebcamEnabled = *req.DefaultWebcamEnabled
	}
	s.UpdatedAt = time.Now().UTC()
	if err := h.store.Put(ctx, s); err != nil {
		h.logger.Error("put settings failed", zap.Error(err))
		response.Internal(c, "failed to save settings")
		return
	}
	h.logger.Info("settings updated", zap.String("destination_folder_ref", s.DestinationFolderRef))
	response.OK(c, s)
}
