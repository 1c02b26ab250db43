// Package share serves the public side of a recording: the share link, the status
// endpoint clients poll, and byte-range streaming from the final store.
package share

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/aura-capture/backend/internal/models"
	"github.com/aura-capture/backend/internal/recordings"
	"github.com/aura-capture/backend/pkg/httprange"
	"github.com/aura-capture/backend/pkg/response"
	"github.com/aura-capture/backend/pkg/storage"
)

const defaultContentType = "video/webm"

var (
	viewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recording_views_total",
		Help: "Share link resolutions.",
	})

	streamBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_bytes_total",
		Help: "Bytes proxied from the final store to viewers.",
	})
)

// RecordingReader is the ledger as seen by the share handlers.
type RecordingReader interface {
	Get(ctx context.Context, id string) (*models.Recording, error)
	IncrementViewCount(ctx context.Context, id string) (int64, error)
}

// ObjectReader reads uploaded recordings from the final store.
type ObjectReader interface {
	Stat(ctx context.Context, ref string) (storage.ObjectInfo, error)
	OpenRange(ctx context.Context, ref string, r storage.ByteRange) (io.ReadCloser, error)
}

// PollPolicy is the fixed interval and ceiling clients apply while a recording is not terminal.
// After MaxAttempts polls a client treats the recording as failed.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// PollView is the JSON form of PollPolicy.
type PollView struct {
	IntervalMS  int64 `json:"interval_ms"`
	MaxAttempts int   `json:"max_attempts"`
}

// View returns the JSON form of p.
func (p PollPolicy) View() PollView {
	return PollView{IntervalMS: p.Interval.Milliseconds(), MaxAttempts: p.MaxAttempts}
}

// StatusResponse is the body of GET /api/recordings/:id/status.
type StatusResponse struct {
	models.StatusView
	Poll PollView `json:"poll"`
}

// ShareResponse is the JSON rendering of a share link.
type ShareResponse struct {
	Recording *models.Recording `json:"recording"`
	StreamURL string            `json:"stream_url,omitempty"`
	Poll      PollView          `json:"poll"`
}

// Handler serves share pages, status and streams.
type Handler struct {
	ledger RecordingReader
	final  ObjectReader
	poll   PollPolicy
	logger *zap.Logger
}

// NewHandler creates a share handler.
func NewHandler(ledger RecordingReader, final ObjectReader, poll PollPolicy, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if poll.Interval <= 0 {
		poll.Interval = 3 * time.Second
	}
	if poll.MaxAttempts <= 0 {
		poll.MaxAttempts = 200
	}
	return &Handler{ledger: ledger, final: final, poll: poll, logger: logger}
}

// Share handles GET /share/:id. Every resolution counts as exactly one view.
// Browsers get an HTML page; clients asking for JSON get the recording.
func (h *Handler) Share(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	rec, err := h.ledger.Get(ctx, id)
	if err != nil {
		h.writeLookupError(c, id, err)
		return
	}
	count, err := h.ledger.IncrementViewCount(ctx, id)
	if err != nil {
		if errors.Is(err, recordings.ErrNotFound) {
			h.writeLookupError(c, id, err)
			return
		}
		h.logger.Warn("increment view count failed", zap.String("recording_id", id), zap.Error(err))
	} else {
		rec.ViewCount = count
		viewsTotal.Inc()
	}

	out := ShareResponse{Recording: rec, Poll: h.poll.View()}
	if rec.Status == models.RecordingStatusReady {
		out.StreamURL = streamPath(id)
	}
	switch c.NegotiateFormat(binding.MIMEHTML, binding.MIMEJSON) {
	case binding.MIMEJSON:
		response.OK(c, out)
	default:
		h.renderPage(c, rec)
	}
}

// Status handles GET /api/recordings/:id/status. Safe to call at any rate.
func (h *Handler) Status(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		h.writeLookupError(c, id, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	response.OK(c, StatusResponse{StatusView: rec.StatusView(), Poll: h.poll.View()})
}

// Stream handles GET and HEAD /api/recordings/:id/stream with single-range support.
func (h *Handler) Stream(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	rec, err := h.ledger.Get(ctx, id)
	if err != nil {
		h.writeLookupError(c, id, err)
		return
	}
	if rec.Status != models.RecordingStatusReady || rec.FinalFileRef == "" {
		response.NotFound(c, "recording not yet uploaded")
		return
	}
	info, err := h.final.Stat(ctx, rec.FinalFileRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(c, "recording file not found")
			return
		}
		h.logger.Error("stat final object failed", zap.String("recording_id", id), zap.String("final_ref", rec.FinalFileRef), zap.Error(err))
		response.Internal(c, "failed to read recording")
		return
	}

	br := storage.Full
	status := http.StatusOK
	length := info.Size
	var contentRange string
	if header := c.GetHeader("Range"); header != "" && info.Size > 0 {
		r, err := httprange.Parse(header, info.Size)
		switch {
		case err == nil:
			br = storage.ByteRange{Start: r.Start, End: r.End}
			status = http.StatusPartialContent
			length = r.Length()
			contentRange = httprange.ContentRange(r, info.Size)
		case errors.Is(err, httprange.ErrMultiRange):
			// served in full
		default:
			c.Header("Content-Range", httprange.Unsatisfied(info.Size))
			c.Status(http.StatusRequestedRangeNotSatisfiable)
			return
		}
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(length, 10))
	if contentRange != "" {
		c.Header("Content-Range", contentRange)
	}
	if c.Request.Method == http.MethodHead {
		c.Status(status)
		return
	}

	body, err := h.final.OpenRange(ctx, rec.FinalFileRef, br)
	if err != nil {
		h.logger.Error("open final object failed", zap.String("recording_id", id), zap.String("final_ref", rec.FinalFileRef), zap.Error(err))
		c.Header("Content-Length", "")
		c.Header("Content-Range", "")
		response.Internal(c, "failed to read recording")
		return
	}
	defer body.Close()

	c.Status(status)
	written, err := io.Copy(c.Writer, body)
	streamBytesTotal.Add(float64(written))
	if err != nil {
		h.logger.Warn("stream interrupted", zap.String("recording_id", id), zap.Int64("bytes_written", written), zap.Error(err))
	}
}

func (h *Handler) writeLookupError(c *gin.Context, id string, err error) {
	if errors.Is(err, recordings.ErrNotFound) {
		response.NotFound(c, "recording not found")
		return
	}
	h.logger.Error("load recording failed", zap.String("recording_id", id), zap.Error(err))
	response.Internal(c, "failed to load recording")
}

func streamPath(id string) string {
	return "/api/recordings/" + id + "/stream"
}

func statusPath(id string) string {
	return "/api/recordings/" + id + "/status"
}
