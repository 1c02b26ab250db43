package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-capture/backend/internal/models"
)

// StaleLedger fails recordings stuck in uploading.
type StaleLedger interface {
	MarkStaleUploads(ctx context.Context, after time.Duration) ([]string, error)
}

// Notifier receives status transitions made by the reaper.
type Notifier interface {
	Notify(ctx context.Context, recordingID string, view models.StatusView)
}

// StaleReaper moves recordings left in uploading past a threshold to error, for transfers
// whose handler was killed before it could record an outcome.
type StaleReaper struct {
	ledger   StaleLedger
	notifier Notifier
	after    time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewStaleReaper creates a reaper. after <= 0 disables it.
func NewStaleReaper(ledger StaleLedger, after, interval time.Duration, logger *zap.Logger) *StaleReaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StaleReaper{ledger: ledger, after: after, interval: interval, logger: logger}
}

// SetNotifier sets the optional notifier.
func (r *StaleReaper) SetNotifier(n Notifier) { r.notifier = n }

// Enabled reports whether the reaper does anything.
func (r *StaleReaper) Enabled() bool { return r.after > 0 }

// Sweep runs one pass and returns the ids moved to error.
func (r *StaleReaper) Sweep(ctx context.Context) ([]string, error) {
	if !r.Enabled() {
		return nil, nil
	}
	ids, err := r.ledger.MarkStaleUploads(ctx, r.after)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		r.logger.Warn("stale upload marked as error", zap.String("recording_id", id), zap.Duration("after", r.after))
		if r.notifier != nil {
			r.notifier.Notify(ctx, id, models.StatusView{Status: models.RecordingStatusError})
		}
	}
	return ids, nil
}

// Run sweeps every interval until ctx is done.
func (r *StaleReaper) Run(ctx context.Context) {
	if !r.Enabled() {
		r.logger.Info("stale upload reaper disabled")
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("stale upload sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("stale upload reaper stopping")
			return
		case <-ticker.C:
		}
	}
}
