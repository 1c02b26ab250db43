package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-capture/backend/pkg/queue"
)

// JobQueue is the cleanup queue as seen by the processor.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// HoldingDeleter removes objects from the holding area.
type HoldingDeleter interface {
	Delete(ctx context.Context, path string) error
}

// CleanupProcessor deletes holding-area objects whose inline deletion failed after a transfer.
type CleanupProcessor struct {
	holding HoldingDeleter
	queue   JobQueue
	logger  *zap.Logger
	backoff time.Duration
}

// NewCleanupProcessor creates a holding cleanup processor.
func NewCleanupProcessor(holding HoldingDeleter, q JobQueue, logger *zap.Logger) *CleanupProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupProcessor{holding: holding, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// SetBackoff overrides the pause after a failed job.
func (p *CleanupProcessor) SetBackoff(d time.Duration) { p.backoff = d }

// Process executes one cleanup job. Deleting an object that is already gone succeeds.
func (p *CleanupProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeHoldingCleanup {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.HoldingCleanupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.HoldingPath == "" {
		return fmt.Errorf("job %s has no holding path", job.ID)
	}
	if err := p.holding.Delete(ctx, payload.HoldingPath); err != nil {
		return fmt.Errorf("delete holding object: %w", err)
	}
	p.logger.Info("holding object removed", zap.String("recording_id", payload.RecordingID), zap.String("holding_path", payload.HoldingPath))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *CleanupProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("cleanup worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.pause(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(context.WithoutCancel(ctx), job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.pause(ctx)
		}
	}
}

func (p *CleanupProcessor) pause(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
