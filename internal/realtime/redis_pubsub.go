package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-capture/backend/internal/models"
)

const publishTimeout = 5 * time.Second

// statusChannel is the Redis channel carrying transitions of one recording.
func statusChannel(recordingID string) string {
	return "recording:" + recordingID + ":status"
}

// statusMessage is the wire form of a transition. RecordingID is repeated in the body so a
// message can be checked against the channel it arrived on.
type statusMessage struct {
	RecordingID  string                 `json:"recording_id"`
	Status       models.RecordingStatus `json:"status"`
	FinalFileRef string                 `json:"final_file_ref,omitempty"`
	PublishedAt  time.Time              `json:"published_at"`
}

// RedisPubSub carries status transitions between instances over Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisPubSub creates a status bus on client.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger, now: time.Now}
}

// PublishStatus publishes view on the recording's status channel. The publish outlives ctx
// cancellation so a transition recorded by a finished request still reaches watchers.
func (r *RedisPubSub) PublishStatus(ctx context.Context, recordingID string, view models.StatusView) error {
	body, err := json.Marshal(statusMessage{
		RecordingID:  recordingID,
		Status:       view.Status,
		FinalFileRef: view.FinalFileRef,
		PublishedAt:  r.now().UTC(),
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, statusChannel(recordingID), body).Err(); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

// SubscribeStatus delivers the recording's transitions to handler until cancel is called.
// Malformed messages, messages for another recording and messages older than the last
// delivered one are dropped.
func (r *RedisPubSub) SubscribeStatus(recordingID string, handler func(models.StatusView)) (cancel func(), err error) {
	channel := statusChannel(recordingID)
	ctx, cancelCtx := context.WithCancel(context.Background())
	sub := r.client.Subscribe(ctx, channel)
	if _, err = sub.Receive(ctx); err != nil {
		cancelCtx()
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	go func() {
		defer sub.Close()
		var last time.Time
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				m, err := decodeStatus(recordingID, msg.Payload)
				if err != nil {
					r.logger.Debug("drop status message", zap.String("channel", channel), zap.Error(err))
					continue
				}
				if m.PublishedAt.Before(last) {
					r.logger.Debug("drop out-of-order status message", zap.String("recording_id", recordingID), zap.String("status", string(m.Status)))
					continue
				}
				last = m.PublishedAt
				handler(models.StatusView{Status: m.Status, FinalFileRef: m.FinalFileRef})
			}
		}
	}()
	return cancelCtx, nil
}

func decodeStatus(recordingID, payload string) (statusMessage, error) {
	var m statusMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return m, err
	}
	if m.RecordingID != recordingID {
		return m, fmt.Errorf("message for recording %q", m.RecordingID)
	}
	if !m.Status.Valid() {
		return m, fmt.Errorf("invalid status %q", m.Status)
	}
	return m, nil
}
