package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, nil)
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueHoldingCleanup(ctx, HoldingCleanupPayload{RecordingID: "abc12345", HoldingPath: "uploads/abc12345.webm"}))

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobTypeHoldingCleanup, job.Type)
	assert.Equal(t, 0, job.Attempt)

	var payload HoldingCleanupPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "uploads/abc12345.webm", payload.HoldingPath)
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q := setupQueue(t)
	job, err := q.Dequeue(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_RetryThenDLQ(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()
	require.NoError(t, q.EnqueueHoldingCleanup(ctx, HoldingCleanupPayload{RecordingID: "r1", HoldingPath: "uploads/r1.webm"}))

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	for i := 1; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(ctx, job))
		job, err = q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, i, job.Attempt)
	}
	require.NoError(t, q.Retry(ctx, job))

	pending, err := q.Len(ctx, QueueHoldingCleanup)
	require.NoError(t, err)
	assert.Zero(t, pending)
	dead, err := q.Len(ctx, QueueDLQ)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}
