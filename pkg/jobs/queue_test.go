package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForState(t *testing.T, q *Queue, id string, want State) Status {
	t.Helper()
	var st Status
	require.Eventually(t, func() bool {
		var ok bool
		st, ok = q.Status(id)
		return ok && st.State == want
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestQueueRecordsResult(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) (any, error) {
		return job.Payload.(string) + "!", nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1", Type: "echo", Payload: "hi"}))
	st := waitForState(t, q, "j1", StateSucceeded)
	assert.Equal(t, "hi!", st.Result)
}

func TestQueueRetriesThenFails(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(ctx context.Context, job Job) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("boom")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j2"}))
	st := waitForState(t, q, "j2", StateFailed)
	assert.Equal(t, "boom", st.Error)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueRetrySucceeds(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(ctx context.Context, job Job) (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}, QueueConfig{MaxRetries: 1, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j3"}))
	st := waitForState(t, q, "j3", StateSucceeded)
	assert.Equal(t, 1, st.Attempts)
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) (any, error) { return nil, nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "x"}))
	require.Error(t, q.Enqueue(Job{}))
	_, ok := q.Status("x")
	assert.False(t, ok)
}
