package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-basyx/titan-aas/internal/common"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewQueue(rdb, 0, 0), mr
}

func TestSubmitClaimComplete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, _ := newTestQueue(t)

	job, err := q.Submit(ctx, "aasxImport", json.RawMessage(`{"packageId":"p1"}`), 0, 0)
	require.NoError(t, err)
	require.Equal(t, StatusPending, job.Status)
	require.Equal(t, DefaultMaxRetries, job.MaxRetries)
	require.NotEmpty(t, job.ID)

	claimed, ok, err := q.Claim(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, job.ID, claimed.ID)
	require.Equal(t, StatusRunning, claimed.Status)
	require.Equal(t, 1, claimed.Attempts)
	require.NotEmpty(t, claimed.StartedAt)
	require.Empty(t, claimed.CompletedAt)
	require.JSONEq(t, `{"packageId":"p1"}`, string(claimed.Payload))

	require.NoError(t, q.Complete(ctx, job.ID, json.RawMessage(`{"shells":2}`)))

	done, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
	require.NotEmpty(t, done.StartedAt)
	require.NotEmpty(t, done.CompletedAt)
	require.JSONEq(t, `{"shells":2}`, string(done.Result))

	// both lists are drained
	_, ok, err = q.Claim(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFailRetriesThenDeadLetters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, _ := newTestQueue(t)

	job, err := q.Submit(ctx, "federationResync", nil, 0, 2)
	require.NoError(t, err)

	for attempt := 1; attempt <= 2; attempt++ {
		claimed, ok, err := q.Claim(ctx, 50*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, attempt, claimed.Attempts)
		require.NoError(t, q.Fail(ctx, job.ID, "peer unreachable"))
	}

	// retries exhausted: nothing pending, job parked dead
	_, ok, err := q.Claim(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)

	dead, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDead, dead.Status)
	require.Equal(t, "peer unreachable", dead.Error)

	ids, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{job.ID}, ids)
}

func TestPriorityJobClaimedBeforeWaitingQueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, _ := newTestQueue(t)

	first, err := q.Submit(ctx, "aasxImport", nil, 0, 0)
	require.NoError(t, err)
	second, err := q.Submit(ctx, "aasxImport", nil, 0, 0)
	require.NoError(t, err)
	urgent, err := q.Submit(ctx, "federationResync", nil, 5, 0)
	require.NoError(t, err)
	require.Equal(t, 5, urgent.Priority)

	var order []string
	for i := 0; i < 3; i++ {
		claimed, ok, err := q.Claim(ctx, 50*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
		order = append(order, claimed.ID)
	}
	require.Equal(t, []string{urgent.ID, first.ID, second.ID}, order)
}

func TestCancelPendingJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, _ := newTestQueue(t)

	job, err := q.Submit(ctx, "aasxImport", nil, 0, 0)
	require.NoError(t, err)
	require.NoError(t, q.Cancel(ctx, job.ID))

	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)

	// the pending list entry is gone
	_, ok, err := q.Claim(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCancelCompletedJobRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, _ := newTestQueue(t)

	job, err := q.Submit(ctx, "aasxImport", nil, 0, 0)
	require.NoError(t, err)
	_, ok, err := q.Claim(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, q.Complete(ctx, job.ID, nil))

	err = q.Cancel(ctx, job.ID)
	require.True(t, common.IsErrConflict(err))
}

func TestGetUnknownJob(t *testing.T) {
	t.Parallel()
	q, _ := newTestQueue(t)

	_, err := q.Get(context.Background(), "missing")
	require.True(t, common.IsErrNotFound(err))
}

func TestClaimSkipsCancelledJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, _ := newTestQueue(t)

	victim, err := q.Submit(ctx, "aasxImport", nil, 0, 0)
	require.NoError(t, err)
	survivor, err := q.Submit(ctx, "aasxImport", nil, 0, 0)
	require.NoError(t, err)

	// cancel after enqueue but keep the hash so Claim sees the status
	require.NoError(t, q.Cancel(ctx, victim.ID))

	claimed, ok, err := q.Claim(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, survivor.ID, claimed.ID)
}
