package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopOrdersByPriorityThenArrival(t *testing.T) {
	q := NewInMemoryQueue()
	require.NoError(t, q.Push(NewJob(JobSalesScan, "", 0)))
	require.NoError(t, q.Push(NewJob(JobMarketScan, "", 0)))
	require.NoError(t, q.Push(NewJob(JobImport, "brice-samba_super_rare", 10)))

	ctx := context.Background()
	var kinds []JobKind
	for i := 0; i < 3; i++ {
		job, err := q.Pop(ctx)
		require.NoError(t, err)
		kinds = append(kinds, job.Kind)
	}
	assert.Equal(t, []JobKind{JobImport, JobSalesScan, JobMarketScan}, kinds)
	assert.Equal(t, 0, q.Size())
}

func TestPushUniqueCoalesces(t *testing.T) {
	q := NewInMemoryQueue()

	first, queued, err := q.PushUnique(NewJob(JobMarketScan, "", 0))
	require.NoError(t, err)
	assert.True(t, queued)

	again, queued, err := q.PushUnique(NewJob(JobMarketScan, "", 0))
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, first.ID, again.ID)

	_, queued, err = q.PushUnique(NewJob(JobImport, "brice-samba_super_rare", 0))
	require.NoError(t, err)
	assert.True(t, queued)

	assert.Equal(t, 2, q.Size())
}

func TestPopWaitsForPush(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.Push(NewJob(JobMarketScan, "", 0))
	}()

	job, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, JobMarketScan, job.Kind)
}

func TestPopHonoursContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseDrainsThenFails(t *testing.T) {
	q := NewInMemoryQueue()
	require.NoError(t, q.Push(NewJob(JobMarketScan, "", 0)))
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Push(NewJob(JobSalesScan, "", 0)), ErrQueueClosed)

	_, err := q.Pop(context.Background())
	require.NoError(t, err)
	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestJobCompleteAndWait(t *testing.T) {
	job := NewJob(JobImport, "k", 0)
	job.Complete(3, nil)
	job.Complete(4, errors.New("ignored"))

	v, err := job.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = job.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}
