package async

import (
	"encoding/json"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serpmontest "github.com/serpmon/serpmon/internal/testing"
)

func TestNewJob(t *testing.T) {
	job, err := NewJob("list.refresh", json.RawMessage(`{"list_id":1}`), "test")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, "list.refresh", job.HandlerName)
	assert.Equal(t, "test", job.Source)
}

func TestNewJobRequiresHandler(t *testing.T) {
	_, err := NewJob("", nil, "test")
	require.Error(t, err)
}

func TestEnqueueDequeue(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	queue := NewQueue(db)

	job, err := NewJob("list.refresh", json.RawMessage(`{"list_id":1}`), "test")
	require.NoError(t, err)
	require.NoError(t, queue.Enqueue(job))

	dequeued, err := queue.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, dequeued)
	assert.Equal(t, job.ID, dequeued.ID)
	assert.Equal(t, JobStatusRunning, dequeued.Status)
	assert.NotNil(t, dequeued.StartedAt)
}

func TestDequeueEmptyQueue(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	queue := NewQueue(db)

	job, err := queue.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestDequeueIsFIFO(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	queue := NewQueue(db)

	first, err := NewJob("list.refresh", nil, "test")
	require.NoError(t, err)
	require.NoError(t, queue.Enqueue(first))

	second, err := NewJob("list.refresh", nil, "test")
	require.NoError(t, err)
	require.NoError(t, queue.Enqueue(second))

	dequeued, err := queue.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, first.ID, dequeued.ID)

	dequeued, err = queue.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, second.ID, dequeued.ID)
}

func TestDequeueConcurrentWorkers(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	queue := NewQueue(db)

	const total = 50
	for i := 0; i < total; i++ {
		job, err := NewJob("list.refresh", nil, "test")
		require.NoError(t, err)
		require.NoError(t, queue.Enqueue(job))
	}

	// Several workers drain the queue at once; no job may be handed to
	// more than one of them.
	var mu sync.Mutex
	received := make(map[string]int)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := queue.Dequeue()
				if !assert.NoError(t, err) || job == nil {
					return
				}
				mu.Lock()
				received[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, received, total)
	for id, n := range received {
		assert.Equal(t, 1, n, "job %s dequeued %d times", id, n)
	}
}

func TestRequeue(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	queue := NewQueue(db)

	job, err := NewJob("list.refresh", nil, "test")
	require.NoError(t, err)
	require.NoError(t, queue.Enqueue(job))

	running, err := queue.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, running)

	require.NoError(t, queue.Requeue(running))

	retried, err := queue.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, retried)
	assert.Equal(t, job.ID, retried.ID)
	assert.Equal(t, 1, retried.RetryCount)
}

func TestJobLifecycle(t *testing.T) {
	job, err := NewJob("list.refresh", nil, "test")
	require.NoError(t, err)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)

	job.Complete()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
}

func TestJobCanRetry(t *testing.T) {
	job, err := NewJob("list.refresh", nil, "test")
	require.NoError(t, err)

	assert.True(t, job.CanRetry())
	job.RetryCount = MaxRetries
	assert.False(t, job.CanRetry())
}
