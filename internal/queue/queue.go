package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("queue is closed")

type JobKind string

const (
	JobMarketScan JobKind = "market_scan"
	JobSalesScan  JobKind = "sales_scan"
	JobImport     JobKind = "import"
	JobImportAll  JobKind = "import_all"
)

// Result is what a worker reports back for a job.
type Result struct {
	Value any
	Err   error
}

type Job struct {
	ID        uuid.UUID
	Kind      JobKind
	Key       string
	Priority  int
	CreatedAt time.Time

	once   sync.Once
	done   chan struct{}
	result Result
}

func NewJob(kind JobKind, key string, priority int) *Job {
	return &Job{
		ID:        uuid.New(),
		Kind:      kind,
		Key:       key,
		Priority:  priority,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Complete publishes the job's result. Only the first call has an effect.
func (j *Job) Complete(value any, err error) {
	j.once.Do(func() {
		j.result = Result{Value: value, Err: err}
		close(j.done)
	})
}

// Wait blocks until the job completes or ctx is done.
func (j *Job) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-j.done:
		return j.result.Value, j.result.Err
	}
}

type Queue interface {
	Push(job *Job) error
	PushUnique(job *Job) (*Job, bool, error)
	Pop(ctx context.Context) (*Job, error)
	Size() int
	Close() error
}

// InMemoryQueue orders jobs by priority, then by arrival.
type InMemoryQueue struct {
	jobs   []*Job
	mu     sync.Mutex
	notify chan struct{}
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		jobs:   make([]*Job, 0),
		notify: make(chan struct{}, 1),
	}
}

func (q *InMemoryQueue) Push(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.pushLocked(job)
}

// PushUnique enqueues job unless a job with the same kind and key is already
// pending, in which case the pending job is returned and queued is false.
func (q *InMemoryQueue) PushUnique(job *Job) (*Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, pending := range q.jobs {
		if pending.Kind == job.Kind && pending.Key == job.Key {
			return pending, false, nil
		}
	}
	if err := q.pushLocked(job); err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (q *InMemoryQueue) pushLocked(job *Job) error {
	if q.closed {
		return ErrQueueClosed
	}

	q.jobs = append(q.jobs, job)
	sort.SliceStable(q.jobs, func(i, j int) bool {
		return q.jobs[i].Priority > q.jobs[j].Priority
	})

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *InMemoryQueue) Pop(ctx context.Context) (*Job, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return job, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close stops accepting jobs. Pending jobs can still be popped.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.notify)
	}
	return nil
}
