package tasks

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// MemoryQueue is a buffered channel drained by a fixed set of goroutines.
// Pending jobs are lost if the process exits.
type MemoryQueue struct {
	*Dispatcher

	jobs    chan Job
	workers int

	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(d *Dispatcher, workers, buffer int) *MemoryQueue {
	if workers < 1 {
		workers = 1
	}
	return &MemoryQueue{Dispatcher: d, jobs: make(chan Job, buffer), workers: workers}
}

// Enqueue blocks while the buffer is full and fails once Run has returned.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.jobs <- job:
		q.markEnqueued()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes jobs until ctx is cancelled, then finishes the jobs already
// buffered before returning. Jobs run with a context that is not cancelled by
// shutdown so an in-flight fetch can complete.
func (q *MemoryQueue) Run(ctx context.Context) error {
	jobCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			for job := range q.jobs {
				q.Dispatch(jobCtx, job)
			}
			return nil
		})
	}

	<-ctx.Done()
	q.mu.Lock()
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	return g.Wait()
}
