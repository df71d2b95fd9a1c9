// Package memory provides the in-process task queue used to fan work out to
// workers.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/avask/harvester/internal/harvest"
)

// Queue is a bounded in-memory joinable queue with context-aware operations.
// Every dequeued task must be acknowledged with Done; Join blocks until the
// acknowledgment count catches up with the enqueue count.
type Queue struct {
	ch chan harvest.Task

	mu      sync.Mutex
	pending int
	waiters []chan struct{}

	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan harvest.Task, capacity),
	}
}

// Enqueue pushes a task into the queue or returns once the context ends.
// The task counts as unfinished before the send is attempted: a consumer
// blocked in Dequeue receives it in a direct handoff and may acknowledge it
// before Enqueue returns.
func (q *Queue) Enqueue(ctx context.Context, task harvest.Task) error {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		q.mu.Lock()
		q.decrementLocked()
		q.mu.Unlock()
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (harvest.Task, error) {
	select {
	case <-ctx.Done():
		return harvest.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return harvest.Task{}, errors.New("queue closed")
		}
		return task, nil
	}
}

// Done acknowledges one previously dequeued task. When the last outstanding
// task is acknowledged, all Join callers are released. Acknowledging more
// tasks than were enqueued is a caller bug and panics.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == 0 {
		panic("memory: Done called with no unacknowledged tasks")
	}
	q.decrementLocked()
}

// decrementLocked retires one unfinished task and releases Join callers when
// the count reaches zero. Callers must hold q.mu.
func (q *Queue) decrementLocked() {
	q.pending--
	if q.pending == 0 {
		for _, w := range q.waiters {
			close(w)
		}
		q.waiters = nil
	}
}

// Join blocks until every enqueued task has been acknowledged or the context
// ends.
func (q *Queue) Join(ctx context.Context) error {
	q.mu.Lock()
	if q.pending == 0 {
		q.mu.Unlock()
		return nil
	}
	w := make(chan struct{})
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("join canceled: %w", ctx.Err())
	case <-w:
		return nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
