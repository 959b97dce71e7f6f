// Package queue carries post-judgment side effects to the dispatch workers.
//
// Judgments commit synchronously; notifications and reviewer escalations are
// queued here and delivered best-effort off the request path.
package queue

import (
	"context"
	"sync"

	"github.com/okian/arbiter/internal/domain/model"
	"github.com/okian/arbiter/pkg/metrics"
)

const defaultCapacity = 10000

// TaskKind selects what a dispatch worker does with a task.
type TaskKind string

const (
	// TaskNotify delivers a state-change notification to the submitter.
	TaskNotify TaskKind = "notify"
	// TaskEscalate asks the assignment service for a second reviewer.
	TaskEscalate TaskKind = "escalate"
)

// Task is one queued side effect. ID is stable per (action, kind, type) so
// the dispatcher can deduplicate redelivery.
type Task struct {
	ID           string
	Kind         TaskKind
	ActionID     string
	Notification model.Notification
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a task. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, t Task) bool

	// Dequeue returns a channel that receives tasks as they become
	// available. The channel closes when the queue is closed.
	Dequeue(ctx context.Context) <-chan Task

	// Len returns the current number of queued tasks.
	Len(ctx context.Context) int

	// Close stops new enqueues and closes the dequeue channel.
	Close() error

	// IsClosed reports whether the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates an in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)

	metrics.UpdateDispatchQueueCapacity(q.capacity)
	metrics.UpdateDispatchQueueSize(0)

	return q
}

// Enqueue adds a task without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordDispatchFailure(string(t.Kind))
		return false
	}

	select {
	case q.tasks <- t:
		metrics.UpdateDispatchQueueSize(len(q.tasks))
		return true
	case <-ctx.Done():
		metrics.RecordDispatchFailure(string(t.Kind))
		return false
	default:
		metrics.RecordDispatchFailure(string(t.Kind))
		return false // queue full
	}
}

// Dequeue returns a channel that receives tasks until the queue closes.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for task := range q.tasks {
			select {
			case out <- task:
				metrics.UpdateDispatchQueueSize(len(q.tasks))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued tasks.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.tasks)
	metrics.UpdateDispatchQueueSize(size)
	return size
}

// Close stops new enqueues and closes the task channel.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
