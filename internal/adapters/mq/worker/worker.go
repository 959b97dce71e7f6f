// Package worker runs the dispatch pool that delivers queued side effects.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/arbiter/internal/adapters/mq/queue"
	"github.com/okian/arbiter/internal/domain/dedupe"
	"github.com/okian/arbiter/internal/domain/model"
	"github.com/okian/arbiter/pkg/logger"
	"github.com/okian/arbiter/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Notifier delivers a state-change message to a submitter.
type Notifier interface {
	Send(ctx context.Context, n model.Notification) error
}

// Escalator asks the assignment service to line up a second reviewer.
type Escalator interface {
	EnsureSecondReviewer(ctx context.Context, actionID string) error
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
}

// Worker drains tasks from the queue until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// DispatchWorker implements Worker for delivering side effects.
type DispatchWorker struct {
	queue     Queue
	notifier  Notifier
	escalator Escalator
	deduper   dedupe.Deduper
	name      string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewDispatchWorker creates a worker with configuration options.
func NewDispatchWorker(q Queue, notifier Notifier, escalator Escalator, deduper dedupe.Deduper, opts ...Option) *DispatchWorker {
	w := &DispatchWorker{
		queue:     q,
		notifier:  notifier,
		escalator: escalator,
		deduper:   deduper,
		name:      "dispatch",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("dispatch"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "dispatch" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *DispatchWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			if err := w.processTask(ctx, task); err != nil {
				w.logger.Error(ctx, "task dispatch failed",
					logger.String("task_id", task.ID),
					logger.String("kind", string(task.Kind)),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *DispatchWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processTask delivers one side effect at most once. A failed delivery is
// unrecorded so a redelivered task can try again.
func (w *DispatchWorker) processTask(ctx context.Context, task queue.Task) error {
	if w.deduper != nil && w.deduper.SeenAndRecord(ctx, task.ID) {
		return nil
	}

	var err error
	switch task.Kind {
	case queue.TaskNotify:
		err = w.notifier.Send(ctx, task.Notification)
	case queue.TaskEscalate:
		err = w.escalator.EnsureSecondReviewer(ctx, task.ActionID)
	default:
		metrics.RecordDispatchFailure(string(task.Kind))
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}

	if err != nil {
		metrics.RecordDispatchFailure(string(task.Kind))
		if w.deduper != nil {
			w.deduper.Unrecord(ctx, task.ID)
		}
		return fmt.Errorf("dispatch %s for action %s: %w", task.Kind, task.ActionID, err)
	}

	metrics.RecordDispatchTask(string(task.Kind))
	return nil
}

// Pool manages multiple dispatch workers.
type Pool struct {
	workers []*DispatchWorker
	queue   Queue

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a pool of workerCount dispatch workers sharing one deduper.
func NewPool(workerCount int, q Queue, notifier Notifier, escalator Escalator, deduper dedupe.Deduper) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*DispatchWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("dispatch-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewDispatchWorker(
			q,
			notifier,
			escalator,
			deduper,
			WithName("dispatch-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals all workers and waits bounded time for each.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue, then waits for the workers to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	metrics.UpdateWorkerCount(0)

	return nil
}
