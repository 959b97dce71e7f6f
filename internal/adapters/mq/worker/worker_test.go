package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/arbiter/internal/adapters/mq/queue"
	"github.com/okian/arbiter/internal/adapters/mq/worker"
	"github.com/okian/arbiter/internal/domain/dedupe"
	"github.com/okian/arbiter/internal/domain/model"
	"github.com/okian/arbiter/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, n model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeEscalator struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeEscalator) EnsureSecondReviewer(_ context.Context, actionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, actionID)
	return nil
}

func (f *fakeEscalator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.actions)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWorkerDeliversTasks(t *testing.T) {
	Convey("Given a running dispatch worker", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue()
		notifier := &fakeNotifier{}
		escalator := &fakeEscalator{}
		w := worker.NewDispatchWorker(q, notifier, escalator, dedupe.NewInMemoryDeduper())
		go w.Run(ctx)

		Convey("When a notify task is enqueued", func() {
			ok := q.Enqueue(ctx, queue.Task{
				ID:       "act-1/notify/evaluation-complete",
				Kind:     queue.TaskNotify,
				ActionID: "act-1",
				Notification: model.Notification{
					UserID: "alice",
					Type:   model.NotifyEvaluationComplete,
				},
			})
			So(ok, ShouldBeTrue)

			Convey("Then the notification is delivered", func() {
				So(waitFor(func() bool { return notifier.count() == 1 }), ShouldBeTrue)
				So(notifier.sent[0].UserID, ShouldEqual, "alice")
			})
		})

		Convey("When an escalate task is enqueued", func() {
			So(q.Enqueue(ctx, queue.Task{
				ID:       "act-2/escalate",
				Kind:     queue.TaskEscalate,
				ActionID: "act-2",
			}), ShouldBeTrue)

			Convey("Then the assignment service is asked for a reviewer", func() {
				So(waitFor(func() bool { return escalator.count() == 1 }), ShouldBeTrue)
				So(escalator.actions[0], ShouldEqual, "act-2")
			})
		})
	})
}

func TestWorkerDeduplicates(t *testing.T) {
	Convey("Given a worker with a shared deduper", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue()
		notifier := &fakeNotifier{}
		w := worker.NewDispatchWorker(q, notifier, &fakeEscalator{}, dedupe.NewInMemoryDeduper())
		go w.Run(ctx)

		task := queue.Task{
			ID:           "act-1/notify/partial-evaluation",
			Kind:         queue.TaskNotify,
			ActionID:     "act-1",
			Notification: model.Notification{UserID: "alice", Type: model.NotifyPartialEvaluation},
		}

		Convey("When the same task is delivered twice", func() {
			So(q.Enqueue(ctx, task), ShouldBeTrue)
			So(q.Enqueue(ctx, task), ShouldBeTrue)

			Convey("Then the notification goes out once", func() {
				So(waitFor(func() bool { return notifier.count() == 1 }), ShouldBeTrue)
				time.Sleep(50 * time.Millisecond)
				So(notifier.count(), ShouldEqual, 1)
			})
		})
	})
}

func TestWorkerRetriesAfterFailure(t *testing.T) {
	Convey("Given a notifier that fails once", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue()
		notifier := &fakeNotifier{err: errors.New("webhook unreachable")}
		deduper := dedupe.NewInMemoryDeduper()
		w := worker.NewDispatchWorker(q, notifier, &fakeEscalator{}, deduper)
		go w.Run(ctx)

		task := queue.Task{
			ID:           "act-1/notify/evaluation-rejected",
			Kind:         queue.TaskNotify,
			ActionID:     "act-1",
			Notification: model.Notification{UserID: "alice", Type: model.NotifyEvaluationRejected},
		}

		Convey("When the first delivery fails", func() {
			So(q.Enqueue(ctx, task), ShouldBeTrue)
			So(waitFor(func() bool { return deduper.Size() == 0 }), ShouldBeTrue)

			Convey("Then a redelivered task succeeds", func() {
				notifier.mu.Lock()
				notifier.err = nil
				notifier.mu.Unlock()

				So(q.Enqueue(ctx, task), ShouldBeTrue)
				So(waitFor(func() bool { return notifier.count() == 1 }), ShouldBeTrue)
			})
		})
	})
}

func TestPoolShutdown(t *testing.T) {
	Convey("Given a started pool", t, func() {
		ctx := context.Background()

		q := queue.NewInMemoryQueue()
		notifier := &fakeNotifier{}
		pool := worker.NewPool(2, q, notifier, &fakeEscalator{}, dedupe.NewInMemoryDeduper())
		pool.Start(ctx)

		So(q.Enqueue(ctx, queue.Task{
			ID:           "act-1/notify/evaluation-complete",
			Kind:         queue.TaskNotify,
			ActionID:     "act-1",
			Notification: model.Notification{UserID: "alice"},
		}), ShouldBeTrue)

		Convey("When the pool is shut down", func() {
			So(waitFor(func() bool { return notifier.count() == 1 }), ShouldBeTrue)
			err := pool.Shutdown(ctx)

			Convey("Then the queue is closed and workers drained", func() {
				So(err, ShouldBeNil)
				So(q.IsClosed(), ShouldBeTrue)
			})
		})
	})
}
