package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/arbiter/internal/adapters/ledger"
	service "github.com/okian/arbiter/internal/app"
	"github.com/okian/arbiter/internal/domain/evaluation"
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

const feedback = "clear evidence and a well written summary"

func seedDualReview(ctx context.Context, svc *service.Service) {
	So(svc.CreateAccount(ctx, model.Account{ID: "alice", Unit: "sales"}), ShouldBeNil)
	So(svc.CreateAccount(ctx, model.Account{ID: "bob", Unit: "engineering"}), ShouldBeNil)
	So(svc.CreateAccount(ctx, model.Account{ID: "carol", Unit: "marketing"}), ShouldBeNil)
	So(svc.PutRewardSpec(ctx, "chal-1", model.RewardSpec{
		Mode: model.RewardFixed, FixedXP: 100, RequireDualReview: true,
	}), ShouldBeNil)
	So(svc.CreateAction(ctx, model.Action{
		ID: "act-1", SubmitterID: "alice", ChallengeID: "chal-1",
	}), ShouldBeNil)
	So(svc.CreateAssignment(ctx, "act-1", "bob"), ShouldBeNil)
	So(svc.CreateAssignment(ctx, "act-1", "carol"), ShouldBeNil)
}

func judgment(actionID, reviewerID string, rating float64) model.Judgment {
	return model.Judgment{
		ActionID:             actionID,
		ReviewerID:           reviewerID,
		Decision:             model.DecisionApprove,
		Rating:               &rating,
		PositiveFeedback:     feedback,
		ConstructiveFeedback: feedback,
	}
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2))

		Convey("When started", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			Convey("Then a second start is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("Then stats report the running components", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldBeTrue)
				So(stats["workerCount"], ShouldEqual, 2)
				So(stats, ShouldContainKey, "queueLength")
			})
		})
	})
}

func TestServiceJudgeFlow(t *testing.T) {
	Convey("Given a started service with a dual-review action", t, func() {
		ctx := context.Background()
		led := ledger.NewInMemoryLedger()
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithLedger(led),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		seedDualReview(ctx, svc)

		Convey("When both reviewers approve", func() {
			outcome, err := svc.Judge(ctx, judgment("act-1", "bob", 8))
			So(err, ShouldBeNil)
			So(outcome.Status, ShouldEqual, string(model.StatusAwaitingSecond))

			outcome, err = svc.Judge(ctx, judgment("act-1", "carol", 10))
			So(err, ShouldBeNil)

			Convey("Then the action is approved and the reward credited", func() {
				So(outcome.Status, ShouldEqual, string(model.StatusApproved))
				So(outcome.AwardedXP, ShouldEqual, 90)
				So(led.Total("alice"), ShouldEqual, 90)

				action, err := svc.GetAction(ctx, "act-1")
				So(err, ShouldBeNil)
				So(action.FinalPoints, ShouldEqual, 90)
			})

			Convey("Then both evaluation records are readable", func() {
				records, err := svc.ListEvaluations(ctx, "act-1")
				So(err, ShouldBeNil)
				So(records, ShouldHaveLength, 2)
				So(records[0].ReviewerID, ShouldEqual, "bob")
				So(records[1].ReviewerID, ShouldEqual, "carol")
			})

			Convey("Then a repeated judgment fails without re-crediting", func() {
				So(svc.CreateAssignment(ctx, "act-1", "carol"), ShouldBeNil)
				_, err := svc.Judge(ctx, judgment("act-1", "carol", 10))
				So(err, ShouldWrap, evaluation.ErrAlreadyEvaluated)
				So(led.Total("alice"), ShouldEqual, 90)
			})
		})
	})
}

func TestServiceDispatchesSideEffects(t *testing.T) {
	Convey("Given a service with a capturing notifier", t, func() {
		ctx := context.Background()
		captured := make(chan model.Notification, 8)
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithNotifier(notifierFunc(func(_ context.Context, n model.Notification) error {
				captured <- n
				return nil
			})),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		seedDualReview(ctx, svc)

		Convey("When the first approval lands", func() {
			_, err := svc.Judge(ctx, judgment("act-1", "bob", 8))
			So(err, ShouldBeNil)

			Convey("Then the submitter hears about the partial evaluation", func() {
				select {
				case n := <-captured:
					So(n.UserID, ShouldEqual, "alice")
					So(n.Type, ShouldEqual, model.NotifyPartialEvaluation)
				case <-time.After(2 * time.Second):
					So("timeout waiting for notification", ShouldBeNil)
				}
			})
		})
	})
}

type notifierFunc func(ctx context.Context, n model.Notification) error

func (f notifierFunc) Send(ctx context.Context, n model.Notification) error { return f(ctx, n) }
