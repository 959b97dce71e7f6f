package repository_test

import (
	"context"
	"testing"

	"github.com/okian/arbiter/internal/adapters/repository"
	"github.com/okian/arbiter/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryStoreActions(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		Convey("When an action is created", func() {
			err := store.CreateAction(ctx, model.Action{ID: "act-1", SubmitterID: "alice"})
			So(err, ShouldBeNil)

			Convey("Then it is readable with defaulted fields", func() {
				action, err := store.GetAction(ctx, "act-1")
				So(err, ShouldBeNil)
				So(action.Status, ShouldEqual, model.StatusSubmitted)
				So(action.TeamModifier, ShouldEqual, 1.0)
			})

			Convey("Then a second create with the same id conflicts", func() {
				err := store.CreateAction(ctx, model.Action{ID: "act-1"})
				So(err, ShouldWrap, repository.ErrConflict)
			})
		})

		Convey("When an unknown action is requested", func() {
			_, err := store.GetAction(ctx, "missing")
			So(err, ShouldWrap, repository.ErrNotFound)
		})
	})
}

func TestMemoryStoreTransitions(t *testing.T) {
	Convey("Given a submitted action", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		So(store.CreateAction(ctx, model.Action{ID: "act-1", SubmitterID: "alice"}), ShouldBeNil)

		Convey("When the first evaluation is recorded", func() {
			err := store.RecordFirstEvaluation(ctx, "act-1", "bob", 8.0)
			So(err, ShouldBeNil)

			action, err := store.GetAction(ctx, "act-1")
			So(err, ShouldBeNil)
			So(action.Status, ShouldEqual, model.StatusAwaitingSecond)
			So(action.FirstEvaluator, ShouldEqual, "bob")
			So(action.FirstRating, ShouldEqual, 8.0)

			Convey("Then recording it again conflicts", func() {
				err := store.RecordFirstEvaluation(ctx, "act-1", "carol", 7.0)
				So(err, ShouldWrap, repository.ErrConflict)
			})
		})

		Convey("When the action is rejected", func() {
			So(store.SetActionStatus(ctx, "act-1", model.StatusRejected), ShouldBeNil)

			Convey("Then further transitions fail", func() {
				err := store.SetActionStatus(ctx, "act-1", model.StatusRetryPending)
				So(err, ShouldWrap, repository.ErrAlreadyFinal)

				err = store.ApproveAction(ctx, repository.Approval{ActionID: "act-1"})
				So(err, ShouldWrap, repository.ErrAlreadyFinal)
			})
		})

		Convey("When the action is approved", func() {
			err := store.ApproveAction(ctx, repository.Approval{
				ActionID:        "act-1",
				FirstEvaluator:  "bob",
				FirstRating:     8.0,
				SecondEvaluator: "carol",
				SecondRating:    9.0,
				QualityScore:    0.85,
				FinalPoints:     90,
			})
			So(err, ShouldBeNil)

			action, err := store.GetAction(ctx, "act-1")
			So(err, ShouldBeNil)
			So(action.Status, ShouldEqual, model.StatusApproved)
			So(action.QualityScore, ShouldEqual, 0.85)
			So(action.FinalPoints, ShouldEqual, 90)
			So(action.SecondEvaluator, ShouldEqual, "carol")
		})
	})
}

func TestMemoryStoreEvaluations(t *testing.T) {
	Convey("Given a store with an action", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		So(store.CreateAction(ctx, model.Action{ID: "act-1"}), ShouldBeNil)

		Convey("When both slots are filled", func() {
			So(store.InsertEvaluation(ctx, model.EvaluationRecord{
				ActionID: "act-1", EvaluationNumber: 2, ReviewerID: "carol", Rating: 9,
			}), ShouldBeNil)
			So(store.InsertEvaluation(ctx, model.EvaluationRecord{
				ActionID: "act-1", EvaluationNumber: 1, ReviewerID: "bob", Rating: 8,
			}), ShouldBeNil)

			Convey("Then listing returns them in slot order", func() {
				records, err := store.ListEvaluations(ctx, "act-1")
				So(err, ShouldBeNil)
				So(records, ShouldHaveLength, 2)
				So(records[0].ReviewerID, ShouldEqual, "bob")
				So(records[1].ReviewerID, ShouldEqual, "carol")
				So(records[0].CreatedAt.IsZero(), ShouldBeFalse)
			})

			Convey("Then refilling a slot reports a duplicate", func() {
				err := store.InsertEvaluation(ctx, model.EvaluationRecord{
					ActionID: "act-1", EvaluationNumber: 1, ReviewerID: "dave", Rating: 5,
				})
				So(err, ShouldWrap, repository.ErrDuplicateEvaluation)
			})
		})

		Convey("When no evaluations exist", func() {
			records, err := store.ListEvaluations(ctx, "act-1")
			So(err, ShouldBeNil)
			So(records, ShouldBeEmpty)
		})
	})
}

func TestMemoryStoreRewardSpecs(t *testing.T) {
	Convey("Given specs keyed by challenge and campaign", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		So(store.PutRewardSpec(ctx, "chal-1", model.RewardSpec{Mode: model.RewardFixed, FixedXP: 100}), ShouldBeNil)
		So(store.PutRewardSpec(ctx, "camp-1", model.RewardSpec{Mode: model.RewardFixed, FixedXP: 50}), ShouldBeNil)

		Convey("Then the challenge spec wins when both match", func() {
			spec, err := store.GetRewardSpec(ctx, model.Action{ID: "a", ChallengeID: "chal-1", CampaignID: "camp-1"})
			So(err, ShouldBeNil)
			So(spec.FixedXP, ShouldEqual, 100)
		})

		Convey("Then the campaign spec applies to raw campaign evidence", func() {
			spec, err := store.GetRewardSpec(ctx, model.Action{ID: "a", CampaignID: "camp-1"})
			So(err, ShouldBeNil)
			So(spec.FixedXP, ShouldEqual, 50)
		})

		Convey("Then an unmatched action reports not found", func() {
			_, err := store.GetRewardSpec(ctx, model.Action{ID: "a", ChallengeID: "other"})
			So(err, ShouldWrap, repository.ErrNotFound)
		})
	})
}

func TestMemoryStoreAssignments(t *testing.T) {
	Convey("Given an assignment grant", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		So(store.CreateAssignment(ctx, "act-1", "bob"), ShouldBeNil)

		Convey("Then the open entry is readable", func() {
			entry, err := store.OpenAssignment(ctx, "act-1", "bob")
			So(err, ShouldBeNil)
			So(entry.Open(), ShouldBeTrue)
		})

		Convey("Then an ungranted pair reports not found", func() {
			_, err := store.OpenAssignment(ctx, "act-1", "mallory")
			So(err, ShouldWrap, repository.ErrNotFound)
		})

		Convey("When the grant is completed", func() {
			won, err := store.CompleteAssignment(ctx, "act-1", "bob")
			So(err, ShouldBeNil)
			So(won, ShouldBeTrue)

			Convey("Then a second completion does not win", func() {
				won, err := store.CompleteAssignment(ctx, "act-1", "bob")
				So(err, ShouldBeNil)
				So(won, ShouldBeFalse)
			})

			Convey("Then the entry no longer reads as open", func() {
				_, err := store.OpenAssignment(ctx, "act-1", "bob")
				So(err, ShouldWrap, repository.ErrNotFound)
			})
		})
	})
}
