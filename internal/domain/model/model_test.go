package model_test

import (
	"testing"
	"time"

	"github.com/okian/arbiter/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestActionStatus(t *testing.T) {
	Convey("Given the action lifecycle states", t, func() {
		Convey("Then submitted and awaiting states are not terminal", func() {
			So(model.StatusSubmitted.Terminal(), ShouldBeFalse)
			So(model.StatusAwaitingSecond.Terminal(), ShouldBeFalse)
		})

		Convey("Then approved, rejected, and retry_pending are terminal", func() {
			So(model.StatusApproved.Terminal(), ShouldBeTrue)
			So(model.StatusRejected.Terminal(), ShouldBeTrue)
			So(model.StatusRetryPending.Terminal(), ShouldBeTrue)
		})
	})
}

func TestDecision(t *testing.T) {
	Convey("Given the known decisions", t, func() {
		So(model.DecisionApprove.Valid(), ShouldBeTrue)
		So(model.DecisionReject.Valid(), ShouldBeTrue)
		So(model.DecisionRetry.Valid(), ShouldBeTrue)
		So(model.Decision("escalate").Valid(), ShouldBeFalse)
		So(model.Decision("").Valid(), ShouldBeFalse)
	})
}

func TestParseTier(t *testing.T) {
	Convey("Given encoded tiers", t, func() {
		Convey("When the encoding is well formed", func() {
			tier, err := model.ParseTier("EX2")
			So(err, ShouldBeNil)
			So(tier.Track, ShouldEqual, "EX")
			So(tier.Level, ShouldEqual, 2)
			So(tier.String(), ShouldEqual, "EX2")
		})

		Convey("When the track is lowercase it is normalized", func() {
			tier, err := model.ParseTier("op5")
			So(err, ShouldBeNil)
			So(tier.Track, ShouldEqual, "OP")
			So(tier.Level, ShouldEqual, 5)
		})

		Convey("When the encoding is malformed", func() {
			for _, bad := range []string{"", "E2", "EXX2", "EX0", "EX6", "EX", "123", "E!3"} {
				_, err := model.ParseTier(bad)
				So(err, ShouldNotBeNil)
			}
		})
	})
}

func TestAccountHasRole(t *testing.T) {
	Convey("Given an account with roles", t, func() {
		acct := model.Account{ID: "u1", Roles: []string{"leader", "Guest"}}
		So(acct.HasRole("leader"), ShouldBeTrue)
		So(acct.HasRole("guest"), ShouldBeTrue) // case-insensitive
		So(acct.HasRole("admin"), ShouldBeFalse)
	})
}

func TestAssignmentEntryOpen(t *testing.T) {
	Convey("Given assignment entries", t, func() {
		open := model.AssignmentEntry{ActionID: "a1", ReviewerID: "r1"}
		So(open.Open(), ShouldBeTrue)

		done := open
		ts := time.Now()
		done.CompletedAt = &ts
		So(done.Open(), ShouldBeFalse)
	})
}
