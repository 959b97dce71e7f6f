package reward_test

import (
	"testing"

	"github.com/okian/arbiter/internal/domain/model"
	"github.com/okian/arbiter/internal/domain/reward"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRetryPenalty(t *testing.T) {
	Convey("Given a policy with default penalty steps", t, func() {
		policy := reward.NewPolicy()

		Convey("Then the step table matches the configured discounts", func() {
			So(policy.RetryPenalty(0), ShouldEqual, 1.0)
			So(policy.RetryPenalty(1), ShouldEqual, 0.8)
			So(policy.RetryPenalty(2), ShouldEqual, 0.6)
			So(policy.RetryPenalty(3), ShouldEqual, 0.4)
			So(policy.RetryPenalty(10), ShouldEqual, 0.4)
		})

		Convey("Then the penalty is monotonically non-increasing", func() {
			prev := policy.RetryPenalty(0)
			for count := 1; count <= 6; count++ {
				cur := policy.RetryPenalty(count)
				So(cur, ShouldBeLessThanOrEqualTo, prev)
				prev = cur
			}
		})

		Convey("Then negative counts are treated as zero", func() {
			So(policy.RetryPenalty(-1), ShouldEqual, 1.0)
		})
	})

	Convey("Given a policy with custom penalty steps", t, func() {
		policy := reward.NewPolicy(
			reward.WithRetryPenalties([]float64{1.0, 0.5}),
			reward.WithFloorPenalty(0.25),
		)
		So(policy.RetryPenalty(0), ShouldEqual, 1.0)
		So(policy.RetryPenalty(1), ShouldEqual, 0.5)
		So(policy.RetryPenalty(2), ShouldEqual, 0.25)
	})
}

func TestRatingFromRubric(t *testing.T) {
	Convey("Given a policy with the default rubric scale", t, func() {
		policy := reward.NewPolicy()

		Convey("When sub-scores are valid they average and double", func() {
			rating, err := policy.RatingFromRubric(map[string]float64{
				"impact":  4.0,
				"clarity": 5.0,
			})
			So(err, ShouldBeNil)
			So(rating, ShouldEqual, 9.0)
		})

		Convey("When the average is fractional it rounds to one decimal", func() {
			rating, err := policy.RatingFromRubric(map[string]float64{
				"a": 3.0,
				"b": 4.0,
				"c": 3.0,
			})
			So(err, ShouldBeNil)
			So(rating, ShouldEqual, 6.7) // (10/3)*2 = 6.666... -> 6.7
		})

		Convey("When a sub-score is out of range the rubric is rejected", func() {
			_, err := policy.RatingFromRubric(map[string]float64{"impact": 5.5})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "impact")

			_, err = policy.RatingFromRubric(map[string]float64{"impact": -1})
			So(err, ShouldNotBeNil)
		})

		Convey("When the rubric is empty it is rejected", func() {
			_, err := policy.RatingFromRubric(nil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestValidateRating(t *testing.T) {
	Convey("Given the [0,10] rating scale", t, func() {
		policy := reward.NewPolicy()
		So(policy.ValidateRating(0), ShouldBeNil)
		So(policy.ValidateRating(10), ShouldBeNil)
		So(policy.ValidateRating(7.3), ShouldBeNil)
		So(policy.ValidateRating(-0.1), ShouldNotBeNil)
		So(policy.ValidateRating(10.1), ShouldNotBeNil)
	})
}

func TestBaseReward(t *testing.T) {
	Convey("Given a fixed-mode reward spec", t, func() {
		policy := reward.NewPolicy()
		spec := model.RewardSpec{Mode: model.RewardFixed, FixedXP: 100}

		base, err := policy.BaseReward(spec, 650, model.Tier{Track: "EX", Level: 2})
		So(err, ShouldBeNil)
		So(base, ShouldEqual, 100)
	})

	Convey("Given a tier-steps reward spec", t, func() {
		policy := reward.NewPolicy(reward.WithTierThresholds(map[string][]int{
			"EX": {0, 300, 700, 1200, 1800},
		}))

		Convey("Then the base is the XP gap to the target level", func() {
			// Track EX level 2, current 650 XP, 2 steps -> level 4 threshold 1200.
			spec := model.RewardSpec{Mode: model.RewardTierSteps, TierSteps: 2}
			base, err := policy.BaseReward(spec, 650, model.Tier{Track: "EX", Level: 2})
			So(err, ShouldBeNil)
			So(base, ShouldEqual, 550)
		})

		Convey("Then the target level is capped at the top tier", func() {
			spec := model.RewardSpec{Mode: model.RewardTierSteps, TierSteps: 10}
			base, err := policy.BaseReward(spec, 0, model.Tier{Track: "EX", Level: 4})
			So(err, ShouldBeNil)
			So(base, ShouldEqual, 1800)
		})

		Convey("Then the base is never negative", func() {
			spec := model.RewardSpec{Mode: model.RewardTierSteps, TierSteps: 1}
			base, err := policy.BaseReward(spec, 5000, model.Tier{Track: "EX", Level: 4})
			So(err, ShouldBeNil)
			So(base, ShouldEqual, 0)
		})

		Convey("Then the base never exceeds the track's top threshold", func() {
			spec := model.RewardSpec{Mode: model.RewardTierSteps, TierSteps: 4}
			base, err := policy.BaseReward(spec, 0, model.Tier{Track: "EX", Level: 1})
			So(err, ShouldBeNil)
			So(base, ShouldBeLessThanOrEqualTo, 1800)
		})

		Convey("Then an unknown track is rejected", func() {
			spec := model.RewardSpec{Mode: model.RewardTierSteps, TierSteps: 1}
			_, err := policy.BaseReward(spec, 0, model.Tier{Track: "ZZ", Level: 1})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given an unknown reward mode", t, func() {
		policy := reward.NewPolicy()
		_, err := policy.BaseReward(model.RewardSpec{Mode: "bonus"}, 0, model.Tier{Track: "EX", Level: 1})
		So(err, ShouldNotBeNil)
	})
}

func TestFinalReward(t *testing.T) {
	Convey("Given the reference approval scenarios", t, func() {
		policy := reward.NewPolicy()

		Convey("Dual review, fixed 100 XP, ratings 8 and 10, no retries", func() {
			// average 9.0 -> quality 0.9 -> floor(100*0.9*1.0*1.0) = 90
			quality := policy.QualityScore(9.0)
			final := policy.FinalReward(100, quality, policy.RetryPenalty(0), 1.0)
			So(final, ShouldEqual, 90)
		})

		Convey("Same scenario with two prior retries", func() {
			quality := policy.QualityScore(9.0)
			final := policy.FinalReward(100, quality, policy.RetryPenalty(2), 1.0)
			So(final, ShouldEqual, 54)
		})

		Convey("The result is floored to an integer", func() {
			final := policy.FinalReward(100, 0.85, 0.8, 1.0)
			So(final, ShouldEqual, 68) // 68.0 exactly; and
			final = policy.FinalReward(99, 0.85, 0.8, 1.0)
			So(final, ShouldEqual, 67) // 67.32 -> 67
		})

		Convey("A non-positive base yields zero", func() {
			So(policy.FinalReward(0, 0.9, 1.0, 1.0), ShouldEqual, 0)
			So(policy.FinalReward(-5, 0.9, 1.0, 1.0), ShouldEqual, 0)
		})

		Convey("The reward is non-increasing in retry count", func() {
			quality := policy.QualityScore(9.0)
			prev := policy.FinalReward(100, quality, policy.RetryPenalty(0), 1.0)
			for count := 1; count <= 4; count++ {
				cur := policy.FinalReward(100, quality, policy.RetryPenalty(count), 1.0)
				So(cur, ShouldBeLessThanOrEqualTo, prev)
				prev = cur
			}
		})

		Convey("The team modifier scales the result", func() {
			quality := policy.QualityScore(8.0)
			So(policy.FinalReward(100, quality, 1.0, 1.5), ShouldEqual, 120)
		})
	})
}
