// Package reward computes XP awards for approved actions. All functions are
// pure: penalty and threshold tables are configuration data, not state.
package reward

import (
	"fmt"
	"math"

	"github.com/okian/arbiter/internal/domain/model"
)

// Default reward configuration constants.
const (
	// RatingScale is the upper bound of the reviewer rating scale.
	RatingScale = 10.0
	// defaultFloorPenalty applies to retry counts past the configured steps.
	defaultFloorPenalty = 0.4
	// defaultMaxRubricScore is the upper bound of a rubric sub-score.
	defaultMaxRubricScore = 5.0
)

// defaultRetryPenalties maps retry counts 0, 1, 2 to their multipliers.
var defaultRetryPenalties = []float64{1.0, 0.8, 0.6}

// defaultTierThresholds holds the ascending XP-threshold table per track,
// indexed by level-1. Overridden by configuration in production.
var defaultTierThresholds = map[string][]int{
	"EX": {0, 300, 700, 1200, 1800},
	"OP": {0, 250, 600, 1000, 1500},
	"CM": {0, 200, 500, 900, 1400},
}

// Policy computes reward amounts from configured tables.
type Policy struct {
	retryPenalties []float64
	floorPenalty   float64
	tierThresholds map[string][]int
	maxRubricScore float64
}

// NewPolicy creates a Policy with default tables, overridable via options.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		retryPenalties: defaultRetryPenalties,
		floorPenalty:   defaultFloorPenalty,
		tierThresholds: defaultTierThresholds,
		maxRubricScore: defaultMaxRubricScore,
	}

	// Apply all options
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// RetryPenalty returns the multiplicative discount for an action's retry
// count: a monotonically non-increasing step function over the configured
// table, with the floor penalty past the last step.
func (p *Policy) RetryPenalty(retryCount int) float64 {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount < len(p.retryPenalties) {
		return p.retryPenalties[retryCount]
	}
	return p.floorPenalty
}

// ValidateRating checks that an explicit rating sits on the [0,10] scale.
func (p *Policy) ValidateRating(rating float64) error {
	if math.IsNaN(rating) || rating < 0 || rating > RatingScale {
		return fmt.Errorf("%w: rating %.2f outside [0,%.0f]", ErrInvalidRating, rating, RatingScale)
	}
	return nil
}

// RatingFromRubric derives a [0,10] rating from structured rubric sub-scores:
// the sub-score average doubled and rounded to one decimal. Sub-scores are
// validated against the rubric scale; out-of-range values are rejected
// rather than silently producing an out-of-range rating.
func (p *Policy) RatingFromRubric(rubric map[string]float64) (float64, error) {
	if len(rubric) == 0 {
		return 0, fmt.Errorf("%w: no rating supplied and rubric is empty", ErrInvalidRating)
	}
	var sum float64
	for dimension, score := range rubric {
		if math.IsNaN(score) || score < 0 || score > p.maxRubricScore {
			return 0, fmt.Errorf("%w: rubric %q score %.2f outside [0,%.0f]",
				ErrInvalidRating, dimension, score, p.maxRubricScore)
		}
		sum += score
	}
	avg := sum / float64(len(rubric))
	rating := roundToDecimal(avg * (RatingScale / p.maxRubricScore))
	return rating, nil
}

// QualityScore normalizes a [0,10] rating into the [0,1] quality signal.
func (p *Policy) QualityScore(rating float64) float64 {
	return rating / RatingScale
}

// BaseReward computes the base XP amount before quality, penalty, and team
// scaling. Fixed mode returns the spec's constant; tier-steps mode returns
// the XP gap between the submitter's current XP and the threshold of the
// target level, clamped to the track's top tier and never negative.
func (p *Policy) BaseReward(spec model.RewardSpec, currentXP int, tier model.Tier) (int, error) {
	switch spec.Mode {
	case model.RewardFixed:
		if spec.FixedXP < 0 {
			return 0, fmt.Errorf("%w: fixed amount %d is negative", ErrInvalidRewardSpec, spec.FixedXP)
		}
		return spec.FixedXP, nil

	case model.RewardTierSteps:
		thresholds, ok := p.tierThresholds[tier.Track]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownTrack, tier.Track)
		}
		if tier.Level < model.TierMinLevel || tier.Level > model.TierMaxLevel {
			return 0, fmt.Errorf("%w: level %d outside %d-%d",
				ErrInvalidRewardSpec, tier.Level, model.TierMinLevel, model.TierMaxLevel)
		}
		target := tier.Level + spec.TierSteps
		if target < model.TierMinLevel {
			target = model.TierMinLevel
		}
		if target > model.TierMaxLevel {
			target = model.TierMaxLevel
		}
		gap := thresholds[target-1] - currentXP
		if gap < 0 {
			gap = 0
		}
		return gap, nil

	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidRewardSpec, spec.Mode)
	}
}

// FinalReward combines the base amount with the quality score, retry
// penalty, and team modifier, floored to an integer XP amount.
func (p *Policy) FinalReward(base int, quality, penalty, teamModifier float64) int {
	if base <= 0 {
		return 0
	}
	final := math.Floor(float64(base) * quality * penalty * teamModifier)
	if final < 0 {
		return 0
	}
	return int(final)
}

// roundToDecimal rounds to one decimal place.
func roundToDecimal(x float64) float64 {
	return math.Round(x*10) / 10
}
