// Package reward computes XP awards for approved actions.
package reward

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithRetryPenalties sets the penalty step table indexed by retry count.
// Values must be in (0,1]; a nil or empty table keeps the defaults.
func WithRetryPenalties(penalties []float64) Option {
	return func(p *Policy) {
		if len(penalties) == 0 {
			return
		}
		for _, v := range penalties {
			if v <= 0 || v > 1 {
				return
			}
		}
		p.retryPenalties = append([]float64(nil), penalties...)
	}
}

// WithFloorPenalty sets the penalty applied past the last configured step.
func WithFloorPenalty(penalty float64) Option {
	return func(p *Policy) {
		if penalty > 0 && penalty <= 1 {
			p.floorPenalty = penalty
		}
	}
}

// WithTierThresholds replaces the per-track ascending XP-threshold tables.
// Tables that are not exactly five ascending entries are skipped.
func WithTierThresholds(tables map[string][]int) Option {
	return func(p *Policy) {
		if len(tables) == 0 {
			return
		}
		copied := make(map[string][]int, len(tables))
		for track, thresholds := range tables {
			if !validThresholds(thresholds) {
				continue
			}
			copied[track] = append([]int(nil), thresholds...)
		}
		if len(copied) > 0 {
			p.tierThresholds = copied
		}
	}
}

// WithMaxRubricScore sets the upper bound of a rubric sub-score.
func WithMaxRubricScore(maxScore float64) Option {
	return func(p *Policy) {
		if maxScore > 0 {
			p.maxRubricScore = maxScore
		}
	}
}

// validThresholds checks for a 5-entry non-negative ascending table.
func validThresholds(thresholds []int) bool {
	if len(thresholds) != 5 {
		return false
	}
	for i, v := range thresholds {
		if v < 0 {
			return false
		}
		if i > 0 && v <= thresholds[i-1] {
			return false
		}
	}
	return true
}
