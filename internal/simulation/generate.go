package simulation

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/arbiter/internal/domain/model"
	"github.com/okian/arbiter/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	scenarioDivisor    = 10
	ratingShapeDivisor = 6
)

// Constants for rating generation ranges.
const (
	solidRatingMin    = 5.0
	solidRatingRange  = 3.0
	strongRatingMin   = 8.0
	strongRatingRange = 2.0
	weakRatingMin     = 1.0
	weakRatingRange   = 3.0
	midRatingMin      = 4.0
	midRatingRange    = 3.0
)

// Reviewer units used to exercise the cross-unit independence rule.
var reviewerUnits = []string{"core", "platform", "growth", "infra"}

// Challenge spec keys seeded before the run. Each scenario draws from
// the spec shape it needs.
const (
	challengeDual   = "sim-challenge-dual"
	challengeSingle = "sim-challenge-single"
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomInt(bound int64) int64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(bound))
	return n.Int64()
}

// generatePlans creates the action population with submitters, reviewer
// pairs, and planned ratings.
func generatePlans(ctx context.Context, config *Config, stats *Stats) ([]Plan, error) {
	logger.Get().Info(ctx, "generating action plans", logger.Int("numActions", config.NumActions))

	plans := make([]Plan, config.NumActions)

	for i := 0; i < config.NumActions; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during plan generation: %w", ctx.Err())
		default:
		}
		plans[i] = generateSinglePlan()
	}

	stats.ActionsGenerated = len(plans)
	logger.Get().Info(ctx, "generated action plans successfully", logger.Int("count", len(plans)))

	return plans, nil
}

// generateSinglePlan creates one action plan with a weighted scenario mix.
func generateSinglePlan() Plan {
	scenario := pickScenario()

	plan := Plan{
		Scenario:    scenario,
		ActionID:    uuid.New().String(),
		SubmitterID: uuid.New().String(),
		ChallengeID: challengeDual,
	}

	switch scenario {
	case ScenarioSingleApprove:
		plan.ChallengeID = challengeSingle
		plan.Reviewers = []string{uuid.New().String()}
		plan.Ratings = []float64{generateVariedRating()}
	case ScenarioReject, ScenarioRetry:
		plan.Reviewers = []string{uuid.New().String()}
		plan.Ratings = nil
	default:
		// Dual review, two reviewers from distinct units.
		plan.Reviewers = []string{uuid.New().String(), uuid.New().String()}
		plan.Ratings = []float64{generateVariedRating(), generateVariedRating()}
	}

	return plan
}

// pickScenario draws one scenario from the weighted mix: mostly dual
// approvals, with single reviews, rubric scoring, rejections, and
// retries sprinkled in.
func pickScenario() Scenario {
	switch randomInt(scenarioDivisor) {
	case 0, 1, 2, 3:
		return ScenarioDualApprove
	case 4, 5:
		return ScenarioSingleApprove
	case 6, 7:
		return ScenarioRubricApprove
	case 8:
		return ScenarioReject
	default:
		return ScenarioRetry
	}
}

// generateVariedRating creates a rating in [0,10] with a distribution
// skewed toward solid work, the mix a real reviewer population produces.
func generateVariedRating() float64 {
	switch randomInt(ratingShapeDivisor) {
	case 0, 1, 2:
		// Solid work (5.0 - 8.0) - most common
		return solidRatingMin + getRandomFloat()*solidRatingRange
	case 3:
		// Strong work (8.0 - 10.0)
		return strongRatingMin + getRandomFloat()*strongRatingRange
	case 4:
		// Weak work (1.0 - 4.0)
		return weakRatingMin + getRandomFloat()*weakRatingRange
	default:
		// Middle of the pack (4.0 - 7.0)
		return midRatingMin + getRandomFloat()*midRatingRange
	}
}

// unitFor assigns a reviewer to a unit by slot so that the two reviewers
// of a dual-review pair always sit in different units.
func unitFor(slot int) string {
	return reviewerUnits[slot%len(reviewerUnits)]
}

// rubricFor splits a target rating into per-criterion sub-scores on the
// 0-5 scale so the derived rating lands on the planned value.
func rubricFor(rating float64) map[string]float64 {
	half := rating / 2
	return map[string]float64{
		"impact":    half,
		"execution": half,
	}
}

// seedPlan registers the submitter, reviewers, action, and assignments
// for one plan.
func seedPlan(ctx context.Context, svc seeder, plan Plan) error {
	if err := svc.CreateAccount(ctx, model.Account{
		ID:   plan.SubmitterID,
		Name: "submitter",
		Unit: "product",
		Tier: "EX2",
	}); err != nil {
		return fmt.Errorf("failed to create submitter: %w", err)
	}

	for slot, reviewerID := range plan.Reviewers {
		if err := svc.CreateAccount(ctx, model.Account{
			ID:    reviewerID,
			Name:  "reviewer",
			Unit:  unitFor(slot),
			Roles: []string{"reviewer"},
		}); err != nil {
			return fmt.Errorf("failed to create reviewer: %w", err)
		}
	}

	if err := svc.CreateAction(ctx, model.Action{
		ID:           plan.ActionID,
		SubmitterID:  plan.SubmitterID,
		ChallengeID:  plan.ChallengeID,
		Status:       model.StatusSubmitted,
		TeamModifier: 1.0,
	}); err != nil {
		return fmt.Errorf("failed to create action: %w", err)
	}

	for _, reviewerID := range plan.Reviewers {
		if err := svc.CreateAssignment(ctx, plan.ActionID, reviewerID); err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}
	}

	return nil
}
