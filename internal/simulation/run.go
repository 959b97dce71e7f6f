package simulation

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/arbiter/internal/adapters/ledger"
	"github.com/okian/arbiter/internal/adapters/repository"
	service "github.com/okian/arbiter/internal/app"
	"github.com/okian/arbiter/internal/domain/model"
	"github.com/okian/arbiter/internal/domain/types"
	"github.com/okian/arbiter/pkg/logger"
)

// Percentage display constant.
const (
	percentageMultiplier = 100
)

// Canned feedback long enough to clear the feedback threshold.
const (
	positiveFeedback     = "clear problem framing and a well measured rollout"
	constructiveFeedback = "consider adding regression coverage for the edge cases"
)

// seeder is the slice of the service used to register fixtures.
type seeder interface {
	CreateAccount(ctx context.Context, account model.Account) error
	CreateAction(ctx context.Context, action model.Action) error
	CreateAssignment(ctx context.Context, actionID, reviewerID string) error
	PutRewardSpec(ctx context.Context, key string, spec model.RewardSpec) error
}

// Run executes the complete judgment-flow simulation against an
// in-process engine backed by the in-memory store and ledger.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}

	logger.Get().Info(ctx, "starting judgment-flow simulation",
		logger.Int("actions", config.NumActions),
		logger.Int("workers", config.Workers),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	store := repository.NewMemoryStore()
	bank := ledger.NewInMemoryLedger()

	svc := service.New(
		service.WithStore(store),
		service.WithLedger(bank),
		service.WithWorkerCount(config.Workers),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer svc.Stop()

	// Step 1: Seed reward specs
	if err := seedSpecs(ctx, svc); err != nil {
		return fmt.Errorf("spec seeding failed: %w", err)
	}

	// Step 2: Generate action plans
	plans, err := generatePlans(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("plan generation failed: %w", err)
	}

	// Step 3: Seed accounts, actions, and assignments
	for _, plan := range plans {
		if err := seedPlan(ctx, svc, plan); err != nil {
			return fmt.Errorf("plan seeding failed: %w", err)
		}
	}

	// Step 4: Submit judgments concurrently, first round then second
	results := submitJudgments(ctx, config, svc, plans, stats)

	// Step 5: Verify outcomes against the store and ledger
	if err := verifyResults(ctx, svc, bank, plans, results, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 6: Save results to file
	if err := saveResultsToFile(ctx, config, results); err != nil {
		logger.Get().Warn(ctx, "failed to save results to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// seedSpecs registers the challenge specs the scenarios draw from.
func seedSpecs(ctx context.Context, svc seeder) error {
	if err := svc.PutRewardSpec(ctx, challengeDual, model.RewardSpec{
		Mode:              model.RewardFixed,
		FixedXP:           100,
		RequireDualReview: true,
	}); err != nil {
		return fmt.Errorf("failed to seed dual-review spec: %w", err)
	}
	if err := svc.PutRewardSpec(ctx, challengeSingle, model.RewardSpec{
		Mode:    model.RewardFixed,
		FixedXP: 100,
	}); err != nil {
		return fmt.Errorf("failed to seed single-review spec: %w", err)
	}
	return nil
}

// submitJudgments runs the planned judgments through a worker pool. The
// first-round judgments for every plan go first; second-round judgments
// follow once every action that needs one is awaiting its second
// evaluation.
func submitJudgments(ctx context.Context, config *Config, svc *service.Service, plans []Plan, stats *Stats) []Result {
	results := make([]Result, len(plans))

	runRound(ctx, config, plans, func(i int, plan Plan) {
		outcome, err := svc.Judge(ctx, firstJudgment(plan))
		recordResult(&results[i], plan, outcome, err, stats)
	})

	runRound(ctx, config, plans, func(i int, plan Plan) {
		if len(plan.Reviewers) < 2 {
			return
		}
		outcome, err := svc.Judge(ctx, secondJudgment(plan))
		recordResult(&results[i], plan, outcome, err, stats)
	})

	return results
}

// runRound fans the plans out over the configured worker count.
func runRound(ctx context.Context, config *Config, plans []Plan, submit func(i int, plan Plan)) {
	jobs := make(chan int, len(plans))
	for i := range plans {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
					submit(i, plans[i])
				}
			}
		}()
	}
	wg.Wait()
}

// firstJudgment builds the opening judgment for a plan.
func firstJudgment(plan Plan) model.Judgment {
	j := model.Judgment{
		ActionID:             plan.ActionID,
		ReviewerID:           plan.Reviewers[0],
		Decision:             model.DecisionApprove,
		PositiveFeedback:     positiveFeedback,
		ConstructiveFeedback: constructiveFeedback,
	}

	switch plan.Scenario {
	case ScenarioReject:
		j.Decision = model.DecisionReject
	case ScenarioRetry:
		j.Decision = model.DecisionRetry
	case ScenarioRubricApprove:
		j.Rubric = rubricFor(plan.Ratings[0])
	default:
		rating := plan.Ratings[0]
		j.Rating = &rating
	}

	return j
}

// secondJudgment builds the closing judgment for a dual-review plan.
func secondJudgment(plan Plan) model.Judgment {
	j := model.Judgment{
		ActionID:             plan.ActionID,
		ReviewerID:           plan.Reviewers[1],
		Decision:             model.DecisionApprove,
		PositiveFeedback:     positiveFeedback,
		ConstructiveFeedback: constructiveFeedback,
	}

	if plan.Scenario == ScenarioRubricApprove {
		j.Rubric = rubricFor(plan.Ratings[1])
	} else {
		rating := plan.Ratings[1]
		j.Rating = &rating
	}

	return j
}

var statsMu sync.Mutex

// recordResult folds one judgment outcome into the plan's result slot
// and the aggregate counters.
func recordResult(res *Result, plan Plan, outcome types.Outcome, err error, stats *Stats) {
	statsMu.Lock()
	defer statsMu.Unlock()

	stats.JudgmentsSubmitted++
	res.ActionID = plan.ActionID

	if err != nil {
		stats.JudgmentsFailed++
		res.Err = err.Error()
		return
	}

	res.Status = outcome.Status
	res.AwardedXP = outcome.AwardedXP

	switch model.ActionStatus(outcome.Status) {
	case model.StatusApproved:
		stats.Approved++
		stats.TotalXP += outcome.AwardedXP
	case model.StatusRejected:
		stats.Rejected++
	case model.StatusRetryPending:
		stats.RetryPending++
	}
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var successRate, judgmentsPerSecond float64

	if stats.JudgmentsSubmitted > 0 {
		successRate = float64(stats.JudgmentsSubmitted-stats.JudgmentsFailed) / float64(stats.JudgmentsSubmitted) * percentageMultiplier
	}

	if stats.Duration > 0 {
		judgmentsPerSecond = float64(stats.JudgmentsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("actionsGenerated", stats.ActionsGenerated),
		logger.Int("judgmentsSubmitted", stats.JudgmentsSubmitted),
		logger.Int("judgmentsFailed", stats.JudgmentsFailed),
		logger.Int("approved", stats.Approved),
		logger.Int("rejected", stats.Rejected),
		logger.Int("retryPending", stats.RetryPending),
		logger.Int("totalXP", stats.TotalXP),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("judgmentsPerSecond", judgmentsPerSecond))
}
