package simulation

import (
	"context"
	"fmt"

	"github.com/okian/arbiter/internal/adapters/ledger"
	service "github.com/okian/arbiter/internal/app"
	"github.com/okian/arbiter/internal/domain/model"
	"github.com/okian/arbiter/pkg/logger"
)

// expectedStatus maps a scenario to the terminal state the engine should
// land the action in.
func expectedStatus(s Scenario) model.ActionStatus {
	switch s {
	case ScenarioReject:
		return model.StatusRejected
	case ScenarioRetry:
		return model.StatusRetryPending
	default:
		return model.StatusApproved
	}
}

// expectedRecords is the number of evaluation records a scenario leaves
// behind. Rejections and retries close the action without filling a slot.
func expectedRecords(s Scenario) int {
	switch s {
	case ScenarioReject, ScenarioRetry:
		return 0
	case ScenarioSingleApprove:
		return 1
	default:
		return 2
	}
}

// verifyResults cross-checks every plan against the store and the ledger:
// the action must land in the planned state, leave the planned number of
// evaluation records, and carry reward bookkeeping that matches what the
// ledger actually credited.
func verifyResults(ctx context.Context, svc *service.Service, bank *ledger.InMemoryLedger, plans []Plan, results []Result, stats *Stats) error {
	logger.Get().Info(ctx, "verifying simulation results")

	var mismatches int
	for i, plan := range plans {
		if results[i].Err != "" {
			continue
		}

		action, err := svc.GetAction(ctx, plan.ActionID)
		if err != nil {
			return fmt.Errorf("failed to load action %s: %w", plan.ActionID, err)
		}

		if action.Status != expectedStatus(plan.Scenario) {
			mismatches++
			logger.Get().Warn(ctx, "unexpected action status",
				logger.String("actionID", plan.ActionID),
				logger.String("scenario", string(plan.Scenario)),
				logger.String("status", string(action.Status)))
			continue
		}

		records, err := svc.ListEvaluations(ctx, plan.ActionID)
		if err != nil {
			return fmt.Errorf("failed to list evaluations for %s: %w", plan.ActionID, err)
		}
		if len(records) != expectedRecords(plan.Scenario) {
			mismatches++
			logger.Get().Warn(ctx, "unexpected evaluation record count",
				logger.String("actionID", plan.ActionID),
				logger.Int("records", len(records)))
			continue
		}

		if action.Status == model.StatusApproved {
			credited := bank.Total(plan.SubmitterID)
			if credited != action.FinalPoints || credited != results[i].AwardedXP {
				mismatches++
				logger.Get().Warn(ctx, "ledger credit does not match action bookkeeping",
					logger.String("actionID", plan.ActionID),
					logger.Int("credited", credited),
					logger.Int("finalPoints", action.FinalPoints),
					logger.Int("awardedXP", results[i].AwardedXP))
			}
		}
	}

	if mismatches > 0 {
		return fmt.Errorf("verification found %d mismatched actions out of %d", mismatches, stats.ActionsGenerated)
	}

	logger.Get().Info(ctx, "verification passed", logger.Int("actions", stats.ActionsGenerated))
	return nil
}
