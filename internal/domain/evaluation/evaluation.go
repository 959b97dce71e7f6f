// Package evaluation holds the state machine that turns inbound judgments
// into lifecycle transitions, evaluation records, and reward applications.
//
// The machine is optimistic: it reads the action and its records, decides a
// branch, and relies on the store's uniqueness and conditional-update
// contracts to break races. A lost race is never surfaced as a generic
// error; the machine re-reads and re-branches.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/okian/arbiter/internal/adapters/repository"
	"github.com/okian/arbiter/internal/domain/eligibility"
	"github.com/okian/arbiter/internal/domain/model"
	"github.com/okian/arbiter/internal/domain/override"
	"github.com/okian/arbiter/internal/domain/reward"
	"github.com/okian/arbiter/internal/domain/types"
	"github.com/okian/arbiter/pkg/logger"
	"github.com/okian/arbiter/pkg/metrics"
)

// Default state machine configuration constants.
const (
	defaultMinFeedbackLen = 10
	// maxJudgeAttempts bounds the re-read loop after slot-insert races.
	maxJudgeAttempts = 3
)

// Ledger credits XP to a submitter, idempotent on the key.
type Ledger interface {
	Grant(ctx context.Context, userID string, xp int, idempotencyKey string) error
}

// Dispatcher hands off best-effort side effects after a transition commits.
// Implementations must not block the judge path; failures stay internal.
type Dispatcher interface {
	Notify(ctx context.Context, n model.Notification)
	Escalate(ctx context.Context, actionID string)
}

// StateMachine orchestrates a judgment from authorization to reward.
type StateMachine struct {
	store      repository.Store
	policy     *reward.Policy
	guard      *eligibility.Guard
	resolver   *override.Resolver
	ledger     Ledger
	dispatcher Dispatcher

	minFeedbackLen int
	logger         logger.Logger
}

// NewStateMachine wires the state machine with configuration options.
func NewStateMachine(store repository.Store, policy *reward.Policy, guard *eligibility.Guard, resolver *override.Resolver, led Ledger, dispatcher Dispatcher, opts ...Option) *StateMachine {
	m := &StateMachine{
		store:          store,
		policy:         policy,
		guard:          guard,
		resolver:       resolver,
		ledger:         led,
		dispatcher:     dispatcher,
		minFeedbackLen: defaultMinFeedbackLen,
		logger:         logger.Get().Named("evaluation"),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Judge processes one reviewer verdict. All validation failures are
// synchronous and leave no persisted side effects. Only a ledger failure
// surfaces after a committed transition, reported as ErrRewardNotApplied.
func (m *StateMachine) Judge(ctx context.Context, j model.Judgment) (types.Outcome, error) {
	start := time.Now()
	defer func() {
		metrics.RecordJudgeLatency(float64(time.Since(start).Milliseconds()))
	}()

	outcome, err := m.judge(ctx, j)
	if err != nil {
		metrics.RecordJudgmentFailure(failureReason(err))
		return types.Outcome{}, err
	}
	metrics.RecordJudgment(string(j.Decision), outcome.Status)
	return outcome, nil
}

func (m *StateMachine) judge(ctx context.Context, j model.Judgment) (types.Outcome, error) {
	if !j.Decision.Valid() {
		return types.Outcome{}, fmt.Errorf("%w: %q is not approve, reject, or retry",
			ErrInvalidDecision, j.Decision)
	}

	if _, err := m.guard.Authorize(ctx, j.ActionID, j.ReviewerID); err != nil {
		return types.Outcome{}, err
	}

	action, err := m.store.GetAction(ctx, j.ActionID)
	if err != nil {
		return types.Outcome{}, err
	}

	switch j.Decision {
	case model.DecisionReject:
		return m.judgeTerminal(ctx, action, j, model.StatusRejected, model.NotifyEvaluationRejected)
	case model.DecisionRetry:
		return m.judgeTerminal(ctx, action, j, model.StatusRetryPending, model.NotifyEvaluationRetry)
	default:
		return m.judgeApprove(ctx, action, j)
	}
}

// judgeTerminal handles the reject and retry verdicts: a feedback-gated
// direct transition with no record and no reward.
func (m *StateMachine) judgeTerminal(ctx context.Context, action model.Action, j model.Judgment, status model.ActionStatus, notifyType model.NotificationType) (types.Outcome, error) {
	if action.Status.Terminal() {
		return types.Outcome{}, fmt.Errorf("%w: action %s is already %s",
			ErrAlreadyEvaluated, action.ID, action.Status)
	}
	if err := m.requireFeedback("constructive_feedback", j.ConstructiveFeedback); err != nil {
		return types.Outcome{}, err
	}

	if err := m.store.SetActionStatus(ctx, action.ID, status); err != nil {
		if errors.Is(err, repository.ErrAlreadyFinal) {
			return types.Outcome{}, fmt.Errorf("%w: %v", ErrAlreadyEvaluated, err)
		}
		return types.Outcome{}, err
	}

	m.completeAssignment(ctx, action.ID, j.ReviewerID)
	m.dispatcher.Notify(ctx, model.Notification{
		UserID:  action.SubmitterID,
		Type:    notifyType,
		Title:   notifyTitle(notifyType),
		Message: j.ConstructiveFeedback,
		Metadata: map[string]any{
			"action_id": action.ID,
			"status":    string(status),
		},
	})

	return types.Outcome{ActionID: action.ID, Status: string(status)}, nil
}

// judgeApprove handles the approve verdict across single-review, guest
// override, and both dual-review slots.
func (m *StateMachine) judgeApprove(ctx context.Context, action model.Action, j model.Judgment) (types.Outcome, error) {
	if err := m.requireFeedback("positive_feedback", j.PositiveFeedback); err != nil {
		return types.Outcome{}, err
	}
	if err := m.requireFeedback("constructive_feedback", j.ConstructiveFeedback); err != nil {
		return types.Outcome{}, err
	}

	rating, err := m.resolveRating(j)
	if err != nil {
		return types.Outcome{}, err
	}

	submitter, err := m.store.GetAccount(ctx, action.SubmitterID)
	if err != nil {
		return types.Outcome{}, fmt.Errorf("load submitter for action %s: %w", action.ID, err)
	}
	spec, err := m.store.GetRewardSpec(ctx, action)
	if err != nil {
		return types.Outcome{}, fmt.Errorf("resolve reward spec for action %s: %w", action.ID, err)
	}

	decision, err := m.resolver.Resolve(ctx, action, submitter, spec)
	if err != nil {
		return types.Outcome{}, err
	}
	if decision.Mode == override.ModeSingleOverride && j.ReviewerID != decision.DesignatedReviewer.ID {
		return types.Outcome{}, fmt.Errorf(
			"%w: action %s is under guest override; only the designated reviewer may judge it",
			eligibility.ErrNotAssigned, action.ID)
	}

	singleReview := decision.Mode == override.ModeSingleOverride || !spec.RequireDualReview

	reviewerUnit := m.reviewerUnit(ctx, j.ReviewerID)

	// Optimistic loop: a duplicate-slot insert means another judge won the
	// race; re-read and re-branch instead of failing.
	var lastErr error
	for attempt := 0; attempt < maxJudgeAttempts; attempt++ {
		if attempt > 0 {
			action, err = m.store.GetAction(ctx, action.ID)
			if err != nil {
				return types.Outcome{}, err
			}
		}
		if action.Status.Terminal() {
			return types.Outcome{}, fmt.Errorf("%w: action %s is already %s",
				ErrAlreadyEvaluated, action.ID, action.Status)
		}

		records, err := m.store.ListEvaluations(ctx, action.ID)
		if err != nil {
			return types.Outcome{}, err
		}

		var outcome types.Outcome
		switch {
		case singleReview:
			if len(records) > 0 {
				return types.Outcome{}, fmt.Errorf(
					"%w: action %s was already judged by %s",
					ErrAlreadyEvaluated, action.ID, records[0].ReviewerID)
			}
			outcome, err = m.approveSingle(ctx, action, j, submitter, spec, rating, reviewerUnit)
		case len(records) == 0:
			outcome, err = m.approveFirst(ctx, action, j, rating, reviewerUnit)
		case len(records) == 1:
			outcome, err = m.approveSecond(ctx, action, j, submitter, spec, records[0], rating, reviewerUnit)
		default:
			return types.Outcome{}, fmt.Errorf(
				"%w: action %s already has both evaluations", ErrAlreadyEvaluated, action.ID)
		}

		if errors.Is(err, repository.ErrDuplicateEvaluation) || errors.Is(err, repository.ErrConflict) {
			metrics.RecordStoreConflict()
			lastErr = err
			continue
		}
		return outcome, err
	}

	return types.Outcome{}, fmt.Errorf("judge action %s: retries exhausted: %w", action.ID, lastErr)
}

// approveSingle is the terminal path for single-review and guest-override
// actions: one record, immediate approval, immediate reward.
func (m *StateMachine) approveSingle(ctx context.Context, action model.Action, j model.Judgment, submitter model.Account, spec model.RewardSpec, rating float64, reviewerUnit string) (types.Outcome, error) {
	final := rating
	if err := m.store.InsertEvaluation(ctx, model.EvaluationRecord{
		ActionID:             action.ID,
		ReviewerID:           j.ReviewerID,
		ReviewerUnit:         reviewerUnit,
		EvaluationNumber:     1,
		Rating:               rating,
		FinalRating:          &final,
		Rubric:               j.Rubric,
		PositiveFeedback:     j.PositiveFeedback,
		ConstructiveFeedback: j.ConstructiveFeedback,
	}); err != nil {
		return types.Outcome{}, err
	}

	quality := m.policy.QualityScore(rating)
	xp, err := m.computeReward(action, submitter, spec, quality)
	if err != nil {
		return types.Outcome{}, err
	}

	if err := m.store.ApproveAction(ctx, repository.Approval{
		ActionID:       action.ID,
		FirstEvaluator: j.ReviewerID,
		FirstRating:    rating,
		QualityScore:   quality,
		FinalPoints:    xp,
	}); err != nil {
		if errors.Is(err, repository.ErrAlreadyFinal) {
			return types.Outcome{}, fmt.Errorf("%w: %v", ErrAlreadyEvaluated, err)
		}
		return types.Outcome{}, err
	}

	return m.finishApproval(ctx, action, j.ReviewerID, submitter.ID, final, xp, 1, map[string]any{
		"rating": rating,
	})
}

// approveFirst is the non-terminal half of dual review: record slot one,
// park the action awaiting a second judgment, and line up a reviewer.
func (m *StateMachine) approveFirst(ctx context.Context, action model.Action, j model.Judgment, rating float64, reviewerUnit string) (types.Outcome, error) {
	if err := m.store.InsertEvaluation(ctx, model.EvaluationRecord{
		ActionID:             action.ID,
		ReviewerID:           j.ReviewerID,
		ReviewerUnit:         reviewerUnit,
		EvaluationNumber:     1,
		Rating:               rating,
		Rubric:               j.Rubric,
		PositiveFeedback:     j.PositiveFeedback,
		ConstructiveFeedback: j.ConstructiveFeedback,
	}); err != nil {
		return types.Outcome{}, err
	}

	if err := m.store.RecordFirstEvaluation(ctx, action.ID, j.ReviewerID, rating); err != nil {
		return types.Outcome{}, err
	}

	m.completeAssignment(ctx, action.ID, j.ReviewerID)
	m.dispatcher.Escalate(ctx, action.ID)
	m.dispatcher.Notify(ctx, model.Notification{
		UserID:  action.SubmitterID,
		Type:    model.NotifyPartialEvaluation,
		Title:   notifyTitle(model.NotifyPartialEvaluation),
		Message: "Your submission passed its first review and is awaiting a second evaluation.",
		Metadata: map[string]any{
			"action_id":    action.ID,
			"first_rating": rating,
		},
	})

	return types.Outcome{
		ActionID:         action.ID,
		Status:           string(model.StatusAwaitingSecond),
		EvaluationNumber: 1,
	}, nil
}

// approveSecond completes dual review: independence check, slot two, the
// averaged final rating, approval, and reward.
func (m *StateMachine) approveSecond(ctx context.Context, action model.Action, j model.Judgment, submitter model.Account, spec model.RewardSpec, first model.EvaluationRecord, rating float64, reviewerUnit string) (types.Outcome, error) {
	if err := eligibility.CheckIndependence(first, j.ReviewerID, reviewerUnit); err != nil {
		return types.Outcome{}, err
	}

	average := (first.Rating + rating) / 2
	if err := m.store.InsertEvaluation(ctx, model.EvaluationRecord{
		ActionID:             action.ID,
		ReviewerID:           j.ReviewerID,
		ReviewerUnit:         reviewerUnit,
		EvaluationNumber:     2,
		Rating:               rating,
		FinalRating:          &average,
		Rubric:               j.Rubric,
		PositiveFeedback:     j.PositiveFeedback,
		ConstructiveFeedback: j.ConstructiveFeedback,
	}); err != nil {
		return types.Outcome{}, err
	}

	quality := m.policy.QualityScore(average)
	xp, err := m.computeReward(action, submitter, spec, quality)
	if err != nil {
		return types.Outcome{}, err
	}

	if err := m.store.ApproveAction(ctx, repository.Approval{
		ActionID:        action.ID,
		FirstEvaluator:  first.ReviewerID,
		FirstRating:     first.Rating,
		SecondEvaluator: j.ReviewerID,
		SecondRating:    rating,
		QualityScore:    quality,
		FinalPoints:     xp,
	}); err != nil {
		if errors.Is(err, repository.ErrAlreadyFinal) {
			return types.Outcome{}, fmt.Errorf("%w: %v", ErrAlreadyEvaluated, err)
		}
		return types.Outcome{}, err
	}

	return m.finishApproval(ctx, action, j.ReviewerID, submitter.ID, average, xp, 2, map[string]any{
		"first_rating":  first.Rating,
		"second_rating": rating,
		"final_rating":  average,
	})
}

// finishApproval applies the reward and fires the post-approval side
// effects. The transition has already committed when this runs; only the
// ledger failure surfaces to the caller.
func (m *StateMachine) finishApproval(ctx context.Context, action model.Action, reviewerID, submitterID string, finalRating float64, xp, slot int, meta map[string]any) (types.Outcome, error) {
	m.completeAssignment(ctx, action.ID, reviewerID)

	if xp > 0 {
		if err := m.ledger.Grant(ctx, submitterID, xp, action.ID); err != nil {
			m.logger.Error(ctx, "ledger grant failed after approval",
				logger.String("action_id", action.ID),
				logger.Int("xp", xp),
				logger.Error(err),
			)
			return types.Outcome{}, fmt.Errorf(
				"%w: action %s approved but crediting %d XP failed: %v",
				ErrRewardNotApplied, action.ID, xp, err)
		}
		metrics.RecordReward(xp)
	}

	meta["action_id"] = action.ID
	meta["awarded_xp"] = xp
	m.dispatcher.Notify(ctx, model.Notification{
		UserID:   submitterID,
		Type:     model.NotifyEvaluationComplete,
		Title:    notifyTitle(model.NotifyEvaluationComplete),
		Message:  "Your submission was approved and earned " + strconv.Itoa(xp) + " XP.",
		Metadata: meta,
	})

	return types.Outcome{
		ActionID:         action.ID,
		Status:           string(model.StatusApproved),
		EvaluationNumber: slot,
		FinalRating:      finalRating,
		AwardedXP:        xp,
	}, nil
}

// computeReward runs the policy for an approval at the given quality.
func (m *StateMachine) computeReward(action model.Action, submitter model.Account, spec model.RewardSpec, quality float64) (int, error) {
	var tier model.Tier
	if spec.Mode == model.RewardTierSteps {
		var err error
		tier, err = model.ParseTier(submitter.Tier)
		if err != nil {
			return 0, fmt.Errorf("submitter %s: %w", submitter.ID, err)
		}
	}
	base, err := m.policy.BaseReward(spec, submitter.CurrentXP, tier)
	if err != nil {
		return 0, err
	}
	penalty := m.policy.RetryPenalty(action.RetryCount)
	return m.policy.FinalReward(base, quality, penalty, action.TeamModifier), nil
}

// resolveRating returns the explicit rating when supplied, otherwise the
// rubric-derived one.
func (m *StateMachine) resolveRating(j model.Judgment) (float64, error) {
	if j.Rating != nil {
		if err := m.policy.ValidateRating(*j.Rating); err != nil {
			return 0, err
		}
		return *j.Rating, nil
	}
	return m.policy.RatingFromRubric(j.Rubric)
}

// requireFeedback enforces the configured minimum feedback length, naming
// the offending field and threshold. Length is counted in characters, not
// bytes, so multibyte feedback is measured the way a reader sees it.
func (m *StateMachine) requireFeedback(field, text string) error {
	if n := utf8.RuneCountInString(text); n < m.minFeedbackLen {
		return fmt.Errorf("%w: %s must be at least %d characters, got %d",
			ErrInvalidFeedback, field, m.minFeedbackLen, n)
	}
	return nil
}

// reviewerUnit loads the reviewer's organizational unit for the
// independence check. A missing reviewer account logs and yields an empty
// unit rather than blocking the judgment.
func (m *StateMachine) reviewerUnit(ctx context.Context, reviewerID string) string {
	account, err := m.store.GetAccount(ctx, reviewerID)
	if err != nil {
		m.logger.Warn(ctx, "reviewer account not found; independence checks only by identity",
			logger.String("reviewer_id", reviewerID),
		)
		return ""
	}
	return account.Unit
}

// completeAssignment stamps the reviewer's queue entry. Best-effort: a
// failure or a lost conditional update is logged and swallowed.
func (m *StateMachine) completeAssignment(ctx context.Context, actionID, reviewerID string) {
	won, err := m.store.CompleteAssignment(ctx, actionID, reviewerID)
	if err != nil {
		m.logger.Warn(ctx, "assignment completion failed",
			logger.String("action_id", actionID),
			logger.String("reviewer_id", reviewerID),
			logger.Error(err),
		)
		return
	}
	if !won {
		m.logger.Debug(ctx, "assignment already completed",
			logger.String("action_id", actionID),
			logger.String("reviewer_id", reviewerID),
		)
	}
}

// failureReason buckets an error for the judgment failure counter.
func failureReason(err error) string {
	switch {
	case errors.Is(err, eligibility.ErrNotAssigned):
		return "not_assigned"
	case errors.Is(err, ErrAlreadyEvaluated):
		return "already_evaluated"
	case errors.Is(err, eligibility.ErrIndependenceViolation):
		return "independence_violation"
	case errors.Is(err, ErrInvalidFeedback):
		return "invalid_feedback"
	case errors.Is(err, ErrInvalidRating):
		return "invalid_rating"
	case errors.Is(err, ErrInvalidDecision):
		return "invalid_decision"
	case errors.Is(err, override.ErrMisconfiguredOverride):
		return "misconfigured_override"
	case errors.Is(err, ErrRewardNotApplied):
		return "reward_not_applied"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

// notifyTitle maps a notification type to its user-facing title.
func notifyTitle(t model.NotificationType) string {
	switch t {
	case model.NotifyPartialEvaluation:
		return "First evaluation complete"
	case model.NotifyEvaluationComplete:
		return "Evaluation complete"
	case model.NotifyEvaluationRejected:
		return "Submission rejected"
	case model.NotifyEvaluationRetry:
		return "Submission returned for changes"
	default:
		return "Evaluation update"
	}
}
