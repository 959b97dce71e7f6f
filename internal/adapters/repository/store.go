// Package repository defines the evaluation store interface and errors.
//
// The store is the authority for action lifecycle state. Two guarantees the
// rest of the engine leans on live here:
//   - evaluation-record inserts are exactly-once per (action, slot), backed
//     by a uniqueness constraint surfaced as ErrDuplicateEvaluation;
//   - assignment completion and terminal transitions are conditional
//     updates, so concurrent judges cannot both win the same slot.
package repository

import (
	"context"

	"github.com/okian/arbiter/internal/domain/model"
)

// Approval carries the full terminal write for an approved action. The
// second-evaluator fields stay empty under single-review mode.
type Approval struct {
	ActionID        string
	FirstEvaluator  string
	FirstRating     float64
	SecondEvaluator string
	SecondRating    float64
	QualityScore    float64
	FinalPoints     int
}

// Store provides read/write access to actions, evaluations, accounts,
// reward specs, and the assignment queue.
type Store interface {
	// GetAction returns an action by id, or ErrNotFound.
	GetAction(ctx context.Context, id string) (model.Action, error)

	// CreateAction inserts a new action in its submitted state.
	CreateAction(ctx context.Context, action model.Action) error

	// RecordFirstEvaluation moves a submitted action to
	// awaiting_second_evaluation and stamps the first evaluator/rating.
	// Returns ErrConflict if the action left the submitted state underneath.
	RecordFirstEvaluation(ctx context.Context, actionID, reviewerID string, rating float64) error

	// SetActionStatus moves a non-terminal action to the given terminal
	// state (rejected or retry_pending). Returns ErrAlreadyFinal if the
	// action is already terminal.
	SetActionStatus(ctx context.Context, actionID string, status model.ActionStatus) error

	// ApproveAction performs the write-once terminal transition to
	// approved, persisting evaluators, ratings, quality, and final points.
	// Returns ErrAlreadyFinal if the action is already terminal.
	ApproveAction(ctx context.Context, approval Approval) error

	// ListEvaluations returns the evaluation records for an action ordered
	// by evaluation number.
	ListEvaluations(ctx context.Context, actionID string) ([]model.EvaluationRecord, error)

	// InsertEvaluation creates one evaluation record. A second insert for
	// the same (action, evaluation_number) pair fails with
	// ErrDuplicateEvaluation; callers re-read and re-branch.
	InsertEvaluation(ctx context.Context, record model.EvaluationRecord) error

	// GetAccount returns an account by id, or ErrNotFound.
	GetAccount(ctx context.Context, id string) (model.Account, error)

	// CreateAccount inserts a platform account.
	CreateAccount(ctx context.Context, account model.Account) error

	// GetRewardSpec returns the review/reward spec governing an action,
	// resolved through its challenge or, failing that, its campaign.
	GetRewardSpec(ctx context.Context, action model.Action) (model.RewardSpec, error)

	// PutRewardSpec stores the spec for a challenge or campaign id.
	PutRewardSpec(ctx context.Context, key string, spec model.RewardSpec) error

	// OpenAssignment returns the open queue entry for the pair, or
	// ErrNotFound when no open entry exists.
	OpenAssignment(ctx context.Context, actionID, reviewerID string) (model.AssignmentEntry, error)

	// CreateAssignment grants a reviewer the right to judge an action.
	CreateAssignment(ctx context.Context, actionID, reviewerID string) error

	// CompleteAssignment stamps the entry's completion time only if it is
	// still open. Returns true when this caller performed the stamp.
	CompleteAssignment(ctx context.Context, actionID, reviewerID string) (bool, error)
}
