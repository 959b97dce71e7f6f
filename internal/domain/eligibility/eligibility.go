// Package eligibility gates which reviewers may judge which actions. The
// assignment queue is the sole source of truth: a reviewer without an open
// queue entry for an action is simply not allowed to judge it, whatever
// roles they hold upstream.
package eligibility

import (
	"context"
	"fmt"

	"github.com/okian/arbiter/internal/domain/model"
)

// AssignmentSource reads the external assignment queue.
type AssignmentSource interface {
	// OpenAssignment returns the open (uncompleted) queue entry for the
	// given action/reviewer pair, or a not-found error.
	OpenAssignment(ctx context.Context, actionID, reviewerID string) (model.AssignmentEntry, error)
}

// Guard authorizes reviewers against the assignment queue.
type Guard struct {
	assignments AssignmentSource
}

// NewGuard creates a Guard backed by the given assignment source.
func NewGuard(assignments AssignmentSource) *Guard {
	return &Guard{assignments: assignments}
}

// Authorize returns the reviewer's open queue entry for the action.
// Absence is a hard failure: the judgment attempt is rejected with
// ErrNotAssigned regardless of why no entry exists.
func (g *Guard) Authorize(ctx context.Context, actionID, reviewerID string) (model.AssignmentEntry, error) {
	entry, err := g.assignments.OpenAssignment(ctx, actionID, reviewerID)
	if err != nil {
		return model.AssignmentEntry{}, fmt.Errorf(
			"%w: reviewer %s holds no open assignment for action %s",
			ErrNotAssigned, reviewerID, actionID)
	}
	if !entry.Open() {
		return model.AssignmentEntry{}, fmt.Errorf(
			"%w: reviewer %s's assignment for action %s is already completed",
			ErrNotAssigned, reviewerID, actionID)
	}
	return entry, nil
}

// CheckIndependence enforces the dual-review independence rule: the second
// reviewer must differ from the first in both identity and organizational
// unit. Waived under guest override by the caller, never here.
func CheckIndependence(first model.EvaluationRecord, reviewerID, reviewerUnit string) error {
	if reviewerID == first.ReviewerID {
		return fmt.Errorf(
			"%w: reviewer %s already performed evaluation #%d",
			ErrIndependenceViolation, reviewerID, first.EvaluationNumber)
	}
	if reviewerUnit != "" && reviewerUnit == first.ReviewerUnit {
		return fmt.Errorf(
			"%w: reviewer %s shares organizational unit %q with first reviewer %s",
			ErrIndependenceViolation, reviewerID, reviewerUnit, first.ReviewerID)
	}
	return nil
}
