package evaluation

import (
	"errors"

	"github.com/okian/arbiter/internal/domain/reward"
)

// Sentinel kinds for judgment errors.
var (
	ErrAlreadyEvaluated = errors.New("action already evaluated")
	ErrInvalidFeedback  = errors.New("invalid feedback")
	ErrInvalidDecision  = errors.New("invalid decision")
	// ErrInvalidRating is shared with the reward policy so rubric and
	// rating failures report the same kind everywhere.
	ErrInvalidRating = reward.ErrInvalidRating
	// ErrRewardNotApplied reports a committed approval whose ledger credit
	// failed. The caller must see this even though the state transition
	// already happened.
	ErrRewardNotApplied = errors.New("reward not applied")
)
