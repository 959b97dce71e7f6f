package api

import (
	"errors"
	"net/http"

	"github.com/okian/arbiter/internal/adapters/repository"
	"github.com/okian/arbiter/internal/domain/eligibility"
	"github.com/okian/arbiter/internal/domain/evaluation"
	"github.com/okian/arbiter/internal/domain/override"
)

// classify maps a judgment error to its HTTP status and machine code. Every
// code corresponds to one kind in the engine's error taxonomy, so clients
// can branch without parsing messages.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, eligibility.ErrNotAssigned):
		return http.StatusNotFound, "not_assigned"
	case errors.Is(err, evaluation.ErrAlreadyEvaluated):
		return http.StatusConflict, "already_evaluated"
	case errors.Is(err, eligibility.ErrIndependenceViolation):
		return http.StatusConflict, "independence_violation"
	case errors.Is(err, evaluation.ErrInvalidFeedback):
		return http.StatusBadRequest, "invalid_feedback"
	case errors.Is(err, evaluation.ErrInvalidRating):
		return http.StatusBadRequest, "invalid_rating"
	case errors.Is(err, evaluation.ErrInvalidDecision):
		return http.StatusBadRequest, "invalid_decision"
	case errors.Is(err, override.ErrMisconfiguredOverride):
		return http.StatusInternalServerError, "misconfigured_override"
	case errors.Is(err, evaluation.ErrRewardNotApplied):
		return http.StatusBadGateway, "reward_not_applied"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
