package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/arbiter/internal/domain/model"
)

// judgmentRequest mirrors the OpenAPI schema for POST /judgments.
type judgmentRequest struct {
	ActionID             string             `json:"action_id"`
	ReviewerID           string             `json:"reviewer_id"`
	Decision             string             `json:"decision"`
	Rating               *float64           `json:"rating,omitempty"`
	Rubric               map[string]float64 `json:"rubric,omitempty"`
	PositiveFeedback     string             `json:"positive_feedback,omitempty"`
	ConstructiveFeedback string             `json:"constructive_feedback,omitempty"`
}

func (j judgmentRequest) validate() error {
	switch {
	case strings.TrimSpace(j.ActionID) == "":
		return errors.New("missing action_id")
	case strings.TrimSpace(j.ReviewerID) == "":
		return errors.New("missing reviewer_id")
	case strings.TrimSpace(j.Decision) == "":
		return errors.New("missing decision")
	}
	return nil
}

// JudgmentsHandler handles judgment submissions.
type JudgmentsHandler struct {
	deps Dependencies
}

// NewJudgmentsHandler creates a new judgments handler.
func NewJudgmentsHandler(deps Dependencies) *JudgmentsHandler {
	return &JudgmentsHandler{deps: deps}
}

// HandlePostJudgment handles POST /judgments requests.
func (h *JudgmentsHandler) HandlePostJudgment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req judgmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	outcome, err := h.deps.Judge(r.Context(), model.Judgment{
		ActionID:             req.ActionID,
		ReviewerID:           req.ReviewerID,
		Decision:             model.Decision(req.Decision),
		Rating:               req.Rating,
		Rubric:               req.Rubric,
		PositiveFeedback:     req.PositiveFeedback,
		ConstructiveFeedback: req.ConstructiveFeedback,
	})
	if err != nil {
		status, code := classify(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
