package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/arbiter/internal/domain/model"
)

// actionResponse is the wire shape for GET /actions/{id}.
type actionResponse struct {
	ID          string             `json:"id"`
	SubmitterID string             `json:"submitter_id"`
	ChallengeID string             `json:"challenge_id,omitempty"`
	CampaignID  string             `json:"campaign_id,omitempty"`
	Status      string             `json:"status"`
	RetryCount  int                `json:"retry_count"`
	FinalPoints int                `json:"final_points,omitempty"`
	Evaluations []evaluationDetail `json:"evaluations"`
}

type evaluationDetail struct {
	ReviewerID           string             `json:"reviewer_id"`
	EvaluationNumber     int                `json:"evaluation_number"`
	Rating               float64            `json:"rating"`
	FinalRating          *float64           `json:"final_rating,omitempty"`
	Rubric               map[string]float64 `json:"rubric,omitempty"`
	PositiveFeedback     string             `json:"positive_feedback,omitempty"`
	ConstructiveFeedback string             `json:"constructive_feedback,omitempty"`
}

// ActionsHandler serves action lookups.
type ActionsHandler struct {
	deps Dependencies
}

// NewActionsHandler creates a new actions handler.
func NewActionsHandler(deps Dependencies) *ActionsHandler {
	return &ActionsHandler{deps: deps}
}

// HandleGetAction handles GET /actions/{id} requests.
func (h *ActionsHandler) HandleGetAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/actions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing action id"))
		return
	}

	action, err := h.deps.GetAction(r.Context(), id)
	if err != nil {
		status, code := classify(err)
		writeError(w, status, code, err)
		return
	}
	records, err := h.deps.ListEvaluations(r.Context(), id)
	if err != nil {
		status, code := classify(err)
		writeError(w, status, code, err)
		return
	}

	writeJSON(w, http.StatusOK, toActionResponse(action, records))
}

func toActionResponse(a model.Action, records []model.EvaluationRecord) actionResponse {
	resp := actionResponse{
		ID:          a.ID,
		SubmitterID: a.SubmitterID,
		ChallengeID: a.ChallengeID,
		CampaignID:  a.CampaignID,
		Status:      string(a.Status),
		RetryCount:  a.RetryCount,
		FinalPoints: a.FinalPoints,
		Evaluations: make([]evaluationDetail, 0, len(records)),
	}
	for _, rec := range records {
		resp.Evaluations = append(resp.Evaluations, evaluationDetail{
			ReviewerID:           rec.ReviewerID,
			EvaluationNumber:     rec.EvaluationNumber,
			Rating:               rec.Rating,
			FinalRating:          rec.FinalRating,
			Rubric:               rec.Rubric,
			PositiveFeedback:     rec.PositiveFeedback,
			ConstructiveFeedback: rec.ConstructiveFeedback,
		})
	}
	return resp
}
