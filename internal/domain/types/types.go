// Package types contains common types used across the application
package types

// Outcome reports the result of a processed judgment.
type Outcome struct {
	ActionID string `json:"action_id"`
	// Status is the action's lifecycle state after the judgment committed.
	Status string `json:"status"`
	// EvaluationNumber is the slot the judgment filled (0 for reject/retry).
	EvaluationNumber int `json:"evaluation_number,omitempty"`
	// FinalRating is set when the review completed (single or averaged dual).
	FinalRating float64 `json:"final_rating,omitempty"`
	// AwardedXP is the applied reward; zero when no reward was granted.
	AwardedXP int `json:"awarded_xp,omitempty"`
}
