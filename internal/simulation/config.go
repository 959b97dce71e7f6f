package simulation

import "time"

// Config holds configuration for the judgment-flow simulation
type Config struct {
	NumActions int    // Number of actions to generate and judge
	Workers    int    // Number of concurrent judgment submitters
	OutputFile string // Output file for outcome summaries
	LogFile    string // Log file for simulation output
	Verbose    bool   // Enable verbose logging
}

// Scenario selects the planned path of one action through review.
type Scenario string

const (
	ScenarioDualApprove   Scenario = "dual_approve"
	ScenarioSingleApprove Scenario = "single_approve"
	ScenarioRubricApprove Scenario = "rubric_approve"
	ScenarioReject        Scenario = "reject"
	ScenarioRetry         Scenario = "retry"
)

// Plan is one generated action together with the judgments that will be
// submitted against it.
type Plan struct {
	Scenario    Scenario  `json:"scenario"`
	ActionID    string    `json:"action_id"`
	SubmitterID string    `json:"submitter_id"`
	ChallengeID string    `json:"challenge_id"`
	Reviewers   []string  `json:"reviewers"`
	Ratings     []float64 `json:"ratings"`
}

// Result records what the engine actually did with one plan.
type Result struct {
	ActionID  string `json:"action_id"`
	Status    string `json:"status"`
	AwardedXP int    `json:"awarded_xp"`
	Err       string `json:"error,omitempty"`
}

// Stats holds simulation statistics
type Stats struct {
	ActionsGenerated   int
	JudgmentsSubmitted int
	JudgmentsFailed    int
	Approved           int
	Rejected           int
	RetryPending       int
	TotalXP            int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
