// Package config defines service configuration structures and loading hooks.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBDriver selects the store backend: sqlite or mysql. Ignored when
	// DBDSN is empty, in which case the in-memory store is used.
	DBDriver string `koanf:"db_driver"`
	DBDSN    string `koanf:"db_dsn"`

	// DispatchQueueSize bounds the side-effect queue.
	DispatchQueueSize int `koanf:"dispatch_queue_size"`

	// DispatchWorkers sets the number of side-effect workers.
	DispatchWorkers int `koanf:"dispatch_workers"`

	// DedupeSize sets the size of the dispatch deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MinFeedbackLength is the minimum accepted feedback text length.
	MinFeedbackLength int `koanf:"min_feedback_length"`

	// RetryPenalties maps retry counts 0..N-1 to reward multipliers; counts
	// past the table use DefaultRetryPenalty.
	RetryPenalties      []float64 `koanf:"retry_penalties"`
	DefaultRetryPenalty float64   `koanf:"default_retry_penalty"`

	// TierThresholds holds the ascending XP-threshold table per track.
	TierThresholds map[string][]int `koanf:"tier_thresholds"`

	// MaxRubricScore is the upper bound of a rubric sub-score.
	MaxRubricScore float64 `koanf:"max_rubric_score"`

	// Guest-override configuration: the role tag and unit names marking a
	// submitter as guest, and the one account allowed to judge their
	// sponsored-campaign actions.
	GuestRole          string   `koanf:"guest_role"`
	GuestUnits         []string `koanf:"guest_units"`
	OverrideReviewerID string   `koanf:"override_reviewer_id"`

	// External service endpoints. Empty URLs select logging fallbacks
	// (ledger falls back to an in-memory ledger).
	LedgerURL string `koanf:"ledger_url"`
	NotifyURL string `koanf:"notify_url"`
	AssignURL string `koanf:"assign_url"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		DBDriver:            "sqlite",
		DispatchQueueSize:   10_000,
		DispatchWorkers:     runtime.NumCPU() * 2,
		DedupeSize:          50_000,
		MinFeedbackLength:   10,
		RetryPenalties:      []float64{1.0, 0.8, 0.6},
		DefaultRetryPenalty: 0.4,
		TierThresholds: map[string][]int{
			"EX": {0, 300, 700, 1200, 1800},
			"OP": {0, 250, 600, 1000, 1500},
			"CM": {0, 200, 500, 900, 1400},
		},
		MaxRubricScore: 5.0,
		GuestRole:      "guest",
		GuestUnits:     []string{"external", "guest"},
	}
}
