// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ActionStatus is the lifecycle state of a submitted action.
type ActionStatus string

// Action lifecycle states. Only Approved carries a reward.
const (
	StatusSubmitted      ActionStatus = "submitted"
	StatusAwaitingSecond ActionStatus = "awaiting_second_evaluation"
	StatusApproved       ActionStatus = "approved"
	StatusRejected       ActionStatus = "rejected"
	StatusRetryPending   ActionStatus = "retry_pending"
)

// Terminal reports whether the status accepts no further judgments.
func (s ActionStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusRetryPending:
		return true
	default:
		return false
	}
}

// Decision is a reviewer's verdict on an action.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionRetry   Decision = "retry"
)

// Valid reports whether the decision is one of the known verdicts.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionRetry:
		return true
	default:
		return false
	}
}

// Action represents one unit of submitted evidence awaiting or having
// undergone review.
type Action struct {
	ID          string
	SubmitterID string
	ChallengeID string // empty when the action is raw campaign evidence
	CampaignID  string // empty when not tied to a campaign
	Status      ActionStatus
	RetryCount  int

	FirstEvaluator  string
	FirstRating     float64
	SecondEvaluator string
	SecondRating    float64

	// QualityScore is rating average / 10, range [0,1]. Set on approval.
	QualityScore float64
	// FinalPoints is set at most once, when Status transitions to approved.
	FinalPoints int
	// TeamModifier is a positive multiplier supplied externally, default 1.0.
	TeamModifier float64
}

// EvaluationRecord is one reviewer's judgment of one action. For a given
// action at most one record exists per EvaluationNumber.
type EvaluationRecord struct {
	ActionID         string
	ReviewerID       string
	ReviewerUnit     string
	EvaluationNumber int // 1 or 2
	Rating           float64
	// FinalRating is populated only on the record that completes the review;
	// equal to the two-rating average under dual review.
	FinalRating          *float64
	Rubric               map[string]float64
	PositiveFeedback     string
	ConstructiveFeedback string
	CreatedAt            time.Time
}

// Judgment is the inbound payload for a single review verdict.
type Judgment struct {
	ActionID   string
	ReviewerID string
	Decision   Decision
	// Rating in [0,10]; when nil on approval it is derived from the rubric.
	Rating               *float64
	Rubric               map[string]float64
	PositiveFeedback     string
	ConstructiveFeedback string
}

// RewardMode selects how the base XP amount is computed.
type RewardMode string

const (
	// RewardFixed pays the spec's constant XP amount.
	RewardFixed RewardMode = "fixed"
	// RewardTierSteps pays whatever XP is needed to advance the submitter
	// the requested number of tier levels.
	RewardTierSteps RewardMode = "tier_steps"
)

// RewardSpec describes the review requirement and reward shape of a
// challenge or campaign. Read-only from this engine's perspective.
type RewardSpec struct {
	Mode              RewardMode
	FixedXP           int
	TierSteps         int
	RequireDualReview bool
	// SponsoredCampaign marks campaign-tied specs subject to guest override.
	SponsoredCampaign bool
}

// Tier levels run 1 through 5 within a track.
const (
	TierMinLevel = 1
	TierMaxLevel = 5
)

// Tier is a submitter's rank: a two-letter track prefix plus a level 1-5.
type Tier struct {
	Track string
	Level int
}

func (t Tier) String() string {
	return t.Track + strconv.Itoa(t.Level)
}

// ParseTier parses an encoded tier such as "EX2" into its track and level.
func ParseTier(s string) (Tier, error) {
	s = strings.TrimSpace(s)
	if len(s) != 3 {
		return Tier{}, fmt.Errorf("malformed tier %q: want two-letter track plus level", s)
	}
	track := strings.ToUpper(s[:2])
	for _, r := range track {
		if r < 'A' || r > 'Z' {
			return Tier{}, fmt.Errorf("malformed tier %q: track must be two letters", s)
		}
	}
	level, err := strconv.Atoi(s[2:])
	if err != nil || level < TierMinLevel || level > TierMaxLevel {
		return Tier{}, fmt.Errorf("malformed tier %q: level must be %d-%d", s, TierMinLevel, TierMaxLevel)
	}
	return Tier{Track: track, Level: level}, nil
}

// Account is a platform user as seen by this engine: a submitter whose XP
// and tier feed reward calculation, or a reviewer whose organizational unit
// feeds the independence check.
type Account struct {
	ID        string
	Name      string
	Unit      string
	Roles     []string
	CurrentXP int
	Tier      string // encoded tier, e.g. "EX2"
}

// HasRole reports whether the account carries the given role tag.
func (a Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// AssignmentEntry is one outstanding "reviewer may judge action" grant.
// CompletedAt is nil while the grant is open.
type AssignmentEntry struct {
	ActionID    string
	ReviewerID  string
	CompletedAt *time.Time
}

// Open reports whether the grant is still usable.
func (e AssignmentEntry) Open() bool {
	return e.CompletedAt == nil
}

// NotificationType identifies the state-change message sent to a submitter.
type NotificationType string

const (
	NotifyPartialEvaluation  NotificationType = "partial-evaluation"
	NotifyEvaluationComplete NotificationType = "evaluation-complete"
	NotifyEvaluationRejected NotificationType = "evaluation-rejected"
	NotifyEvaluationRetry    NotificationType = "evaluation-retry"
)

// Notification is a best-effort state-change message for a submitter.
type Notification struct {
	UserID   string
	Type     NotificationType
	Title    string
	Message  string
	Metadata map[string]any
}
