package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/arbiter/internal/domain/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// actionRow is the persisted shape of a model.Action.
type actionRow struct {
	ID              string `gorm:"primaryKey;size:64"`
	SubmitterID     string `gorm:"size:64;index"`
	ChallengeID     string `gorm:"size:64"`
	CampaignID      string `gorm:"size:64"`
	Status          string `gorm:"size:40;index"`
	RetryCount      int
	FirstEvaluator  string `gorm:"size:64"`
	FirstRating     float64
	SecondEvaluator string `gorm:"size:64"`
	SecondRating    float64
	QualityScore    float64
	FinalPoints     int
	TeamModifier    float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (actionRow) TableName() string { return "actions" }

// evaluationRow is one reviewer's judgment. The composite unique index on
// (action_id, evaluation_number) is the race-breaker for concurrent judges.
type evaluationRow struct {
	ID                   uint   `gorm:"primaryKey"`
	ActionID             string `gorm:"size:64;not null;uniqueIndex:idx_eval_slot,priority:1"`
	EvaluationNumber     int    `gorm:"not null;uniqueIndex:idx_eval_slot,priority:2"`
	ReviewerID           string `gorm:"size:64;not null"`
	ReviewerUnit         string `gorm:"size:64"`
	Rating               float64
	FinalRating          *float64
	Rubric               string `gorm:"type:text"` // JSON dimension -> sub-score
	PositiveFeedback     string `gorm:"type:text"`
	ConstructiveFeedback string `gorm:"type:text"`
	CreatedAt            time.Time
}

func (evaluationRow) TableName() string { return "evaluations" }

type accountRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:128"`
	Unit      string `gorm:"size:64;index"`
	Roles     string `gorm:"type:text"` // JSON list of role tags
	CurrentXP int
	Tier      string `gorm:"size:8"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (accountRow) TableName() string { return "accounts" }

type rewardSpecRow struct {
	Key               string `gorm:"primaryKey;size:64"` // challenge or campaign id
	Mode              string `gorm:"size:16"`
	FixedXP           int
	TierSteps         int
	RequireDualReview bool
	SponsoredCampaign bool
}

func (rewardSpecRow) TableName() string { return "reward_specs" }

// assignmentRow is one outstanding reviewer grant. Single-use semantics come
// from the conditional completed_at update, not from a lock.
type assignmentRow struct {
	ID          uint   `gorm:"primaryKey"`
	ActionID    string `gorm:"size:64;not null;uniqueIndex:idx_assignment_pair,priority:1"`
	ReviewerID  string `gorm:"size:64;not null;uniqueIndex:idx_assignment_pair,priority:2"`
	CompletedAt *time.Time
	CreatedAt   time.Time
}

func (assignmentRow) TableName() string { return "assignments" }

// GormStore implements Store on a SQL database through GORM.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore opens the configured database and migrates the schema.
func NewGormStore(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if err := db.AutoMigrate(
		&actionRow{}, &evaluationRow{}, &accountRow{}, &rewardSpecRow{}, &assignmentRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &GormStore{db: db, now: time.Now}, nil
}

// isDuplicateKey detects a uniqueness violation across driver dialects.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") // mysql 1062
}

// GetAction returns an action by id.
func (s *GormStore) GetAction(ctx context.Context, id string) (model.Action, error) {
	var row actionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Action{}, fmt.Errorf("%w: action %s", ErrNotFound, id)
		}
		return model.Action{}, fmt.Errorf("load action %s: %w", id, err)
	}
	return rowToAction(row), nil
}

// CreateAction inserts a new action.
func (s *GormStore) CreateAction(ctx context.Context, action model.Action) error {
	if action.Status == "" {
		action.Status = model.StatusSubmitted
	}
	if action.TeamModifier <= 0 {
		action.TeamModifier = 1.0
	}
	if err := s.db.WithContext(ctx).Create(actionToRow(action)).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: action %s exists", ErrConflict, action.ID)
		}
		return fmt.Errorf("create action %s: %w", action.ID, err)
	}
	return nil
}

// RecordFirstEvaluation moves submitted -> awaiting_second_evaluation with a
// conditional update so a concurrent transition cannot be overwritten.
func (s *GormStore) RecordFirstEvaluation(ctx context.Context, actionID, reviewerID string, rating float64) error {
	res := s.db.WithContext(ctx).Model(&actionRow{}).
		Where("id = ? AND status = ?", actionID, string(model.StatusSubmitted)).
		Updates(map[string]any{
			"status":          string(model.StatusAwaitingSecond),
			"first_evaluator": reviewerID,
			"first_rating":    rating,
		})
	if res.Error != nil {
		return fmt.Errorf("record first evaluation for %s: %w", actionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: action %s left the %s state",
			ErrConflict, actionID, model.StatusSubmitted)
	}
	return nil
}

// SetActionStatus moves a non-terminal action to a terminal state.
func (s *GormStore) SetActionStatus(ctx context.Context, actionID string, status model.ActionStatus) error {
	res := s.db.WithContext(ctx).Model(&actionRow{}).
		Where("id = ? AND status IN ?", actionID, nonTerminalStatuses()).
		Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("set action %s status: %w", actionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.classifyMissedUpdate(ctx, actionID)
	}
	return nil
}

// ApproveAction performs the write-once transition to approved.
func (s *GormStore) ApproveAction(ctx context.Context, approval Approval) error {
	res := s.db.WithContext(ctx).Model(&actionRow{}).
		Where("id = ? AND status IN ?", approval.ActionID, nonTerminalStatuses()).
		Updates(map[string]any{
			"status":           string(model.StatusApproved),
			"first_evaluator":  approval.FirstEvaluator,
			"first_rating":     approval.FirstRating,
			"second_evaluator": approval.SecondEvaluator,
			"second_rating":    approval.SecondRating,
			"quality_score":    approval.QualityScore,
			"final_points":     approval.FinalPoints,
		})
	if res.Error != nil {
		return fmt.Errorf("approve action %s: %w", approval.ActionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.classifyMissedUpdate(ctx, approval.ActionID)
	}
	return nil
}

// classifyMissedUpdate distinguishes a missing action from a terminal one
// after a guarded update touched no rows.
func (s *GormStore) classifyMissedUpdate(ctx context.Context, actionID string) error {
	action, err := s.GetAction(ctx, actionID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: action %s is already %s", ErrAlreadyFinal, actionID, action.Status)
}

// ListEvaluations returns records ordered by evaluation number.
func (s *GormStore) ListEvaluations(ctx context.Context, actionID string) ([]model.EvaluationRecord, error) {
	var rows []evaluationRow
	err := s.db.WithContext(ctx).
		Where("action_id = ?", actionID).
		Order("evaluation_number asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list evaluations for %s: %w", actionID, err)
	}
	records := make([]model.EvaluationRecord, len(rows))
	for i, row := range rows {
		records[i] = rowToEvaluation(row)
	}
	return records, nil
}

// InsertEvaluation creates one record; the unique index on
// (action_id, evaluation_number) turns a lost race into
// ErrDuplicateEvaluation instead of a second record.
func (s *GormStore) InsertEvaluation(ctx context.Context, record model.EvaluationRecord) error {
	row, err := evaluationToRow(record)
	if err != nil {
		return err
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: action %s slot %d",
				ErrDuplicateEvaluation, record.ActionID, record.EvaluationNumber)
		}
		return fmt.Errorf("insert evaluation for %s: %w", record.ActionID, err)
	}
	return nil
}

// GetAccount returns an account by id.
func (s *GormStore) GetAccount(ctx context.Context, id string) (model.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Account{}, fmt.Errorf("%w: account %s", ErrNotFound, id)
		}
		return model.Account{}, fmt.Errorf("load account %s: %w", id, err)
	}
	return rowToAccount(row)
}

// CreateAccount inserts or replaces a platform account.
func (s *GormStore) CreateAccount(ctx context.Context, account model.Account) error {
	row, err := accountToRow(account)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save account %s: %w", account.ID, err)
	}
	return nil
}

// GetRewardSpec resolves the spec through the challenge, then the campaign.
func (s *GormStore) GetRewardSpec(ctx context.Context, action model.Action) (model.RewardSpec, error) {
	for _, key := range []string{action.ChallengeID, action.CampaignID} {
		if key == "" {
			continue
		}
		var row rewardSpecRow
		err := s.db.WithContext(ctx).First(&row, "`key` = ?", key).Error
		if err == nil {
			return model.RewardSpec{
				Mode:              model.RewardMode(row.Mode),
				FixedXP:           row.FixedXP,
				TierSteps:         row.TierSteps,
				RequireDualReview: row.RequireDualReview,
				SponsoredCampaign: row.SponsoredCampaign,
			}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return model.RewardSpec{}, fmt.Errorf("load reward spec %s: %w", key, err)
		}
	}
	return model.RewardSpec{}, fmt.Errorf("%w: no reward spec for action %s", ErrNotFound, action.ID)
}

// PutRewardSpec stores the spec for a challenge or campaign id.
func (s *GormStore) PutRewardSpec(ctx context.Context, key string, spec model.RewardSpec) error {
	row := rewardSpecRow{
		Key:               key,
		Mode:              string(spec.Mode),
		FixedXP:           spec.FixedXP,
		TierSteps:         spec.TierSteps,
		RequireDualReview: spec.RequireDualReview,
		SponsoredCampaign: spec.SponsoredCampaign,
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save reward spec %s: %w", key, err)
	}
	return nil
}

// OpenAssignment returns the open queue entry for the pair.
func (s *GormStore) OpenAssignment(ctx context.Context, actionID, reviewerID string) (model.AssignmentEntry, error) {
	var row assignmentRow
	err := s.db.WithContext(ctx).
		Where("action_id = ? AND reviewer_id = ? AND completed_at IS NULL", actionID, reviewerID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.AssignmentEntry{}, fmt.Errorf(
				"%w: no open assignment for action %s reviewer %s", ErrNotFound, actionID, reviewerID)
		}
		return model.AssignmentEntry{}, fmt.Errorf("load assignment: %w", err)
	}
	return model.AssignmentEntry{
		ActionID:    row.ActionID,
		ReviewerID:  row.ReviewerID,
		CompletedAt: row.CompletedAt,
	}, nil
}

// CreateAssignment grants a reviewer the right to judge an action.
func (s *GormStore) CreateAssignment(ctx context.Context, actionID, reviewerID string) error {
	row := assignmentRow{ActionID: actionID, ReviewerID: reviewerID, CreatedAt: s.now()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateKey(err) {
			return nil // grant already outstanding
		}
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// CompleteAssignment stamps completion with an "only if still null" update,
// so exactly one of two concurrent judges observes itself as the winner.
func (s *GormStore) CompleteAssignment(ctx context.Context, actionID, reviewerID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&assignmentRow{}).
		Where("action_id = ? AND reviewer_id = ? AND completed_at IS NULL", actionID, reviewerID).
		Update("completed_at", s.now())
	if res.Error != nil {
		return false, fmt.Errorf("complete assignment: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func nonTerminalStatuses() []string {
	return []string{string(model.StatusSubmitted), string(model.StatusAwaitingSecond)}
}

func actionToRow(a model.Action) *actionRow {
	return &actionRow{
		ID:              a.ID,
		SubmitterID:     a.SubmitterID,
		ChallengeID:     a.ChallengeID,
		CampaignID:      a.CampaignID,
		Status:          string(a.Status),
		RetryCount:      a.RetryCount,
		FirstEvaluator:  a.FirstEvaluator,
		FirstRating:     a.FirstRating,
		SecondEvaluator: a.SecondEvaluator,
		SecondRating:    a.SecondRating,
		QualityScore:    a.QualityScore,
		FinalPoints:     a.FinalPoints,
		TeamModifier:    a.TeamModifier,
	}
}

func rowToAction(row actionRow) model.Action {
	return model.Action{
		ID:              row.ID,
		SubmitterID:     row.SubmitterID,
		ChallengeID:     row.ChallengeID,
		CampaignID:      row.CampaignID,
		Status:          model.ActionStatus(row.Status),
		RetryCount:      row.RetryCount,
		FirstEvaluator:  row.FirstEvaluator,
		FirstRating:     row.FirstRating,
		SecondEvaluator: row.SecondEvaluator,
		SecondRating:    row.SecondRating,
		QualityScore:    row.QualityScore,
		FinalPoints:     row.FinalPoints,
		TeamModifier:    row.TeamModifier,
	}
}

func evaluationToRow(r model.EvaluationRecord) (evaluationRow, error) {
	rubric := ""
	if len(r.Rubric) > 0 {
		encoded, err := json.Marshal(r.Rubric)
		if err != nil {
			return evaluationRow{}, fmt.Errorf("encode rubric: %w", err)
		}
		rubric = string(encoded)
	}
	return evaluationRow{
		ActionID:             r.ActionID,
		EvaluationNumber:     r.EvaluationNumber,
		ReviewerID:           r.ReviewerID,
		ReviewerUnit:         r.ReviewerUnit,
		Rating:               r.Rating,
		FinalRating:          r.FinalRating,
		Rubric:               rubric,
		PositiveFeedback:     r.PositiveFeedback,
		ConstructiveFeedback: r.ConstructiveFeedback,
		CreatedAt:            r.CreatedAt,
	}, nil
}

func rowToEvaluation(row evaluationRow) model.EvaluationRecord {
	record := model.EvaluationRecord{
		ActionID:             row.ActionID,
		EvaluationNumber:     row.EvaluationNumber,
		ReviewerID:           row.ReviewerID,
		ReviewerUnit:         row.ReviewerUnit,
		Rating:               row.Rating,
		FinalRating:          row.FinalRating,
		PositiveFeedback:     row.PositiveFeedback,
		ConstructiveFeedback: row.ConstructiveFeedback,
		CreatedAt:            row.CreatedAt,
	}
	if row.Rubric != "" {
		_ = json.Unmarshal([]byte(row.Rubric), &record.Rubric)
	}
	return record
}

func accountToRow(a model.Account) (accountRow, error) {
	roles := ""
	if len(a.Roles) > 0 {
		encoded, err := json.Marshal(a.Roles)
		if err != nil {
			return accountRow{}, fmt.Errorf("encode roles: %w", err)
		}
		roles = string(encoded)
	}
	return accountRow{
		ID:        a.ID,
		Name:      a.Name,
		Unit:      a.Unit,
		Roles:     roles,
		CurrentXP: a.CurrentXP,
		Tier:      a.Tier,
	}, nil
}

func rowToAccount(row accountRow) (model.Account, error) {
	account := model.Account{
		ID:        row.ID,
		Name:      row.Name,
		Unit:      row.Unit,
		CurrentXP: row.CurrentXP,
		Tier:      row.Tier,
	}
	if row.Roles != "" {
		if err := json.Unmarshal([]byte(row.Roles), &account.Roles); err != nil {
			return model.Account{}, fmt.Errorf("decode roles for %s: %w", row.ID, err)
		}
	}
	return account, nil
}
