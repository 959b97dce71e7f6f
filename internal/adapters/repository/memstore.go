package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/arbiter/internal/domain/model"
)

// MemoryStore implements Store with mutex-guarded maps. It honors the same
// conditional-update contract as the database-backed store and serves as
// the no-DSN fallback and the test double for the domain packages.
type MemoryStore struct {
	mu          sync.RWMutex
	actions     map[string]model.Action
	evaluations map[string]map[int]model.EvaluationRecord // actionID -> slot -> record
	accounts    map[string]model.Account
	specs       map[string]model.RewardSpec
	assignments map[string]model.AssignmentEntry // actionID|reviewerID
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		actions:     make(map[string]model.Action),
		evaluations: make(map[string]map[int]model.EvaluationRecord),
		accounts:    make(map[string]model.Account),
		specs:       make(map[string]model.RewardSpec),
		assignments: make(map[string]model.AssignmentEntry),
		now:         time.Now,
	}
}

func assignmentKey(actionID, reviewerID string) string {
	return actionID + "|" + reviewerID
}

// GetAction returns an action by id.
func (s *MemoryStore) GetAction(_ context.Context, id string) (model.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	action, ok := s.actions[id]
	if !ok {
		return model.Action{}, fmt.Errorf("%w: action %s", ErrNotFound, id)
	}
	return action, nil
}

// CreateAction inserts a new action.
func (s *MemoryStore) CreateAction(_ context.Context, action model.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.actions[action.ID]; ok {
		return fmt.Errorf("%w: action %s exists", ErrConflict, action.ID)
	}
	if action.Status == "" {
		action.Status = model.StatusSubmitted
	}
	if action.TeamModifier <= 0 {
		action.TeamModifier = 1.0
	}
	s.actions[action.ID] = action
	return nil
}

// RecordFirstEvaluation moves submitted -> awaiting_second_evaluation.
func (s *MemoryStore) RecordFirstEvaluation(_ context.Context, actionID, reviewerID string, rating float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.actions[actionID]
	if !ok {
		return fmt.Errorf("%w: action %s", ErrNotFound, actionID)
	}
	if action.Status != model.StatusSubmitted {
		return fmt.Errorf("%w: action %s is %s, not %s",
			ErrConflict, actionID, action.Status, model.StatusSubmitted)
	}
	action.Status = model.StatusAwaitingSecond
	action.FirstEvaluator = reviewerID
	action.FirstRating = rating
	s.actions[actionID] = action
	return nil
}

// SetActionStatus moves a non-terminal action to a terminal state.
func (s *MemoryStore) SetActionStatus(_ context.Context, actionID string, status model.ActionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.actions[actionID]
	if !ok {
		return fmt.Errorf("%w: action %s", ErrNotFound, actionID)
	}
	if action.Status.Terminal() {
		return fmt.Errorf("%w: action %s is already %s", ErrAlreadyFinal, actionID, action.Status)
	}
	action.Status = status
	s.actions[actionID] = action
	return nil
}

// ApproveAction performs the write-once transition to approved.
func (s *MemoryStore) ApproveAction(_ context.Context, approval Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.actions[approval.ActionID]
	if !ok {
		return fmt.Errorf("%w: action %s", ErrNotFound, approval.ActionID)
	}
	if action.Status.Terminal() {
		return fmt.Errorf("%w: action %s is already %s", ErrAlreadyFinal, approval.ActionID, action.Status)
	}
	action.Status = model.StatusApproved
	action.FirstEvaluator = approval.FirstEvaluator
	action.FirstRating = approval.FirstRating
	action.SecondEvaluator = approval.SecondEvaluator
	action.SecondRating = approval.SecondRating
	action.QualityScore = approval.QualityScore
	action.FinalPoints = approval.FinalPoints
	s.actions[approval.ActionID] = action
	return nil
}

// ListEvaluations returns records ordered by evaluation number.
func (s *MemoryStore) ListEvaluations(_ context.Context, actionID string) ([]model.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := s.evaluations[actionID]
	records := make([]model.EvaluationRecord, 0, len(slots))
	for _, record := range slots {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].EvaluationNumber < records[j].EvaluationNumber
	})
	return records, nil
}

// InsertEvaluation creates one record; the (action, slot) pair is unique.
func (s *MemoryStore) InsertEvaluation(_ context.Context, record model.EvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, ok := s.evaluations[record.ActionID]
	if !ok {
		slots = make(map[int]model.EvaluationRecord)
		s.evaluations[record.ActionID] = slots
	}
	if _, exists := slots[record.EvaluationNumber]; exists {
		return fmt.Errorf("%w: action %s slot %d",
			ErrDuplicateEvaluation, record.ActionID, record.EvaluationNumber)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	slots[record.EvaluationNumber] = record
	return nil
}

// GetAccount returns an account by id.
func (s *MemoryStore) GetAccount(_ context.Context, id string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return model.Account{}, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	return account, nil
}

// CreateAccount inserts a platform account.
func (s *MemoryStore) CreateAccount(_ context.Context, account model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[account.ID] = account
	return nil
}

// GetRewardSpec resolves the spec through the challenge, then the campaign.
func (s *MemoryStore) GetRewardSpec(_ context.Context, action model.Action) (model.RewardSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if action.ChallengeID != "" {
		if spec, ok := s.specs[action.ChallengeID]; ok {
			return spec, nil
		}
	}
	if action.CampaignID != "" {
		if spec, ok := s.specs[action.CampaignID]; ok {
			return spec, nil
		}
	}
	return model.RewardSpec{}, fmt.Errorf("%w: no reward spec for action %s", ErrNotFound, action.ID)
}

// PutRewardSpec stores the spec for a challenge or campaign id.
func (s *MemoryStore) PutRewardSpec(_ context.Context, key string, spec model.RewardSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.specs[key] = spec
	return nil
}

// OpenAssignment returns the open queue entry for the pair.
func (s *MemoryStore) OpenAssignment(_ context.Context, actionID, reviewerID string) (model.AssignmentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.assignments[assignmentKey(actionID, reviewerID)]
	if !ok || !entry.Open() {
		return model.AssignmentEntry{}, fmt.Errorf(
			"%w: no open assignment for action %s reviewer %s", ErrNotFound, actionID, reviewerID)
	}
	return entry, nil
}

// CreateAssignment grants a reviewer the right to judge an action.
func (s *MemoryStore) CreateAssignment(_ context.Context, actionID, reviewerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey(actionID, reviewerID)
	if entry, ok := s.assignments[key]; ok && entry.Open() {
		return nil // grant already outstanding
	}
	s.assignments[key] = model.AssignmentEntry{ActionID: actionID, ReviewerID: reviewerID}
	return nil
}

// CompleteAssignment stamps completion only while the entry is still open.
func (s *MemoryStore) CompleteAssignment(_ context.Context, actionID, reviewerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey(actionID, reviewerID)
	entry, ok := s.assignments[key]
	if !ok {
		return false, fmt.Errorf("%w: no assignment for action %s reviewer %s", ErrNotFound, actionID, reviewerID)
	}
	if !entry.Open() {
		return false, nil
	}
	completed := s.now()
	entry.CompletedAt = &completed
	s.assignments[key] = entry
	return true, nil
}
