// Package service wires the evaluation engine together and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/okian/arbiter/internal/adapters/assign"
	"github.com/okian/arbiter/internal/adapters/ledger"
	taskqueue "github.com/okian/arbiter/internal/adapters/mq/queue"
	workerpool "github.com/okian/arbiter/internal/adapters/mq/worker"
	"github.com/okian/arbiter/internal/adapters/notify"
	"github.com/okian/arbiter/internal/adapters/repository"
	"github.com/okian/arbiter/internal/domain/dedupe"
	"github.com/okian/arbiter/internal/domain/eligibility"
	"github.com/okian/arbiter/internal/domain/evaluation"
	"github.com/okian/arbiter/internal/domain/model"
	"github.com/okian/arbiter/internal/domain/override"
	"github.com/okian/arbiter/internal/domain/reward"
	"github.com/okian/arbiter/internal/domain/types"
	"github.com/okian/arbiter/pkg/logger"
)

// Service runs the peer-evaluation engine: judgments in, lifecycle
// transitions and rewards out, side effects dispatched off the hot path.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	policy   *reward.Policy
	machine  *evaluation.StateMachine
	deduper  dedupe.Deduper
	queue    taskqueue.Queue
	pool     *workerpool.Pool
	ledger   evaluation.Ledger
	notifier workerpool.Notifier
	escort   workerpool.Escalator

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	minFeedbackLen int
	dbDriver       string
	dbDSN          string
	ledgerURL      string
	notifyURL      string
	assignURL      string
	policyOpts     []reward.Option
	resolverOpts   []override.Option

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      10000,
		dedupeSize:     50000,
		minFeedbackLen: 10,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting evaluation service...")

	if s.store == nil {
		if s.dbDSN != "" {
			store, err := repository.NewGormStore(s.dbDriver, s.dbDSN)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using database store", logger.String("driver", s.dbDriver))
		} else {
			s.store = repository.NewMemoryStore()
			s.logger.Info(ctx, "using in-memory store")
		}
	}

	if s.ledger == nil {
		if s.ledgerURL != "" {
			s.ledger = ledger.NewHTTPLedger(s.ledgerURL)
		} else {
			s.ledger = ledger.NewInMemoryLedger()
			s.logger.Warn(ctx, "no ledger URL configured; rewards credit an in-memory ledger")
		}
	}
	if s.notifier == nil {
		if s.notifyURL != "" {
			s.notifier = notify.NewWebhook(s.notifyURL)
		} else {
			s.notifier = notify.NewLogNotifier()
		}
	}
	if s.escort == nil {
		if s.assignURL != "" {
			s.escort = assign.NewClient(s.assignURL)
		} else {
			s.escort = assign.NewLogEscalator()
		}
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = taskqueue.NewInMemoryQueue(
		taskqueue.WithCapacity(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.notifier, s.escort, s.deduper)
	s.pool.Start(ctx)

	s.policy = reward.NewPolicy(s.policyOpts...)
	s.machine = evaluation.NewStateMachine(
		s.store,
		s.policy,
		eligibility.NewGuard(s.store),
		override.NewResolver(s.store, s.resolverOpts...),
		s.ledger,
		&queueDispatcher{queue: s.queue, logger: s.logger},
		evaluation.WithMinFeedbackLength(s.minFeedbackLen),
	)

	s.started = true
	s.logger.Info(ctx, "evaluation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop gracefully shuts down the service, draining queued side effects.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping evaluation service...")

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}

	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(ctx, "evaluation service stopped")
}

// Judge processes one reviewer verdict.
func (s *Service) Judge(ctx context.Context, j model.Judgment) (types.Outcome, error) {
	return s.machine.Judge(ctx, j)
}

// GetAction returns an action by id.
func (s *Service) GetAction(ctx context.Context, id string) (model.Action, error) {
	return s.store.GetAction(ctx, id)
}

// ListEvaluations returns the evaluation records for an action.
func (s *Service) ListEvaluations(ctx context.Context, actionID string) ([]model.EvaluationRecord, error) {
	return s.store.ListEvaluations(ctx, actionID)
}

// CreateAction registers a submitted action. Ingestion itself lives
// outside this engine; this is the hook its pipeline calls.
func (s *Service) CreateAction(ctx context.Context, action model.Action) error {
	return s.store.CreateAction(ctx, action)
}

// CreateAccount registers a platform account.
func (s *Service) CreateAccount(ctx context.Context, account model.Account) error {
	return s.store.CreateAccount(ctx, account)
}

// PutRewardSpec stores the review/reward spec for a challenge or campaign.
func (s *Service) PutRewardSpec(ctx context.Context, key string, spec model.RewardSpec) error {
	return s.store.PutRewardSpec(ctx, key, spec)
}

// CreateAssignment grants a reviewer the right to judge an action.
func (s *Service) CreateAssignment(ctx context.Context, actionID, reviewerID string) error {
	return s.store.CreateAssignment(ctx, actionID, reviewerID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(context.Background())
		stats["dedupeEntries"] = s.deduper.Size()
	}

	return stats
}

// queueDispatcher adapts the task queue to the state machine's dispatcher
// contract. Enqueue refusal is logged, never surfaced: side effects are
// best-effort once the transition has committed.
type queueDispatcher struct {
	queue  taskqueue.Queue
	logger logger.Logger
}

func (d *queueDispatcher) Notify(ctx context.Context, n model.Notification) {
	task := taskqueue.Task{
		ID:           n.UserID + "/" + string(taskqueue.TaskNotify) + "/" + string(n.Type) + "/" + metadataActionID(n),
		Kind:         taskqueue.TaskNotify,
		ActionID:     metadataActionID(n),
		Notification: n,
	}
	if !d.queue.Enqueue(ctx, task) {
		d.logger.Warn(ctx, "notification dropped: queue full or closed",
			logger.String("user_id", n.UserID),
			logger.String("type", string(n.Type)),
		)
	}
}

func (d *queueDispatcher) Escalate(ctx context.Context, actionID string) {
	task := taskqueue.Task{
		ID:       actionID + "/" + string(taskqueue.TaskEscalate),
		Kind:     taskqueue.TaskEscalate,
		ActionID: actionID,
	}
	if !d.queue.Enqueue(ctx, task) {
		d.logger.Warn(ctx, "escalation dropped: queue full or closed",
			logger.String("action_id", actionID),
		)
	}
}

func metadataActionID(n model.Notification) string {
	if id, ok := n.Metadata["action_id"].(string); ok {
		return id
	}
	return ""
}
