package service

import (
	"github.com/okian/arbiter/internal/adapters/mq/worker"
	"github.com/okian/arbiter/internal/adapters/repository"
	"github.com/okian/arbiter/internal/domain/evaluation"
	"github.com/okian/arbiter/internal/domain/override"
	"github.com/okian/arbiter/internal/domain/reward"
	"github.com/okian/arbiter/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of dispatch worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the side-effect queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the dispatch deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMinFeedbackLength sets the minimum accepted feedback length.
func WithMinFeedbackLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minFeedbackLen = n
		}
	}
}

// WithDatabase selects the database-backed store. An empty DSN keeps the
// in-memory store.
func WithDatabase(driver, dsn string) Option {
	return func(s *Service) {
		s.dbDriver = driver
		s.dbDSN = dsn
	}
}

// WithStore injects a pre-built store, overriding database configuration.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLedgerURL points reward grants at the platform ledger service.
func WithLedgerURL(url string) Option {
	return func(s *Service) {
		s.ledgerURL = url
	}
}

// WithLedger injects a pre-built ledger, overriding the URL.
func WithLedger(l evaluation.Ledger) Option {
	return func(s *Service) {
		if l != nil {
			s.ledger = l
		}
	}
}

// WithNotifyURL points notifications at the platform webhook.
func WithNotifyURL(url string) Option {
	return func(s *Service) {
		s.notifyURL = url
	}
}

// WithNotifier injects a pre-built notifier, overriding the URL.
func WithNotifier(n worker.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithAssignURL points reviewer escalations at the assignment service.
func WithAssignURL(url string) Option {
	return func(s *Service) {
		s.assignURL = url
	}
}

// WithEscalator injects a pre-built escalator, overriding the URL.
func WithEscalator(e worker.Escalator) Option {
	return func(s *Service) {
		if e != nil {
			s.escort = e
		}
	}
}

// WithRewardOptions forwards configuration to the reward policy.
func WithRewardOptions(opts ...reward.Option) Option {
	return func(s *Service) {
		s.policyOpts = append(s.policyOpts, opts...)
	}
}

// WithOverrideOptions forwards configuration to the guest-override resolver.
func WithOverrideOptions(opts ...override.Option) Option {
	return func(s *Service) {
		s.resolverOpts = append(s.resolverOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}
