// Package worker runs the dispatch pool that delivers queued side effects.
package worker

import (
	"github.com/okian/arbiter/pkg/logger"
)

// Option applies a configuration option to the DispatchWorker.
type Option func(*DispatchWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *DispatchWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(log logger.Logger) Option {
	return func(w *DispatchWorker) {
		if log != nil {
			w.logger = log
		}
	}
}
