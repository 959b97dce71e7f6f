package evaluation

import (
	"github.com/okian/arbiter/pkg/logger"
)

// Option applies a configuration option to the StateMachine.
type Option func(*StateMachine)

// WithMinFeedbackLength sets the minimum accepted feedback length.
func WithMinFeedbackLength(n int) Option {
	return func(m *StateMachine) {
		if n > 0 {
			m.minFeedbackLen = n
		}
	}
}

// WithLogger sets a custom logger for the state machine.
func WithLogger(log logger.Logger) Option {
	return func(m *StateMachine) {
		if log != nil {
			m.logger = log
		}
	}
}
