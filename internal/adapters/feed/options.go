package feed

import "github.com/okian/tally/pkg/logger"

// Option applies a configuration option to the InMemoryFeed.
type Option func(*InMemoryFeed)

// WithCapacity sets the feed buffer size.
func WithCapacity(capacity int) Option {
	return func(f *InMemoryFeed) {
		if capacity > 0 {
			f.capacity = capacity
		}
	}
}

// AuditorOption applies a configuration option to the Auditor.
type AuditorOption func(*Auditor)

// WithLogger sets a custom logger for the auditor.
func WithLogger(log logger.Logger) AuditorOption {
	return func(a *Auditor) {
		if log != nil {
			a.log = log
		}
	}
}
