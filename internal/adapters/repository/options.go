package repository

import (
	"time"

	"github.com/okian/tally/pkg/logger"
)

// Default store configuration.
const defaultBusyTimeout = 5 * time.Second

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(s *SQLiteStore) {
		if log != nil {
			s.log = log
		}
	}
}

// WithBusyTimeout sets how long a writer waits on a locked database before
// the transaction fails with ErrConflict.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}
