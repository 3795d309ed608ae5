package txstore

import (
	"log/slog"
	"time"

	"github.com/flowforge/txsaga/internal/saga"
)

// Option is a functional option for configuring a MemoryStore.
type Option func(*MemoryStore)

// WithMaxTransactions sets the maximum number of transactions to retain.
func WithMaxTransactions(max int) Option {
	return func(s *MemoryStore) {
		if max > 0 {
			s.maxTransactions = max
		}
	}
}

// WithCleanupFunc sets a custom cleanup function.
func WithCleanupFunc(fn func(map[string]*saga.Transaction, []string) []string) Option {
	return func(s *MemoryStore) {
		if fn != nil {
			s.cleanupFunc = fn
		}
	}
}

// WithAsyncCleanup enables or disables async cleanup.
func WithAsyncCleanup(enabled bool) Option {
	return func(s *MemoryStore) {
		s.asyncCleanup = enabled
	}
}

// WithCleanupDebounceInterval sets the cleanup debounce interval.
func WithCleanupDebounceInterval(d time.Duration) Option {
	return func(s *MemoryStore) {
		if d > 0 {
			s.cleanupDebounceInterval = d
		}
	}
}

// WithLogHandler sets the log handler for the store.
func WithLogHandler(handler slog.Handler) Option {
	return func(s *MemoryStore) {
		if handler != nil {
			s.logger = slog.New(handler)
		}
	}
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *MemoryStore) {
		s.logger = logger
	}
}
