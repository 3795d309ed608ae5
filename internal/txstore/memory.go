// Package txstore provides an example in-memory transaction store, useful
// for demos and tests that want to look up transactions by idempotency key
// after the fact. The orchestrator itself holds no storage of its own.
package txstore

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowforge/txsaga/internal/finitestate"
	"github.com/flowforge/txsaga/internal/saga"
)

// DefaultMaxTransactions is the default number of transactions to keep in
// history.
const DefaultMaxTransactions = 20

// DefaultCleanupDebounceInterval is the default time to wait before
// cleaning up old transactions.
const DefaultCleanupDebounceInterval = 10 * time.Second

var terminalStates = []string{
	finitestate.StateDone,
	finitestate.StateReverted,
	finitestate.StateFailed,
}

// MemoryStore is a thread-safe, size-bounded store of transactions, keyed
// by idempotency key.
type MemoryStore struct {
	transactions map[string]*saga.Transaction
	order        []string

	mu sync.RWMutex

	maxTransactions int
	cleanupFunc     func(map[string]*saga.Transaction, []string) []string

	asyncCleanup            bool
	cleanupDebounceInterval time.Duration
	cleanupSignal           chan struct{}
	cleanupRunning          atomic.Bool

	logger *slog.Logger
}

// NewMemoryStore creates a new transaction store with the given options.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		transactions:            make(map[string]*saga.Transaction),
		maxTransactions:         DefaultMaxTransactions,
		cleanupDebounceInterval: DefaultCleanupDebounceInterval,
		cleanupSignal:           make(chan struct{}, 1),
		logger:                  slog.Default().WithGroup("txstore"),
	}

	s.cleanupFunc = func(txs map[string]*saga.Transaction, order []string) []string {
		if len(order) <= s.maxTransactions {
			return order
		}
		excess := len(order) - s.maxTransactions
		for _, key := range order[:excess] {
			delete(txs, key)
		}
		return order[excess:]
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Add stores txn under its idempotency key.
func (s *MemoryStore) Add(txn *saga.Transaction) error {
	if txn == nil {
		return nil
	}
	s.logger.Debug("adding transaction", "idempotencyKey", txn.IdempotencyKey)

	s.mu.Lock()
	if _, exists := s.transactions[txn.IdempotencyKey]; !exists {
		s.order = append(s.order, txn.IdempotencyKey)
	}
	s.transactions[txn.IdempotencyKey] = txn
	s.mu.Unlock()

	if s.asyncCleanup {
		s.signalCleanup()
	} else {
		s.cleanup()
	}
	return nil
}

// Get returns the transaction for idempotencyKey, or nil if not found.
func (s *MemoryStore) Get(idempotencyKey string) *saga.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactions[idempotencyKey]
}

// GetAll returns every stored transaction, in insertion order.
func (s *MemoryStore) GetAll() []*saga.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*saga.Transaction, 0, len(s.order))
	for _, key := range s.order {
		result = append(result, s.transactions[key])
	}
	return result
}

func (s *MemoryStore) signalCleanup() {
	if s.cleanupRunning.CompareAndSwap(false, true) {
		go s.cleanupWorker()
	}
	select {
	case s.cleanupSignal <- struct{}{}:
	default:
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleanupFunc != nil {
		s.order = s.cleanupFunc(s.transactions, s.order)
	}
}

func (s *MemoryStore) cleanupWorker() {
	defer s.cleanupRunning.Store(false)

	timer := time.NewTimer(s.cleanupDebounceInterval)
	defer timer.Stop()

	for {
		select {
		case <-s.cleanupSignal:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.cleanupDebounceInterval)
		case <-timer.C:
			s.cleanup()
			return
		}
	}
}

// ClearTerminal removes stored transactions in a terminal status, keeping
// at least the most recent keepLast overall. It returns how many were
// removed.
func (s *MemoryStore) ClearTerminal(keepLast int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keepLast < 0 {
		return 0, fmt.Errorf("keepLast must be non-negative, got %d", keepLast)
	}

	total := len(s.order)
	if total <= keepLast {
		return 0, nil
	}

	toDelete := total - keepLast
	deleted := 0
	newOrder := make([]string, 0, keepLast)

	for _, key := range s.order {
		txn := s.transactions[key]
		if deleted < toDelete && isTerminal(txn.Status()) {
			delete(s.transactions, key)
			deleted++
			continue
		}
		newOrder = append(newOrder, key)
	}

	s.order = newOrder
	s.logger.Info("cleared terminal transactions", "cleared", deleted, "remaining", len(s.order))
	return deleted, nil
}

func isTerminal(status string) bool {
	for _, s := range terminalStates {
		if s == status {
			return true
		}
	}
	return false
}
