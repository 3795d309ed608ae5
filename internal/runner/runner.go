// Package runner wraps a saga Orchestrator as a supervised long-running
// component: it drains a channel of transaction requests and drives each
// through the orchestrator, recording the outcome in a transaction store.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flowforge/txsaga/internal/finitestate"
	"github.com/flowforge/txsaga/internal/saga"
	"github.com/flowforge/txsaga/internal/txstore"
	"github.com/gofrs/uuid/v5"
	"github.com/robbyt/go-fsm"
	"github.com/robbyt/go-supervisor/supervisor"
)

// Interface guards: ensure Runner implements the contracts go-supervisor
// expects of a managed component.
var (
	_ supervisor.Runnable  = (*Runner)(nil)
	_ supervisor.Stateable = (*Runner)(nil)
)

// Runner lifecycle states, distinct from a transaction's own status.
const (
	StatusNew      = "new"
	StatusBooting  = "booting"
	StatusRunning  = "running"
	StatusStopping = "stopping"
	StatusStopped  = "stopped"
)

var runnerTransitions = map[string][]string{
	StatusNew:      {StatusBooting},
	StatusBooting:  {StatusRunning},
	StatusRunning:  {StatusStopping},
	StatusStopping: {StatusStopped},
	StatusStopped:  {},
}

// TransactionRequest is one unit of work submitted to a Runner: begin a
// transaction against the Runner's flow. IdempotencyKey may be left empty,
// in which case the Runner mints one.
type TransactionRequest struct {
	IdempotencyKey string
	InitialPayload any
}

// Runner drains requests off a channel and drives each through its bound
// Orchestrator, storing the resulting Transaction for later lookup.
type Runner struct {
	orchestrator *saga.Orchestrator
	store        *txstore.MemoryStore
	requests     <-chan TransactionRequest
	errors       chan error

	logger *slog.Logger

	wg        sync.WaitGroup
	runCtx    context.Context
	runCancel context.CancelFunc
	parentCtx context.Context

	machine *fsm.Machine
}

// Option configures a Runner via the functional options pattern.
type Option func(*Runner)

// WithLogger overrides the Runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithContext sets the parent context the Runner watches for cancellation
// alongside its own internally cancellable run context.
func WithContext(ctx context.Context) Option {
	return func(r *Runner) {
		if ctx != nil {
			r.parentCtx = ctx
		}
	}
}

// New creates a Runner bound to orchestrator, consuming requests from the
// given channel and recording outcomes in store.
func New(
	orchestrator *saga.Orchestrator,
	store *txstore.MemoryStore,
	requests <-chan TransactionRequest,
	opts ...Option,
) (*Runner, error) {
	if orchestrator == nil {
		return nil, errors.New("runner: orchestrator cannot be nil")
	}
	if store == nil {
		return nil, errors.New("runner: transaction store cannot be nil")
	}
	if requests == nil {
		return nil, errors.New("runner: request channel cannot be nil")
	}

	r := &Runner{
		orchestrator: orchestrator,
		store:        store,
		requests:     requests,
		errors:       make(chan error, 16),
		logger:       slog.Default().WithGroup("runner.Runner"),
		parentCtx:    context.Background(),
	}

	for _, opt := range opts {
		opt(r)
	}

	machine, err := fsm.New(r.logger.Handler(), StatusNew, runnerTransitions)
	if err != nil {
		return nil, fmt.Errorf("runner: failed to build state machine: %w", err)
	}
	r.machine = machine

	return r, nil
}

// Run implements supervisor.Runnable. It blocks until its context (or the
// parent context supplied via WithContext) is canceled, or Stop is called.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.machine.Transition(StatusBooting); err != nil {
		return fmt.Errorf("runner: failed to transition to booting: %w", err)
	}

	r.runCtx, r.runCancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.monitorErrors()

	r.wg.Add(1)
	go r.drainRequests()

	if err := r.machine.Transition(StatusRunning); err != nil {
		return fmt.Errorf("runner: failed to transition to running: %w", err)
	}

	select {
	case <-r.parentCtx.Done():
		r.runCancel()
	case <-r.runCtx.Done():
	}

	r.logger.Info("runner shutting down")

	if r.machine.GetState() != StatusStopping {
		if err := r.machine.Transition(StatusStopping); err != nil {
			r.logger.Error("failed to transition to stopping", "error", err)
		}
	}

	r.wg.Wait()

	return r.machine.Transition(StatusStopped)
}

// Stop implements supervisor.Runnable.
func (r *Runner) Stop() {
	r.logger.Debug("stopping runner")
	if err := r.machine.Transition(StatusStopping); err != nil {
		r.logger.Error("failed to transition to stopping", "error", err)
	}
	if r.runCancel != nil {
		r.runCancel()
	}
}

// String implements supervisor.Runnable.
func (r *Runner) String() string {
	return "runner.Runner"
}

// GetState implements supervisor.Stateable.
func (r *Runner) GetState() string {
	return r.machine.GetState()
}

// GetStateChan implements supervisor.Stateable.
func (r *Runner) GetStateChan(ctx context.Context) <-chan string {
	return r.machine.GetStateChan(ctx)
}

// Errors returns the channel the Runner reports per-request failures on.
// Callers may select on it to observe requests that could not be started.
func (r *Runner) Errors() <-chan error {
	return r.errors
}

func (r *Runner) monitorErrors() {
	defer r.wg.Done()
	for {
		select {
		case <-r.runCtx.Done():
			return
		case err := <-r.errors:
			if err != nil {
				r.logger.Error("transaction request failed", "error", err)
			}
		}
	}
}

func (r *Runner) drainRequests() {
	defer r.wg.Done()
	for {
		select {
		case <-r.runCtx.Done():
			return
		case req, ok := <-r.requests:
			if !ok {
				r.logger.Info("request channel closed, runner draining complete")
				return
			}
			r.handleRequest(req)
		}
	}
}

func (r *Runner) handleRequest(req TransactionRequest) {
	key := req.IdempotencyKey
	if key == "" {
		id, err := uuid.NewV6()
		if err != nil {
			r.reportError(fmt.Errorf("failed to mint idempotency key: %w", err))
			return
		}
		key = id.String()
	}

	txn, err := r.orchestrator.BeginTransaction(r.runCtx, key, req.InitialPayload)
	if err != nil {
		r.reportError(fmt.Errorf("failed to begin transaction %s: %w", key, err))
		return
	}

	if err := r.store.Add(txn); err != nil {
		r.reportError(fmt.Errorf("failed to store transaction %s: %w", key, err))
		return
	}

	r.logger.Info("transaction request processed", "idempotencyKey", key, "status", txn.Status())
}

func (r *Runner) reportError(err error) {
	select {
	case r.errors <- err:
	default:
		r.logger.Error("error channel full, dropping error", "error", err)
	}
}

// terminalStatuses lists the saga transaction statuses that will never
// transition again, reused here so callers checking a stored transaction's
// freshness don't need to import internal/finitestate directly.
var terminalStatuses = []string{
	finitestate.StateDone,
	finitestate.StateReverted,
	finitestate.StateFailed,
}

// IsTerminal reports whether status is one of the transaction's terminal
// states.
func IsTerminal(status string) bool {
	for _, s := range terminalStatuses {
		if s == status {
			return true
		}
	}
	return false
}
