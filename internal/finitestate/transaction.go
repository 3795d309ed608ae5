// Transaction state machine implementation.
// Tracks the overall lifecycle of a saga-style transaction run.
package finitestate

import (
	"context"
	"log/slog"
	"time"

	"github.com/robbyt/go-fsm"
)

// Error aliases from go-fsm for use in transaction handling.
var (
	ErrInvalidStateTransition = fsm.ErrInvalidStateTransition
)

// Transaction state constants, matching the statuses a transaction can be in
// over the course of a resume() run.
const (
	StateNotStarted          = "not_started"
	StateInvoking            = "invoking"
	StateWaitingToCompensate = "waiting_to_compensate"
	StateCompensating        = "compensating"
	StateDone                = "done"
	StateReverted            = "reverted"
	StateFailed              = "failed"
)

// TerminalStates lists the states from which a transaction never transitions
// again.
var TerminalStates = []string{StateDone, StateReverted, StateFailed}

// TransactionTransitions defines the valid state transitions for a
// transaction's overall status.
var TransactionTransitions = map[string][]string{
	StateNotStarted: {StateInvoking},
	StateInvoking: {
		StateInvoking, // re-entrant: resume() called again mid-run
		StateDone,
		StateCompensating,
		StateWaitingToCompensate,
		StateFailed, // root step failed permanently with nothing to compensate
	},
	StateWaitingToCompensate: {StateCompensating},
	StateCompensating:        {StateReverted, StateFailed},
	StateDone:                {},
	StateReverted:            {},
	StateFailed:              {},
}

// TransactionFSM wraps fsm.Machine, overriding GetStateChan to use a
// synchronous broadcast with a bounded timeout.
type TransactionFSM struct {
	*fsm.Machine
}

var _ Machine = (*TransactionFSM)(nil)

func (t *TransactionFSM) GetStateChan(ctx context.Context) <-chan string {
	return t.GetStateChanWithOptions(ctx, fsm.WithSyncTimeout(5*time.Second))
}

// NewTransactionMachine creates a state machine starting at StateNotStarted.
func NewTransactionMachine(handler slog.Handler) (*TransactionFSM, error) {
	machine, err := fsm.New(handler, StateNotStarted, TransactionTransitions)
	if err != nil {
		return nil, err
	}
	return &TransactionFSM{Machine: machine}, nil
}

// TransactionFactory builds TransactionFSM instances through the Factory
// interface, for callers that construct machines generically.
type TransactionFactory struct{}

var _ Factory = TransactionFactory{}

func (TransactionFactory) NewMachine(handler slog.Handler) (Machine, error) {
	return NewTransactionMachine(handler)
}
