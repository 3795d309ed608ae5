// Node state machine implementation.
// Tracks the per-step lifecycle of a single DAG node across invoke,
// retry, and compensate attempts.
package finitestate

import (
	"context"
	"log/slog"
	"time"

	"github.com/robbyt/go-fsm"
)

// Node state constants, matching the nodeStates a step can occupy during a
// transaction run. Retries do not produce new states: a node stays in
// NodeInvoking across attempts and only transitions once retries are
// exhausted or an attempt succeeds.
const (
	NodeIdle                    = "idle"
	NodeInvoking                = "invoking"
	NodeInvokedOK               = "invoked_ok"
	NodeInvokeFailed            = "invoke_failed"
	NodeCompensating            = "compensating"
	NodeCompensated             = "compensated"
	NodePermanentFailureSkipped = "permanent_failure_skipped"
)

// NodeTransitions defines the valid state transitions for a single node.
// A node that is skipped because an ancestor permanently failed moves
// directly from idle to permanent_failure_skipped without ever invoking. A
// node that exhausts its own retries but tolerates it (continueOnPermanent
// Failure) moves from invoking to permanent_failure_skipped instead of
// invoke_failed.
var NodeTransitions = map[string][]string{
	NodeIdle: {
		NodeInvoking,
		NodePermanentFailureSkipped,
	},
	NodeInvoking: {
		NodeInvoking, // retry attempt, same state
		NodeInvokedOK,
		NodeInvokeFailed,
		NodePermanentFailureSkipped,
	},
	NodeInvokedOK: {
		NodeCompensating,
	},
	NodeInvokeFailed: {},
	NodeCompensating: {
		NodeCompensating, // retry attempt, same state
		NodeCompensated,
		NodeInvokeFailed, // compensate retries exhausted
	},
	NodeCompensated:             {},
	NodePermanentFailureSkipped: {},
}

// NodeFSM wraps fsm.Machine for a single DAG node.
type NodeFSM struct {
	*fsm.Machine
}

var _ Machine = (*NodeFSM)(nil)

func (n *NodeFSM) GetStateChan(ctx context.Context) <-chan string {
	return n.GetStateChanWithOptions(ctx, fsm.WithSyncTimeout(5*time.Second))
}

// NewNodeMachine creates a node state machine starting at NodeIdle.
func NewNodeMachine(handler slog.Handler) (*NodeFSM, error) {
	machine, err := fsm.New(handler, NodeIdle, NodeTransitions)
	if err != nil {
		return nil, err
	}
	return &NodeFSM{Machine: machine}, nil
}

// NodeFactory builds NodeFSM instances through the Factory interface, for
// callers that construct machines generically.
type NodeFactory struct{}

var _ Factory = NodeFactory{}

func (NodeFactory) NewMachine(handler slog.Handler) (Machine, error) {
	return NewNodeMachine(handler)
}
