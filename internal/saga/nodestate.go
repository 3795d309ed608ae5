package saga

import (
	"log/slog"

	"github.com/flowforge/txsaga/internal/finitestate"
)

// NodeState is the per-step record tracked against a Transaction: the
// node's lifecycle state, how many attempts it has made, its last
// successful response (used for response forwarding), and the reason it
// last failed.
type NodeState struct {
	State    string
	Attempts int
	// CompensateAttempts tracks retries for an async node's compensate
	// call, kept separate from Attempts since the attempt counter resets
	// between invoke and compensate for the same node.
	CompensateAttempts int
	LastResponse       any
	FailureReason      string

	machine *finitestate.NodeFSM
	logger  *slog.Logger
}

func newNodeState(logger *slog.Logger) *NodeState {
	if logger == nil {
		logger = slog.Default()
	}
	raw, err := finitestate.NodeFactory{}.NewMachine(logger.Handler())
	if err != nil {
		// NewMachine only fails if NodeTransitions is malformed, which is
		// a programmer error, not a runtime condition.
		panic(err)
	}
	return &NodeState{
		State:   finitestate.NodeIdle,
		machine: raw.(*finitestate.NodeFSM),
		logger:  logger,
	}
}

func (n *NodeState) transition(state string) error {
	if err := n.machine.Transition(state); err != nil {
		n.logger.Error("node state transition rejected", "from", n.State, "to", state, "error", err)
		return err
	}
	n.State = state
	return nil
}
