package saga

import (
	"log/slog"
	"sync"

	"github.com/flowforge/txsaga/internal/eventlog"
	"github.com/flowforge/txsaga/internal/finitestate"
	"github.com/flowforge/txsaga/internal/flow"
	"github.com/robbyt/go-loglater/storage"
)

// Transaction is one run of a flow against a single idempotency key. All
// mutation of a Transaction happens under its own mutex, so a single
// transaction is processed cooperatively rather than concurrently: only one
// traversal pass runs at a time. Distinct transactions are fully
// independent and may be driven concurrently by separate goroutines.
type Transaction struct {
	IdempotencyKey string
	FlowName       string
	InitialPayload any

	// IsPartiallyCompleted is set once any node with
	// ContinueOnPermanentFailure exhausts its retries and is skipped
	// rather than halting the whole transaction.
	IsPartiallyCompleted bool

	// NodeStates is keyed by each node's invoke sub-key,
	// GetKeyName(idempotencyKey, action, HandlerInvoke); the compensate
	// sub-key reaches the same record through KeyIndex.
	NodeStates map[string]*NodeState

	// KeyIndex maps a sub-key to its node's index in the DAG.
	KeyIndex map[string]int

	dag     *flow.DAG
	machine *finitestate.TransactionFSM
	logs    *eventlog.Collector
	mu      sync.Mutex
}

func newTransaction(dag *flow.DAG, idempotencyKey string, initialPayload any) (*Transaction, error) {
	logs := eventlog.New(slog.Default().Handler(), "idempotencyKey", idempotencyKey, "flow", dag.Name)

	raw, err := finitestate.TransactionFactory{}.NewMachine(logs.Logger().Handler())
	if err != nil {
		panic(err)
	}
	machine := raw.(*finitestate.TransactionFSM)

	txn := &Transaction{
		IdempotencyKey: idempotencyKey,
		FlowName:       dag.Name,
		InitialPayload: initialPayload,
		NodeStates:     make(map[string]*NodeState, len(dag.Nodes)),
		KeyIndex:       make(map[string]int, len(dag.Nodes)),
		dag:            dag,
		machine:        machine,
		logs:           logs,
	}

	for i, node := range dag.Nodes {
		invokeKey := GetKeyName(idempotencyKey, node.Action.Action, HandlerInvoke)
		txn.NodeStates[invokeKey] = newNodeState(logs.Logger())
		txn.KeyIndex[invokeKey] = i

		// The compensate sub-key resolves to the same node record: a
		// node carries a single lifecycle state regardless of which
		// handler type last touched it.
		compensateKey := GetKeyName(idempotencyKey, node.Action.Action, HandlerCompensate)
		txn.KeyIndex[compensateKey] = i
	}

	return txn, nil
}

// Status returns the transaction's current overall status.
func (t *Transaction) Status() string {
	return t.machine.GetState()
}

func (t *Transaction) transition(state string) error {
	if err := t.machine.Transition(state); err != nil {
		t.logs.Logger().Error(
			"transaction state transition rejected",
			"idempotencyKey", t.IdempotencyKey,
			"from", t.Status(),
			"to", state,
			"error", err,
		)
		return err
	}
	return nil
}

// PlaybackLogs re-emits every record logged over the life of this
// transaction to handler, in the order they were produced.
func (t *Transaction) PlaybackLogs(handler slog.Handler) error {
	return t.logs.PlaybackLogs(handler)
}

// GetLogs returns the raw records logged over the life of this transaction.
func (t *Transaction) GetLogs() []storage.Record {
	return t.logs.GetLogs()
}

// nodeStateForAction returns the NodeState tracked for an action's invoke
// sub-key.
func (t *Transaction) nodeStateForAction(action string) *NodeState {
	return t.NodeStates[GetKeyName(t.IdempotencyKey, action, HandlerInvoke)]
}
