// Package saga implements the orchestrator runtime: given a compiled flow
// and a handler function, it drives idempotency-keyed transactions through
// invoke, retry, and reverse-order compensation.
package saga

import (
	"context"

	"github.com/flowforge/txsaga/internal/finitestate"
	"github.com/flowforge/txsaga/internal/flow"
)

// DefaultRetries is the number of invoke/compensate retries, after the first
// attempt, applied to a step that doesn't set its own maxRetries.
const DefaultRetries = flow.DefaultMaxRetries

// Orchestrator drives transactions for a single compiled flow. One
// Orchestrator is built per flow definition and reused across every
// transaction run against that flow.
type Orchestrator struct {
	flowName string
	dag      *flow.DAG
	handler  HandlerFunc
	events   *registry
}

// NewOrchestrator compiles definition and returns an Orchestrator bound to
// it. handler is invoked for every step's invoke and compensate call.
func NewOrchestrator(flowName string, definition *flow.Definition, handler HandlerFunc) (*Orchestrator, error) {
	dag, err := flow.Compile(definition)
	if err != nil {
		return nil, err
	}
	if dag.Name == "" {
		dag.Name = flowName
	}
	return &Orchestrator{
		flowName: flowName,
		dag:      dag,
		handler:  handler,
		events:   newRegistry(),
	}, nil
}

// GetKeyName builds the sub-key identifying one handler call: an
// idempotency key, an action id, and whether it's an invoke or compensate
// call.
func GetKeyName(idempotencyKey, action string, handlerType HandlerType) string {
	return idempotencyKey + ":" + action + ":" + string(handlerType)
}

// On registers a listener for an event. Listeners are invoked
// synchronously, in registration order, from whichever goroutine is
// driving the transaction at the time.
func (o *Orchestrator) On(event Event, listener Listener) {
	o.events.on(event, listener)
}

// BeginTransaction starts a new transaction for idempotencyKey and drives
// it as far forward as it can go before suspending on an async step or
// reaching a terminal state.
func (o *Orchestrator) BeginTransaction(
	ctx context.Context,
	idempotencyKey string,
	initialPayload any,
) (*Transaction, error) {
	txn, err := newTransaction(o.dag, idempotencyKey, initialPayload)
	if err != nil {
		return nil, err
	}

	txn.mu.Lock()
	defer txn.mu.Unlock()

	if err := txn.transition(finitestate.StateInvoking); err != nil {
		return nil, err
	}
	o.events.emit(EventBegin, txn, nil)
	o.driveInvoke(ctx, txn)
	return txn, nil
}

// Resume re-enters the traversal for a transaction that is waiting on
// progress: a periodic poll against an async step, or a retry driven by the
// caller rather than the orchestrator itself. It is a no-op requiring
// external action if nothing is newly ready.
func (o *Orchestrator) Resume(ctx context.Context, txn *Transaction) error {
	txn.mu.Lock()
	defer txn.mu.Unlock()

	switch txn.Status() {
	case finitestate.StateDone, finitestate.StateReverted, finitestate.StateFailed:
		return &InvalidResumeState{Status: txn.Status()}
	}

	o.events.emit(EventResume, txn, nil)
	o.traverse(ctx, txn)
	return nil
}

// RegisterStepSuccess reports the outcome of an async step's invoke or
// compensate call identified by subKey (see GetKeyName), resuming
// traversal past it.
func (o *Orchestrator) RegisterStepSuccess(
	ctx context.Context,
	txn *Transaction,
	subKey string,
	response any,
) error {
	txn.mu.Lock()
	defer txn.mu.Unlock()

	idx, ok := txn.KeyIndex[subKey]
	if !ok {
		return ErrUnknownSubKey
	}
	node := o.dag.Nodes[idx]
	ns := txn.nodeStateForAction(node.Action.Action)
	if ns.State == finitestate.NodeIdle {
		return ErrIdleStepFailure
	}

	if handlerTypeFromSubKey(subKey) == HandlerCompensate {
		if err := ns.transition(finitestate.NodeCompensated); err != nil {
			return err
		}
		o.events.emit(EventStepSuccess, txn, &StepEventData{
			Action:  node.Action.Action,
			SubKey:  subKey,
			Attempt: ns.CompensateAttempts,
		})
		o.driveCompensate(ctx, txn)
		return nil
	}

	ns.LastResponse = response
	if err := ns.transition(finitestate.NodeInvokedOK); err != nil {
		return err
	}
	o.events.emit(EventStepSuccess, txn, &StepEventData{
		Action:  node.Action.Action,
		SubKey:  subKey,
		Attempt: ns.Attempts,
	})

	o.driveInvoke(ctx, txn)
	return nil
}

// RegisterStepFailure reports an async step's invoke or compensate
// failure, identified by subKey. An async step's own retries, if any, are
// the external caller's responsibility: the orchestrator cannot re-run a
// side effect it never drove directly, so a single RegisterStepFailure
// call is treated as an exhausted attempt and immediately applies the same
// permanent-failure handling a synchronous call would reach after its last
// retry.
func (o *Orchestrator) RegisterStepFailure(
	ctx context.Context,
	txn *Transaction,
	subKey string,
	reason string,
) error {
	txn.mu.Lock()
	defer txn.mu.Unlock()

	idx, ok := txn.KeyIndex[subKey]
	if !ok {
		return ErrUnknownSubKey
	}
	node := o.dag.Nodes[idx]
	ns := txn.nodeStateForAction(node.Action.Action)
	if ns.State == finitestate.NodeIdle {
		return ErrIdleStepFailure
	}

	ns.FailureReason = reason

	if handlerTypeFromSubKey(subKey) == HandlerCompensate {
		if err := ns.transition(finitestate.NodeInvokeFailed); err != nil {
			return err
		}
		o.events.emit(EventStepFailure, txn, &StepEventData{
			Action:  node.Action.Action,
			SubKey:  subKey,
			Attempt: ns.CompensateAttempts,
		})
		_ = txn.transition(finitestate.StateFailed)
		o.emitTerminal(EventFailed, txn)
		return nil
	}

	// An async step's handler already ran once to kick off its side
	// effect before this failure was reported, so unlike a synchronous
	// step that never succeeded, it is itself a compensation candidate.
	// Mark it INVOKED_OK so the standard reverse-order compensation walk
	// picks it up alongside any sibling that actually completed.
	if node.Action.Async && !node.Action.ContinueOnPermanentFailure {
		if err := ns.transition(finitestate.NodeInvokedOK); err != nil {
			return err
		}
		o.events.emit(EventStepFailure, txn, &StepEventData{
			Action:  node.Action.Action,
			SubKey:  subKey,
			Attempt: ns.Attempts,
		})
		_ = txn.transition(finitestate.StateWaitingToCompensate)
		o.traverse(ctx, txn)
		return nil
	}

	if err := ns.transition(finitestate.NodePermanentFailureSkipped); err != nil {
		return err
	}
	o.events.emit(EventStepFailure, txn, &StepEventData{
		Action:  node.Action.Action,
		SubKey:  subKey,
		Attempt: ns.Attempts,
	})
	txn.IsPartiallyCompleted = true
	o.skipDescendants(txn, idx)
	o.finishInvokePass(ctx, txn, false)
	return nil
}
