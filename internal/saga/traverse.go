package saga

import (
	"context"

	"github.com/flowforge/txsaga/internal/finitestate"
	"github.com/flowforge/txsaga/internal/flow"
)

// traverse dispatches to the invoke or compensate driver based on the
// transaction's current status. Called with txn.mu already held.
func (o *Orchestrator) traverse(ctx context.Context, txn *Transaction) {
	switch txn.Status() {
	case finitestate.StateInvoking:
		o.driveInvoke(ctx, txn)
	case finitestate.StateWaitingToCompensate:
		_ = txn.transition(finitestate.StateCompensating)
		o.events.emit(EventCompensateBegin, txn, nil)
		o.driveCompensate(ctx, txn)
	case finitestate.StateCompensating:
		o.driveCompensate(ctx, txn)
	}
}

// driveInvoke repeatedly computes the next ready batch of nodes and
// dispatches it, until nothing more is ready: either every node has
// resolved, a blocking permanent failure was hit, or the pass suspended on
// an async step awaiting an external RegisterStepSuccess/RegisterStepFailure
// call.
func (o *Orchestrator) driveInvoke(ctx context.Context, txn *Transaction) {
	blocking := false
	for {
		batch := o.computeReadyBatch(txn)
		if len(batch) == 0 {
			break
		}
		if o.dispatchBatch(ctx, txn, batch) {
			blocking = true
			break
		}
	}
	o.finishInvokePass(ctx, txn, blocking)
}

// finishInvokePass decides the transaction's next status once an invoke
// pass can make no further progress.
func (o *Orchestrator) finishInvokePass(ctx context.Context, txn *Transaction, blocking bool) {
	if blocking {
		if o.countInvokedOK(txn) == 0 {
			_ = txn.transition(finitestate.StateFailed)
			o.emitTerminal(EventFailed, txn)
			return
		}
		_ = txn.transition(finitestate.StateCompensating)
		o.events.emit(EventCompensateBegin, txn, nil)
		o.driveCompensate(ctx, txn)
		return
	}

	if o.allResolved(txn) {
		_ = txn.transition(finitestate.StateDone)
		o.emitTerminal(EventFinish, txn)
	}
	// otherwise nothing is ready right now because a step is suspended
	// (async) or awaiting an external resume; stay in StateInvoking.
}

// computeReadyBatch returns the indices of all idle nodes that can be
// dispatched in this pass, in declared order: root candidates from
// DAG.RootChildren, then each visited node's Children, both in next[]
// order. The candidate list grows as it's walked, so a node's children are
// only considered once that node itself has been reached, keeping
// declaration order intact however the flow's Steps array happens to be
// laid out.
//
// It is a fixed-point computation within this single pass: a node whose
// only blocking parent has noWait set becomes ready as soon as that parent
// is visited (marked pretendStarted), without waiting for a later pass,
// because a parent is always walked before the children it enqueues.
func (o *Orchestrator) computeReadyBatch(txn *Transaction) []int {
	pretendStarted := make(map[int]bool)
	queued := make(map[int]bool)
	var batch []int

	candidates := append([]int(nil), txn.dag.RootChildren...)
	for _, idx := range candidates {
		queued[idx] = true
	}

	enqueueChildren := func(node *flow.Node) {
		for _, childIdx := range node.Children {
			if !queued[childIdx] {
				queued[childIdx] = true
				candidates = append(candidates, childIdx)
			}
		}
	}

	for ci := 0; ci < len(candidates); ci++ {
		node := txn.dag.Nodes[candidates[ci]]
		ns := txn.nodeStateForAction(node.Action.Action)

		if ns.State != finitestate.NodeIdle {
			enqueueChildren(node)
			continue
		}
		if !o.parentsSatisfied(txn, node, pretendStarted) {
			continue
		}

		batch = append(batch, candidates[ci])
		pretendStarted[candidates[ci]] = true
		enqueueChildren(node)
	}

	return batch
}

// parentsSatisfied reports whether every parent of node allows it to run: a
// noWait parent only needs to have started (be in the batch or already past
// idle), while any other parent must have fully succeeded.
func (o *Orchestrator) parentsSatisfied(
	txn *Transaction,
	node *flow.Node,
	pretendStarted map[int]bool,
) bool {
	for _, parentIdx := range node.Parents {
		parentNode := txn.dag.Nodes[parentIdx]
		parentState := txn.nodeStateForAction(parentNode.Action.Action)

		if parentNode.Action.NoWait {
			if parentState.State == finitestate.NodeIdle && !pretendStarted[parentIdx] {
				return false
			}
			continue
		}

		if parentState.State != finitestate.NodeInvokedOK {
			return false
		}
	}
	return true
}

// dispatchBatch invokes every node in batch, reporting whether any of them
// produced a blocking permanent failure.
func (o *Orchestrator) dispatchBatch(ctx context.Context, txn *Transaction, batch []int) bool {
	blocking := false
	for _, idx := range batch {
		node := txn.dag.Nodes[idx]
		ns := txn.nodeStateForAction(node.Action.Action)
		_ = ns.transition(finitestate.NodeInvoking)

		var nodeBlocking bool
		if node.Action.Async {
			nodeBlocking = o.dispatchAsync(ctx, txn, idx)
		} else {
			nodeBlocking = o.invokeWithRetries(ctx, txn, idx)
		}
		if nodeBlocking {
			blocking = true
		}
	}
	return blocking
}

// invokeWithRetries calls the handler for idx's invoke, retrying up to its
// effective max retries, and applies the resulting node-state transition.
// It returns true if the step permanently failed and is blocking.
func (o *Orchestrator) invokeWithRetries(ctx context.Context, txn *Transaction, idx int) bool {
	node := txn.dag.Nodes[idx]
	ns := txn.nodeStateForAction(node.Action.Action)
	maxAttempts := node.Action.MaxAttempts()

	for ns.Attempts < maxAttempts {
		ns.Attempts++
		payload := o.buildPayload(txn, idx, HandlerInvoke, ns.Attempts)
		o.events.emit(EventStepBegin, txn, &StepEventData{
			Action:  node.Action.Action,
			SubKey:  payload.Metadata.IdempotencyKey,
			Attempt: ns.Attempts,
		})

		resp, err := o.handler(ctx, payload)
		if err == nil {
			ns.LastResponse = resp
			_ = ns.transition(finitestate.NodeInvokedOK)
			o.events.emit(EventStepSuccess, txn, &StepEventData{
				Action:  node.Action.Action,
				SubKey:  payload.Metadata.IdempotencyKey,
				Attempt: ns.Attempts,
			})
			return false
		}
		ns.FailureReason = (&StepInvokeFailure{
			Action:  node.Action.Action,
			Attempt: ns.Attempts,
			Err:     err,
		}).Error()
	}

	return o.applyPermanentInvokeFailure(txn, idx)
}

// dispatchAsync calls the handler once to kick off an async step. Its
// return value and any error are ignored for state transitions: the node
// is left INVOKING, suspended until an external caller reports its outcome
// via RegisterStepSuccess/RegisterStepFailure.
func (o *Orchestrator) dispatchAsync(ctx context.Context, txn *Transaction, idx int) bool {
	node := txn.dag.Nodes[idx]
	ns := txn.nodeStateForAction(node.Action.Action)
	ns.Attempts++

	payload := o.buildPayload(txn, idx, HandlerInvoke, ns.Attempts)
	o.events.emit(EventStepBegin, txn, &StepEventData{
		Action:  node.Action.Action,
		SubKey:  payload.Metadata.IdempotencyKey,
		Attempt: ns.Attempts,
	})

	_, _ = o.handler(ctx, payload)
	return false
}

// applyPermanentInvokeFailure marks idx permanently failed and, if it
// tolerates that, skips its descendants and reports non-blocking;
// otherwise it reports blocking so the caller halts forward progress.
func (o *Orchestrator) applyPermanentInvokeFailure(txn *Transaction, idx int) bool {
	node := txn.dag.Nodes[idx]
	ns := txn.nodeStateForAction(node.Action.Action)

	if node.Action.ContinueOnPermanentFailure {
		_ = ns.transition(finitestate.NodePermanentFailureSkipped)
		o.events.emit(EventStepFailure, txn, &StepEventData{
			Action:  node.Action.Action,
			SubKey:  GetKeyName(txn.IdempotencyKey, node.Action.Action, HandlerInvoke),
			Attempt: ns.Attempts,
		})
		txn.IsPartiallyCompleted = true
		o.skipDescendants(txn, idx)
		return false
	}

	_ = ns.transition(finitestate.NodeInvokeFailed)
	o.events.emit(EventStepFailure, txn, &StepEventData{
		Action:  node.Action.Action,
		SubKey:  GetKeyName(txn.IdempotencyKey, node.Action.Action, HandlerInvoke),
		Attempt: ns.Attempts,
	})
	return true
}

// skipDescendants marks every descendant of idx that can never become
// ready as PERMANENT_FAILURE_SKIPPED, without invoking them, and recurses
// into their own descendants.
func (o *Orchestrator) skipDescendants(txn *Transaction, idx int) {
	queue := append([]int(nil), txn.dag.Nodes[idx].Children...)
	for len(queue) > 0 {
		childIdx := queue[0]
		queue = queue[1:]

		childNode := txn.dag.Nodes[childIdx]
		ns := txn.nodeStateForAction(childNode.Action.Action)
		if ns.State != finitestate.NodeIdle {
			continue
		}
		if !o.blockedForever(txn, childNode) {
			continue
		}

		_ = ns.transition(finitestate.NodePermanentFailureSkipped)
		o.events.emit(EventStepFailure, txn, &StepEventData{
			Action: childNode.Action.Action,
			SubKey: GetKeyName(txn.IdempotencyKey, childNode.Action.Action, HandlerInvoke),
		})
		queue = append(queue, childNode.Children...)
	}
}

// blockedForever reports whether node can never satisfy its parents
// because a non-noWait parent permanently failed or was itself skipped.
func (o *Orchestrator) blockedForever(txn *Transaction, node *flow.Node) bool {
	for _, parentIdx := range node.Parents {
		parentNode := txn.dag.Nodes[parentIdx]
		if parentNode.Action.NoWait {
			continue
		}
		parentState := txn.nodeStateForAction(parentNode.Action.Action)
		if parentState.State == finitestate.NodeInvokeFailed ||
			parentState.State == finitestate.NodePermanentFailureSkipped {
			return true
		}
	}
	return false
}

// countInvokedOK returns how many nodes successfully completed their
// invoke, i.e. how many nodes compensation would need to visit.
func (o *Orchestrator) countInvokedOK(txn *Transaction) int {
	count := 0
	for _, node := range txn.dag.Nodes {
		if txn.nodeStateForAction(node.Action.Action).State == finitestate.NodeInvokedOK {
			count++
		}
	}
	return count
}

// allResolved reports whether every node has reached a state that doesn't
// block the transaction from completing.
func (o *Orchestrator) allResolved(txn *Transaction) bool {
	for _, node := range txn.dag.Nodes {
		ns := txn.nodeStateForAction(node.Action.Action)
		switch ns.State {
		case finitestate.NodeInvokedOK, finitestate.NodePermanentFailureSkipped:
			continue
		default:
			return false
		}
	}
	return true
}

// driveCompensate walks invoked nodes in reverse depth order, compensating
// one depth level at a time, until none remain or one exhausts its
// compensate retries.
func (o *Orchestrator) driveCompensate(ctx context.Context, txn *Transaction) {
	for {
		batch := o.nextCompensateBatch(txn)
		if len(batch) == 0 {
			break
		}
		switch o.dispatchCompensateBatch(ctx, txn, batch) {
		case compensateFailed:
			_ = txn.transition(finitestate.StateFailed)
			o.emitTerminal(EventFailed, txn)
			return
		case compensateSuspended:
			// one or more async compensate calls are awaiting an
			// external RegisterStepSuccess/RegisterStepFailure;
			// remain in StateCompensating until that arrives.
			return
		}
	}

	_ = txn.transition(finitestate.StateReverted)
	o.emitTerminal(EventReverted, txn)
}

// emitTerminal emits event, then emits EventFinish alongside it if it isn't
// already EventFinish: "finish" fires exactly once on every terminal
// transition, regardless of which terminal state was reached.
func (o *Orchestrator) emitTerminal(event Event, txn *Transaction) {
	o.events.emit(event, txn, nil)
	if event != EventFinish {
		o.events.emit(EventFinish, txn, nil)
	}
}

// nextCompensateBatch returns the indices of every successfully invoked
// node at the highest remaining depth, the next level compensation must
// undo.
func (o *Orchestrator) nextCompensateBatch(txn *Transaction) []int {
	maxDepth := -1
	for _, node := range txn.dag.Nodes {
		if txn.nodeStateForAction(node.Action.Action).State != finitestate.NodeInvokedOK {
			continue
		}
		if node.Depth > maxDepth {
			maxDepth = node.Depth
		}
	}
	if maxDepth < 0 {
		return nil
	}

	var batch []int
	for i, node := range txn.dag.Nodes {
		if node.Depth != maxDepth {
			continue
		}
		if txn.nodeStateForAction(node.Action.Action).State == finitestate.NodeInvokedOK {
			batch = append(batch, i)
		}
	}
	return batch
}

// compensateOutcome reports how a batch of compensate dispatches settled.
type compensateOutcome int

const (
	compensateOK compensateOutcome = iota
	compensateFailed
	compensateSuspended
)

// dispatchCompensateBatch compensates every node in batch. A synchronous
// node retries up to its max attempts before the batch is reported failed.
// An async node is dispatched once and left COMPENSATING, suspending the
// batch until an external RegisterStepSuccess/RegisterStepFailure call
// reports its outcome on the compensate sub-key.
func (o *Orchestrator) dispatchCompensateBatch(ctx context.Context, txn *Transaction, batch []int) compensateOutcome {
	suspended := false
	anyFailed := false
	for _, idx := range batch {
		node := txn.dag.Nodes[idx]
		ns := txn.nodeStateForAction(node.Action.Action)
		_ = ns.transition(finitestate.NodeCompensating)
		o.events.emit(EventCompensateBegin, txn, &StepEventData{
			Action: node.Action.Action,
			SubKey: GetKeyName(txn.IdempotencyKey, node.Action.Action, HandlerCompensate),
		})

		if node.Action.Async {
			ns.CompensateAttempts = 1
			payload := o.buildPayload(txn, idx, HandlerCompensate, ns.CompensateAttempts)
			_, _ = o.handler(ctx, payload)
			suspended = true
			continue
		}

		maxAttempts := node.Action.MaxAttempts()
		compensateAttempts := 0
		succeeded := false

		for compensateAttempts < maxAttempts {
			compensateAttempts++
			payload := o.buildPayload(txn, idx, HandlerCompensate, compensateAttempts)
			_, err := o.handler(ctx, payload)
			if err == nil {
				succeeded = true
				break
			}
			ns.FailureReason = (&StepCompensateFailure{
				Action:  node.Action.Action,
				Attempt: compensateAttempts,
				Err:     err,
			}).Error()
		}

		if succeeded {
			_ = ns.transition(finitestate.NodeCompensated)
			continue
		}

		_ = ns.transition(finitestate.NodeInvokeFailed)
		anyFailed = true
	}

	switch {
	case anyFailed:
		return compensateFailed
	case suspended:
		return compensateSuspended
	default:
		return compensateOK
	}
}
