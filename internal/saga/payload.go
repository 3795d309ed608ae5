package saga

import (
	"time"

	"github.com/flowforge/txsaga/internal/finitestate"
)

// Metadata accompanies every handler call, describing who is calling, what
// action is being invoked or compensated, and which attempt this is.
type Metadata struct {
	Producer       string      `json:"producer"`
	ReplyToTopic   string      `json:"reply_to_topic"`
	IdempotencyKey string      `json:"idempotency_key"`
	Action         string      `json:"action"`
	ActionType     HandlerType `json:"action_type"`
	Attempt        int         `json:"attempt"`
	Timestamp      int64       `json:"timestamp"`
}

// Payload is passed to a HandlerFunc on every invoke or compensate call.
type Payload struct {
	Metadata Metadata `json:"metadata"`
	Data     any      `json:"data"`
}

// replyToTopic builds the topic a handler would publish its async outcome
// to: shared by every step of a flow, scoped by flow name rather than by
// individual action.
func replyToTopic(flowName string) string {
	return "trans:" + flowName
}

// buildPayload assembles the payload for one invoke or compensate call.
// Data starts from a shallow copy of the transaction's initial payload (if
// it's a map) and, when an immediate parent has forwardResponse set and
// completed successfully, gains that parent's response under "_response".
// Forwarding is shallow and only reaches immediate children.
func (o *Orchestrator) buildPayload(
	txn *Transaction,
	idx int,
	handlerType HandlerType,
	attempt int,
) Payload {
	node := txn.dag.Nodes[idx]

	data := make(map[string]any)
	if m, ok := txn.InitialPayload.(map[string]any); ok {
		for k, v := range m {
			data[k] = v
		}
	} else if txn.InitialPayload != nil {
		data["_initial"] = txn.InitialPayload
	}

	for _, parentIdx := range node.Parents {
		parentNode := txn.dag.Nodes[parentIdx]
		if !parentNode.Action.ForwardResponse {
			continue
		}
		parentState := txn.nodeStateForAction(parentNode.Action.Action)
		if parentState.State == finitestate.NodeInvokedOK {
			data["_response"] = parentState.LastResponse
		}
	}

	return Payload{
		Metadata: Metadata{
			Producer:       txn.FlowName,
			ReplyToTopic:   replyToTopic(txn.FlowName),
			IdempotencyKey: GetKeyName(txn.IdempotencyKey, node.Action.Action, handlerType),
			Action:         node.Action.Action,
			ActionType:     handlerType,
			Attempt:        attempt,
			Timestamp:      time.Now().UnixMilli(),
		},
		Data: data,
	}
}
