package saga

import (
	"context"
	"strings"
)

// HandlerType distinguishes an invoke call from a compensate call for the
// same action.
type HandlerType string

const (
	HandlerInvoke     HandlerType = "invoke"
	HandlerCompensate HandlerType = "compensate"
)

// handlerTypeFromSubKey recovers which handler type a sub-key (see
// GetKeyName) was minted for, so external resume calls can be routed
// without the caller threading a HandlerType through separately.
func handlerTypeFromSubKey(subKey string) HandlerType {
	if strings.HasSuffix(subKey, ":"+string(HandlerCompensate)) {
		return HandlerCompensate
	}
	return HandlerInvoke
}

// HandlerFunc performs the side effect for one action, invoke or
// compensate, and returns the response to record against the node along
// with any handler error. A returned error is treated as a failed attempt;
// the orchestrator applies retry and compensation policy around it.
type HandlerFunc func(ctx context.Context, payload Payload) (any, error)
