package saga_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowforge/txsaga/internal/saga"
)

// recordedCall captures one handler dispatch for assertions.
type recordedCall struct {
	Action  string
	Type    saga.HandlerType
	Attempt int
	Data    any
}

// behaviorFunc decides the outcome of one dispatch given its 1-based
// attempt number.
type behaviorFunc func(attempt int) (any, error)

// recorder is a HandlerFunc builder that logs every dispatch in order and
// looks up a per-action (optionally per-handler-type) behavior to decide
// success or failure. Actions with no registered behavior succeed
// immediately, echoing their payload data as the response.
type recorder struct {
	mu        sync.Mutex
	calls     []recordedCall
	behaviors map[string]behaviorFunc
}

func newRecorder() *recorder {
	return &recorder{behaviors: make(map[string]behaviorFunc)}
}

// onAction registers fn for every dispatch (invoke or compensate) of
// action.
func (r *recorder) onAction(action string, fn behaviorFunc) {
	r.behaviors[action] = fn
}

// onInvoke registers fn for invoke dispatches of action only.
func (r *recorder) onInvoke(action string, fn behaviorFunc) {
	r.behaviors[action+":"+string(saga.HandlerInvoke)] = fn
}

// alwaysFail returns a behaviorFunc that fails every attempt.
func alwaysFail() behaviorFunc {
	return func(attempt int) (any, error) {
		return nil, fmt.Errorf("attempt %d failed", attempt)
	}
}

// failTimes returns a behaviorFunc that fails the first n attempts, then
// succeeds with response on every attempt after.
func failTimes(n int, response any) behaviorFunc {
	return func(attempt int) (any, error) {
		if attempt <= n {
			return nil, fmt.Errorf("attempt %d failed", attempt)
		}
		return response, nil
	}
}

// succeedWith returns a behaviorFunc that always succeeds with response.
func succeedWith(response any) behaviorFunc {
	return func(attempt int) (any, error) {
		return response, nil
	}
}

func (r *recorder) handler() saga.HandlerFunc {
	return func(ctx context.Context, payload saga.Payload) (any, error) {
		r.mu.Lock()
		r.calls = append(r.calls, recordedCall{
			Action:  payload.Metadata.Action,
			Type:    payload.Metadata.ActionType,
			Attempt: payload.Metadata.Attempt,
			Data:    payload.Data,
		})
		r.mu.Unlock()

		key := payload.Metadata.Action + ":" + string(payload.Metadata.ActionType)
		if fn, ok := r.behaviors[key]; ok {
			return fn(payload.Metadata.Attempt)
		}
		if fn, ok := r.behaviors[payload.Metadata.Action]; ok {
			return fn(payload.Metadata.Attempt)
		}
		return payload.Data, nil
	}
}

// invokeActions returns the recorded actions in dispatch order, invoke calls only.
func (r *recorder) invokeActions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, c := range r.calls {
		if c.Type == saga.HandlerInvoke {
			out = append(out, c.Action)
		}
	}
	return out
}

func (r *recorder) countInvokes(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		if c.Action == action && c.Type == saga.HandlerInvoke {
			n++
		}
	}
	return n
}

func (r *recorder) countCompensates(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		if c.Action == action && c.Type == saga.HandlerCompensate {
			n++
		}
	}
	return n
}

func (r *recorder) callsFor(action string, handlerType saga.HandlerType) []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []recordedCall
	for _, c := range r.calls {
		if c.Action == action && c.Type == handlerType {
			out = append(out, c)
		}
	}
	return out
}
