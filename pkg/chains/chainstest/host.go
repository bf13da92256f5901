// Package chainstest provides an in-process wallet host for provider tests.
package chainstest

import (
	"context"
	"sync"
	"testing"

	"github.com/sigweihq/web3provider/pkg/adapter"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/stretchr/testify/require"
)

// Responder computes the host answer for one call
type Responder func(params types.HandlerParams) (any, error)

// Host records every handler call and answers by internal method name.
// Methods without a responder resolve to nil.
type Host struct {
	mu         sync.Mutex
	calls      []types.HandlerParams
	responders map[string]Responder
}

func NewHost() *Host {
	return &Host{responders: make(map[string]Responder)}
}

// Handle is an adapter.Handler
func (h *Host) Handle(_ context.Context, params types.HandlerParams) (any, error) {
	h.mu.Lock()
	h.calls = append(h.calls, params)
	fn := h.responders[params.Name]
	h.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(params)
}

// Adapter returns a PROMISES adapter bound to the host
func (h *Host) Adapter() adapter.Adapter {
	a := adapter.NewPromiseAdapter()
	a.SetHandler(h.Handle)
	return a
}

// On answers method with result
func (h *Host) On(method string, result any) {
	h.Respond(method, func(types.HandlerParams) (any, error) { return result, nil })
}

// Fail rejects method with err
func (h *Host) Fail(method string, err error) {
	h.Respond(method, func(types.HandlerParams) (any, error) { return nil, err })
}

// Respond answers method with fn
func (h *Host) Respond(method string, fn Responder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responders[method] = fn
}

// Calls returns a copy of the recorded calls
func (h *Host) Calls() []types.HandlerParams {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.HandlerParams(nil), h.calls...)
}

// Count returns the number of recorded calls
func (h *Host) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// Last returns the most recent call, failing the test when there is none
func (h *Host) Last(t testing.TB) types.HandlerParams {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.calls, "host was not called")
	return h.calls[len(h.calls)-1]
}
