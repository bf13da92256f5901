package adapter

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sigweihq/web3provider/pkg/types"
)

type outcome struct {
	result any
	err    error
}

// CallbackAdapter correlates fire-and-forget host calls with later
// SendResponse/SendError deliveries
type CallbackAdapter struct {
	base

	mu      sync.Mutex
	pending map[string]chan outcome

	timeout time.Duration
	newID   func() string
	logger  *slog.Logger
}

// NewCallbackAdapter creates an adapter using the CALLBACK strategy
func NewCallbackAdapter(opts ...Option) *CallbackAdapter {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}

	return &CallbackAdapter{
		base:    base{strategy: StrategyCallback},
		pending: make(map[string]chan outcome),
		timeout: o.timeout,
		newID:   o.newID,
		logger:  o.logger.With("component", "callback_adapter"),
	}
}

var (
	_ Adapter   = (*CallbackAdapter)(nil)
	_ Responder = (*CallbackAdapter)(nil)
)

// Request implements Adapter. It blocks until the host answers, ctx is
// done, or the configured timeout fires.
//
// A handler error is only logged: the request stays pending until the host
// settles it, so callers must bound ctx when no timeout is configured.
func (a *CallbackAdapter) Request(ctx context.Context, req types.Request, network string) (any, error) {
	if a.Handler() == nil {
		return nil, ErrNoHandlerConfigured
	}

	id := a.newID()
	ch := make(chan outcome, 1)

	a.mu.Lock()
	a.pending[id] = ch
	a.mu.Unlock()

	// The handler may answer synchronously; ch is buffered for that case
	if _, err := a.dispatch(ctx, req, network, id); err != nil {
		a.logger.Error("host handler failed", "id", id, "method", req.Method, "network", network, "error", err)
	}

	var expired <-chan time.Time
	if a.timeout > 0 {
		timer := time.NewTimer(a.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case o := <-ch:
		return o.result, o.err
	case <-ctx.Done():
		a.settle(id, outcome{err: ctx.Err()})
	case <-expired:
		a.settle(id, outcome{err: ErrRequestTimeout})
	}

	// Either our own rejection or a response that won the race
	o := <-ch
	return o.result, o.err
}

// SendResponse resolves the pending request with the given id
func (a *CallbackAdapter) SendResponse(id string, result any) {
	if !a.settle(id, outcome{result: result}) {
		a.logger.Warn("unable to find callback for request", "id", id)
	}
}

// SendError rejects the pending request with the given id
func (a *CallbackAdapter) SendError(id string, reason any) {
	if !a.settle(id, outcome{err: toError(reason)}) {
		a.logger.Warn("unable to find callback for request", "id", id)
	}
}

// Pending returns the number of requests awaiting a host answer
func (a *CallbackAdapter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// settle consumes the entry for id. It reports false when no entry exists.
func (a *CallbackAdapter) settle(id string, o outcome) bool {
	a.mu.Lock()
	ch, ok := a.pending[id]
	if ok {
		delete(a.pending, id)
	}
	a.mu.Unlock()

	if !ok {
		return false
	}
	ch <- o
	return true
}

// toError converts a host rejection value into an error. Errors pass
// through unchanged; strings starting with a numeric code become RPCError.
func toError(reason any) error {
	switch r := reason.(type) {
	case error:
		return r
	case string:
		if code, ok := leadingInt(r); ok {
			return types.NewRPCError(code, r)
		}
		return errors.New(r)
	default:
		return &types.HostError{Payload: r}
	}
}

func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
