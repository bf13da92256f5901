package adapter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	value any
	err   error
}

// recordingHandler captures every HandlerParams it receives
type recordingHandler struct {
	mu    sync.Mutex
	calls []types.HandlerParams
	ids   chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{ids: make(chan string, 16)}
}

func (h *recordingHandler) handle(_ context.Context, p types.HandlerParams) (any, error) {
	h.mu.Lock()
	h.calls = append(h.calls, p)
	h.mu.Unlock()
	h.ids <- p.ID
	return nil, nil
}

func (h *recordingHandler) nextID(t *testing.T) string {
	t.Helper()
	select {
	case id := <-h.ids:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
		return ""
	}
}

func requestAsync(a Adapter, ctx context.Context, req types.Request) <-chan result {
	out := make(chan result, 1)
	go func() {
		v, err := a.Request(ctx, req, "ethereum")
		out <- result{value: v, err: err}
	}()
	return out
}

func wait(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("request did not settle")
		return result{}
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Strategy
		wantErr bool
	}{
		{name: "promises", input: "PROMISES", want: StrategyPromises},
		{name: "callback", input: "CALLBACK", want: StrategyCallback},
		{name: "lowercase is rejected", input: "callback", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStrategy(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	a, err := New(StrategyPromises, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyPromises, a.Strategy())
	assert.IsType(t, &PromiseAdapter{}, a)

	a, err = New(StrategyCallback, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyCallback, a.Strategy())
	assert.IsType(t, &CallbackAdapter{}, a)

	_, err = New("BOGUS", nil)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestRequestWithoutHandler(t *testing.T) {
	for _, a := range []Adapter{NewPromiseAdapter(), NewCallbackAdapter()} {
		t.Run(string(a.Strategy()), func(t *testing.T) {
			_, err := a.Request(context.Background(), types.Request{Method: "eth_chainId"}, "ethereum")
			assert.ErrorIs(t, err, ErrNoHandlerConfigured)
		})
	}
}

func TestPromiseAdapterRelaysHandlerOutcome(t *testing.T) {
	hostErr := errors.New("user rejected")

	tests := []struct {
		name    string
		value   any
		err     error
		wantErr error
	}{
		{name: "result", value: []string{"0xabc"}},
		{name: "error identity", err: hostErr, wantErr: hostErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got types.HandlerParams
			a := NewPromiseAdapter()
			a.SetHandler(func(_ context.Context, p types.HandlerParams) (any, error) {
				got = p
				return tt.value, tt.err
			})

			v, err := a.Request(context.Background(), types.Request{Method: "requestAccounts", Params: map[string]any{}}, "ethereum")
			if tt.wantErr != nil {
				assert.Same(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, v)

			assert.Empty(t, got.ID, "promise requests carry no id")
			assert.Equal(t, "ethereum", got.Network)
			assert.Equal(t, "requestAccounts", got.Name)
			assert.Equal(t, map[string]any{}, got.Params)
			assert.Equal(t, got.Params, got.Object)
		})
	}
}

func TestCallbackAdapterSendResponse(t *testing.T) {
	h := newRecordingHandler()
	a := NewCallbackAdapter()
	a.SetHandler(h.handle)

	done := requestAsync(a, context.Background(), types.Request{Method: "requestAccounts"})
	id := h.nextID(t)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, a.Pending())

	a.SendResponse(id, []string{"0x1"})
	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, []string{"0x1"}, r.value)
	assert.Equal(t, 0, a.Pending())

	// Later deliveries for the same id are orphans
	a.SendResponse(id, []string{"0x2"})
	a.SendError(id, "4001")
	assert.Equal(t, 0, a.Pending())
}

func TestCallbackAdapterSynchronousAnswer(t *testing.T) {
	a := NewCallbackAdapter()
	a.SetHandler(func(_ context.Context, p types.HandlerParams) (any, error) {
		a.SendResponse(p.ID, "0x1")
		return nil, nil
	})

	v, err := a.Request(context.Background(), types.Request{Method: "eth_chainId"}, "ethereum")
	require.NoError(t, err)
	assert.Equal(t, "0x1", v)
}

func TestCallbackAdapterSendError(t *testing.T) {
	hostErr := errors.New("boom")

	tests := []struct {
		name   string
		reason any
		check  func(t *testing.T, err error)
	}{
		{
			name:   "error passes through unchanged",
			reason: hostErr,
			check: func(t *testing.T, err error) {
				assert.Same(t, hostErr, err)
			},
		},
		{
			name:   "numeric string becomes RPCError",
			reason: "4001",
			check: func(t *testing.T, err error) {
				var rpcErr *types.RPCError
				require.ErrorAs(t, err, &rpcErr)
				assert.Equal(t, 4001, rpcErr.Code)
				assert.Equal(t, "4001", rpcErr.Message)
			},
		},
		{
			name:   "string with leading code",
			reason: "4001 user rejected",
			check: func(t *testing.T, err error) {
				var rpcErr *types.RPCError
				require.ErrorAs(t, err, &rpcErr)
				assert.Equal(t, 4001, rpcErr.Code)
			},
		},
		{
			name:   "signed code after whitespace",
			reason: "  -32603internal",
			check: func(t *testing.T, err error) {
				var rpcErr *types.RPCError
				require.ErrorAs(t, err, &rpcErr)
				assert.Equal(t, -32603, rpcErr.Code)
			},
		},
		{
			name:   "sign without digits",
			reason: "-rejected",
			check: func(t *testing.T, err error) {
				var rpcErr *types.RPCError
				assert.False(t, errors.As(err, &rpcErr))
				assert.EqualError(t, err, "-rejected")
			},
		},
		{
			name:   "plain string",
			reason: "user rejected",
			check: func(t *testing.T, err error) {
				assert.EqualError(t, err, "user rejected")
			},
		},
		{
			name:   "arbitrary payload",
			reason: map[string]any{"code": 1},
			check: func(t *testing.T, err error) {
				var hostErr *types.HostError
				require.ErrorAs(t, err, &hostErr)
				assert.Equal(t, map[string]any{"code": 1}, hostErr.Payload)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRecordingHandler()
			a := NewCallbackAdapter()
			a.SetHandler(h.handle)

			done := requestAsync(a, context.Background(), types.Request{Method: "signMessage"})
			a.SendError(h.nextID(t), tt.reason)

			r := wait(t, done)
			require.Error(t, r.err)
			tt.check(t, r.err)
		})
	}
}

func TestCallbackAdapterOutOfOrderResolution(t *testing.T) {
	h := newRecordingHandler()
	a := NewCallbackAdapter()
	a.SetHandler(h.handle)

	first := requestAsync(a, context.Background(), types.Request{Method: "first"})
	firstID := h.nextID(t)
	second := requestAsync(a, context.Background(), types.Request{Method: "second"})
	secondID := h.nextID(t)

	assert.NotEqual(t, firstID, secondID)
	assert.Equal(t, 2, a.Pending())

	a.SendResponse(secondID, "two")
	a.SendResponse(firstID, "one")

	assert.Equal(t, "one", wait(t, first).value)
	assert.Equal(t, "two", wait(t, second).value)
}

func TestCallbackAdapterHandlerParams(t *testing.T) {
	h := newRecordingHandler()
	a := NewCallbackAdapter(WithIDGenerator(func() string { return "fixed-id" }))
	a.SetHandler(h.handle)

	done := requestAsync(a, context.Background(), types.Request{Method: "signTransaction", Params: []any{"tx"}})
	id := h.nextID(t)
	assert.Equal(t, "fixed-id", id)
	a.SendResponse(id, nil)
	wait(t, done)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.calls, 1)
	assert.Equal(t, types.HandlerParams{
		ID:      "fixed-id",
		Network: "ethereum",
		Name:    "signTransaction",
		Params:  []any{"tx"},
		Object:  []any{"tx"},
	}, h.calls[0])
}

func TestCallbackAdapterContextCancel(t *testing.T) {
	h := newRecordingHandler()
	a := NewCallbackAdapter()
	a.SetHandler(h.handle)

	ctx, cancel := context.WithCancel(context.Background())
	done := requestAsync(a, ctx, types.Request{Method: "requestAccounts"})
	id := h.nextID(t)

	cancel()
	r := wait(t, done)
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.Equal(t, 0, a.Pending())

	// A late answer is an orphan
	a.SendResponse(id, "late")
	assert.Equal(t, 0, a.Pending())
}

func TestCallbackAdapterHandlerErrorStaysPending(t *testing.T) {
	called := make(chan struct{}, 1)
	a := NewCallbackAdapter()
	a.SetHandler(func(context.Context, types.HandlerParams) (any, error) {
		called <- struct{}{}
		return nil, errors.New("host unreachable")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := requestAsync(a, ctx, types.Request{Method: "requestAccounts"})

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
	assert.Equal(t, 1, a.Pending())

	r := wait(t, done)
	assert.ErrorIs(t, r.err, context.DeadlineExceeded)
	assert.Equal(t, 0, a.Pending())
}

func TestCallbackAdapterTimeout(t *testing.T) {
	h := newRecordingHandler()
	a := NewCallbackAdapter(WithTimeout(20 * time.Millisecond))
	a.SetHandler(h.handle)

	done := requestAsync(a, context.Background(), types.Request{Method: "requestAccounts"})
	h.nextID(t)

	r := wait(t, done)
	assert.ErrorIs(t, r.err, ErrRequestTimeout)
	assert.Equal(t, 0, a.Pending())
}

func TestCallbackAdapterHandlerErrorIsIgnored(t *testing.T) {
	a := NewCallbackAdapter()
	ids := make(chan string, 1)
	a.SetHandler(func(_ context.Context, p types.HandlerParams) (any, error) {
		ids <- p.ID
		return nil, errors.New("transport down")
	})

	done := requestAsync(a, context.Background(), types.Request{Method: "requestAccounts"})
	id := <-ids

	// Still pending until the host answers
	a.SendResponse(id, "ok")
	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, "ok", r.value)
}
