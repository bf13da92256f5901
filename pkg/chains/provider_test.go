package chains

import (
	"context"
	"errors"
	"testing"

	"github.com/sigweihq/web3provider/pkg/adapter"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseProviderRequestWithoutAdapter(t *testing.T) {
	p := NewBaseProvider("ethereum", nil)

	_, err := p.Request(context.Background(), types.Request{Method: "eth_chainId"})
	assert.ErrorIs(t, err, ErrNoAdapter)
	assert.ErrorIs(t, p.SendResponse("1", nil), ErrNoAdapter)
	assert.ErrorIs(t, p.SendError("1", nil), ErrNoAdapter)
}

func TestBaseProviderRequestEmitsResponseReady(t *testing.T) {
	p := NewBaseProvider("solana", nil)
	a := adapter.NewPromiseAdapter()
	a.SetHandler(func(_ context.Context, params types.HandlerParams) (any, error) {
		assert.Equal(t, "solana", params.Network)
		return "result", nil
	})
	p.SetAdapter(a)

	var got []ResponseReady
	p.On(EventResponseReady, func(payload any) {
		got = append(got, payload.(ResponseReady))
	})

	req := types.Request{Method: "connect", Params: map[string]any{}}
	res, err := p.Request(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "result", res)
	require.Len(t, got, 1)
	assert.Equal(t, ResponseReady{Request: req, Result: "result"}, got[0])
}

func TestBaseProviderRequestErrorIsNotTransformed(t *testing.T) {
	hostErr := errors.New("rejected")
	p := NewBaseProvider("ethereum", nil)
	a := adapter.NewPromiseAdapter()
	a.SetHandler(func(context.Context, types.HandlerParams) (any, error) {
		return nil, hostErr
	})
	p.SetAdapter(a)

	emitted := false
	p.On(EventResponseReady, func(any) { emitted = true })

	_, err := p.Request(context.Background(), types.Request{Method: "signMessage"})
	assert.Same(t, hostErr, err)
	assert.False(t, emitted)
}

func TestBaseProviderStrategyMismatch(t *testing.T) {
	p := NewBaseProvider("ethereum", nil)
	calls := 0
	a := adapter.NewPromiseAdapter()
	a.SetHandler(func(context.Context, types.HandlerParams) (any, error) {
		calls++
		return nil, nil
	})
	p.SetAdapter(a)

	var mismatch *StrategyMismatchError
	err := p.SendResponse("id", "value")
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, adapter.StrategyPromises, mismatch.Strategy)

	err = p.SendError("id", "4001")
	require.ErrorAs(t, err, &mismatch)

	assert.Equal(t, 0, calls)
	assert.Same(t, a, p.Adapter())
}

func TestBaseProviderCallbackResolution(t *testing.T) {
	p := NewBaseProvider("cosmos", nil)
	ids := make(chan string, 1)
	a := adapter.NewCallbackAdapter()
	a.SetHandler(func(_ context.Context, params types.HandlerParams) (any, error) {
		ids <- params.ID
		return nil, nil
	})
	p.SetAdapter(a)

	errs := make(chan error, 1)
	go func() {
		_, err := p.Request(context.Background(), types.Request{Method: "signMessage"})
		errs <- err
	}()

	require.NoError(t, p.SendError(<-ids, "4001"))

	var rpcErr *types.RPCError
	require.ErrorAs(t, <-errs, &rpcErr)
	assert.Equal(t, 4001, rpcErr.Code)
}
