package chains

import (
	"context"

	"github.com/sigweihq/web3provider/pkg/adapter"
	"github.com/sigweihq/web3provider/pkg/types"
)

// Provider is implemented by every chain provider
type Provider interface {
	// Network returns the fixed network tag (e.g., "ethereum", "solana")
	Network() string

	// SetAdapter attaches the transport used to reach the host
	SetAdapter(a adapter.Adapter)

	// Request sends a request through the provider
	Request(ctx context.Context, req types.Request) (any, error)

	// SendResponse resolves a pending callback request
	SendResponse(id string, result any) error

	// SendError rejects a pending callback request
	SendError(id string, reason any) error
}

// Events emitted by providers
const (
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventMessage         = "message"

	// EventResponseReady fires after every successful request with a ResponseReady payload
	EventResponseReady = "onResponseReady"
)

// ResponseReady is the payload of EventResponseReady
type ResponseReady struct {
	Request types.Request
	Result  any
}
