package ton

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sigweihq/web3provider/pkg/chains"
	"github.com/sigweihq/web3provider/pkg/constants"
)

// ProtocolVersion is the highest TonConnect protocol version the bridge speaks
const ProtocolVersion = 2

// Wallet event names
const (
	EventConnect      = "connect"
	EventConnectError = "connect_error"
	EventDisconnect   = "disconnect"
)

const walletEvent = "walletEvent"

type Feature struct {
	Name        string `json:"name" yaml:"name"`
	MaxMessages int    `json:"maxMessages,omitempty" yaml:"max_messages"`
}

type DeviceInfo struct {
	Platform           string    `json:"platform" yaml:"platform"`
	AppName            string    `json:"appName" yaml:"app_name"`
	AppVersion         string    `json:"appVersion" yaml:"app_version"`
	MaxProtocolVersion int       `json:"maxProtocolVersion" yaml:"max_protocol_version"`
	Features           []Feature `json:"features" yaml:"features"`
}

type WalletInfo struct {
	Name     string `json:"name" yaml:"name"`
	Image    string `json:"image" yaml:"image"`
	TonDNS   string `json:"tondns,omitempty" yaml:"tondns"`
	AboutURL string `json:"about_url" yaml:"about_url"`
}

// ConnectItem is a data item the app asks the wallet to share
type ConnectItem struct {
	Name    string `json:"name"`
	Payload string `json:"payload,omitempty"`
}

type ConnectRequest struct {
	ManifestURL string        `json:"manifestUrl"`
	Items       []ConnectItem `json:"items"`
}

// WalletEvent is delivered to listeners and returned by Connect, RestoreConnection and Disconnect
type WalletEvent struct {
	Event   string `json:"event"`
	ID      int    `json:"id,omitempty"`
	Payload any    `json:"payload"`
}

// ConnectPayload is the payload of a successful connect event
type ConnectPayload struct {
	Items  any         `json:"items"`
	Device *DeviceInfo `json:"device,omitempty"`
}

// AppRequest is an RPC request from the app. Params are JSON encoded.
type AppRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     string   `json:"id"`
}

// WalletResponse answers an AppRequest with either Result or Error
type WalletResponse struct {
	ID     string           `json:"id"`
	Result any              `json:"result,omitempty"`
	Error  *TonConnectError `json:"error,omitempty"`
}

// BridgeConfig describes the wallet to connecting apps
type BridgeConfig struct {
	IsWalletBrowser *bool       `yaml:"is_wallet_browser"`
	WalletInfo      *WalletInfo `yaml:"wallet_info"`
	DeviceInfo      *DeviceInfo `yaml:"device_info"`
}

// Bridge implements the TonConnect JS bridge methods on top of a Provider
type Bridge struct {
	DeviceInfo      *DeviceInfo
	WalletInfo      *WalletInfo
	IsWalletBrowser bool

	provider *Provider
	events   *chains.Emitter

	mu       sync.Mutex
	attempts int
}

// NewBridge creates a bridge for provider
func NewBridge(cfg BridgeConfig, provider *Provider) *Bridge {
	b := &Bridge{
		DeviceInfo:      cfg.DeviceInfo,
		WalletInfo:      cfg.WalletInfo,
		IsWalletBrowser: true,
		provider:        provider,
		events:          chains.NewEmitter(),
	}
	if cfg.IsWalletBrowser != nil {
		b.IsWalletBrowser = *cfg.IsWalletBrowser
	}
	return b
}

// Connect asks the wallet for the requested items
func (b *Bridge) Connect(ctx context.Context, protocolVersion int, req ConnectRequest) WalletEvent {
	if protocolVersion > ProtocolVersion {
		return b.emit(connectError(&TonConnectError{
			Code:    constants.TonConnectBadRequest,
			Message: "Unsupported protocol version",
		}, b.attemptCount()))
	}

	items, err := b.provider.Send(ctx, "tonConnect_connect", req)
	if err != nil {
		return b.emit(connectError(err, b.attemptCount()))
	}

	id := b.nextAttempt()
	if isConnectError(items) {
		return b.emit(WalletEvent{
			Event: EventConnectError,
			ID:    id,
			Payload: &TonConnectError{
				Code:    constants.TonConnectUserDeclined,
				Message: "User declined the transaction",
			},
		})
	}
	return b.emit(WalletEvent{
		Event:   EventConnect,
		ID:      id,
		Payload: ConnectPayload{Items: items, Device: b.DeviceInfo},
	})
}

// RestoreConnection reconnects with the address item only
func (b *Bridge) RestoreConnection(ctx context.Context) WalletEvent {
	items, err := b.provider.Send(ctx, "tonConnect_reconnect", []any{map[string]any{"name": "ton_addr"}})
	if err != nil {
		return b.emit(connectError(err, b.attemptCount()))
	}

	id := b.nextAttempt()
	if isConnectError(items) {
		m := items.(map[string]any)
		return b.emit(WalletEvent{Event: EventConnectError, ID: id, Payload: m["payload"]})
	}
	return b.emit(WalletEvent{
		Event:   EventConnect,
		ID:      id,
		Payload: ConnectPayload{Items: items, Device: b.DeviceInfo},
	})
}

// Send runs an app request as tonConnect_<method>
func (b *Bridge) Send(ctx context.Context, req AppRequest) WalletResponse {
	params := make([]any, 0, len(req.Params))
	for _, p := range req.Params {
		var v any
		if err := json.Unmarshal([]byte(p), &v); err != nil {
			return WalletResponse{ID: req.ID, Error: badRequest()}
		}
		params = append(params, v)
	}

	result, err := b.provider.Send(ctx, "tonConnect_"+req.Method, params)
	if err != nil {
		return WalletResponse{ID: req.ID, Error: toTonConnectError(err)}
	}
	return WalletResponse{ID: req.ID, Result: result}
}

// Disconnect tells the wallet the app disconnected
func (b *Bridge) Disconnect(ctx context.Context) (WalletEvent, error) {
	if _, err := b.provider.Send(ctx, "tonConnect_disconnect", map[string]any{}); err != nil {
		return WalletEvent{}, err
	}
	return b.emit(WalletEvent{Event: EventDisconnect, Payload: map[string]any{}}), nil
}

// Listen registers cb for every wallet event and returns a function removing it
func (b *Bridge) Listen(cb func(WalletEvent)) func() {
	sub := b.events.On(walletEvent, func(payload any) {
		cb(payload.(WalletEvent))
	})
	return func() { b.events.Off(sub) }
}

func (b *Bridge) emit(event WalletEvent) WalletEvent {
	b.events.Emit(walletEvent, event)
	return event
}

func (b *Bridge) attemptCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

func (b *Bridge) nextAttempt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	return b.attempts
}

func connectError(err error, id int) WalletEvent {
	code, _ := errorCode(err)
	return WalletEvent{
		Event:   EventConnectError,
		ID:      id,
		Payload: &TonConnectError{Code: code, Message: err.Error()},
	}
}

func isConnectError(items any) bool {
	m, ok := items.(map[string]any)
	return ok && m["event"] == EventConnectError
}
