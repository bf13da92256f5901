// Package evm implements the EIP-1193 Ethereum provider.
//
// Requests are handled in order:
//
//	static queries (eth_accounts, eth_chainId, ...)
//	    -> MobileAdapter (if enabled)
//	        -> host handler (InternalRequest) or RPC passthrough
package evm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sigweihq/web3provider/pkg/chains"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/sigweihq/web3provider/pkg/utils"
)

// Config holds the Ethereum provider configuration
type Config struct {
	// ChainID is the active chain id, hex (0x1) or decimal
	ChainID string `yaml:"chain_id"`

	// RPC is the primary JSON-RPC endpoint
	RPC string `yaml:"rpc"`

	// FallbackRPCs are tried in order when RPC fails
	FallbackRPCs []string `yaml:"fallback_rpcs"`

	OverwriteMetamask    bool `yaml:"overwrite_metamask"`
	IsTrust              bool `yaml:"is_trust"`
	DisableMobileAdapter bool `yaml:"disable_mobile_adapter"`

	// UnsupportedMethods extends the default list of rejected methods
	UnsupportedMethods []string `yaml:"unsupported_methods"`
}

// Endpoints returns the RPC endpoints in failover order
func (c *Config) Endpoints() []string {
	var endpoints []string
	if c.RPC != "" {
		endpoints = append(endpoints, c.RPC)
	}
	return append(endpoints, c.FallbackRPCs...)
}

// ConnectInfo is the payload of the connect event
type ConnectInfo struct {
	ChainID string `json:"chainId"`
}

// Provider is the EIP-1193 Ethereum provider
type Provider struct {
	*chains.BaseProvider

	overwriteMetamask bool
	isTrust           bool
	mobile            *MobileAdapter

	mu      sync.RWMutex
	chainID string
	address string
	rpc     RPC
}

// NewProvider creates an Ethereum provider and emits connect with the configured chain id
func NewProvider(cfg Config, logger *slog.Logger) (*Provider, error) {
	p := &Provider{
		BaseProvider:      chains.NewBaseProvider(constants.NetworkEthereum, logger),
		overwriteMetamask: cfg.OverwriteMetamask,
		isTrust:           cfg.IsTrust,
		chainID:           cfg.ChainID,
	}

	if endpoints := cfg.Endpoints(); len(endpoints) > 0 {
		server, err := NewRPCServer(endpoints, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create RPC server: %w", err)
		}
		p.rpc = server
	}

	if !cfg.DisableMobileAdapter {
		p.mobile = NewMobileAdapter(p, cfg.UnsupportedMethods...)
	}

	p.On(chains.EventResponseReady, p.onResponseReady)
	p.Connect()

	return p, nil
}

var _ chains.Provider = (*Provider)(nil)

// Connect emits connect with the current chain id
func (p *Provider) Connect() {
	p.Emit(chains.EventConnect, ConnectInfo{ChainID: p.ChainID()})
}

// Request implements chains.Provider
func (p *Provider) Request(ctx context.Context, req types.Request) (any, error) {
	if res, ok := p.handleStaticRequest(req.Method); ok {
		return res, nil
	}
	if p.mobile != nil {
		return p.mobile.Request(ctx, req)
	}
	return p.InternalRequest(ctx, req)
}

// InternalRequest sends req straight to the host, bypassing the MobileAdapter
func (p *Provider) InternalRequest(ctx context.Context, req types.Request) (any, error) {
	return p.BaseProvider.Request(ctx, req)
}

// handleStaticRequest answers methods that never reach the host
func (p *Provider) handleStaticRequest(method string) (any, bool) {
	switch method {
	case "net_version":
		version := p.NetworkVersion()
		if version == "" {
			return nil, true
		}
		return version, true
	case "eth_chainId":
		chainID := p.ChainID()
		if chainID == "" {
			return nil, true
		}
		return chainID, true
	case "eth_accounts", "eth_coinbase":
		return p.Accounts(), true
	}
	return nil, false
}

// Enable requests account access
//
// Deprecated: use Request with eth_requestAccounts.
func (p *Provider) Enable(ctx context.Context) (any, error) {
	return p.Request(ctx, types.Request{Method: "eth_requestAccounts"})
}

// Send issues method with positional params
//
// Deprecated: use Request.
func (p *Provider) Send(ctx context.Context, method string, params any) (any, error) {
	return p.Request(ctx, types.Request{Method: method, Params: params})
}

// SendSync answers static methods synchronously
//
// Deprecated: use Request.
func (p *Provider) SendSync(req types.Request) (*types.JSONRPCResponse, error) {
	res, ok := p.handleStaticRequest(req.Method)
	if !ok {
		return nil, types.NewRPCError(constants.ErrorCodeUnsupportedMethod, fmt.Sprintf(
			"EthereumProvider does not support calling %s synchronously without a callback. "+
				"Please provide a callback parameter to call %s asynchronously.", req.Method, req.Method))
	}
	return &types.JSONRPCResponse{JSONRPC: constants.JSONRPCVersion, Result: res}, nil
}

// SendAsync runs a batch of requests in the background and reports the
// results (in request order) or the first error to cb
//
// Deprecated: use Request.
func (p *Provider) SendAsync(ctx context.Context, cb func(results []any, err error), reqs ...types.Request) {
	go func() {
		results := make([]any, len(reqs))
		errs := make([]error, len(reqs))

		var wg sync.WaitGroup
		for i, req := range reqs {
			wg.Add(1)
			go func(i int, req types.Request) {
				defer wg.Done()
				results[i], errs[i] = p.Request(ctx, req)
			}(i, req)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				cb(nil, err)
				return
			}
		}
		cb(results, nil)
	}()
}

// onResponseReady keeps the cached address in sync with account responses
func (p *Provider) onResponseReady(payload any) {
	ready, ok := payload.(chains.ResponseReady)
	if !ok || ready.Result == nil {
		return
	}

	switch ready.Request.Method {
	case "eth_requestAccounts", constants.MethodRequestAccounts:
		var accounts []string
		if err := utils.DecodeResult(ready.Result, &accounts); err != nil {
			p.Logger().Warn("unexpected accounts response", "error", err)
			return
		}
		if len(accounts) > 0 {
			p.updateAddress(accounts[0])
		}
	case constants.MethodWalletRequestPermissions:
		if address := permittedAccount(ready.Result); address != "" {
			p.updateAddress(address)
		}
	}
}

type permission struct {
	ParentCapability string `json:"parentCapability"`
	Caveats          []struct {
		Type  string `json:"type"`
		Value any    `json:"value"`
	} `json:"caveats"`
}

// permittedAccount returns the first account of a restrictReturnedAccounts caveat
func permittedAccount(result any) string {
	var permissions []permission
	if err := utils.DecodeResult(result, &permissions); err != nil {
		return ""
	}
	for _, perm := range permissions {
		for _, caveat := range perm.Caveats {
			if caveat.Type != "restrictReturnedAccounts" {
				continue
			}
			if accounts := utils.ParamsSlice(caveat.Value); len(accounts) > 0 {
				if address, ok := accounts[0].(string); ok {
					return address
				}
			}
		}
	}
	return ""
}

func (p *Provider) updateAddress(address string) {
	p.mu.Lock()
	changed := p.address != address
	p.address = address
	p.mu.Unlock()

	if changed {
		p.Emit(chains.EventAccountsChanged, p.Accounts())
	}
}

// Disconnect clears the cached account and emits accountsChanged and disconnect
func (p *Provider) Disconnect() {
	p.mu.Lock()
	p.address = ""
	p.mu.Unlock()

	p.Emit(chains.EventAccountsChanged, []string{})
	p.Emit(chains.EventDisconnect, types.NewRPCError(constants.ErrorCodeDisconnected, "disconnected"))
}

// Accounts returns the cached account list ([] when not connected)
func (p *Provider) Accounts() []string {
	address := p.Address()
	if address == "" {
		return []string{}
	}
	return []string{address}
}

// Address returns the cached account
func (p *Provider) Address() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.address
}

// SetAddress overwrites the cached account
func (p *Provider) SetAddress(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.address = address
}

// ChainID returns the active chain id as configured
func (p *Provider) ChainID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chainID
}

// SetChainID switches the active chain and emits chainChanged when it differs
func (p *Provider) SetChainID(chainID string) {
	p.mu.Lock()
	changed := p.chainID != chainID
	p.chainID = chainID
	p.mu.Unlock()

	if changed {
		p.Emit(chains.EventChainChanged, chainID)
	}
}

// NetworkVersion returns the chain id in decimal, or "" when unset or malformed
func (p *Provider) NetworkVersion() string {
	chainID := p.ChainID()
	if chainID == "" {
		return ""
	}
	n, err := ParseChainID(chainID)
	if err != nil {
		return ""
	}
	return n.String()
}

// RPC returns the JSON-RPC passthrough (nil when not configured)
func (p *Provider) RPC() RPC {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rpc
}

// SetRPC replaces the JSON-RPC passthrough
func (p *Provider) SetRPC(rpc RPC) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rpc = rpc
}

// SetRPCURL replaces the JSON-RPC passthrough with one targeting url
func (p *Provider) SetRPCURL(url string) error {
	server, err := NewRPCServer([]string{url}, p.Logger())
	if err != nil {
		return err
	}
	p.SetRPC(server)
	return nil
}

// IsMetaMask reports whether the provider impersonates MetaMask
func (p *Provider) IsMetaMask() bool {
	return p.overwriteMetamask
}

// IsTrust reports whether the provider identifies as Trust Wallet
func (p *Provider) IsTrust() bool {
	return p.isTrust
}

// IsConnected always reports true; the host channel is not observable
func (p *Provider) IsConnected() bool {
	return true
}
