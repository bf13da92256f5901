// Package tron implements the TronLink-compatible Tron provider.
package tron

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fbsobreira/gotron-sdk/pkg/address"
	"github.com/sigweihq/web3provider/pkg/chains"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/sigweihq/web3provider/pkg/utils"
)

var ErrInvalidTransaction = errors.New("Invalid TX format")

// Config holds the Tron provider configuration
type Config struct {
	// Node is the full node URL handed to dapps
	Node string `yaml:"node"`
}

// Response is the TronLink answer to tron_requestAccounts
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Provider is the TronLink-compatible Tron provider
type Provider struct {
	*chains.BaseProvider

	mu      sync.RWMutex
	node    string
	address string
	ready   bool
}

// NewProvider creates a Tron provider
func NewProvider(cfg Config, logger *slog.Logger) (*Provider, error) {
	p := &Provider{
		BaseProvider: chains.NewBaseProvider(constants.NetworkTron, logger),
	}
	if cfg.Node != "" {
		if err := p.SetNode(cfg.Node); err != nil {
			return nil, err
		}
	}
	return p, nil
}

var _ chains.Provider = (*Provider)(nil)

// Request implements chains.Provider. Only tron_requestAccounts reaches the
// host; every other method resolves to nil.
func (p *Provider) Request(ctx context.Context, req types.Request) (any, error) {
	switch req.Method {
	case "tron_requestAccounts":
		return p.requestAccounts(ctx), nil
	}
	return nil, nil
}

func (p *Provider) internalRequest(ctx context.Context, method string, params any) (any, error) {
	return p.BaseProvider.Request(ctx, types.Request{Method: method, Params: params})
}

// Connect is tron_requestAccounts
func (p *Provider) Connect(ctx context.Context) Response {
	return p.requestAccounts(ctx)
}

func (p *Provider) requestAccounts(ctx context.Context) Response {
	res, err := p.internalRequest(ctx, constants.MethodRequestAccounts, map[string]any{})
	if err != nil {
		p.Logger().Error("requestAccounts failed", "error", err)
		return Response{Code: constants.ErrorCodeUserRejected, Message: err.Error()}
	}

	var accounts []string
	if err := utils.DecodeResult(res, &accounts); err != nil || len(accounts) == 0 {
		return Response{Code: constants.ErrorCodeUserRejected, Message: "no accounts returned"}
	}

	account, err := NormalizeAddress(accounts[0])
	if err != nil {
		p.Logger().Error("invalid account", "account", accounts[0], "error", err)
		return Response{Code: constants.ErrorCodeUserRejected, Message: err.Error()}
	}

	p.mu.Lock()
	p.address = account
	p.ready = true
	p.mu.Unlock()

	p.Emit(chains.EventAccountsChanged, []string{account})
	p.Emit(chains.EventConnect, nil)
	return Response{Code: 200, Message: "User allowed the request."}
}

// SignMessageV2 has the host sign data
func (p *Provider) SignMessageV2(ctx context.Context, data any) (any, error) {
	return p.internalRequest(ctx, constants.MethodSignMessage, map[string]any{
		"data":      data,
		"isEthSign": false,
	})
}

// Sign signs a message (string) or a transaction (object)
func (p *Provider) Sign(ctx context.Context, tx any) (any, error) {
	switch tx.(type) {
	case nil:
		return nil, ErrInvalidTransaction
	case string:
		return p.SignMessageV2(ctx, tx)
	}

	if _, err := utils.ToMap(tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	return p.internalRequest(ctx, constants.MethodSignTransaction, map[string]any{
		"transaction": tx,
		"raw":         false,
	})
}

// SetNode sets the full node URL
func (p *Provider) SetNode(url string) error {
	if err := utils.ValidateRPCURL(url); err != nil {
		return fmt.Errorf("invalid tron node: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.node = url
	return nil
}

func (p *Provider) Node() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.node
}

// Address returns the base58 account, or "" before connecting
func (p *Provider) Address() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.address
}

// Ready reports whether an account was granted
func (p *Provider) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

// Disconnect forgets the account and emits accountsChanged and disconnect
func (p *Provider) Disconnect() {
	p.mu.Lock()
	p.address = ""
	p.ready = false
	p.mu.Unlock()

	p.Emit(chains.EventAccountsChanged, []string{})
	p.Emit(chains.EventDisconnect, nil)
}

// NormalizeAddress returns the base58 form of a base58 or hex (41…) Tron address
func NormalizeAddress(account string) (string, error) {
	s := strings.TrimPrefix(account, "0x")
	if len(s) == 2*address.AddressLength && strings.HasPrefix(s, "41") {
		raw, err := hex.DecodeString(s)
		if err != nil {
			return "", fmt.Errorf("invalid tron address %q: %w", account, err)
		}
		return address.Address(raw).String(), nil
	}

	addr, err := address.Base58ToAddress(account)
	if err != nil {
		return "", fmt.Errorf("invalid tron address %q: %w", account, err)
	}
	return addr.String(), nil
}
