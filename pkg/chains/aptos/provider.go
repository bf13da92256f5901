// Package aptos implements the Aptos wallet provider.
package aptos

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sigweihq/web3provider/pkg/chains"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/sigweihq/web3provider/pkg/utils"
)

const messagePrefix = "APTOS"

// Config holds the Aptos provider configuration
type Config struct {
	Network string `yaml:"network"`
	ChainID string `yaml:"chain_id"`

	// Application is the dapp origin (scheme://host) included in signed messages
	Application string `yaml:"application"`
}

// Account is the connected account
type Account struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
}

// SignMessagePayload selects what goes into the signed message. The boolean
// fields include the provider's own address, application and chain id.
type SignMessagePayload struct {
	Address     bool   `json:"address,omitempty"`
	Application bool   `json:"application,omitempty"`
	ChainID     bool   `json:"chainId,omitempty"`
	Message     string `json:"message"`
	Nonce       string `json:"nonce"`
}

// SignMessageResponse is returned by SignMessage
type SignMessageResponse struct {
	Address     string `json:"address"`
	Application string `json:"application"`
	ChainID     string `json:"chainId"`
	FullMessage string `json:"fullMessage"`
	Message     string `json:"message"`
	Nonce       string `json:"nonce"`
	Prefix      string `json:"prefix"`
	Signature   any    `json:"signature"`
}

// SubmitResult is returned by SignAndSubmitTransaction
type SubmitResult struct {
	Hash string `json:"hash"`
}

// Provider is the Aptos wallet provider
type Provider struct {
	*chains.BaseProvider

	mu          sync.RWMutex
	network     string
	chainID     string
	application string
	address     string
	connected   bool
}

// NewProvider creates an Aptos provider
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	return &Provider{
		BaseProvider: chains.NewBaseProvider(constants.NetworkAptos, logger),
		network:      cfg.Network,
		chainID:      cfg.ChainID,
		application:  cfg.Application,
	}
}

var _ chains.Provider = (*Provider)(nil)

// SetConfig replaces the network, address and chain id
func (p *Provider) SetConfig(network, address, chainID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.network = network
	p.address = address
	p.chainID = chainID
}

// Connect fetches the account and emits connect
func (p *Provider) Connect(ctx context.Context) (*Account, error) {
	account, err := p.Account(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	p.Emit(chains.EventConnect, account)
	return account, nil
}

func (p *Provider) Disconnect() {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()

	p.Emit(chains.EventDisconnect, nil)
}

func (p *Provider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// NetworkName returns the configured Aptos network (mainnet, testnet...)
func (p *Provider) NetworkName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.network
}

func (p *Provider) ChainID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chainID
}

// Address returns the last known account address
func (p *Provider) Address() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.address
}

// Account asks the host for the current account
func (p *Provider) Account(ctx context.Context) (*Account, error) {
	res, err := p.Request(ctx, types.Request{
		Method: constants.MethodRequestAccounts,
		Params: map[string]any{},
	})
	if err != nil {
		return nil, err
	}

	var account Account
	if err := utils.DecodeResult(res, &account); err != nil {
		return nil, fmt.Errorf("invalid requestAccounts response: %w", err)
	}

	p.mu.Lock()
	p.address = account.Address
	p.mu.Unlock()
	return &account, nil
}

// SignMessage builds the APTOS message for payload and has the host sign it
func (p *Provider) SignMessage(ctx context.Context, payload SignMessagePayload) (*SignMessageResponse, error) {
	account, err := p.Account(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	application, chainID := p.application, p.chainID
	p.mu.RUnlock()

	fullMessage := FullMessage(payload, account.Address, application, chainID)

	signature, err := p.Request(ctx, types.Request{
		Method: constants.MethodSignMessage,
		Params: map[string]any{"data": utils.BufferToHex([]byte(fullMessage))},
	})
	if err != nil {
		return nil, err
	}

	return &SignMessageResponse{
		Address:     account.Address,
		Application: application,
		ChainID:     chainID,
		FullMessage: fullMessage,
		Message:     payload.Message,
		Nonce:       payload.Nonce,
		Prefix:      messagePrefix,
		Signature:   signature,
	}, nil
}

// FullMessage lays out the message an Aptos wallet signs
func FullMessage(payload SignMessagePayload, address, application, chainID string) string {
	var b strings.Builder
	b.WriteString(messagePrefix)
	if payload.Address {
		b.WriteString("\naddress: " + address)
	}
	if payload.Application {
		b.WriteString("\napplication: " + application)
	}
	if payload.ChainID {
		b.WriteString("\nchainId: " + chainID)
	}
	b.WriteString("\nmessage: " + payload.Message)
	b.WriteString("\nnonce: " + payload.Nonce)
	return b.String()
}

// SignTransaction has the host sign tx and returns the decoded signed transaction
func (p *Provider) SignTransaction(ctx context.Context, tx any) (json.RawMessage, error) {
	res, err := p.Request(ctx, types.Request{
		Method: constants.MethodSignTransaction,
		Params: map[string]any{"data": tx},
	})
	if err != nil {
		return nil, err
	}

	encoded, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("signTransaction: expected hex, got %T", res)
	}
	signed := json.RawMessage(utils.MessageToBuffer(encoded))
	if !json.Valid(signed) {
		return nil, fmt.Errorf("signTransaction: signed transaction is not JSON")
	}
	return signed, nil
}

// SignAndSubmitTransaction signs tx and has the host submit it
func (p *Provider) SignAndSubmitTransaction(ctx context.Context, tx any) (*SubmitResult, error) {
	signed, err := p.SignTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}

	res, err := p.Request(ctx, types.Request{
		Method: constants.MethodSendTransaction,
		Params: map[string]any{"tx": signed},
	})
	if err != nil {
		return nil, err
	}

	encoded, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("sendTransaction: expected hex, got %T", res)
	}
	return &SubmitResult{Hash: string(utils.MessageToBuffer(encoded))}, nil
}
