// Package bitcoin implements the wallet-standard Bitcoin provider.
package bitcoin

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/sigweihq/web3provider/pkg/chains"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/sigweihq/web3provider/pkg/utils"
)

var ErrUnknownNetwork = errors.New("unknown bitcoin network")

// Config holds the Bitcoin provider configuration
type Config struct {
	// Network is one of mainnet, testnet, signet or regtest (default mainnet)
	Network              string `yaml:"network"`
	DisableMobileAdapter bool   `yaml:"disable_mobile_adapter"`
}

// Account is a wallet account as reported by the host
type Account struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
}

// SignPSBTOptions are forwarded to the host with signPSBT
type SignPSBTOptions struct {
	AutoFinalized bool `json:"autoFinalized"`
}

// PushPSBTResult is returned by PushPSBT
type PushPSBTResult struct {
	TxID string `json:"txid"`
}

// Provider is the wallet-standard Bitcoin provider
type Provider struct {
	*chains.BaseProvider

	params *chaincfg.Params
	wallet *Wallet

	mu        sync.RWMutex
	connected bool
	accounts  []Account
}

// NetworkParams resolves a network name to its chain parameters
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}
}

// NewProvider creates a Bitcoin provider
func NewProvider(cfg Config, logger *slog.Logger) (*Provider, error) {
	params, err := NetworkParams(cfg.Network)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		BaseProvider: chains.NewBaseProvider(constants.NetworkBitcoin, logger),
		params:       params,
	}
	if !cfg.DisableMobileAdapter {
		p.wallet = NewWallet(p)
	}
	return p, nil
}

var _ chains.Provider = (*Provider)(nil)

// Params returns the chain parameters addresses are validated against
func (p *Provider) Params() *chaincfg.Params {
	return p.params
}

// Wallet returns the wallet-standard view of the provider, or nil when disabled
func (p *Provider) Wallet() *Wallet {
	return p.wallet
}

// RequestAccounts asks the host for its accounts and emits accountsChanged
func (p *Provider) RequestAccounts(ctx context.Context) ([]Account, error) {
	res, err := p.Request(ctx, types.Request{
		Method: constants.MethodRequestAccounts,
		Params: map[string]any{},
	})
	if err != nil {
		return nil, err
	}

	var accounts []Account
	if err := utils.DecodeResult(res, &accounts); err != nil {
		return nil, fmt.Errorf("invalid requestAccounts response: %w", err)
	}
	for _, account := range accounts {
		if err := p.validateAddress(account.Address); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	p.accounts = accounts
	p.mu.Unlock()

	p.Emit(chains.EventAccountsChanged, accounts)
	return accounts, nil
}

// Connect requests the accounts and emits connect
func (p *Provider) Connect(ctx context.Context) ([]Account, error) {
	accounts, err := p.RequestAccounts(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	p.Emit(chains.EventConnect, accounts)
	return accounts, nil
}

// Disconnect forgets the accounts and emits disconnect
func (p *Provider) Disconnect() {
	p.mu.Lock()
	p.connected = false
	p.accounts = nil
	p.mu.Unlock()

	p.Emit(chains.EventDisconnect, nil)
}

func (p *Provider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// GetAccounts returns a copy of the known accounts
func (p *Provider) GetAccounts() []Account {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Account(nil), p.accounts...)
}

// SignMessage has the host sign message with address
func (p *Provider) SignMessage(ctx context.Context, address string, message []byte) ([]byte, error) {
	if err := p.validateAddress(address); err != nil {
		return nil, err
	}

	res, err := p.Request(ctx, types.Request{
		Method: constants.MethodSignMessage,
		Params: map[string]any{
			"message":        utils.BufferToHex(message),
			"address":        address,
			"originalMethod": constants.MethodSignMessage,
		},
	})
	if err != nil {
		return nil, err
	}

	signature, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("signMessage: expected hex signature, got %T", res)
	}
	return utils.HexToBuffer(signature)
}

// SignPSBT has the host sign a hex encoded PSBT and returns the signed PSBT as hex
func (p *Provider) SignPSBT(ctx context.Context, psbtHex string, opts SignPSBTOptions) (string, error) {
	packet, err := parsePSBT(psbtHex)
	if err != nil {
		return "", err
	}
	b64, err := packet.B64Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode PSBT: %w", err)
	}

	res, err := p.Request(ctx, types.Request{
		Method: constants.MethodSignPSBT,
		Params: map[string]any{
			"psbtHex":    strings.TrimPrefix(psbtHex, "0x"),
			"psbtBase64": b64,
			"options":    opts,
		},
	})
	if err != nil {
		return "", err
	}

	signed, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("signPSBT: expected PSBT, got %T", res)
	}
	return normalizePSBT(signed)
}

// PushPSBT has the host broadcast a finalized PSBT
func (p *Provider) PushPSBT(ctx context.Context, psbtHex string) (*PushPSBTResult, error) {
	res, err := p.Request(ctx, types.Request{
		Method: constants.MethodPushPSBT,
		Params: map[string]any{"psbtHex": psbtHex},
	})
	if err != nil {
		return nil, err
	}

	var out PushPSBTResult
	if err := utils.DecodeResult(res, &out); err != nil {
		return nil, fmt.Errorf("invalid pushPSBT response: %w", err)
	}
	return &out, nil
}

// SignIn is not supported by Bitcoin hosts
func (p *Provider) SignIn(context.Context, any) (any, error) {
	return nil, types.NewRPCError(constants.ErrorCodeUnsupportedMethod, "BitcoinProvider does not support signIn")
}

func (p *Provider) validateAddress(address string) error {
	addr, err := btcutil.DecodeAddress(address, p.params)
	if err != nil {
		return fmt.Errorf("invalid bitcoin address %q: %w", address, err)
	}
	if !addr.IsForNet(p.params) {
		return fmt.Errorf("address %q is not valid on %s", address, p.params.Name)
	}
	return nil
}

func parsePSBT(psbtHex string) (*psbt.Packet, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(psbtHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid PSBT hex: %w", err)
	}
	packet, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return nil, fmt.Errorf("invalid PSBT: %w", err)
	}
	return packet, nil
}

// normalizePSBT accepts a hex or base64 PSBT and returns it as hex
func normalizePSBT(s string) (string, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		if raw, err = base64.StdEncoding.DecodeString(s); err != nil {
			return "", fmt.Errorf("signPSBT: PSBT is neither hex nor base64")
		}
	}
	if _, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false); err != nil {
		return "", fmt.Errorf("signPSBT: invalid PSBT: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
