// Package svm implements the wallet-standard Solana provider.
package svm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cosmos/btcutil/base58"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/sigweihq/web3provider/pkg/chains"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/sigweihq/web3provider/pkg/utils"
)

var ErrNotConnected = errors.New("solana provider is not connected")

// Config holds the Solana provider configuration
type Config struct {
	// Cluster is the RPC URL used by SignAndSendTransaction. When empty the
	// signed transaction is handed to the host instead.
	Cluster string `yaml:"cluster"`

	UseLegacySign        bool `yaml:"use_legacy_sign"`
	DisableMobileAdapter bool `yaml:"disable_mobile_adapter"`
	IsTrust              bool `yaml:"is_trust"`
}

// ConnectOptions are the wallet-standard connect options
type ConnectOptions struct {
	OnlyIfTrusted bool `json:"onlyIfTrusted,omitempty"`
}

// SignMessageResult is returned by SignMessage
type SignMessageResult struct {
	Signature []byte `json:"signature"`
	PublicKey string `json:"publicKey,omitempty"`
}

// SendResult is returned by SignAndSendTransaction
type SendResult struct {
	Signature string `json:"signature"`
}

// Provider is the Solana wallet-standard provider
type Provider struct {
	*chains.BaseProvider

	isTrust bool
	mobile  *MobileAdapter
	cluster *ClusterClient

	mu        sync.RWMutex
	publicKey *solana.PublicKey
}

// NewProvider creates a Solana provider
func NewProvider(cfg Config, logger *slog.Logger) (*Provider, error) {
	p := &Provider{
		BaseProvider: chains.NewBaseProvider(constants.NetworkSolana, logger),
		isTrust:      cfg.IsTrust,
	}

	if cfg.Cluster != "" {
		cluster, err := NewClusterClient(cfg.Cluster, p.Logger())
		if err != nil {
			return nil, fmt.Errorf("failed to create cluster client: %w", err)
		}
		p.cluster = cluster
	}

	if !cfg.DisableMobileAdapter {
		p.mobile = NewMobileAdapter(p, cfg.UseLegacySign)
	}

	return p, nil
}

var _ chains.Provider = (*Provider)(nil)

// Request implements chains.Provider, routing through the MobileAdapter when enabled
func (p *Provider) Request(ctx context.Context, req types.Request) (any, error) {
	if p.mobile != nil {
		return p.mobile.Request(ctx, req, p.InternalRequest)
	}
	return p.InternalRequest(ctx, req)
}

// InternalRequest sends req straight to the host
func (p *Provider) InternalRequest(ctx context.Context, req types.Request) (any, error) {
	return p.BaseProvider.Request(ctx, req)
}

// Connect requests the wallet's public key and emits connect
func (p *Provider) Connect(ctx context.Context, opts *ConnectOptions) (solana.PublicKey, error) {
	res, err := p.Request(ctx, types.Request{
		Method: constants.MethodConnect,
		Params: map[string]any{"options": opts},
	})
	if err != nil {
		return solana.PublicKey{}, err
	}

	pk, ok := res.(solana.PublicKey)
	if !ok {
		var out struct {
			PublicKey string `json:"publicKey"`
		}
		if err := utils.DecodeResult(res, &out); err != nil {
			return solana.PublicKey{}, fmt.Errorf("invalid connect response: %w", err)
		}
		pk, err = solana.PublicKeyFromBase58(out.PublicKey)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("invalid public key %q: %w", out.PublicKey, err)
		}
	}

	p.mu.Lock()
	p.publicKey = &pk
	p.mu.Unlock()

	p.Emit(chains.EventConnect, pk.String())
	return pk, nil
}

// Disconnect forgets the public key and emits disconnect
func (p *Provider) Disconnect() {
	p.mu.Lock()
	p.publicKey = nil
	p.mu.Unlock()

	p.Emit(chains.EventDisconnect, nil)
}

// PublicKey returns the connected key, or nil
func (p *Provider) PublicKey() *solana.PublicKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.publicKey == nil {
		return nil
	}
	pk := *p.publicKey
	return &pk
}

// IsConnected reports whether a public key is known
func (p *Provider) IsConnected() bool {
	return p.PublicKey() != nil
}

// IsTrust reports whether the provider identifies as Trust Wallet
func (p *Provider) IsTrust() bool {
	return p.isTrust
}

// SignTransaction has the host sign tx
func (p *Provider) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if p.mobile != nil {
		res, err := p.Request(ctx, types.Request{Method: constants.MethodSignTransaction, Params: tx})
		if err != nil {
			return nil, err
		}
		signed, ok := res.(*solana.Transaction)
		if !ok {
			return nil, fmt.Errorf("signTransaction: expected transaction, got %T", res)
		}
		return signed, nil
	}

	raw, err := serializeUnsigned(tx)
	if err != nil {
		return nil, err
	}
	res, err := p.InternalRequest(ctx, types.Request{
		Method: constants.MethodSignTransaction,
		Params: map[string]any{"transaction": base64.StdEncoding.EncodeToString(raw)},
	})
	if err != nil {
		return nil, err
	}

	encoded, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("signTransaction: expected base64 transaction, got %T", res)
	}
	signed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("signTransaction: invalid base64: %w", err)
	}
	return decodeTransaction(signed)
}

// SignAllTransactions signs each transaction in order
func (p *Provider) SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	signed := make([]*solana.Transaction, 0, len(txs))
	for i, tx := range txs {
		s, err := p.SignTransaction(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		signed = append(signed, s)
	}
	return signed, nil
}

// SignSerializedTransaction decodes a wire-format transaction and signs it
func (p *Provider) SignSerializedTransaction(ctx context.Context, raw []byte) (*solana.Transaction, error) {
	tx, err := decodeTransaction(raw)
	if err != nil {
		return nil, err
	}
	return p.SignTransaction(ctx, tx)
}

// SignRawTransactionMulti asks the host to sign a batch in one round trip
func (p *Provider) SignRawTransactionMulti(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	params := make([]map[string]any, 0, len(txs))
	for _, tx := range txs {
		tp, err := rawTransactionParams(tx)
		if err != nil {
			return nil, err
		}
		params = append(params, tp)
	}

	res, err := p.Request(ctx, types.Request{
		Method: constants.MethodSignRawTransactionMulti,
		Params: map[string]any{"transactions": params},
	})
	if err != nil {
		return nil, err
	}

	var encoded []string
	if err := utils.DecodeResult(res, &encoded); err != nil {
		return nil, fmt.Errorf("invalid signRawTransactionMulti response: %w", err)
	}
	if len(encoded) != len(txs) {
		return nil, fmt.Errorf("expected %d signatures, got %d", len(txs), len(encoded))
	}

	for i, s := range encoded {
		sig, err := decodeSignature(s)
		if err != nil {
			return nil, err
		}
		if _, err := p.mapSignedTransaction(txs[i], sig); err != nil {
			return nil, err
		}
	}
	return txs, nil
}

// SignMessage has the host sign arbitrary bytes
func (p *Provider) SignMessage(ctx context.Context, message []byte) (*SignMessageResult, error) {
	res, err := p.Request(ctx, types.Request{
		Method: constants.MethodSignMessage,
		Params: map[string]any{"data": utils.BufferToHex(message)},
	})
	if err != nil {
		return nil, err
	}

	encoded, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("signMessage: expected hex signature, got %T", res)
	}

	result := &SignMessageResult{Signature: utils.MessageToBuffer(encoded)}
	if pk := p.PublicKey(); pk != nil {
		result.PublicKey = pk.String()
	}
	return result, nil
}

// SignAndSendTransaction signs tx and submits it to the cluster, or to the
// host when no cluster is configured
func (p *Provider) SignAndSendTransaction(ctx context.Context, tx *solana.Transaction, opts *SendOptions) (*SendResult, error) {
	signed, err := p.SignTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	if p.cluster != nil {
		sig, err := p.cluster.SendRawTransaction(ctx, raw, opts)
		if err != nil {
			return nil, err
		}
		return &SendResult{Signature: sig.String()}, nil
	}

	res, err := p.Request(ctx, types.Request{
		Method: constants.MethodSendRawTransaction,
		Params: map[string]any{"raw": base58.Encode(raw)},
	})
	if err != nil {
		return nil, err
	}
	sig, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("sendRawTransaction: expected signature, got %T", res)
	}
	return &SendResult{Signature: sig}, nil
}

// SignIn is not supported by any host
func (p *Provider) SignIn(context.Context, any) (any, error) {
	return nil, types.NewRPCError(constants.ErrorCodeUnsupportedMethod, "SolanaProvider does not support signIn")
}

// mapSignedTransaction stores sig in the connected key's signer slot
func (p *Provider) mapSignedTransaction(tx *solana.Transaction, sig solana.Signature) (*solana.Transaction, error) {
	pk := p.PublicKey()
	if pk == nil {
		return nil, ErrNotConnected
	}

	numSigners := int(tx.Message.Header.NumRequiredSignatures)
	position := -1
	for i := 0; i < numSigners && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(*pk) {
			position = i
			break
		}
	}
	if position == -1 {
		return nil, fmt.Errorf("%s is not a signer of the transaction", pk)
	}

	if len(tx.Signatures) < numSigners {
		signatures := make([]solana.Signature, numSigners)
		copy(signatures, tx.Signatures)
		tx.Signatures = signatures
	}
	tx.Signatures[position] = sig
	return tx, nil
}

func decodeTransaction(raw []byte) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return tx, nil
}
