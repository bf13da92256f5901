package svm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cosmos/btcutil/base58"
	"github.com/gagliardetto/solana-go"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/sigweihq/web3provider/pkg/utils"
)

// next continues a request past the MobileAdapter
type next func(ctx context.Context, req types.Request) (any, error)

// MobileAdapter maps wallet-standard methods to the method names and params
// mobile and extension hosts understand
type MobileAdapter struct {
	provider      *Provider
	useLegacySign bool
}

// NewMobileAdapter creates a MobileAdapter. useLegacySign selects the
// base58 message path for hosts that predate versioned transactions.
func NewMobileAdapter(provider *Provider, useLegacySign bool) *MobileAdapter {
	return &MobileAdapter{provider: provider, useLegacySign: useLegacySign}
}

// Request handles connect and signTransaction and passes anything else to fn
func (m *MobileAdapter) Request(ctx context.Context, req types.Request, fn next) (any, error) {
	switch req.Method {
	case constants.MethodConnect:
		return m.connect(ctx, req.Params)
	case constants.MethodSignTransaction:
		tx, ok := req.Params.(*solana.Transaction)
		if !ok {
			return nil, fmt.Errorf("signTransaction expects *solana.Transaction, got %T", req.Params)
		}
		return m.SignTransaction(ctx, tx)
	}
	return fn(ctx, req)
}

func (m *MobileAdapter) connect(ctx context.Context, params any) (solana.PublicKey, error) {
	res, err := m.provider.InternalRequest(ctx, types.Request{Method: constants.MethodRequestAccounts, Params: params})
	if err != nil {
		return solana.PublicKey{}, err
	}

	var addresses []string
	if err := utils.DecodeResult(res, &addresses); err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid requestAccounts response: %w", err)
	}
	if len(addresses) == 0 {
		return solana.PublicKey{}, errors.New("requestAccounts returned no accounts")
	}

	pk, err := solana.PublicKeyFromBase58(addresses[0])
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid account %q: %w", addresses[0], err)
	}
	return pk, nil
}

// SignTransaction asks the host for the connected key's signature and attaches it to tx
func (m *MobileAdapter) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	method := constants.MethodSignRawTransaction
	params, err := rawTransactionParams(tx)
	if m.useLegacySign {
		method = constants.MethodSignTransaction
		params, err = legacyTransactionParams(tx)
	}
	if err != nil {
		return nil, err
	}

	res, err := m.provider.InternalRequest(ctx, types.Request{Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	sig, err := decodeSignature(res)
	if err != nil {
		return nil, err
	}
	return m.provider.mapSignedTransaction(tx, sig)
}

// legacyTransactionParams builds {message: base58(message bytes)}
func legacyTransactionParams(tx *solana.Transaction) (map[string]any, error) {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return map[string]any{"message": base58.Encode(message)}, nil
}

// rawTransactionParams builds {data, raw, rawMessage, version} for hosts
// that sign serialized (possibly versioned) transactions
func rawTransactionParams(tx *solana.Transaction) (map[string]any, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	raw, err := serializeUnsigned(tx)
	if err != nil {
		return nil, err
	}

	var version any = "legacy"
	if tx.Message.IsVersioned() {
		version = 0
	}

	return map[string]any{
		"data":       string(data),
		"raw":        base64.StdEncoding.EncodeToString(raw),
		"rawMessage": base64.StdEncoding.EncodeToString(message),
		"version":    version,
	}, nil
}

// serializeUnsigned serializes tx with a signature slot for every required
// signer; slots without a signature are zeroed
func serializeUnsigned(tx *solana.Transaction) ([]byte, error) {
	unsigned := *tx
	unsigned.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	copy(unsigned.Signatures, tx.Signatures)

	raw, err := unsigned.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return raw, nil
}

// decodeSignature accepts a base58 signature string or {signature}
func decodeSignature(res any) (solana.Signature, error) {
	encoded, ok := res.(string)
	if !ok {
		var out struct {
			Signature string `json:"signature"`
		}
		if err := utils.DecodeResult(res, &out); err != nil {
			return solana.Signature{}, fmt.Errorf("invalid signature response: %w", err)
		}
		encoded = out.Signature
	}

	sig, err := solana.SignatureFromBase58(encoded)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid signature %q: %w", encoded, err)
	}
	return sig, nil
}
