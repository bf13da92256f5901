package cosmos

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cosmos/btcutil/bech32"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/sigweihq/web3provider/pkg/utils"
)

// methodMap maps Keplr methods to the internal vocabulary
var methodMap = map[string]string{
	"signAmino":     constants.MethodSignTransaction,
	"signDirect":    constants.MethodSignTransaction,
	"signArbitrary": constants.MethodSignMessage,
	"sendTx":        constants.MethodSendTransaction,
}

type next func(ctx context.Context, req types.Request) (any, error)

// MobileAdapter maps Keplr methods to the method names mobile hosts handle
type MobileAdapter struct {
	provider *Provider
}

func NewMobileAdapter(provider *Provider) *MobileAdapter {
	return &MobileAdapter{provider: provider}
}

// Request rewrites getKey and the signing methods and passes anything else to fn
func (m *MobileAdapter) Request(ctx context.Context, req types.Request, fn next) (any, error) {
	if req.Method == "getKey" {
		return m.getKey(ctx, req.Params)
	}

	if method, ok := methodMap[req.Method]; ok {
		return m.provider.InternalRequest(ctx, types.Request{Method: method, Params: req.Params})
	}

	return fn(ctx, req)
}

// getKey synthesizes a Keplr key from the host's {address, pubKey} account
func (m *MobileAdapter) getKey(ctx context.Context, params any) (*Key, error) {
	res, err := m.provider.InternalRequest(ctx, types.Request{Method: constants.MethodRequestAccounts, Params: params})
	if err != nil {
		return nil, err
	}

	var account struct {
		Address string `json:"address"`
		PubKey  string `json:"pubKey"`
	}
	if err := utils.DecodeResult(res, &account); err != nil {
		return nil, fmt.Errorf("invalid requestAccounts response: %w", err)
	}

	pubKey, err := hex.DecodeString(strings.TrimPrefix(account.PubKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	addressBytes, err := decodeBech32(account.Address)
	if err != nil {
		return nil, err
	}

	return &Key{
		Algo:          "secp256k1",
		Address:       account.Address,
		Bech32Address: account.Address,
		PubKey:        pubKey,
		AddressBytes:  addressBytes,
	}, nil
}

// decodeBech32 returns the raw bytes of a bech32 account address
func decodeBech32(address string) ([]byte, error) {
	_, data, err := bech32.Decode(address, 1023)
	if err != nil {
		return nil, fmt.Errorf("invalid bech32 address %q: %w", address, err)
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("invalid bech32 address %q: %w", address, err)
	}
	return converted, nil
}
