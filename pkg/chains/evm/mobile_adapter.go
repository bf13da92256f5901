package evm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/sigweihq/web3provider/pkg/utils"
)

var defaultUnsupportedMethods = []string{
	"eth_newFilter",
	"eth_newBlockFilter",
	"eth_newPendingTransactionFilter",
	"eth_uninstallFilter",
	"eth_subscribe",
}

const erc20MetadataABI = `[
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var erc20ABI = mustParseABI(erc20MetadataABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("failed to parse contract ABI: %v", err))
	}
	return parsed
}

// MobileAdapter rewrites EIP-1193 methods into the host's internal vocabulary
// and falls back to the RPC passthrough for everything it does not handle
type MobileAdapter struct {
	provider    *Provider
	unsupported map[string]struct{}
}

// NewMobileAdapter creates a MobileAdapter for provider. extraUnsupported is
// appended to the default list of rejected methods.
func NewMobileAdapter(provider *Provider, extraUnsupported ...string) *MobileAdapter {
	unsupported := make(map[string]struct{}, len(defaultUnsupportedMethods)+len(extraUnsupported))
	for _, m := range defaultUnsupportedMethods {
		unsupported[m] = struct{}{}
	}
	for _, m := range extraUnsupported {
		unsupported[m] = struct{}{}
	}
	return &MobileAdapter{provider: provider, unsupported: unsupported}
}

// Request translates req and forwards it to the host or the RPC passthrough
func (m *MobileAdapter) Request(ctx context.Context, req types.Request) (any, error) {
	if _, ok := m.unsupported[req.Method]; ok {
		return nil, UnsupportedMethodError(req.Method)
	}

	switch req.Method {
	case constants.MethodWalletRequestPermissions:
		return m.internal(ctx, constants.MethodWalletRequestPermissions, req.Params)
	case "eth_requestAccounts":
		return m.internal(ctx, constants.MethodRequestAccounts, map[string]any{})
	case "eth_sign":
		return m.ethSign(ctx, req.Params)
	case "personal_sign":
		return m.personalSign(ctx, req.Params)
	case "personal_ecRecover":
		return m.personalECRecover(ctx, req.Params)
	case "eth_signTypedData", "eth_signTypedData_v1", "eth_signTypedData_v3", "eth_signTypedData_v4":
		return m.ethSignTypedData(ctx, req.Params, typedDataVersions[req.Method])
	case "eth_sendTransaction":
		return m.firstParam(ctx, constants.MethodSignTransaction, req.Params)
	case "wallet_watchAsset":
		return m.watchAsset(ctx, req.Params)
	case "wallet_addEthereumChain":
		return m.firstParam(ctx, constants.MethodAddEthereumChain, req.Params)
	case "wallet_switchEthereumChain":
		return m.firstParam(ctx, constants.MethodSwitchEthereumChain, req.Params)
	default:
		rpc := m.provider.RPC()
		if rpc == nil {
			return nil, fmt.Errorf("cannot forward %s: %w", req.Method, ErrRPCNotConfigured)
		}
		return rpc.Call(ctx, req.Method, req.Params)
	}
}

func (m *MobileAdapter) internal(ctx context.Context, method string, params any) (any, error) {
	return m.provider.InternalRequest(ctx, types.Request{Method: method, Params: params})
}

func (m *MobileAdapter) firstParam(ctx context.Context, method string, params any) (any, error) {
	first, err := utils.ParamAt(params, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return m.internal(ctx, method, first)
}

// ethSign routes to signPersonalMessage when the message bytes are UTF-8 text
func (m *MobileAdapter) ethSign(ctx context.Context, params any) (any, error) {
	if len(utils.ParamsSlice(params)) < 2 {
		return nil, errors.New("Missing params")
	}
	address, err := utils.StringParamAt(params, 0)
	if err != nil {
		return nil, err
	}
	message, err := utils.StringParamAt(params, 1)
	if err != nil {
		return nil, err
	}

	buffer := utils.MessageToBuffer(message)
	method := constants.MethodSignMessage
	if utils.IsUTF8(buffer) {
		method = constants.MethodSignPersonalMessage
	}

	return m.internal(ctx, method, map[string]any{
		"data":      utils.BufferToHex(buffer),
		"address":   address,
		"isEthSign": true,
	})
}

// swapIfAddressFirst corrects (address, payload) argument order. This is a
// best-effort heuristic: a payload equal to the account address is ambiguous.
func swapIfAddressFirst(account string, first, second any) (payload, address any) {
	if s, ok := first.(string); ok && strings.EqualFold(s, account) {
		return second, first
	}
	return first, second
}

func (m *MobileAdapter) personalSign(ctx context.Context, params any) (any, error) {
	account := m.provider.Address()
	if account == "" {
		return nil, MissingAddressError("personal_sign")
	}

	p := utils.ParamsSlice(params)
	if len(p) < 2 {
		return nil, errors.New("Missing params")
	}
	payload, address := swapIfAddressFirst(account, p[0], p[1])

	message, ok := payload.(string)
	if !ok {
		return nil, fmt.Errorf("personal_sign message must be a string, got %T", payload)
	}

	data := message
	if len(utils.MessageToBuffer(message)) == 0 {
		data = utils.BufferToHex([]byte(message))
	}

	return m.internal(ctx, constants.MethodSignPersonalMessage, map[string]any{
		"data":    data,
		"address": address,
	})
}

func (m *MobileAdapter) personalECRecover(ctx context.Context, params any) (any, error) {
	p := utils.ParamsSlice(params)
	if len(p) < 2 {
		return nil, errors.New("Missing params")
	}
	return m.internal(ctx, constants.MethodEcRecover, map[string]any{
		"signature": p[1],
		"message":   p[0],
	})
}

func (m *MobileAdapter) ethSignTypedData(ctx context.Context, params any, version TypedDataVersion) (any, error) {
	account := m.provider.Address()
	if account == "" {
		return nil, fmt.Errorf("%w, address is not present", MissingAddressError("ethSignTypedData"))
	}

	p := utils.ParamsSlice(params)
	if len(p) < 2 {
		return nil, errors.New("Missing params")
	}
	// Typed data comes as (address, data); some callers send (data, address)
	data, address := swapIfAddressFirst(account, p[0], p[1])

	var raw string
	switch d := data.(type) {
	case string:
		raw = d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal typed data: %w", err)
		}
		raw = string(b)
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse typed data: %w", err)
	}
	if message, ok := decoded.(map[string]any); ok {
		if err := m.checkChainID(message); err != nil {
			return nil, err
		}
	}

	hash := []byte{}
	if version != TypedDataV1 {
		h, err := HashTypedData([]byte(raw))
		if err != nil {
			return nil, err
		}
		hash = h
	}

	return m.internal(ctx, constants.MethodSignTypedMessage, map[string]any{
		"data":    utils.BufferToHex(hash),
		"raw":     raw,
		"address": address,
		"version": string(version),
	})
}

func (m *MobileAdapter) checkChainID(message map[string]any) error {
	declared, present, err := typedDataChainID(message)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}

	active, err := ParseChainID(m.provider.ChainID())
	if err != nil || declared.Cmp(active) != 0 {
		return ErrChainIDMismatch
	}
	return nil
}

// WatchAsset is the wallet_watchAsset (EIP-747) request object
type WatchAsset struct {
	Type    string `json:"type"`
	Options struct {
		Address  string        `json:"address"`
		Symbol   string        `json:"symbol,omitempty"`
		Decimals AssetDecimals `json:"decimals,omitempty"`
		Image    string        `json:"image,omitempty"`
	} `json:"options"`
}

// AssetDecimals accepts decimals as a JSON number or a numeric string.
// Zero, null and "" all mean the value is unknown.
type AssetDecimals int

func (d *AssetDecimals) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || string(data) == `""` {
		*d = 0
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid decimals %s: %w", data, err)
	}
	v, err := strconv.Atoi(n.String())
	if err != nil || v < 0 {
		return fmt.Errorf("invalid decimals %s", data)
	}
	*d = AssetDecimals(v)
	return nil
}

// watchAsset flattens the EIP-747 options, fetching missing token metadata over RPC
func (m *MobileAdapter) watchAsset(ctx context.Context, params any) (any, error) {
	var asset WatchAsset
	if err := utils.DecodeResult(params, &asset); err != nil {
		return nil, fmt.Errorf("invalid wallet_watchAsset params: %w", err)
	}
	if asset.Options.Address == "" {
		return nil, errors.New("wallet_watchAsset: missing options.address")
	}

	symbol := asset.Options.Symbol
	if symbol == "" {
		fetched, err := m.tokenSymbol(ctx, asset.Options.Address)
		if err != nil {
			m.provider.Logger().Warn("failed to fetch token symbol", "contract", asset.Options.Address, "error", err)
		}
		symbol = fetched
	}

	decimals := int(asset.Options.Decimals)
	if decimals == 0 {
		fetched, err := m.tokenDecimals(ctx, asset.Options.Address)
		if err != nil {
			m.provider.Logger().Warn("failed to fetch token decimals", "contract", asset.Options.Address, "error", err)
		}
		decimals = fetched
	}

	return m.internal(ctx, constants.MethodWatchAsset, map[string]any{
		"type":     asset.Type,
		"contract": asset.Options.Address,
		"symbol":   symbol,
		"decimals": decimals,
	})
}

func (m *MobileAdapter) tokenSymbol(ctx context.Context, contract string) (string, error) {
	out, err := m.contractCall(ctx, contract, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected symbol type %T", out[0])
	}
	return strings.TrimRight(symbol, "\x00"), nil
}

func (m *MobileAdapter) tokenDecimals(ctx context.Context, contract string) (int, error) {
	out, err := m.contractCall(ctx, contract, "decimals")
	if err != nil {
		return 0, err
	}
	switch d := out[0].(type) {
	case uint8:
		return int(d), nil
	case *big.Int:
		return int(d.Int64()), nil
	default:
		return 0, fmt.Errorf("unexpected decimals type %T", out[0])
	}
}

// contractCall performs an eth_call of an ERC-20 metadata method and unpacks its outputs
func (m *MobileAdapter) contractCall(ctx context.Context, contract, method string) ([]any, error) {
	rpc := m.provider.RPC()
	if rpc == nil {
		return nil, ErrRPCNotConfigured
	}

	data, err := erc20ABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("failed to pack function call: %w", err)
	}

	result, err := callContract(ctx, rpc, contract, data)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}

	out, err := erc20ABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode contract call result: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return out, nil
}
