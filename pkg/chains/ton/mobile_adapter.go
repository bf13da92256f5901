package ton

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/utils"
	"github.com/xssnick/tonutils-go/address"
)

// WalletAccount is an entry of the ton_requestWallets answer
type WalletAccount struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Version   string `json:"version"`
}

// MobileAdapter maps TonConnect methods to the method names mobile hosts
// handle and validates outgoing transactions against the connected account
type MobileAdapter struct {
	provider *Provider

	mu         sync.RWMutex
	rawAddress string
}

func NewMobileAdapter(provider *Provider) *MobileAdapter {
	return &MobileAdapter{provider: provider}
}

// RawAddress returns the raw (workchain:hex) address of the connected account
func (m *MobileAdapter) RawAddress() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rawAddress
}

func (m *MobileAdapter) setRawAddress(raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawAddress = raw
}

// Request handles the TonConnect methods and passes anything else to the host
func (m *MobileAdapter) Request(ctx context.Context, method string, params any) (any, error) {
	switch method {
	case "tonConnect_connect":
		return m.connect(ctx, params)
	case "tonConnect_reconnect":
		return m.reconnect(ctx, params)
	case "ton_rawSign":
		return m.provider.InternalRequest(ctx, constants.MethodSignMessage, params)
	case "ton_sendTransaction", "tonConnect_sendTransaction":
		return m.sendTransaction(ctx, method, params)
	case "ton_requestAccounts":
		accounts, err := m.accounts(ctx, params)
		if err != nil {
			return nil, err
		}
		nonBounceable, _ := accounts[0]["nonBounceable"].(string)
		return []string{nonBounceable}, nil
	case "ton_requestWallets":
		accounts, err := m.accounts(ctx, params)
		if err != nil {
			return nil, err
		}
		nonBounceable, _ := accounts[0]["nonBounceable"].(string)
		publicKey, _ := accounts[0]["publicKey"].(string)
		return []WalletAccount{{
			Address:   nonBounceable,
			PublicKey: publicKey,
			Version:   m.provider.Version(),
		}}, nil
	default:
		return m.provider.InternalRequest(ctx, method, params)
	}
}

func (m *MobileAdapter) connect(ctx context.Context, params any) (any, error) {
	res, err := m.provider.InternalRequest(ctx, constants.MethodRequestAccounts, params)
	if err != nil {
		return nil, err
	}

	var items []map[string]any
	if err := utils.DecodeResult(res, &items); err != nil {
		return nil, fmt.Errorf("invalid connect response: %w", err)
	}

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		switch item["name"] {
		case "ton_addr":
			out = append(out, m.addressItem(item))
		case "ton_proof":
			proof, err := proofItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, proof)
		default:
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *MobileAdapter) reconnect(ctx context.Context, params any) (any, error) {
	res, err := m.provider.InternalRequest(ctx, "tonConnect_reconnect", params)
	if err != nil {
		return nil, err
	}

	var items []map[string]any
	if err := utils.DecodeResult(res, &items); err != nil {
		return nil, fmt.Errorf("invalid reconnect response: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("invalid reconnect response: no items")
	}
	return []map[string]any{m.addressItem(items[0])}, nil
}

// addressItem drops the internal fields of a ton_addr reply and remembers the address
func (m *MobileAdapter) addressItem(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		if k == "nonBounceable" || k == "type" {
			continue
		}
		out[k] = v
	}
	if _, ok := item["type"]; ok {
		m.provider.Logger().Warn("type parameter removed from request")
	}

	raw, _ := out["address"].(string)
	m.setRawAddress(raw)
	return out
}

func proofItem(item map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(item))
	for k, v := range item {
		if k != "type" {
			out[k] = v
		}
	}

	proof, ok := item["proof"].(map[string]any)
	if !ok {
		return out, nil
	}
	converted := make(map[string]any, len(proof))
	for k, v := range proof {
		converted[k] = v
	}
	if ts, ok := proof["timestamp"].(string); ok {
		n, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid proof timestamp %q: %w", ts, err)
		}
		converted["timestamp"] = n
	}
	out["proof"] = converted
	return out, nil
}

func (m *MobileAdapter) accounts(ctx context.Context, params any) ([]map[string]any, error) {
	res, err := m.provider.InternalRequest(ctx, constants.MethodRequestAccounts, params)
	if err != nil {
		return nil, err
	}

	var accounts []map[string]any
	if err := utils.DecodeResult(res, &accounts); err != nil {
		return nil, fmt.Errorf("invalid requestAccounts response: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("invalid requestAccounts response: no accounts")
	}
	return accounts, nil
}

func (m *MobileAdapter) sendTransaction(ctx context.Context, method string, params any) (any, error) {
	first, err := utils.ParamAt(params, 0)
	if err != nil {
		return nil, badRequest()
	}
	tx, err := utils.ToMap(first)
	if err != nil {
		return nil, badRequest()
	}

	if err := m.validateNetwork(tx); err != nil {
		return nil, err
	}
	if err := m.validateMessageAddresses(tx); err != nil {
		return nil, err
	}
	if err := m.validateFromAddress(tx); err != nil {
		return nil, err
	}
	tx = mapToCamelCase(tx)
	if err := m.validateTransaction(tx); err != nil {
		return nil, err
	}

	res, err := m.provider.InternalRequest(ctx, constants.MethodSignTransaction, tx)
	if err != nil {
		return nil, err
	}

	var out struct {
		Nonce any `json:"nonce"`
		Hash  any `json:"hash"`
	}
	if err := utils.DecodeResult(res, &out); err != nil {
		return nil, fmt.Errorf("invalid signTransaction response: %w", err)
	}
	if method == "ton_sendTransaction" {
		return out.Nonce, nil
	}
	return out.Hash, nil
}

func (m *MobileAdapter) validateNetwork(tx map[string]any) error {
	if network, _ := tx["network"].(string); network != constants.TonMainnetNetwork {
		m.provider.Logger().Error("Bad request, network id is invalid", "network", tx["network"])
		return badRequest()
	}
	return nil
}

// validateMessageAddresses rejects raw message addresses
func (m *MobileAdapter) validateMessageAddresses(tx map[string]any) error {
	messages, ok := messagesOf(tx)
	if !ok {
		m.provider.Logger().Error("Bad request, messages are invalid")
		return badRequest()
	}
	for _, msg := range messages {
		addr, _ := msg["address"].(string)
		if strings.Contains(addr, ":") {
			m.provider.Logger().Error("Bad request, message address is invalid", "address", addr)
			return badRequest()
		}
	}
	return nil
}

// validateFromAddress requires from to be one of the forms of the connected address
func (m *MobileAdapter) validateFromAddress(tx map[string]any) error {
	raw := m.RawAddress()
	if raw == "" {
		m.provider.Logger().Error("Trying to execute transaction with invalid address")
		return badRequest()
	}

	forms, err := addressForms(raw)
	if err != nil {
		m.provider.Logger().Error("Trying to execute transaction with invalid address", "error", err)
		return badRequest()
	}

	from, _ := tx["from"].(string)
	for _, form := range forms {
		if from == form {
			return nil
		}
	}
	m.provider.Logger().Error("from field does not match any user address", "from", from)
	return badRequest()
}

func (m *MobileAdapter) validateTransaction(tx map[string]any) error {
	messages, _ := messagesOf(tx)
	for _, msg := range messages {
		if stateInit, ok := msg["stateInit"]; ok {
			if s, _ := stateInit.(string); s == "" {
				m.provider.Logger().Error("Empty state init in message")
				return badRequest()
			}
		}
		if _, ok := msg["amount"].(string); !ok {
			m.provider.Logger().Error("Invalid amount type")
			return badRequest()
		}
	}

	if !isNumber(tx["valid_until"]) {
		m.provider.Logger().Error("Invalid valid_until type")
		return badRequest()
	}
	return nil
}

// addressForms returns the raw, bounceable and non-bounceable forms of raw
func addressForms(raw string) ([]string, error) {
	addr, err := address.ParseRawAddr(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid raw address %q: %w", raw, err)
	}

	forms := []string{fmt.Sprintf("%d:%x", addr.Workchain(), addr.Data())}
	addr.SetBounce(true)
	forms = append(forms, addr.String())
	addr.SetBounce(false)
	forms = append(forms, addr.String())
	return forms, nil
}

// mapToCamelCase copies state_init to stateInit on every message
func mapToCamelCase(tx map[string]any) map[string]any {
	messages, ok := messagesOf(tx)
	if !ok {
		return tx
	}

	out := make(map[string]any, len(tx))
	for k, v := range tx {
		out[k] = v
	}

	converted := make([]any, 0, len(messages))
	for _, msg := range messages {
		next := make(map[string]any, len(msg)+1)
		for k, v := range msg {
			next[k] = v
		}
		_, snake := msg["state_init"]
		_, camel := msg["stateInit"]
		if snake || camel {
			if s, _ := msg["state_init"].(string); s != "" {
				next["stateInit"] = s
			} else {
				next["stateInit"] = msg["stateInit"]
			}
		}
		converted = append(converted, next)
	}
	out["messages"] = converted
	return out
}

func messagesOf(tx map[string]any) ([]map[string]any, bool) {
	raw := utils.ParamsSlice(tx["messages"])
	if raw == nil {
		return nil, false
	}
	messages := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		msg, err := utils.ToMap(item)
		if err != nil {
			return nil, false
		}
		messages = append(messages, msg)
	}
	return messages, true
}

func isNumber(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
