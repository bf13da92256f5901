package evm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEthSign(t *testing.T) {
	tests := []struct {
		name         string
		message      string
		expectMethod string
		expectData   string
	}{
		{name: "utf8 text", message: "0x68656c6c6f", expectMethod: "signPersonalMessage", expectData: "0x68656c6c6f"},
		{name: "binary digest", message: "0xff00fe", expectMethod: "signMessage", expectData: "0xff00fe"},
		{name: "trailing nibble dropped", message: "0x68656c6c6f7", expectMethod: "signPersonalMessage", expectData: "0x68656c6c6f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, host := newTestProvider(t, Config{ChainID: "0x1"})
			host.On(tt.expectMethod, "0xsig")

			res, err := p.Request(context.Background(), types.Request{
				Method: "eth_sign",
				Params: []any{testAddress, tt.message},
			})
			require.NoError(t, err)
			assert.Equal(t, "0xsig", res)

			call := host.Last(t)
			assert.Equal(t, tt.expectMethod, call.Name)
			assert.Equal(t, map[string]any{
				"data":      tt.expectData,
				"address":   testAddress,
				"isEthSign": true,
			}, call.Params)
		})
	}
}

func TestEthSignMissingParams(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x1"})

	_, err := p.Request(context.Background(), types.Request{Method: "eth_sign", Params: []any{testAddress}})
	assert.EqualError(t, err, "Missing params")
	assert.Equal(t, 0, host.Count())
}

func TestPersonalSign(t *testing.T) {
	tests := []struct {
		name       string
		params     []any
		expectData string
	}{
		{name: "message first", params: []any{"0x68656c6c6f", testAddress}, expectData: "0x68656c6c6f"},
		{name: "address first", params: []any{testAddress, "0x68656c6c6f"}, expectData: "0x68656c6c6f"},
		{name: "plain text is hex encoded", params: []any{"hello", testAddress}, expectData: "0x68656c6c6f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, host := newTestProvider(t, Config{ChainID: "0x1"})
			p.SetAddress(testAddress)

			_, err := p.Request(context.Background(), types.Request{Method: "personal_sign", Params: tt.params})
			require.NoError(t, err)

			call := host.Last(t)
			assert.Equal(t, "signPersonalMessage", call.Name)
			assert.Equal(t, map[string]any{"data": tt.expectData, "address": testAddress}, call.Params)
		})
	}
}

func TestPersonalSignWithoutAddress(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x1"})

	_, err := p.Request(context.Background(), types.Request{
		Method: "personal_sign",
		Params: []any{"0x68656c6c6f", testAddress},
	})
	assert.EqualError(t, err, "Unable to execute personal_sign")
	assert.Equal(t, 0, host.Count())
}

func TestPersonalECRecover(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x1"})
	host.On("ecRecover", testAddress)

	res, err := p.Request(context.Background(), types.Request{
		Method: "personal_ecRecover",
		Params: []any{"0x68656c6c6f", "0xsig"},
	})
	require.NoError(t, err)
	assert.Equal(t, testAddress, res)
	assert.Equal(t, map[string]any{"signature": "0xsig", "message": "0x68656c6c6f"}, host.Last(t).Params)
}

func TestSignTypedDataV4(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x1"})
	p.SetAddress(testAddress)

	_, err := p.Request(context.Background(), types.Request{
		Method: "eth_signTypedData_v4",
		Params: []any{testAddress, mailTypedData},
	})
	require.NoError(t, err)

	call := host.Last(t)
	assert.Equal(t, "signTypedMessage", call.Name)
	assert.Equal(t, map[string]any{
		"data":    mailDigest,
		"raw":     mailTypedData,
		"address": testAddress,
		"version": "V4",
	}, call.Params)
}

func TestSignTypedDataObjectParam(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "1"})
	p.SetAddress(testAddress)

	var typed map[string]any
	require.NoError(t, json.Unmarshal([]byte(mailTypedData), &typed))

	_, err := p.Request(context.Background(), types.Request{
		Method: "eth_signTypedData_v3",
		Params: []any{testAddress, typed},
	})
	require.NoError(t, err)

	params, ok := host.Last(t).Params.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, mailDigest, params["data"])
	assert.Equal(t, "V3", params["version"])
}

func TestSignTypedDataChainMismatch(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x89"})
	p.SetAddress(testAddress)

	_, err := p.Request(context.Background(), types.Request{
		Method: "eth_signTypedData_v4",
		Params: []any{testAddress, mailTypedData},
	})
	assert.ErrorIs(t, err, ErrChainIDMismatch)
	assert.Equal(t, 0, host.Count())
}

func TestSignTypedDataV1(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x1"})
	p.SetAddress(testAddress)

	legacy := []any{map[string]any{"type": "string", "name": "message", "value": "hi"}}
	_, err := p.Request(context.Background(), types.Request{
		Method: "eth_signTypedData",
		Params: []any{legacy, testAddress},
	})
	require.NoError(t, err)

	call := host.Last(t)
	assert.Equal(t, map[string]any{
		"data":    "0x",
		"raw":     `[{"name":"message","type":"string","value":"hi"}]`,
		"address": testAddress,
		"version": "V1",
	}, call.Params)
}

func TestSignTypedDataWithoutAddress(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x1"})

	_, err := p.Request(context.Background(), types.Request{
		Method: "eth_signTypedData_v4",
		Params: []any{testAddress, mailTypedData},
	})
	assert.EqualError(t, err, "Unable to execute ethSignTypedData, address is not present")
	assert.Equal(t, 0, host.Count())
}

func TestFirstParamMethods(t *testing.T) {
	tx := map[string]any{"from": testAddress, "to": testAddress, "value": "0x0"}
	chain := map[string]any{"chainId": "0x89"}

	tests := []struct {
		name         string
		method       string
		params       any
		expectMethod string
		expectParams any
	}{
		{name: "send transaction", method: "eth_sendTransaction", params: []any{tx}, expectMethod: "signTransaction", expectParams: tx},
		{name: "add chain", method: "wallet_addEthereumChain", params: []any{chain}, expectMethod: "addEthereumChain", expectParams: chain},
		{name: "switch chain", method: "wallet_switchEthereumChain", params: []any{chain}, expectMethod: "switchEthereumChain", expectParams: chain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, host := newTestProvider(t, Config{ChainID: "0x1"})

			_, err := p.Request(context.Background(), types.Request{Method: tt.method, Params: tt.params})
			require.NoError(t, err)

			call := host.Last(t)
			assert.Equal(t, tt.expectMethod, call.Name)
			assert.Equal(t, tt.expectParams, call.Params)
		})
	}
}

func TestFirstParamMissing(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x1"})

	_, err := p.Request(context.Background(), types.Request{Method: "eth_sendTransaction", Params: []any{}})
	assert.Error(t, err)
	assert.Equal(t, 0, host.Count())
}

func TestUnsupportedMethods(t *testing.T) {
	tests := []struct {
		name   string
		method string
		extra  []string
	}{
		{name: "filter", method: "eth_newFilter"},
		{name: "block filter", method: "eth_newBlockFilter"},
		{name: "pending filter", method: "eth_newPendingTransactionFilter"},
		{name: "uninstall filter", method: "eth_uninstallFilter"},
		{name: "subscribe", method: "eth_subscribe"},
		{name: "configured", method: "eth_getWork", extra: []string{"eth_getWork"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, host := newTestProvider(t, Config{ChainID: "0x1", UnsupportedMethods: tt.extra})
			rpc := &mockRPC{}
			p.SetRPC(rpc)

			_, err := p.Request(context.Background(), types.Request{Method: tt.method})
			var rpcErr *types.RPCError
			require.ErrorAs(t, err, &rpcErr)
			assert.Equal(t, 4200, rpcErr.Code)
			assert.Equal(t, "EthereumProvider does not support calling "+tt.method, rpcErr.Message)
			assert.Equal(t, 0, host.Count())
			assert.Empty(t, rpc.calls)
		})
	}
}

func TestPassthrough(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x1"})
	rpc := &mockRPC{handle: func(method string, _ any) (json.RawMessage, error) {
		assert.Equal(t, "eth_blockNumber", method)
		return json.RawMessage(`"0x10"`), nil
	}}
	p.SetRPC(rpc)

	res, err := p.Request(context.Background(), types.Request{Method: "eth_blockNumber"})
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"0x10"`), res)
	assert.Len(t, rpc.calls, 1)
	assert.Equal(t, 0, host.Count())
}

func TestPassthroughWithoutRPC(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x1"})

	_, err := p.Request(context.Background(), types.Request{Method: "eth_getBalance", Params: []any{testAddress, "latest"}})
	assert.ErrorIs(t, err, ErrRPCNotConfigured)
	assert.Equal(t, 0, host.Count())
}

func TestWatchAsset(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x1"})
	host.On("watchAsset", true)

	res, err := p.Request(context.Background(), types.Request{
		Method: "wallet_watchAsset",
		Params: map[string]any{
			"type": "ERC20",
			"options": map[string]any{
				"address":  "0xA",
				"symbol":   "T",
				"decimals": 6,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, true, res)

	call := host.Last(t)
	assert.Equal(t, "watchAsset", call.Name)
	assert.Equal(t, map[string]any{
		"type":     "ERC20",
		"contract": "0xA",
		"symbol":   "T",
		"decimals": 6,
	}, call.Params)
}

func TestWatchAssetFetchesMetadata(t *testing.T) {
	symbolOut, err := erc20ABI.Methods["symbol"].Outputs.Pack("TKN")
	require.NoError(t, err)
	decimalsOut, err := erc20ABI.Methods["decimals"].Outputs.Pack(uint8(18))
	require.NoError(t, err)

	contract := "0x6b175474e89094c44da98b954eedeac495271d0f"
	rpc := &mockRPC{handle: func(method string, params any) (json.RawMessage, error) {
		args, ok := params.([]any)
		if !ok || method != "eth_call" || len(args) != 2 {
			return nil, errors.New("unexpected call")
		}
		msg := args[0].(map[string]any)
		assert.Equal(t, contract, msg["to"])

		var out []byte
		switch msg["data"] {
		case hexutil.Encode(erc20ABI.Methods["symbol"].ID):
			out = symbolOut
		case hexutil.Encode(erc20ABI.Methods["decimals"].ID):
			out = decimalsOut
		default:
			return nil, errors.New("unknown selector")
		}
		return json.Marshal(hexutil.Bytes(out))
	}}

	p, host := newTestProvider(t, Config{ChainID: "0x1"})
	p.SetRPC(rpc)

	_, err = p.Request(context.Background(), types.Request{
		Method: "wallet_watchAsset",
		Params: map[string]any{"type": "ERC20", "options": map[string]any{"address": contract}},
	})
	require.NoError(t, err)
	assert.Len(t, rpc.calls, 2)
	assert.Equal(t, map[string]any{
		"type":     "ERC20",
		"contract": contract,
		"symbol":   "TKN",
		"decimals": 18,
	}, host.Last(t).Params)
}

func TestWatchAssetFetchesMetadataFromNode(t *testing.T) {
	symbolOut, err := erc20ABI.Methods["symbol"].Outputs.Pack("DAI")
	require.NoError(t, err)
	decimalsOut, err := erc20ABI.Methods["decimals"].Outputs.Pack(uint8(18))
	require.NoError(t, err)

	contract := "0x6b175474e89094c44da98b954eedeac495271d0f"
	node, hits := newNode(t, func(msg rpcMessage) map[string]any {
		var call map[string]string
		_ = json.Unmarshal(msg.Params[0], &call)
		if msg.Method != "eth_call" || call["to"] != contract {
			return map[string]any{"error": map[string]any{"code": -32000, "message": "unexpected call"}}
		}
		switch call["data"] {
		case hexutil.Encode(erc20ABI.Methods["symbol"].ID):
			return map[string]any{"result": hexutil.Encode(symbolOut)}
		case hexutil.Encode(erc20ABI.Methods["decimals"].ID):
			return map[string]any{"result": hexutil.Encode(decimalsOut)}
		default:
			return map[string]any{"error": map[string]any{"code": -32000, "message": "execution reverted"}}
		}
	})

	p, host := newTestProvider(t, Config{ChainID: "0x1", RPC: node.URL})

	_, err = p.Request(context.Background(), types.Request{
		Method: "wallet_watchAsset",
		Params: map[string]any{"type": "ERC20", "options": map[string]any{"address": contract}},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, map[string]any{
		"type":     "ERC20",
		"contract": contract,
		"symbol":   "DAI",
		"decimals": 18,
	}, host.Last(t).Params)
}

func TestWatchAssetDecimals(t *testing.T) {
	tests := []struct {
		name     string
		decimals any
		expected int
		wantErr  bool
	}{
		{name: "number", decimals: 6, expected: 6},
		{name: "float number", decimals: float64(8), expected: 8},
		{name: "numeric string", decimals: "6", expected: 6},
		{name: "empty string", decimals: "", expected: 0},
		{name: "null", decimals: nil, expected: 0},
		{name: "not a number", decimals: "six", wantErr: true},
		{name: "negative", decimals: -1, wantErr: true},
		{name: "fraction", decimals: 1.5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, host := newTestProvider(t, Config{ChainID: "0x1"})
			host.On("watchAsset", true)

			_, err := p.Request(context.Background(), types.Request{
				Method: "wallet_watchAsset",
				Params: map[string]any{
					"type":    "ERC20",
					"options": map[string]any{"address": "0xA", "symbol": "T", "decimals": tt.decimals},
				},
			})
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid decimals")
				assert.Equal(t, 0, host.Count())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, host.Last(t).Params.(map[string]any)["decimals"])
		})
	}
}

func TestWatchAssetMetadataUnavailable(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x1"})

	_, err := p.Request(context.Background(), types.Request{
		Method: "wallet_watchAsset",
		Params: map[string]any{"type": "ERC20", "options": map[string]any{"address": "0xA"}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"type":     "ERC20",
		"contract": "0xA",
		"symbol":   "",
		"decimals": 0,
	}, host.Last(t).Params)
}

func TestWatchAssetMissingAddress(t *testing.T) {
	p, host := newTestProvider(t, Config{ChainID: "0x1"})

	_, err := p.Request(context.Background(), types.Request{
		Method: "wallet_watchAsset",
		Params: map[string]any{"type": "ERC20", "options": map[string]any{}},
	})
	assert.Error(t, err)
	assert.Equal(t, 0, host.Count())
}
