package cosmos

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/cosmos/btcutil/bech32"
	"github.com/sigweihq/web3provider/pkg/chains/chainstest"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChainID = "cosmoshub-4"
	testPubKey  = "02a1633cafcc01ebfb6d78e39f687a1f0995c62fc95f51ead10a02ee0be551b5dc"
)

var testAddressBytes = []byte{
	0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a,
	0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14,
}

func testAddress(t *testing.T) string {
	t.Helper()
	conv, err := bech32.ConvertBits(testAddressBytes, 8, 5, true)
	require.NoError(t, err)
	address, err := bech32.Encode("cosmos", conv)
	require.NoError(t, err)
	return address
}

func newTestProvider(t *testing.T, cfg Config) (*Provider, *chainstest.Host) {
	t.Helper()
	p := NewProvider(cfg, nil)
	host := chainstest.NewHost()
	p.SetAdapter(host.Adapter())
	return p, host
}

func accountJSON(address string) string {
	return `{"address":"` + address + `","pubKey":"` + testPubKey + `"}`
}

func TestGetKey(t *testing.T) {
	address := testAddress(t)
	p, host := newTestProvider(t, Config{})
	host.On("requestAccounts", accountJSON(address))

	key, err := p.GetKey(context.Background(), testChainID)
	require.NoError(t, err)

	assert.Equal(t, "secp256k1", key.Algo)
	assert.Equal(t, address, key.Address)
	assert.Equal(t, address, key.Bech32Address)
	assert.Len(t, key.PubKey, 33)
	assert.Equal(t, byte(0x02), key.PubKey[0])
	assert.Equal(t, testAddressBytes, key.AddressBytes)

	call := host.Last(t)
	assert.Equal(t, "requestAccounts", call.Name)
	assert.Equal(t, "cosmos", call.Network)
	assert.Equal(t, map[string]any{"chainId": testChainID}, call.Params)
}

func TestGetKeyInvalidAccount(t *testing.T) {
	tests := []struct {
		name    string
		account any
	}{
		{name: "not json", account: "not json"},
		{name: "bad bech32", account: accountJSON("cosmos1invalid")},
		{name: "bad public key", account: `{"address":"x","pubKey":"zz"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, host := newTestProvider(t, Config{})
			host.On("requestAccounts", tt.account)

			_, err := p.GetKey(context.Background(), testChainID)
			assert.Error(t, err)
		})
	}
}

func TestGetKeyWithoutMobileAdapter(t *testing.T) {
	address := testAddress(t)
	p, host := newTestProvider(t, Config{DisableMobileAdapter: true})
	host.On("getKey", map[string]any{"algo": "secp256k1", "address": address, "bech32Address": address})

	key, err := p.GetKey(context.Background(), testChainID)
	require.NoError(t, err)
	assert.Equal(t, address, key.Bech32Address)
	assert.Equal(t, "getKey", host.Last(t).Name)
	assert.False(t, p.IsMobileAdapterEnabled())
}

func TestMethodMapping(t *testing.T) {
	tests := []struct {
		name         string
		call         func(p *Provider) error
		expectMethod string
	}{
		{
			name: "signAmino",
			call: func(p *Provider) error {
				_, err := p.SignAmino(context.Background(), testChainID, "signer", StdSignDoc{ChainID: testChainID})
				return err
			},
			expectMethod: "signTransaction",
		},
		{
			name: "signDirect",
			call: func(p *Provider) error {
				_, err := p.SignDirect(context.Background(), testChainID, "signer", DirectSignDoc{ChainID: testChainID})
				return err
			},
			expectMethod: "signTransaction",
		},
		{
			name: "signArbitrary",
			call: func(p *Provider) error {
				_, err := p.SignArbitrary(context.Background(), testChainID, "signer", []byte("hi"))
				return err
			},
			expectMethod: "signMessage",
		},
		{
			name: "sendTx",
			call: func(p *Provider) error {
				_, err := p.SendTx(context.Background(), testChainID, []byte{1}, BroadcastModeSync)
				return err
			},
			expectMethod: "sendTransaction",
		},
		{
			name: "enable passes through",
			call: func(p *Provider) error {
				return p.Enable(context.Background(), testChainID)
			},
			expectMethod: "enable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, host := newTestProvider(t, Config{})
			host.On("signTransaction", `{"signed":{},"signature":{"signature":"c2ln"}}`)
			host.On("signMessage", map[string]any{"signature": "c2ln"})
			host.On("sendTransaction", "0a0b")

			require.NoError(t, tt.call(p))
			assert.Equal(t, tt.expectMethod, host.Last(t).Name)
		})
	}
}

func TestSendTx(t *testing.T) {
	p, host := newTestProvider(t, Config{})
	host.On("sendTransaction", "deadbeef")

	hash, err := p.SendTx(context.Background(), testChainID, []byte{1, 2, 3}, BroadcastModeBlock)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, hash)
	assert.Equal(t, map[string]any{
		"raw":     base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
		"chainId": testChainID,
		"mode":    BroadcastModeBlock,
	}, host.Last(t).Params)
}

func TestSignArbitrary(t *testing.T) {
	p, host := newTestProvider(t, Config{})
	host.On("signMessage", map[string]any{"signature": "c2ln"})

	sig, err := p.SignArbitrary(context.Background(), testChainID, "cosmos1signer", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "c2ln", sig.Signature)
	assert.Equal(t, map[string]any{
		"chainId":       testChainID,
		"data":          "0x68656c6c6f",
		"signerAddress": "cosmos1signer",
	}, host.Last(t).Params)
}

func TestSignAmino(t *testing.T) {
	p, host := newTestProvider(t, Config{})
	host.On("signTransaction", `{
		"signed": {"chain_id": "cosmoshub-4", "account_number": "7", "sequence": "1", "fee": {"amount": [], "gas": "200000"}, "msgs": [], "memo": "hi"},
		"signature": {"pub_key": {"type": "tendermint/PubKeySecp256k1", "value": "AqFjPA=="}, "signature": "c2ln"}
	}`)

	doc := StdSignDoc{ChainID: testChainID, AccountNumber: "7", Sequence: "1", Memo: "hi"}
	res, err := p.SignAmino(context.Background(), testChainID, "cosmos1signer", doc)
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Signed.Memo)
	assert.Equal(t, "200000", res.Signed.Fee.Gas)
	assert.Equal(t, "tendermint/PubKeySecp256k1", res.Signature.PubKey.Type)
	assert.Equal(t, "c2ln", res.Signature.Signature)

	params := host.Last(t).Params.(map[string]any)
	assert.Equal(t, doc, params["sign_doc"])
	assert.Equal(t, testChainID, params["chainId"])
}

func TestSignDirect(t *testing.T) {
	p, host := newTestProvider(t, Config{})
	host.On("signTransaction", `{"signature":"c2ln"}`)

	doc := DirectSignDoc{BodyBytes: []byte{0x0a}, AuthInfoBytes: []byte{0x12}, ChainID: testChainID, AccountNumber: 42}
	res, err := p.SignDirect(context.Background(), testChainID, "cosmos1signer", doc)
	require.NoError(t, err)
	assert.Equal(t, doc, res.Signed)
	assert.Equal(t, "c2ln", res.Signature.Signature)

	assert.Equal(t, map[string]any{
		"signerAddress": "cosmos1signer",
		"chainId":       testChainID,
		"sign_doc": map[string]any{
			"bodyBytes":     "0x0a",
			"authInfoBytes": "0x12",
			"chainId":       testChainID,
			"accountNumber": "42",
		},
	}, host.Last(t).Params)
}

func TestStdSignatureUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected StdSignature
		wantErr  bool
	}{
		{name: "bare string", input: `"c2ln"`, expected: StdSignature{Signature: "c2ln"}},
		{name: "object", input: `{"pub_key":{"type":"t","value":"v"},"signature":"c2ln"}`, expected: StdSignature{PubKey: PubKey{Type: "t", Value: "v"}, Signature: "c2ln"}},
		{name: "number", input: `12`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sig StdSignature
			err := json.Unmarshal([]byte(tt.input), &sig)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sig)
		})
	}
}

func TestOfflineAminoSigner(t *testing.T) {
	address := testAddress(t)
	p, host := newTestProvider(t, Config{})
	host.On("requestAccounts", accountJSON(address))

	for _, signer := range []*OfflineAminoSigner{
		p.GetOfflineSigner(testChainID),
		p.GetOfflineSignerAuto(testChainID),
		p.GetOfflineSignerOnlyAmino(testChainID),
	} {
		accounts, err := signer.GetAccounts(context.Background())
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, address, accounts[0].Address)
		assert.Equal(t, "secp256k1", accounts[0].Algo)
		assert.Len(t, accounts[0].PubKey, 33)
	}
}

func TestOfflineDirectSigner(t *testing.T) {
	address := testAddress(t)

	tests := []struct {
		name    string
		signer  string
		docID   string
		wantErr error
	}{
		{name: "signs", signer: address, docID: testChainID},
		{name: "chain mismatch", signer: address, docID: "osmosis-1", wantErr: ErrUnmatchedChainID},
		{name: "unknown signer", signer: "cosmos1other", docID: testChainID, wantErr: ErrUnknownSigner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, host := newTestProvider(t, Config{})
			host.On("requestAccounts", accountJSON(address))
			host.On("signTransaction", `{"signature":"c2ln"}`)

			signer := p.GetOfflineSignerDirect(testChainID)
			res, err := signer.SignDirect(context.Background(), tt.signer, DirectSignDoc{ChainID: tt.docID})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				for _, call := range host.Calls() {
					assert.NotEqual(t, "signTransaction", call.Name)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "c2ln", res.Signature.Signature)
		})
	}
}

func TestRequestPassesThrough(t *testing.T) {
	p, host := newTestProvider(t, Config{})
	host.On("experimentalSuggestChain", true)

	res, err := p.Request(context.Background(), types.Request{Method: "experimentalSuggestChain"})
	require.NoError(t, err)
	assert.Equal(t, true, res)
}
