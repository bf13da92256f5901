package cosmos

import (
	"encoding/json"
	"fmt"
)

// BroadcastMode selects when sendTx returns
type BroadcastMode string

const (
	BroadcastModeBlock BroadcastMode = "block"
	BroadcastModeSync  BroadcastMode = "sync"
	BroadcastModeAsync BroadcastMode = "async"
)

// Key is the Keplr getKey result
type Key struct {
	Algo          string `json:"algo"`
	Address       string `json:"address"`
	Bech32Address string `json:"bech32Address"`
	PubKey        []byte `json:"pubKey"`
	AddressBytes  []byte `json:"addressBytes"`
}

// AccountData is what offline signers report from GetAccounts
type AccountData struct {
	Address string `json:"address"`
	Algo    string `json:"algo"`
	PubKey  []byte `json:"pubkey"`
}

type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type StdFee struct {
	Amount  []Coin `json:"amount"`
	Gas     string `json:"gas"`
	Payer   string `json:"payer,omitempty"`
	Granter string `json:"granter,omitempty"`
}

// StdSignDoc is the amino sign document
type StdSignDoc struct {
	ChainID       string            `json:"chain_id"`
	AccountNumber string            `json:"account_number"`
	Sequence      string            `json:"sequence"`
	Fee           StdFee            `json:"fee"`
	Msgs          []json.RawMessage `json:"msgs"`
	Memo          string            `json:"memo"`
}

// DirectSignDoc is the protobuf (SIGN_MODE_DIRECT) sign document
type DirectSignDoc struct {
	BodyBytes     []byte `json:"bodyBytes"`
	AuthInfoBytes []byte `json:"authInfoBytes"`
	ChainID       string `json:"chainId"`
	AccountNumber uint64 `json:"accountNumber"`
}

type PubKey struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// StdSignature is a signature with its public key. Hosts may answer with
// the bare base64 signature string instead of the object.
type StdSignature struct {
	PubKey    PubKey `json:"pub_key"`
	Signature string `json:"signature"`
}

func (s *StdSignature) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		*s = StdSignature{Signature: bare}
		return nil
	}

	type plain StdSignature
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	*s = StdSignature(p)
	return nil
}

// AminoSignResponse is returned by SignAmino
type AminoSignResponse struct {
	Signed    StdSignDoc   `json:"signed"`
	Signature StdSignature `json:"signature"`
}

// DirectSignResponse is returned by SignDirect
type DirectSignResponse struct {
	Signed    DirectSignDoc `json:"signed"`
	Signature StdSignature  `json:"signature"`
}
