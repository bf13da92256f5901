package evm

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// TypedDataVersion is the signTypedMessage version forwarded to the host
type TypedDataVersion string

const (
	TypedDataV1 TypedDataVersion = "V1"
	TypedDataV3 TypedDataVersion = "V3"
	TypedDataV4 TypedDataVersion = "V4"
)

// typedDataVersions maps eth_signTypedData* methods to their version
var typedDataVersions = map[string]TypedDataVersion{
	"eth_signTypedData":    TypedDataV1,
	"eth_signTypedData_v1": TypedDataV1,
	"eth_signTypedData_v3": TypedDataV3,
	"eth_signTypedData_v4": TypedDataV4,
}

// emptyDomainSeparator is hashStruct of an EIP712Domain type with no fields
var emptyDomainSeparator = crypto.Keccak256(crypto.Keccak256([]byte("EIP712Domain()")))

// HashTypedData returns the EIP-712 digest keccak256("\x19\x01" || domainSeparator || hashStruct(message)).
// When types declares no EIP712Domain fields, the domain is hashed as an
// empty struct and its values are ignored.
func HashTypedData(raw []byte) ([]byte, error) {
	var typedData apitypes.TypedData
	if err := json.Unmarshal(raw, &typedData); err != nil {
		return nil, fmt.Errorf("failed to parse typed data: %w", err)
	}

	hasDomainType := len(typedData.Types["EIP712Domain"]) > 0
	if !hasDomainType {
		// the domain is not encoded, but apitypes rejects an undefined one
		typedData.Domain = apitypes.TypedDataDomain{Name: "EIP712Domain"}
	}

	hash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	domainSeparator := emptyDomainSeparator
	if hasDomainType {
		domainSeparator, err = typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
		if err != nil {
			return nil, fmt.Errorf("failed to hash domain: %w", err)
		}
	}

	return crypto.Keccak256([]byte("\x19\x01"), domainSeparator, hash), nil
}

// ParseChainID parses a hex (0x-prefixed) or decimal chain id
func ParseChainID(s string) (*big.Int, error) {
	n, ok := math.ParseBig256(strings.TrimSpace(s))
	if !ok {
		return nil, fmt.Errorf("invalid chain id: %q", s)
	}
	return n, nil
}

// typedDataChainID extracts domain.chainId from decoded typed data, if present
func typedDataChainID(data map[string]any) (*big.Int, bool, error) {
	domain, ok := data["domain"].(map[string]any)
	if !ok {
		return nil, false, nil
	}

	switch v := domain["chainId"].(type) {
	case nil:
		return nil, false, nil
	case float64:
		n, acc := new(big.Float).SetFloat64(v).Int(nil)
		if acc != big.Exact {
			return nil, true, fmt.Errorf("invalid chain id: %v", v)
		}
		return n, true, nil
	case json.Number:
		n, err := ParseChainID(v.String())
		return n, true, err
	case string:
		n, err := ParseChainID(v)
		return n, true, err
	default:
		return nil, true, fmt.Errorf("invalid chain id type: %T", v)
	}
}
