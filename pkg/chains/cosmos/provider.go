// Package cosmos implements the Keplr-compatible Cosmos provider.
package cosmos

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sigweihq/web3provider/pkg/chains"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/sigweihq/web3provider/pkg/utils"
)

// Config holds the Cosmos provider configuration
type Config struct {
	DisableMobileAdapter bool `yaml:"disable_mobile_adapter"`
	IsKeplr              bool `yaml:"is_keplr"`
	IsTrust              bool `yaml:"is_trust"`
}

// Provider is the Keplr-compatible Cosmos provider
type Provider struct {
	*chains.BaseProvider

	isKeplr bool
	isTrust bool
	mobile  *MobileAdapter
}

// NewProvider creates a Cosmos provider
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	p := &Provider{
		BaseProvider: chains.NewBaseProvider(constants.NetworkCosmos, logger),
		isKeplr:      cfg.IsKeplr,
		isTrust:      cfg.IsTrust,
	}
	if !cfg.DisableMobileAdapter {
		p.mobile = NewMobileAdapter(p)
	}
	return p
}

var _ chains.Provider = (*Provider)(nil)

// Request implements chains.Provider. Order is MobileAdapter (if enabled),
// then the host handler.
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

// IsMobileAdapterEnabled reports whether requests are translated for mobile hosts
func (p *Provider) IsMobileAdapterEnabled() bool {
	return p.mobile != nil
}

func (p *Provider) IsKeplr() bool { return p.isKeplr }
func (p *Provider) IsTrust() bool { return p.isTrust }

// Enable asks the wallet to expose the given chains
func (p *Provider) Enable(ctx context.Context, chainIDs ...string) error {
	_, err := p.Request(ctx, types.Request{
		Method: constants.MethodEnable,
		Params: map[string]any{"chainIds": chainIDs},
	})
	return err
}

// GetKey returns the wallet key for chainID
func (p *Provider) GetKey(ctx context.Context, chainID string) (*Key, error) {
	res, err := p.Request(ctx, types.Request{
		Method: "getKey",
		Params: map[string]any{"chainId": chainID},
	})
	if err != nil {
		return nil, err
	}

	if key, ok := res.(*Key); ok {
		return key, nil
	}
	var key Key
	if err := utils.DecodeResult(res, &key); err != nil {
		return nil, fmt.Errorf("invalid getKey response: %w", err)
	}
	return &key, nil
}

// SendTx broadcasts a signed transaction and returns its hash
func (p *Provider) SendTx(ctx context.Context, chainID string, tx []byte, mode BroadcastMode) ([]byte, error) {
	res, err := p.Request(ctx, types.Request{
		Method: "sendTx",
		Params: map[string]any{
			"raw":     base64.StdEncoding.EncodeToString(tx),
			"chainId": chainID,
			"mode":    mode,
		},
	})
	if err != nil {
		return nil, err
	}

	hash, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("sendTx: expected hex hash, got %T", res)
	}
	b, err := hex.DecodeString(strings.TrimPrefix(hash, "0x"))
	if err != nil {
		return nil, fmt.Errorf("sendTx: invalid hash: %w", err)
	}
	return b, nil
}

// SignArbitrary signs data (ADR-036)
func (p *Provider) SignArbitrary(ctx context.Context, chainID, signer string, data []byte) (*StdSignature, error) {
	res, err := p.Request(ctx, types.Request{
		Method: "signArbitrary",
		Params: map[string]any{
			"chainId":       chainID,
			"data":          utils.BufferToHex(data),
			"signerAddress": signer,
		},
	})
	if err != nil {
		return nil, err
	}

	var sig StdSignature
	if err := utils.DecodeResult(res, &sig); err != nil {
		return nil, fmt.Errorf("invalid signArbitrary response: %w", err)
	}
	return &sig, nil
}

// SignAmino signs an amino document
func (p *Provider) SignAmino(ctx context.Context, chainID, signer string, doc StdSignDoc) (*AminoSignResponse, error) {
	res, err := p.Request(ctx, types.Request{
		Method: "signAmino",
		Params: map[string]any{
			"chainId":  chainID,
			"signer":   signer,
			"sign_doc": doc,
		},
	})
	if err != nil {
		return nil, err
	}

	var out AminoSignResponse
	if err := utils.DecodeResult(res, &out); err != nil {
		return nil, fmt.Errorf("invalid signAmino response: %w", err)
	}
	return &out, nil
}

// SignDirect signs a protobuf document
func (p *Provider) SignDirect(ctx context.Context, chainID, signer string, doc DirectSignDoc) (*DirectSignResponse, error) {
	res, err := p.Request(ctx, types.Request{
		Method: "signDirect",
		Params: map[string]any{
			"signerAddress": signer,
			"chainId":       chainID,
			"sign_doc": map[string]any{
				"bodyBytes":     utils.BufferToHex(doc.BodyBytes),
				"authInfoBytes": utils.BufferToHex(doc.AuthInfoBytes),
				"chainId":       doc.ChainID,
				"accountNumber": strconv.FormatUint(doc.AccountNumber, 10),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Signature StdSignature `json:"signature"`
	}
	if err := utils.DecodeResult(res, &out); err != nil {
		return nil, fmt.Errorf("invalid signDirect response: %w", err)
	}
	return &DirectSignResponse{Signed: doc, Signature: out.Signature}, nil
}

// GetOfflineSigner returns an amino signer for chainID
func (p *Provider) GetOfflineSigner(chainID string) *OfflineAminoSigner {
	return p.GetOfflineSignerOnlyAmino(chainID)
}

// GetOfflineSignerAuto returns an amino signer for chainID
func (p *Provider) GetOfflineSignerAuto(chainID string) *OfflineAminoSigner {
	return p.GetOfflineSignerOnlyAmino(chainID)
}

// GetOfflineSignerOnlyAmino returns an amino signer for chainID
func (p *Provider) GetOfflineSignerOnlyAmino(chainID string) *OfflineAminoSigner {
	return &OfflineAminoSigner{provider: p, chainID: chainID}
}

// GetOfflineSignerDirect returns a direct signer for chainID
func (p *Provider) GetOfflineSignerDirect(chainID string) *OfflineDirectSigner {
	return &OfflineDirectSigner{provider: p, chainID: chainID}
}
