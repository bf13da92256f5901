// Package ton implements the Ton provider and its TonConnect bridge.
package ton

import (
	"context"
	"log/slog"

	"github.com/sigweihq/web3provider/pkg/chains"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
)

// Config holds the Ton provider configuration
type Config struct {
	// Version is the wallet contract version reported by ton_requestWallets
	Version              string `yaml:"version"`
	DisableMobileAdapter bool   `yaml:"disable_mobile_adapter"`
}

// Provider is the Ton provider
type Provider struct {
	*chains.BaseProvider

	version string
	mobile  *MobileAdapter
}

// NewProvider creates a Ton provider
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	p := &Provider{
		BaseProvider: chains.NewBaseProvider(constants.NetworkTon, logger),
		version:      cfg.Version,
	}
	if p.version == "" {
		p.version = constants.DefaultTonWalletVersion
	}
	if !cfg.DisableMobileAdapter {
		p.mobile = NewMobileAdapter(p)
	}
	return p
}

var _ chains.Provider = (*Provider)(nil)

// Request implements chains.Provider
func (p *Provider) Request(ctx context.Context, req types.Request) (any, error) {
	return p.Send(ctx, req.Method, req.Params)
}

// Send issues method through the MobileAdapter when enabled
func (p *Provider) Send(ctx context.Context, method string, params any) (any, error) {
	if p.mobile != nil {
		return p.mobile.Request(ctx, method, params)
	}
	return p.InternalRequest(ctx, method, params)
}

// InternalRequest sends method straight to the host
func (p *Provider) InternalRequest(ctx context.Context, method string, params any) (any, error) {
	return p.BaseProvider.Request(ctx, types.Request{Method: method, Params: params})
}

// Version returns the wallet contract version
func (p *Provider) Version() string {
	return p.version
}

// IsConnected always reports true; the host owns the connection
func (p *Provider) IsConnected() bool {
	return true
}
