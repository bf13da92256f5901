package adapter

import (
	"context"

	"github.com/sigweihq/web3provider/pkg/types"
)

// PromiseAdapter returns whatever the host handler returns
type PromiseAdapter struct {
	base
}

// NewPromiseAdapter creates an adapter using the PROMISES strategy
func NewPromiseAdapter() *PromiseAdapter {
	return &PromiseAdapter{base: base{strategy: StrategyPromises}}
}

var _ Adapter = (*PromiseAdapter)(nil)

// Request implements Adapter
func (a *PromiseAdapter) Request(ctx context.Context, req types.Request, network string) (any, error) {
	return a.dispatch(ctx, req, network, "")
}
