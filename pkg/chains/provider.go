package chains

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sigweihq/web3provider/pkg/adapter"
	"github.com/sigweihq/web3provider/pkg/types"
)

var ErrNoAdapter = errors.New("no adapter set")

// StrategyMismatchError is returned when callback resolution is attempted
// on a provider whose adapter does not use the CALLBACK strategy
type StrategyMismatchError struct {
	Strategy adapter.Strategy
}

func (e *StrategyMismatchError) Error() string {
	return fmt.Sprintf("trying to send callback response on %s adapter", e.Strategy)
}

// BaseProvider holds the adapter and event list shared by every chain provider
type BaseProvider struct {
	*Emitter

	network string
	logger  *slog.Logger

	mu      sync.RWMutex
	adapter adapter.Adapter
}

// NewBaseProvider creates a base provider for the given network tag
func NewBaseProvider(network string, logger *slog.Logger) *BaseProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseProvider{
		Emitter: NewEmitter(),
		network: network,
		logger:  logger.With("network", network),
	}
}

// Network implements Provider
func (p *BaseProvider) Network() string {
	return p.network
}

// Logger returns the provider logger
func (p *BaseProvider) Logger() *slog.Logger {
	return p.logger
}

// SetAdapter implements Provider
func (p *BaseProvider) SetAdapter(a adapter.Adapter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adapter = a
}

// Adapter returns the attached adapter (nil when unset)
func (p *BaseProvider) Adapter() adapter.Adapter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.adapter
}

// Request implements Provider. On success EventResponseReady is emitted
// before the result is returned; errors are returned unchanged.
func (p *BaseProvider) Request(ctx context.Context, req types.Request) (any, error) {
	a := p.Adapter()
	if a == nil {
		return nil, ErrNoAdapter
	}

	p.logger.Debug("sending request", "method", req.Method)
	res, err := a.Request(ctx, req, p.network)
	if err != nil {
		return nil, err
	}

	p.Emit(EventResponseReady, ResponseReady{Request: req, Result: res})
	return res, nil
}

// SendResponse implements Provider
func (p *BaseProvider) SendResponse(id string, result any) error {
	r, err := p.responder()
	if err != nil {
		return err
	}
	r.SendResponse(id, result)
	return nil
}

// SendError implements Provider
func (p *BaseProvider) SendError(id string, reason any) error {
	r, err := p.responder()
	if err != nil {
		return err
	}
	r.SendError(id, reason)
	return nil
}

func (p *BaseProvider) responder() (adapter.Responder, error) {
	a := p.Adapter()
	if a == nil {
		return nil, ErrNoAdapter
	}
	if a.Strategy() != adapter.StrategyCallback {
		return nil, &StrategyMismatchError{Strategy: a.Strategy()}
	}
	r, ok := a.(adapter.Responder)
	if !ok {
		return nil, &StrategyMismatchError{Strategy: a.Strategy()}
	}
	return r, nil
}
