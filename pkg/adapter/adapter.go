// Package adapter provides the transport between providers and the wallet host.
//
// An Adapter turns a provider request into a call to a single host handler.
// Under the PROMISES strategy the handler's return value is the result.
// Under the CALLBACK strategy the handler is fire-and-forget and the result
// arrives later through SendResponse/SendError, correlated by request id.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sigweihq/web3provider/pkg/types"
)

// Strategy selects how host results are delivered
type Strategy string

const (
	StrategyPromises Strategy = "PROMISES"
	StrategyCallback Strategy = "CALLBACK"
)

var (
	ErrNoHandlerConfigured = errors.New("no handler defined for adapter")
	ErrUnknownStrategy     = errors.New("unknown adapter strategy")
	ErrRequestTimeout      = errors.New("request timed out waiting for host response")
)

// ParseStrategy parses a strategy name (case sensitive, as written in config)
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyPromises, StrategyCallback:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Handler is the single seam to the wallet host
type Handler func(ctx context.Context, params types.HandlerParams) (any, error)

// Adapter forwards provider requests to the host handler
type Adapter interface {
	// Request sends req to the host, tagged with the provider network
	Request(ctx context.Context, req types.Request, network string) (any, error)

	// Strategy returns the delivery strategy, fixed at construction
	Strategy() Strategy

	// SetHandler replaces the host handler
	SetHandler(h Handler)

	// Handler returns the current host handler (nil when unset)
	Handler() Handler
}

// Responder is implemented by adapters resolved out of band
type Responder interface {
	SendResponse(id string, result any)
	SendError(id string, reason any)
}

type options struct {
	logger  *slog.Logger
	timeout time.Duration
	newID   func() string
}

// Option configures an adapter built by New
type Option func(*options)

// WithLogger sets the adapter logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTimeout rejects callback requests still pending after d with ErrRequestTimeout.
// Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithIDGenerator overrides the correlation id generator
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		o.newID = fn
	}
}

// New builds an adapter for the given strategy
func New(strategy Strategy, handler Handler, opts ...Option) (Adapter, error) {
	switch strategy {
	case StrategyPromises:
		a := NewPromiseAdapter()
		a.SetHandler(handler)
		return a, nil
	case StrategyCallback:
		a := NewCallbackAdapter(opts...)
		a.SetHandler(handler)
		return a, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

type base struct {
	strategy Strategy

	mu      sync.RWMutex
	handler Handler
}

func (b *base) Strategy() Strategy {
	return b.strategy
}

func (b *base) SetHandler(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

func (b *base) Handler() Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handler
}

// dispatch builds the handler params and invokes the host handler.
// id is only set for callback-shaped requests.
func (b *base) dispatch(ctx context.Context, req types.Request, network, id string) (any, error) {
	h := b.Handler()
	if h == nil {
		return nil, ErrNoHandlerConfigured
	}

	return h(ctx, types.HandlerParams{
		ID:      id,
		Network: network,
		Name:    req.Method,
		Params:  req.Params,
		Object:  req.Params,
	})
}
