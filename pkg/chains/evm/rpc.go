package evm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/sigweihq/web3provider/pkg/utils"
)

// RPC is the JSON-RPC passthrough used for methods the wallet does not intercept
type RPC interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// RPCServer forwards JSON-RPC calls to a node, failing over between endpoints in order
type RPCServer struct {
	endpoints  []string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]*gethrpc.Client
}

// NewRPCServer creates an RPC passthrough over the given endpoints
func NewRPCServer(endpoints []string, logger *slog.Logger) (*RPCServer, error) {
	if len(endpoints) == 0 {
		return nil, ErrRPCNotConfigured
	}
	for _, endpoint := range endpoints {
		if err := utils.ValidateRPCURL(endpoint); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RPCServer{
		endpoints:  endpoints,
		httpClient: utils.CreateHTTPClientWithTimeouts(),
		logger:     logger.With("component", "rpc_server"),
		clients:    make(map[string]*gethrpc.Client),
	}, nil
}

var _ RPC = (*RPCServer)(nil)

// Endpoints returns the configured endpoints in failover order
func (s *RPCServer) Endpoints() []string {
	return s.endpoints
}

// Call implements RPC. Node-reported JSON-RPC errors are returned as
// *types.RPCError without trying further endpoints.
func (s *RPCServer) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	args := utils.ParamsSlice(params)
	if params != nil && args == nil {
		args = []any{params}
	}

	var lastErr error
	for i, endpoint := range s.endpoints {
		if i > 0 {
			delay := time.Duration(i*constants.DelayBetweenRPCCalls) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		client, err := s.client(ctx, endpoint)
		if err != nil {
			lastErr = &EndpointError{Endpoint: endpoint, Err: err}
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, constants.RPCTimeout)
		var raw json.RawMessage
		err = client.CallContext(callCtx, &raw, method, args...)
		cancel()
		if err == nil {
			return raw, nil
		}

		var nodeErr gethrpc.Error
		if errors.As(err, &nodeErr) {
			return nil, types.NewRPCError(nodeErr.ErrorCode(), nodeErr.Error())
		}

		s.logger.Warn("RPC call failed, trying next endpoint", "endpoint", endpoint, "method", method, "error", err)
		lastErr = &EndpointError{Endpoint: endpoint, Err: err}
	}

	return nil, fmt.Errorf("all RPC endpoints failed: %w", lastErr)
}

// GetBlockNumber returns the latest block number
func (s *RPCServer) GetBlockNumber(ctx context.Context) (uint64, error) {
	raw, err := s.Call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}
	var n hexutil.Uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("failed to decode block number: %w", err)
	}
	return uint64(n), nil
}

// GetBlockByNumber returns the raw block for a block tag or hex number
func (s *RPCServer) GetBlockByNumber(ctx context.Context, block string, fullTransactions bool) (json.RawMessage, error) {
	return s.Call(ctx, "eth_getBlockByNumber", []any{block, fullTransactions})
}

// LogFilter is the eth_getLogs filter object. A nil entry in Topics matches any topic.
type LogFilter struct {
	FromBlock string     `json:"fromBlock,omitempty"`
	ToBlock   string     `json:"toBlock,omitempty"`
	BlockHash string     `json:"blockHash,omitempty"`
	Address   []string   `json:"address,omitempty"`
	Topics    [][]string `json:"topics,omitempty"`
}

// GetFilterLogs returns the raw logs matching filter
func (s *RPCServer) GetFilterLogs(ctx context.Context, filter LogFilter) (json.RawMessage, error) {
	return s.Call(ctx, "eth_getLogs", []any{filter})
}

// CallContract performs an eth_call against the latest block
func (s *RPCServer) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	return callContract(ctx, s, to, data)
}

func callContract(ctx context.Context, rpc RPC, to string, data []byte) ([]byte, error) {
	msg := map[string]any{
		"to":   to,
		"data": hexutil.Encode(data),
	}

	ctx, cancel := context.WithTimeout(ctx, constants.CallContractTimeout)
	defer cancel()

	raw, err := rpc.Call(ctx, "eth_call", []any{msg, "latest"})
	if err != nil {
		return nil, err
	}
	var out hexutil.Bytes
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode contract call result: %w", err)
	}
	return out, nil
}

// Close closes every dialed client
func (s *RPCServer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for endpoint, client := range s.clients {
		client.Close()
		delete(s.clients, endpoint)
	}
}

func (s *RPCServer) client(ctx context.Context, endpoint string) (*gethrpc.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[endpoint]; ok {
		return client, nil
	}
	client, err := gethrpc.DialOptions(ctx, endpoint, gethrpc.WithHTTPClient(s.httpClient))
	if err != nil {
		return nil, err
	}
	s.clients[endpoint] = client
	return client, nil
}
