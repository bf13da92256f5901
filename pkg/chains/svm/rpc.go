package svm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/utils"
)

// SendOptions mirrors the wallet-standard send options
type SendOptions struct {
	SkipPreflight       bool   `json:"skipPreflight,omitempty"`
	PreflightCommitment string `json:"preflightCommitment,omitempty"`
	MaxRetries          *uint  `json:"maxRetries,omitempty"`
}

// ClusterClient submits signed transactions to a Solana cluster
type ClusterClient struct {
	endpoint string
	client   *rpc.Client
	logger   *slog.Logger
}

// NewClusterClient creates a client for the given cluster RPC URL
func NewClusterClient(endpoint string, logger *slog.Logger) (*ClusterClient, error) {
	if err := utils.ValidateRPCURL(endpoint); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ClusterClient{
		endpoint: endpoint,
		client:   rpc.New(endpoint),
		logger:   logger.With("component", "solana_cluster"),
	}, nil
}

// Endpoint returns the cluster RPC URL
func (c *ClusterClient) Endpoint() string {
	return c.endpoint
}

// SendRawTransaction submits a serialized signed transaction and returns its signature
func (c *ClusterClient) SendRawTransaction(ctx context.Context, raw []byte, opts *SendOptions) (solana.Signature, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RPCTimeout)
	defer cancel()

	txOpts := rpc.TransactionOpts{PreflightCommitment: rpc.CommitmentConfirmed}
	if opts != nil {
		txOpts.SkipPreflight = opts.SkipPreflight
		txOpts.MaxRetries = opts.MaxRetries
		if opts.PreflightCommitment != "" {
			txOpts.PreflightCommitment = rpc.CommitmentType(opts.PreflightCommitment)
		}
	}

	sig, err := c.client.SendRawTransactionWithOpts(ctx, raw, txOpts)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Debug("transaction submitted", "signature", sig.String())
	return sig, nil
}
