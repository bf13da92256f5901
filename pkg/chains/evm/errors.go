package evm

import (
	"errors"
	"fmt"

	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
)

var (
	ErrRPCNotConfigured = errors.New("no RPC endpoint configured")
	ErrChainIDMismatch  = errors.New("Provided chainId does not match the currently active chain")
)

// UnsupportedMethodError builds the error returned for methods the provider never forwards
func UnsupportedMethodError(method string) *types.RPCError {
	return types.NewRPCError(constants.ErrorCodeUnsupportedMethod,
		fmt.Sprintf("EthereumProvider does not support calling %s", method))
}

// MissingAddressError is returned by signing methods that need a connected account
func MissingAddressError(method string) error {
	return fmt.Errorf("Unable to execute %s", method)
}

// EndpointError represents a transport failure against one RPC endpoint
type EndpointError struct {
	Endpoint string
	Err      error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("RPC error on %s: %v", e.Endpoint, e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}
