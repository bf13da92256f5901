package types

import (
	"encoding/json"
	"fmt"
)

// Request is the canonical unit of host-bound work
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// HandlerParams is what the host handler receives
// ID is only set under the callback strategy
type HandlerParams struct {
	ID      string `json:"id,omitempty"`
	Network string `json:"network"`
	Name    string `json:"name"`
	Params  any    `json:"params,omitempty"`

	// Object mirrors Params for hosts reading the older field name
	Object any `json:"object,omitempty"`
}

// RPCError is a provider error carrying a stable numeric code
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func NewRPCError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rpc error %d", e.Code)
	}
	return e.Message
}

// ErrorCode returns the numeric code
func (e *RPCError) ErrorCode() int {
	return e.Code
}

// HostError wraps a non-error rejection value delivered by the host
type HostError struct {
	Payload any
}

func (e *HostError) Error() string {
	b, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Sprintf("host error: %v", e.Payload)
	}
	return fmt.Sprintf("host error: %s", b)
}

// JSONRPCRequest is a JSON-RPC 2.0 request envelope
type JSONRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response envelope
type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}
