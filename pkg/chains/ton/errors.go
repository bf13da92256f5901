package ton

import (
	"errors"

	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
)

// TonConnectError is a wallet error in the TonConnect code space
type TonConnectError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *TonConnectError) Error() string {
	return e.Message
}

func badRequest() *TonConnectError {
	return &TonConnectError{Code: constants.TonConnectBadRequest, Message: "Bad request"}
}

// errorCode extracts the numeric code carried by err, if any
func errorCode(err error) (int, bool) {
	var tcErr *TonConnectError
	if errors.As(err, &tcErr) {
		return tcErr.Code, true
	}
	var rpcErr *types.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code, true
	}
	return 0, false
}

// toTonConnectError maps a host error onto the TonConnect wallet error codes
func toTonConnectError(err error) *TonConnectError {
	code, ok := errorCode(err)
	switch {
	case ok && code == constants.ErrorCodeUserRejected:
		return &TonConnectError{Code: constants.TonConnectUserDeclined, Message: "User declined the transaction"}
	case ok && code == constants.ErrorCodeResourceBusy:
		return badRequest()
	case !ok || !isTonConnectCode(code):
		return badRequest()
	default:
		return &TonConnectError{Code: code, Message: err.Error()}
	}
}

func isTonConnectCode(code int) bool {
	switch code {
	case constants.TonConnectUnknownError,
		constants.TonConnectBadRequest,
		constants.TonConnectUnknownApp,
		constants.TonConnectUserDeclined,
		constants.TonConnectMethodNotSupported:
		return true
	}
	return false
}
