package utils

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sigweihq/web3provider/pkg/constants"
)

func CreateHTTPClientWithTimeouts() *http.Client {
	return &http.Client{
		Timeout: constants.RPCTimeout,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   constants.TLSHandshakeTimeout,
			ResponseHeaderTimeout: constants.ResponseHeaderTimeout,
			ExpectContinueTimeout: constants.ExpectContinueTimeout,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // Disable redirects to prevent redirect-based SSRF
		},
	}
}

// ValidateRPCURL validates that an RPC endpoint URL is secure
// Returns error if URL doesn't use HTTPS (except for localhost/127.0.0.1 for testing)
func ValidateRPCURL(url string) error {
	if !strings.HasPrefix(url, "https://") {
		// Allow http://localhost and http://127.0.0.1 for testing
		if strings.HasPrefix(url, "http://localhost") ||
			strings.HasPrefix(url, "http://127.0.0.1") ||
			strings.HasPrefix(url, "http://[::1]") {
			return nil
		}
		return fmt.Errorf("RPC URL must use HTTPS: %s", url)
	}
	return nil
}

// ValidateBridgeURL validates a websocket host URL
// Plain ws:// is only accepted for loopback hosts
func ValidateBridgeURL(url string) error {
	if strings.HasPrefix(url, "wss://") {
		return nil
	}
	if strings.HasPrefix(url, "ws://localhost") ||
		strings.HasPrefix(url, "ws://127.0.0.1") ||
		strings.HasPrefix(url, "ws://[::1]") {
		return nil
	}
	return fmt.Errorf("bridge URL must use WSS: %s", url)
}
