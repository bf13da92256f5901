package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BufferToHex encodes bytes as 0x-prefixed hex ("0x" for empty input)
func BufferToHex(b []byte) string {
	return hexutil.Encode(b)
}

// HexToBuffer decodes hex with or without the 0x prefix
func HexToBuffer(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hexutil.Decode("0x" + s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}

// MessageToBuffer decodes a hex message leniently: decoding stops at the
// first invalid byte pair, so plain text yields an empty buffer
func MessageToBuffer(message string) []byte {
	s := strings.TrimPrefix(message, "0x")
	out := make([]byte, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		hi, ok1 := fromHexChar(s[i])
		lo, ok2 := fromHexChar(s[i+1])
		if !ok1 || !ok2 {
			break
		}
		out = append(out, hi<<4|lo)
	}
	return out
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// IsUTF8 reports whether b decodes as valid UTF-8 text
func IsUTF8(b []byte) bool {
	return utf8.Valid(b)
}

// DecodeResult converts a host result into out. Hosts answer with native
// values, raw JSON, or JSON encoded inside a string; all three are accepted.
func DecodeResult(result any, out any) error {
	switch r := result.(type) {
	case nil:
		return fmt.Errorf("empty result")
	case json.RawMessage:
		return json.Unmarshal(r, out)
	case []byte:
		return json.Unmarshal(r, out)
	case string:
		if err := json.Unmarshal([]byte(r), out); err == nil {
			return nil
		}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// ToMap normalises an object param (struct or map) into a generic map
func ToMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("params are not an object: %w", err)
	}
	return m, nil
}

// ParamsSlice returns positional params as []any, or nil when params is not a slice
func ParamsSlice(params any) []any {
	if params == nil {
		return nil
	}
	if s, ok := params.([]any); ok {
		return s
	}
	v := reflect.ValueOf(params)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out
}

// ParamAt returns the i-th positional param
func ParamAt(params any, i int) (any, error) {
	s := ParamsSlice(params)
	if i >= len(s) {
		return nil, fmt.Errorf("missing param at index %d", i)
	}
	return s[i], nil
}

// StringParamAt returns the i-th positional param as a string
func StringParamAt(params any, i int) (string, error) {
	p, err := ParamAt(params, i)
	if err != nil {
		return "", err
	}
	s, ok := p.(string)
	if !ok {
		return "", fmt.Errorf("param at index %d must be a string, got %T", i, p)
	}
	return s, nil
}
