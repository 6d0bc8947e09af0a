package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"commitvault/internal/failure"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeArgs round-trips args through JSON so that values built in Go and
// values decoded from a request or a journal look the same: addresses and
// strings become string, numbers become json.Number.
func NormalizeArgs(args []any) ([]any, json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, nil, failure.Wrap(failure.KindInvalidArgument, "encode arguments", err)
	}
	out, err := DecodeArgs(raw)
	if err != nil {
		return nil, nil, err
	}
	return out, raw, nil
}

// DecodeArgs decodes a JSON array keeping numbers exact.
func DecodeArgs(raw json.RawMessage) ([]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out []any
	if err := dec.Decode(&out); err != nil {
		return nil, failure.Wrap(failure.KindInvalidArgument, "arguments must be a JSON array", err)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func argError(i int, want string, got any) error {
	return failure.New(failure.KindInvalidArgument, fmt.Sprintf("argument %d: want %s, got %T", i, want, got))
}

// ArgCount fails unless args has between min and max entries.
func ArgCount(args []any, min, max int) error {
	if len(args) < min || len(args) > max {
		if min == max {
			return failure.New(failure.KindInvalidArgument, fmt.Sprintf("want %d arguments, got %d", min, len(args)))
		}
		return failure.New(failure.KindInvalidArgument, fmt.Sprintf("want %d to %d arguments, got %d", min, max, len(args)))
	}
	return nil
}

// ArgAddress reads args[i] as a hex address.
func ArgAddress(args []any, i int) (common.Address, error) {
	if i >= len(args) {
		return common.Address{}, argError(i, "address", nil)
	}
	switch v := args[i].(type) {
	case common.Address:
		return v, nil
	case string:
		if !common.IsHexAddress(v) {
			return common.Address{}, argError(i, "address", v)
		}
		return common.HexToAddress(v), nil
	default:
		return common.Address{}, argError(i, "address", v)
	}
}

// ArgBig reads args[i] as a non-negative integer.
func ArgBig(args []any, i int) (*big.Int, error) {
	if i >= len(args) {
		return nil, argError(i, "integer", nil)
	}
	var s string
	switch v := args[i].(type) {
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int:
		s = fmt.Sprint(v)
	case *big.Int:
		if v == nil {
			return nil, argError(i, "integer", v)
		}
		s = v.String()
	default:
		return nil, argError(i, "integer", v)
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() < 0 {
		return nil, argError(i, "non-negative integer", args[i])
	}
	return n, nil
}

// ArgUint reads args[i] as a uint64.
func ArgUint(args []any, i int) (uint64, error) {
	n, err := ArgBig(args, i)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, argError(i, "uint64", args[i])
	}
	return n.Uint64(), nil
}

// ArgString reads args[i] as a string.
func ArgString(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", argError(i, "string", nil)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", argError(i, "string", args[i])
	}
	return s, nil
}

// ArgBool reads args[i] as a bool.
func ArgBool(args []any, i int) (bool, error) {
	if i >= len(args) {
		return false, argError(i, "bool", nil)
	}
	b, ok := args[i].(bool)
	if !ok {
		return false, argError(i, "bool", args[i])
	}
	return b, nil
}
