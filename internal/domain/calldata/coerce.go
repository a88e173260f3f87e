package calldata

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/dvm/internal/domain"
)

// CoerceArguments converts loosely typed values (as decoded from YAML or typed
// at a prompt) into the Go types expected by the ABI packer.
func CoerceArguments(args abi.Arguments, raw []any) ([]any, error) {
	if len(raw) != len(args) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(args), len(raw))
	}
	out := make([]any, len(raw))
	for i, arg := range args {
		v, err := Coerce(raw[i], arg.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, arg.Type.String(), err)
		}
		out[i] = v
	}
	return out, nil
}

// Coerce converts a single value to the Go representation of typ
func Coerce(raw any, typ abi.Type) (any, error) {
	switch typ.T {
	case abi.AddressTy:
		return coerceAddress(raw)
	case abi.UintTy, abi.IntTy:
		return coerceInteger(raw, typ)
	case abi.BoolTy:
		return coerceBool(raw)
	case abi.StringTy:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprint(raw), nil
	case abi.BytesTy:
		return coerceBytes(raw)
	case abi.FixedBytesTy:
		b, err := coerceBytes(raw)
		if err != nil {
			return nil, err
		}
		if len(b) > typ.Size {
			return nil, fmt.Errorf("value is %d bytes, want at most %d", len(b), typ.Size)
		}
		arr := reflect.New(typ.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(common.RightPadBytes(b, typ.Size)))
		return arr.Interface(), nil
	case abi.SliceTy, abi.ArrayTy:
		return coerceList(raw, typ)
	}

	v := reflect.ValueOf(raw)
	if v.IsValid() && v.Type().AssignableTo(typ.GetType()) {
		return raw, nil
	}
	return nil, fmt.Errorf("unsupported type %s", typ.String())
}

func coerceAddress(raw any) (common.Address, error) {
	switch v := raw.(type) {
	case common.Address:
		return v, nil
	case string:
		if !common.IsHexAddress(v) {
			return common.Address{}, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, v)
		}
		return common.HexToAddress(v), nil
	}
	return common.Address{}, fmt.Errorf("%w: %v", domain.ErrInvalidAddress, raw)
}

func coerceInteger(raw any, typ abi.Type) (any, error) {
	n, err := toBigInt(raw)
	if err != nil {
		return nil, err
	}
	if typ.T == abi.UintTy {
		if n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %s for %s", n, typ.String())
		}
		if n.BitLen() > typ.Size {
			return nil, fmt.Errorf("value %s overflows %s", n, typ.String())
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(typ.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("value %s overflows %s", n, typ.String())
		}
	}

	target := typ.GetType()
	if target.Kind() == reflect.Ptr {
		return n, nil
	}
	if typ.T == abi.UintTy {
		return reflect.ValueOf(n.Uint64()).Convert(target).Interface(), nil
	}
	return reflect.ValueOf(n.Int64()).Convert(target).Interface(), nil
}

func toBigInt(raw any) (*big.Int, error) {
	switch v := raw.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case float64:
		// YAML integers beyond 64 bits arrive as float64 and have already lost precision
		if math.Abs(v) >= math.MaxInt64 {
			return nil, fmt.Errorf("integer %v is too large for a YAML number, quote it as a string", v)
		}
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("non-integer value %v", v)
		}
		return big.NewInt(int64(v)), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), "_", "")
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", v)
		}
		return n, nil
	}
	return nil, fmt.Errorf("invalid integer %v (%T)", raw, raw)
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	}
	return false, fmt.Errorf("invalid bool %v", raw)
}

func coerceBytes(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case common.Hash:
		return v.Bytes(), nil
	case string:
		b, err := hexutil.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %w", v, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("invalid bytes %v", raw)
}

func coerceList(raw any, typ abi.Type) (any, error) {
	rv := reflect.ValueOf(raw)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, fmt.Errorf("expected a list for %s, got %T", typ.String(), raw)
	}
	if typ.T == abi.ArrayTy && rv.Len() != typ.Size {
		return nil, fmt.Errorf("expected %d elements for %s, got %d", typ.Size, typ.String(), rv.Len())
	}

	var out reflect.Value
	if typ.T == abi.ArrayTy {
		out = reflect.New(typ.GetType()).Elem()
	} else {
		out = reflect.MakeSlice(typ.GetType(), rv.Len(), rv.Len())
	}
	for i := 0; i < rv.Len(); i++ {
		elem, err := Coerce(rv.Index(i).Interface(), *typ.Elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(reflect.ValueOf(elem))
	}
	return out.Interface(), nil
}
