// Package calldata encodes contract calls described by human readable
// signatures such as "grantRole(bytes32,address)".
package calldata

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ParseSignature parses "name(type1,type2)" into a method. Output types are
// only needed for calls whose return data is compared.
func ParseSignature(signature string, returns ...string) (abi.Method, error) {
	signature = strings.TrimSpace(signature)
	open := strings.Index(signature, "(")
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return abi.Method{}, fmt.Errorf("invalid signature %q: expected name(type,...)", signature)
	}

	name := signature[:open]
	inputs, err := parseArguments(splitTypes(signature[open+1 : len(signature)-1]))
	if err != nil {
		return abi.Method{}, fmt.Errorf("invalid signature %q: %w", signature, err)
	}
	outputs, err := parseArguments(returns)
	if err != nil {
		return abi.Method{}, fmt.Errorf("invalid return types for %q: %w", signature, err)
	}

	return abi.NewMethod(name, name, abi.Function, "nonpayable", false, false, inputs, outputs), nil
}

// Encode packs a call to signature with raw (YAML/CLI sourced) arguments
func Encode(signature string, raw []any) ([]byte, error) {
	method, err := ParseSignature(signature)
	if err != nil {
		return nil, err
	}
	args, err := CoerceArguments(method.Inputs, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method.Sig, err)
	}
	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method.Sig, err)
	}
	return append(method.ID, packed...), nil
}

// EncodeReturn packs values the way a call returning types would encode them
func EncodeReturn(types []string, raw []any) ([]byte, error) {
	outputs, err := parseArguments(types)
	if err != nil {
		return nil, err
	}
	values, err := CoerceArguments(outputs, raw)
	if err != nil {
		return nil, err
	}
	return outputs.Pack(values...)
}

func parseArguments(types []string) (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(types))
	for i, t := range types {
		typ, err := abi.NewType(strings.TrimSpace(t), "", nil)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", t, err)
		}
		args = append(args, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: typ})
	}
	return args, nil
}

// splitTypes splits a comma separated type list, ignoring commas nested in
// parentheses or brackets.
func splitTypes(list string) []string {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil
	}
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range list {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(list[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(list[start:]))
}
