package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrEmptyReturnData = errors.New("contract returned no data")
	ErrMethodNotInABI  = errors.New("method not in contract abi")
)

// CallResult holds the unpacked outputs of a contract call together with
// the argument descriptions they were unpacked with, so consumers can read
// values by output name.
type CallResult struct {
	Outputs abi.Arguments
	Values  []interface{}
}

// Named returns the outputs keyed by their declared name. Unnamed outputs
// are skipped.
func (r CallResult) Named() map[string]interface{} {
	result := map[string]interface{}{}
	for i, arg := range r.Outputs {
		if arg.Name == "" || i >= len(r.Values) {
			continue
		}
		result[arg.Name] = r.Values[i]
	}
	return result
}

// RawCall is a low level contract call identified only by its function
// signature, e.g. "getVestingSchedules(address)". It owns selector
// derivation and argument encoding so callers never handle calldata or
// hex strings themselves.
type RawCall struct {
	signature string
	selector  [4]byte
	inputs    abi.Arguments
	outputs   abi.Arguments
}

func NewRawCall(signature string, outputs abi.Arguments) (*RawCall, error) {
	signature = strings.ReplaceAll(signature, " ", "")
	types, err := signatureInputs(signature)
	if err != nil {
		return nil, err
	}
	inputs := abi.Arguments{}
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			return nil, fmt.Errorf("input type %s of %s: %w", t, signature, err)
		}
		inputs = append(inputs, abi.Argument{Type: typ})
	}
	result := &RawCall{
		signature: signature,
		inputs:    inputs,
		outputs:   outputs,
	}
	copy(result.selector[:], crypto.Keccak256([]byte(signature))[:4])
	return result, nil
}

// ParseArguments builds abi.Arguments from their JSON ABI description, the
// shape used for outputs in config files.
func ParseArguments(ms []abi.ArgumentMarshaling) (abi.Arguments, error) {
	result := abi.Arguments{}
	for _, m := range ms {
		typ, err := abi.NewType(m.Type, m.InternalType, m.Components)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", m.Name, err)
		}
		result = append(result, abi.Argument{Name: m.Name, Type: typ})
	}
	return result, nil
}

func signatureInputs(signature string) ([]string, error) {
	open := strings.Index(signature, "(")
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return nil, fmt.Errorf("malformed function signature %q", signature)
	}
	inner := signature[open+1 : len(signature)-1]
	if inner == "" {
		return nil, nil
	}
	if strings.ContainsAny(inner, "()") {
		return nil, fmt.Errorf("tuple inputs are not supported in raw calls: %q", signature)
	}
	return strings.Split(inner, ","), nil
}

func (rc *RawCall) Signature() string {
	return rc.signature
}

func (rc *RawCall) Selector() [4]byte {
	return rc.selector
}

func (rc *RawCall) Outputs() abi.Arguments {
	return rc.outputs
}

// Encode returns the calldata for args: the 4 byte selector followed by the
// ABI encoded arguments.
func (rc *RawCall) Encode(args ...interface{}) ([]byte, error) {
	packed, err := rc.inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", rc.signature, err)
	}
	data := make([]byte, 0, len(rc.selector)+len(packed))
	data = append(data, rc.selector[:]...)
	return append(data, packed...), nil
}

func (rc *RawCall) Decode(data []byte) (CallResult, error) {
	if len(data) == 0 {
		return CallResult{}, fmt.Errorf("%s: %w", rc.signature, ErrEmptyReturnData)
	}
	values, err := rc.outputs.Unpack(data)
	if err != nil {
		return CallResult{}, fmt.Errorf("decoding %s: %w", rc.signature, err)
	}
	return CallResult{Outputs: rc.outputs, Values: values}, nil
}
