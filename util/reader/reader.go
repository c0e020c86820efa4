package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/tranvictor/vestingscope/common"
)

var DEFAULT_ADDRESS string = "0x0000000000000000000000000000000000000000"

// EthReader sends every read to all of its nodes at once and returns the
// first successful answer.
type EthReader struct {
	nodes map[string]EthereumNode
}

func NewEthReaderGeneric(nodes map[string]string) *EthReader {
	ns := map[string]EthereumNode{}
	for name, c := range nodes {
		ns[name] = NewOneNodeReader(name, c)
	}
	return NewEthReaderWithNodes(ns)
}

func NewEthReaderWithNodes(nodes map[string]EthereumNode) *EthReader {
	return &EthReader{nodes: nodes}
}

func wrapError(e error, name string) error {
	if e == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, e)
}

type readContractToBytesResponse struct {
	Data  []byte
	Error error
}

// CallRaw performs an eth_call of data against caddr.
func (er *EthReader) CallRaw(ctx context.Context, caddr string, data []byte) ([]byte, error) {
	if len(er.nodes) == 0 {
		return nil, fmt.Errorf("no nodes configured")
	}
	resCh := make(chan readContractToBytesResponse, len(er.nodes))
	for i := range er.nodes {
		n := er.nodes[i]
		go func() {
			out, err := n.CallContract(ctx, DEFAULT_ADDRESS, caddr, data)
			resCh <- readContractToBytesResponse{
				Data:  out,
				Error: wrapError(err, n.NodeName()),
			}
		}()
	}
	errs := []error{}
	for i := 0; i < len(er.nodes); i++ {
		result := <-resCh
		if result.Error == nil {
			return result.Data, nil
		}
		errs = append(errs, result.Error)
	}
	return nil, fmt.Errorf("couldn't read from any nodes: %w", errors.Join(errs...))
}

func (er *EthReader) ReadContractToBytes(
	ctx context.Context,
	caddr string,
	abi *abi.ABI,
	method string,
	args ...interface{},
) ([]byte, error) {
	data, err := abi.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	return er.CallRaw(ctx, caddr, data)
}

// ReadContractWithABI calls method on caddr and unpacks its outputs.
func (er *EthReader) ReadContractWithABI(
	ctx context.Context,
	caddr string,
	abi *abi.ABI,
	method string,
	args ...interface{},
) (common.CallResult, error) {
	m, found := abi.Methods[method]
	if !found {
		return common.CallResult{}, fmt.Errorf("%s: %w", method, common.ErrMethodNotInABI)
	}
	responseBytes, err := er.ReadContractToBytes(ctx, caddr, abi, method, args...)
	if err != nil {
		return common.CallResult{}, err
	}
	if len(responseBytes) == 0 && len(m.Outputs) > 0 {
		return common.CallResult{}, fmt.Errorf("%s: %w", method, common.ErrEmptyReturnData)
	}
	values, err := abi.Unpack(method, responseBytes)
	if err != nil {
		return common.CallResult{}, fmt.Errorf("unpacking %s: %w", method, err)
	}
	return common.CallResult{Outputs: m.Outputs, Values: values}, nil
}

func (er *EthReader) ERC20Decimal(ctx context.Context, caddr string) (uint8, error) {
	res, err := er.ReadContractWithABI(ctx, caddr, common.GetERC20ABI(), "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := res.Values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", res.Values[0])
	}
	return decimals, nil
}

func (er *EthReader) ERC20Symbol(ctx context.Context, caddr string) (string, error) {
	res, err := er.ReadContractWithABI(ctx, caddr, common.GetERC20ABI(), "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := res.Values[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected symbol type %T", res.Values[0])
	}
	return symbol, nil
}

type codeResponse struct {
	Code  []byte
	Error error
}

// IsContract reports whether address has code deployed.
func (er *EthReader) IsContract(ctx context.Context, address string) (bool, error) {
	if len(er.nodes) == 0 {
		return false, fmt.Errorf("no nodes configured")
	}
	resCh := make(chan codeResponse, len(er.nodes))
	for i := range er.nodes {
		n := er.nodes[i]
		go func() {
			code, err := n.CodeAt(ctx, address)
			resCh <- codeResponse{
				Code:  code,
				Error: wrapError(err, n.NodeName()),
			}
		}()
	}
	errs := []error{}
	for i := 0; i < len(er.nodes); i++ {
		result := <-resCh
		if result.Error == nil {
			return len(result.Code) > 0, nil
		}
		errs = append(errs, result.Error)
	}
	return false, fmt.Errorf("couldn't read from any nodes: %w", errors.Join(errs...))
}
