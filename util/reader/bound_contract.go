package reader

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/tranvictor/vestingscope/common"
)

// BoundContract is a contract address paired with its ABI on one network.
// The ABI may be nil, in which case only raw calls are possible.
type BoundContract struct {
	reader  *EthReader
	address string
	abi     *abi.ABI
}

func NewBoundContract(reader *EthReader, address string, a *abi.ABI) *BoundContract {
	return &BoundContract{
		reader:  reader,
		address: address,
		abi:     a,
	}
}

func (bc *BoundContract) Address() string {
	return bc.address
}

func (bc *BoundContract) Method(name string) (abi.Method, bool) {
	if bc.abi == nil {
		return abi.Method{}, false
	}
	m, found := bc.abi.Methods[name]
	return m, found
}

func (bc *BoundContract) Call(ctx context.Context, method string, args ...interface{}) (common.CallResult, error) {
	if bc.abi == nil {
		return common.CallResult{}, fmt.Errorf("%s: %w", method, common.ErrMethodNotInABI)
	}
	return bc.reader.ReadContractWithABI(ctx, bc.address, bc.abi, method, args...)
}

func (bc *BoundContract) CallRaw(ctx context.Context, data []byte) ([]byte, error) {
	return bc.reader.CallRaw(ctx, bc.address, data)
}
