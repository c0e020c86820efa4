package reader

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/tranvictor/vestingscope/common"
)

type fakeNode struct {
	name string
	call func(data []byte) ([]byte, error)
	code []byte
}

func (f *fakeNode) NodeName() string { return f.name }

func (f *fakeNode) CallContract(ctx context.Context, from, to string, data []byte) ([]byte, error) {
	return f.call(data)
}

func (f *fakeNode) CodeAt(ctx context.Context, address string) ([]byte, error) {
	if f.call == nil {
		return f.code, nil
	}
	if _, err := f.call(nil); err != nil {
		return nil, err
	}
	return f.code, nil
}

func failing(name string) *fakeNode {
	return &fakeNode{name: name, call: func([]byte) ([]byte, error) {
		return nil, errors.New("connection refused")
	}}
}

func TestCallRawFirstSuccessWins(t *testing.T) {
	ok := &fakeNode{name: "good", call: func(data []byte) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}}
	er := NewEthReaderWithNodes(map[string]EthereumNode{"bad": failing("bad"), "good": ok})

	got, err := er.CallRaw(context.Background(), "0x01", []byte{0xaa})
	if err != nil {
		t.Fatalf("CallRaw: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("unexpected data %x", got)
	}
}

func TestCallRawAllNodesFail(t *testing.T) {
	er := NewEthReaderWithNodes(map[string]EthereumNode{"a": failing("a"), "b": failing("b")})

	_, err := er.CallRaw(context.Background(), "0x01", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "couldn't read from any nodes") || !strings.Contains(err.Error(), "a:") {
		t.Fatalf("error should name every node: %v", err)
	}
}

func TestReadContractWithABI(t *testing.T) {
	erc20 := common.GetERC20ABI()
	node := &fakeNode{name: "n", call: func(data []byte) ([]byte, error) {
		m, err := erc20.MethodById(data[:4])
		if err != nil {
			return nil, err
		}
		switch m.Name {
		case "decimals":
			return m.Outputs.Pack(uint8(6))
		case "symbol":
			return m.Outputs.Pack("VEST")
		case "balanceOf":
			return m.Outputs.Pack(big.NewInt(42))
		}
		return nil, errors.New("unexpected method")
	}}
	er := NewEthReaderWithNodes(map[string]EthereumNode{"n": node})

	decimals, err := er.ERC20Decimal(context.Background(), "0x01")
	if err != nil || decimals != 6 {
		t.Fatalf("ERC20Decimal = %d, %v", decimals, err)
	}
	symbol, err := er.ERC20Symbol(context.Background(), "0x01")
	if err != nil || symbol != "VEST" {
		t.Fatalf("ERC20Symbol = %q, %v", symbol, err)
	}

	bc := NewBoundContract(er, "0x01", erc20)
	if _, found := bc.Method("balanceOf"); !found {
		t.Fatalf("balanceOf should be found")
	}
	if _, found := bc.Method("getVestingListByHolder"); found {
		t.Fatalf("getVestingListByHolder should not be found")
	}
	res, err := bc.Call(context.Background(), "balanceOf", common.HexToAddress("0x02"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.Values[0].(*big.Int).Int64() != 42 {
		t.Fatalf("balance = %v", res.Values[0])
	}
	if _, err := bc.Call(context.Background(), "missing"); !errors.Is(err, common.ErrMethodNotInABI) {
		t.Fatalf("expected ErrMethodNotInABI, got %v", err)
	}
}

func TestReadContractEmptyReturn(t *testing.T) {
	node := &fakeNode{name: "n", call: func([]byte) ([]byte, error) { return nil, nil }}
	er := NewEthReaderWithNodes(map[string]EthereumNode{"n": node})

	_, err := er.ERC20Decimal(context.Background(), "0x01")
	if !errors.Is(err, common.ErrEmptyReturnData) {
		t.Fatalf("expected ErrEmptyReturnData, got %v", err)
	}
}

func TestProviderUnknownNetwork(t *testing.T) {
	p := NewProvider(nil)
	if _, err := p.Reader("nope"); err == nil {
		t.Fatalf("expected error for unknown network")
	}
	r1, err := p.Reader("base")
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	r2, _ := p.Reader("base-mainnet")
	if r1 != r2 {
		t.Fatalf("readers should be shared across network aliases")
	}
}

func TestIsContract(t *testing.T) {
	withCode := &fakeNode{name: "a", code: []byte{0x60, 0x80}}
	eoa := &fakeNode{name: "b"}

	isContract, err := NewEthReaderWithNodes(map[string]EthereumNode{"a": withCode}).IsContract(context.Background(), "0x01")
	if err != nil || !isContract {
		t.Fatalf("expected a contract, got %v, %v", isContract, err)
	}
	isContract, err = NewEthReaderWithNodes(map[string]EthereumNode{"b": eoa}).IsContract(context.Background(), "0x01")
	if err != nil || isContract {
		t.Fatalf("expected no code, got %v, %v", isContract, err)
	}
	if _, err := NewEthReaderWithNodes(map[string]EthereumNode{"c": failing("c")}).IsContract(context.Background(), "0x01"); err == nil {
		t.Fatalf("expected an error when every node fails")
	}
}
