package reader

import (
	"context"
)

type EthereumNode interface {
	NodeName() string
	CallContract(ctx context.Context, from, to string, data []byte) ([]byte, error)
	CodeAt(ctx context.Context, address string) ([]byte, error)
}
