// Package store defines the persistence interfaces of the vesting engine:
// the beneficiary vesting cache, the vesting contract catalogue, resolved
// contract ABIs and tenant token contexts.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/tranvictor/vestingscope/vesting"
)

// Errors returned
var (
	ErrNotFound      = errors.New("data was not found in store")
	ErrInvalidRecord = errors.New("record is missing key fields")
)

// Key identifies one cached beneficiary aggregate.
type Key struct {
	TokenID     string
	Contract    string
	Beneficiary string
	Network     string
}

// Normalized returns the key with lower case addresses and network.
func (k Key) Normalized() Key {
	return Key{
		TokenID:     k.TokenID,
		Contract:    strings.ToLower(k.Contract),
		Beneficiary: strings.ToLower(k.Beneficiary),
		Network:     strings.ToLower(k.Network),
	}
}

func (k Key) Valid() bool {
	return k.TokenID != "" && k.Contract != "" && k.Beneficiary != "" && k.Network != ""
}

// VestingStore owns the persisted beneficiary aggregates and the schedule
// rows backing them.
type VestingStore interface {
	// Lookup returns ErrNotFound when nothing is stored under k.
	Lookup(ctx context.Context, k Key) (vesting.BeneficiaryAggregate, error)
	// ReplaceAll upserts the aggregate and replaces its whole schedule set
	// atomically.
	ReplaceAll(ctx context.Context, k Key, agg vesting.BeneficiaryAggregate) error
	// RefreshOne is ReplaceAll for an explicit single beneficiary refresh.
	RefreshOne(ctx context.Context, k Key, agg vesting.BeneficiaryAggregate) error
}

type ContractStore interface {
	// ListActiveVestingContracts returns the token's active vesting
	// contracts on network ordered by creation time, oldest first.
	ListActiveVestingContracts(ctx context.Context, tokenID, network string) ([]vesting.VestingContract, error)
	GetVestingContract(ctx context.Context, tokenID, address, network string) (vesting.VestingContract, error)
}

type AbiStore interface {
	GetContractAbi(ctx context.Context, tokenID, address, network string) (vesting.ContractAbi, error)
	// SaveContractAbi inserts or replaces the ABI of (token, address, network).
	SaveContractAbi(ctx context.Context, a vesting.ContractAbi) error
}

type TokenStore interface {
	GetToken(ctx context.Context, tokenID string) (vesting.TokenContext, error)
}

// DB is a complete store implementation.
type DB interface {
	VestingStore
	ContractStore
	AbiStore
	TokenStore
	Close() error
}
