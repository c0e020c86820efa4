// Package vesting holds the domain model of the engine and the pure
// functions that turn raw on-chain schedule tuples into normalized
// schedules and per-beneficiary totals. Nothing in this package performs
// I/O.
package vesting

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const CategoryVesting Category = "VESTING"

// Source is the provenance of a persisted contract ABI.
type Source string

const (
	SourceCacheLegacy Source = "CACHE_LEGACY"
	SourceBasescan    Source = "BASESCAN"
	SourceRoutescan   Source = "ROUTESCAN"
	SourceUploaded    Source = "UPLOADED"
)

// VestingContract identifies one on-chain vesting contract registered for
// a token. It is read-only to the engine.
type VestingContract struct {
	TokenID   string    `json:"tokenId"`
	Address   string    `json:"address"`
	Network   string    `json:"network"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type ContractAbi struct {
	TokenID         string    `json:"tokenId"`
	ContractAddress string    `json:"contractAddress"`
	Network         string    `json:"network"`
	ABI             string    `json:"abi"`
	Source          Source    `json:"source"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ExplorerKeys are tenant supplied API keys that take precedence over the
// service wide explorer keys.
type ExplorerKeys struct {
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
}

// TokenContext is the tenant scope of a request.
type TokenContext struct {
	TokenID  string       `json:"tokenId"`
	Address  string       `json:"address"`
	Network  string       `json:"network"`
	Symbol   string       `json:"symbol"`
	Decimals uint8        `json:"decimals"`
	Keys     ExplorerKeys `json:"-"`
}

// RawVestingEntry is one schedule exactly as a contract reported it, in
// token base units and unix seconds. Releasable is nil when the contract
// does not expose a releasable or claimable amount.
type RawVestingEntry struct {
	Beneficiary string
	Total       *big.Int
	Released    *big.Int
	Start       uint64
	Duration    uint64
	Cliff       uint64
	Releasable  *big.Int
	ScheduleID  string
	Phase       string
}

type NormalizedSchedule struct {
	ScheduleID string          `json:"scheduleId,omitempty"`
	Phase      string          `json:"phase,omitempty"`
	Total      decimal.Decimal `json:"total"`
	Released   decimal.Decimal `json:"released"`
	Remaining  decimal.Decimal `json:"remaining"`
	Releasable decimal.Decimal `json:"releasable"`
	// Estimated is set when Releasable was derived from elapsed time rather
	// than read from the contract.
	Estimated bool      `json:"estimated"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	CliffEnd  time.Time `json:"cliffEnd"`
}

func (s NormalizedSchedule) Vested() decimal.Decimal {
	return s.Released.Add(s.Releasable)
}

// BeneficiaryAggregate is one beneficiary within one contract. NoVestings
// marks a beneficiary that genuinely has no schedules; Error marks one whose
// schedules could not be retrieved. The two are never set together.
type BeneficiaryAggregate struct {
	Beneficiary string               `json:"beneficiary"`
	Schedules   []NormalizedSchedule `json:"schedules"`
	Total       decimal.Decimal      `json:"total"`
	Released    decimal.Decimal      `json:"released"`
	Remaining   decimal.Decimal      `json:"remaining"`
	Releasable  decimal.Decimal      `json:"releasable"`
	NoVestings  bool                 `json:"noVestings"`
	Error       string               `json:"error,omitempty"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// IsHollow reports whether every summary amount is exactly zero. A hollow
// stored record is never a valid cache hit.
func (a BeneficiaryAggregate) IsHollow() bool {
	return a.Total.IsZero() && a.Released.IsZero() && a.Releasable.IsZero()
}

func (a BeneficiaryAggregate) Failed() bool {
	return a.Error != ""
}

func (a BeneficiaryAggregate) Vested() decimal.Decimal {
	return a.Released.Add(a.Releasable)
}

// Start returns the earliest schedule start, or the zero time.
func (a BeneficiaryAggregate) Start() time.Time {
	var result time.Time
	for _, s := range a.Schedules {
		if result.IsZero() || s.Start.Before(result) {
			result = s.Start
		}
	}
	return result
}

// End returns the latest schedule end, or the zero time.
func (a BeneficiaryAggregate) End() time.Time {
	var result time.Time
	for _, s := range a.Schedules {
		if s.End.After(result) {
			result = s.End
		}
	}
	return result
}

type Outcome string

const (
	OutcomeCacheHit   Outcome = "cache_hit"
	OutcomeFreshFetch Outcome = "fresh_fetch"
	OutcomeError      Outcome = "error"
)

type ContractOutcome struct {
	ContractAddress string  `json:"contractAddress"`
	Outcome         Outcome `json:"outcome"`
	Error           string  `json:"error,omitempty"`
}

// ContractVesting is the per-contract fragment of a wallet summary.
type ContractVesting struct {
	Contract  VestingContract      `json:"contract"`
	Token     TokenContext         `json:"token"`
	Aggregate BeneficiaryAggregate `json:"aggregate"`
	FromCache bool                 `json:"fromCache"`
}

// WalletVestingSummary is one beneficiary across all active vesting
// contracts of a token. It is built fresh for every request and never
// persisted.
type WalletVestingSummary struct {
	Wallet     string            `json:"wallet"`
	Network    string            `json:"network"`
	Contracts  []ContractVesting `json:"contracts"`
	Total      decimal.Decimal   `json:"total"`
	Released   decimal.Decimal   `json:"released"`
	Remaining  decimal.Decimal   `json:"remaining"`
	Releasable decimal.Decimal   `json:"releasable"`
	FromCache  bool              `json:"fromCache"`
	Outcomes   []ContractOutcome `json:"outcomes"`
	DebugLog   []string          `json:"debugLog"`
}
