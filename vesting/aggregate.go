package vesting

import (
	"github.com/shopspring/decimal"
)

// Aggregate sums the schedules of one beneficiary within one contract. The
// totals are always recomputed from the schedules. A beneficiary without
// schedules yields an all zero aggregate flagged NoVestings.
func Aggregate(beneficiary string, schedules []NormalizedSchedule) BeneficiaryAggregate {
	result := BeneficiaryAggregate{
		Beneficiary: beneficiary,
		Schedules:   make([]NormalizedSchedule, len(schedules)),
		Total:       decimal.Zero,
		Released:    decimal.Zero,
		Remaining:   decimal.Zero,
		Releasable:  decimal.Zero,
		NoVestings:  len(schedules) == 0,
	}
	copy(result.Schedules, schedules)
	for _, s := range schedules {
		result.Total = result.Total.Add(s.Total)
		result.Released = result.Released.Add(s.Released)
		result.Remaining = result.Remaining.Add(s.Remaining)
		result.Releasable = result.Releasable.Add(s.Releasable)
	}
	return result
}

// Failed returns the aggregate recorded for a beneficiary whose schedules
// could not be retrieved.
func Failed(beneficiary string, err error) BeneficiaryAggregate {
	result := Aggregate(beneficiary, nil)
	result.NoVestings = false
	result.Error = err.Error()
	return result
}

// AggregateWallet sums the per-contract aggregates of one wallet into a
// summary. Failed aggregates are kept in the breakdown but do not count
// towards the totals. FromCache is true only when at least one contract
// produced a result and every one of them was served from cache.
func AggregateWallet(wallet, network string, contracts []ContractVesting) WalletVestingSummary {
	result := WalletVestingSummary{
		Wallet:     wallet,
		Network:    network,
		Contracts:  make([]ContractVesting, len(contracts)),
		Total:      decimal.Zero,
		Released:   decimal.Zero,
		Remaining:  decimal.Zero,
		Releasable: decimal.Zero,
		FromCache:  len(contracts) > 0,
		Outcomes:   []ContractOutcome{},
		DebugLog:   []string{},
	}
	copy(result.Contracts, contracts)
	for _, c := range contracts {
		if !c.FromCache {
			result.FromCache = false
		}
		if c.Aggregate.Failed() {
			continue
		}
		result.Total = result.Total.Add(c.Aggregate.Total)
		result.Released = result.Released.Add(c.Aggregate.Released)
		result.Remaining = result.Remaining.Add(c.Aggregate.Remaining)
		result.Releasable = result.Releasable.Add(c.Aggregate.Releasable)
	}
	return result
}
