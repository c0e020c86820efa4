package resolver

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tranvictor/vestingscope/common"
	"github.com/tranvictor/vestingscope/store"
	"github.com/tranvictor/vestingscope/vesting"
)

type BeneficiaryResult struct {
	Aggregate vesting.BeneficiaryAggregate `json:"aggregate"`
	FromCache bool                         `json:"fromCache"`
}

// ContractSummary is the vesting state of many beneficiaries of one
// contract. Failed beneficiaries are listed but left out of the totals.
type ContractSummary struct {
	Contract      vesting.VestingContract `json:"contract"`
	Token         vesting.TokenContext    `json:"token"`
	Beneficiaries []BeneficiaryResult     `json:"beneficiaries"`
	Total         decimal.Decimal         `json:"total"`
	Released      decimal.Decimal         `json:"released"`
	Remaining     decimal.Decimal         `json:"remaining"`
	Releasable    decimal.Decimal         `json:"releasable"`
	Failed        int                     `json:"failed"`
	NoVestings    int                     `json:"noVestings"`
}

// ResolveContractBeneficiaries resolves beneficiaries of one contract in
// batches of the configured size. Beneficiaries are processed one after the
// other and a failing one, timeouts included, is recorded without stopping
// the rest.
func (r *Resolver) ResolveContractBeneficiaries(ctx context.Context, tc vesting.TokenContext, contractAddress, network string, beneficiaries []string, force bool) (ContractSummary, error) {
	if tc.TokenID == "" {
		return ContractSummary{}, ErrNoTokenContext
	}
	if network == "" {
		network = tc.Network
	}
	c, err := r.contracts.GetVestingContract(ctx, tc.TokenID, contractAddress, network)
	if err != nil {
		return ContractSummary{}, fmt.Errorf("vesting contract %s: %w", contractAddress, err)
	}
	network = c.Network
	tc = r.withTokenIdentity(ctx, tc, network)

	result := ContractSummary{
		Contract:      r.displayName(ctx, c, tc),
		Token:         tc,
		Beneficiaries: make([]BeneficiaryResult, 0, len(beneficiaries)),
		Total:         decimal.Zero,
		Released:      decimal.Zero,
		Remaining:     decimal.Zero,
		Releasable:    decimal.Zero,
	}
	session := &fetchSession{limiter: r.limiter}
	batches := (len(beneficiaries) + r.batchSize - 1) / r.batchSize

	for b := 0; b < batches; b++ {
		start := b * r.batchSize
		end := start + r.batchSize
		if end > len(beneficiaries) {
			end = len(beneficiaries)
		}
		r.l.WithFields(logrus.Fields{
			"contract": c.Address,
			"batch":    fmt.Sprintf("%d/%d", b+1, batches),
			"size":     end - start,
		}).Info("resolving beneficiary batch")

		for _, beneficiary := range beneficiaries[start:end] {
			br := r.resolveBeneficiary(ctx, session, tc, c, beneficiary, network, force)
			result.Beneficiaries = append(result.Beneficiaries, br)
			switch {
			case br.Aggregate.Failed():
				result.Failed++
				continue
			case br.Aggregate.NoVestings:
				result.NoVestings++
			}
			result.Total = result.Total.Add(br.Aggregate.Total)
			result.Released = result.Released.Add(br.Aggregate.Released)
			result.Remaining = result.Remaining.Add(br.Aggregate.Remaining)
			result.Releasable = result.Releasable.Add(br.Aggregate.Releasable)
		}
	}
	return result, nil
}

func (r *Resolver) resolveBeneficiary(ctx context.Context, session *fetchSession, tc vesting.TokenContext, c vesting.VestingContract, beneficiary, network string, force bool) BeneficiaryResult {
	if !common.IsAddress(beneficiary) {
		return BeneficiaryResult{Aggregate: vesting.Failed(beneficiary, fmt.Errorf("%w: %q", ErrInvalidWallet, beneficiary))}
	}
	beneficiary = common.NormalizeAddress(beneficiary)
	l := r.l.WithFields(logrus.Fields{
		"token":       tc.TokenID,
		"contract":    c.Address,
		"beneficiary": beneficiary,
		"network":     network,
	})
	k := store.Key{TokenID: tc.TokenID, Contract: c.Address, Beneficiary: beneficiary, Network: network}

	if !force {
		if agg, hit := r.cached(ctx, l, k); hit {
			return BeneficiaryResult{Aggregate: agg, FromCache: true}
		}
	}
	if err := session.begin(ctx); err != nil {
		return BeneficiaryResult{Aggregate: vesting.Failed(beneficiary, err)}
	}
	agg, err := r.fetch(ctx, tc, c, beneficiary, network)
	if err != nil {
		l.WithError(err).Warn("resolving beneficiary failed")
		return BeneficiaryResult{Aggregate: vesting.Failed(beneficiary, err)}
	}
	_ = r.persist(ctx, l, k, agg, r.vestings.ReplaceAll)
	return BeneficiaryResult{Aggregate: agg}
}
