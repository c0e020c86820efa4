package resolver

import (
	"context"
	"fmt"
	"testing"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func TestResolveContractBeneficiaries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, contractA)
	f.chain.set(contractA, func(ctx context.Context, holder gethcommon.Address) ([]schedule, error) {
		if holder == gethcommon.HexToAddress("0x0000000000000000000000000000000000000003") {
			return nil, fmt.Errorf("execution reverted")
		}
		if holder == gethcommon.HexToAddress("0x0000000000000000000000000000000000000004") {
			return nil, nil
		}
		s := sched(10, 0)
		s.Beneficiary = holder
		return []schedule{s}, nil
	})

	beneficiaries := []string{}
	for i := 1; i <= 12; i++ {
		beneficiaries = append(beneficiaries, fmt.Sprintf("0x%040x", i))
	}
	beneficiaries = append(beneficiaries, "not-an-address")

	summary, err := f.resolver.ResolveContractBeneficiaries(ctx, token, contractA, network, beneficiaries, false)
	if err != nil {
		t.Fatalf("ResolveContractBeneficiaries: %v", err)
	}
	if len(summary.Beneficiaries) != 13 {
		t.Fatalf("expected every beneficiary in the result, got %d", len(summary.Beneficiaries))
	}
	if summary.Failed != 2 || summary.NoVestings != 1 {
		t.Fatalf("failed=%d noVestings=%d, want 2 and 1", summary.Failed, summary.NoVestings)
	}
	if !summary.Total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total = %s, want 100", summary.Total)
	}
	if f.limiter.waits != 11 {
		t.Fatalf("twelve live fetches need eleven waits, got %d", f.limiter.waits)
	}

	again, err := f.resolver.ResolveContractBeneficiaries(ctx, token, contractA, network, beneficiaries[:2], false)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	for _, b := range again.Beneficiaries {
		if !b.FromCache {
			t.Fatalf("expected %s from cache", b.Aggregate.Beneficiary)
		}
	}
}

func TestResolveContractBeneficiariesUnknownContract(t *testing.T) {
	f := newFixture(t)
	if _, err := f.resolver.ResolveContractBeneficiaries(context.Background(), token, contractA, network, []string{walletAddr}, false); err == nil {
		t.Fatalf("expected an error for an unregistered contract")
	}
}
