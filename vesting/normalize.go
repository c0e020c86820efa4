package vesting

import (
	"math/big"
	"time"

	"github.com/tranvictor/vestingscope/common"
)

// maxUnix is 9999-12-31T23:59:59Z. Contracts occasionally report sentinel
// timestamps like type(uint64).max; those are capped here.
const maxUnix uint64 = 253402300799

func unixTime(sec uint64) time.Time {
	if sec > maxUnix {
		sec = maxUnix
	}
	return time.Unix(int64(sec), 0).UTC()
}

func addSeconds(a, b uint64) uint64 {
	if a > maxUnix || b > maxUnix-a {
		return maxUnix
	}
	return a + b
}

// Normalize converts a raw schedule into token units and derives its
// remaining and releasable amounts as of now.
//
// remaining is total minus released, clamped at zero. An explicit
// releasable reported by the contract is used as is, but never exceeds
// remaining. Otherwise releasable is estimated linearly from elapsed time:
// total * min(now-start, duration) / duration - released, clamped at zero,
// and zero until start has passed. The cliff is reported but does not gate
// the estimate; non linear contracts are approximated.
func Normalize(raw RawVestingEntry, decimals uint8, now time.Time) NormalizedSchedule {
	total := common.ClampZero(raw.Total)
	released := common.ClampZero(raw.Released)
	remaining := common.ClampZero(new(big.Int).Sub(total, released))

	var releasable *big.Int
	estimated := raw.Releasable == nil
	if estimated {
		releasable = linearReleasable(total, released, raw.Start, raw.Duration, now)
	} else {
		releasable = common.ClampZero(raw.Releasable)
	}
	releasable = common.MinBig(releasable, remaining)

	return NormalizedSchedule{
		ScheduleID: raw.ScheduleID,
		Phase:      raw.Phase,
		Total:      common.BigToDecimal(total, decimals),
		Released:   common.BigToDecimal(released, decimals),
		Remaining:  common.BigToDecimal(remaining, decimals),
		Releasable: common.BigToDecimal(releasable, decimals),
		Estimated:  estimated,
		Start:      unixTime(raw.Start),
		End:        unixTime(addSeconds(raw.Start, raw.Duration)),
		CliffEnd:   unixTime(addSeconds(raw.Start, raw.Cliff)),
	}
}

func linearReleasable(total, released *big.Int, start, duration uint64, now time.Time) *big.Int {
	nowUnix := now.Unix()
	if nowUnix <= 0 || uint64(nowUnix) <= start {
		return big.NewInt(0)
	}
	elapsed := uint64(nowUnix) - start
	vested := new(big.Int).Set(total)
	// a zero duration schedule is fully vested once start has passed
	if duration > 0 && elapsed < duration {
		vested.Mul(vested, new(big.Int).SetUint64(elapsed))
		vested.Quo(vested, new(big.Int).SetUint64(duration))
	}
	return common.ClampZero(vested.Sub(vested, released))
}
