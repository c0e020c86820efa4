package common

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// BigToDecimal converts an on-chain integer amount to a decimal according to
// the token's number of decimal digits.
// Example:
// - BigToDecimal(1100, 3) = 1.1
// - BigToDecimal(1100, 5) = 0.011
// A nil amount is treated as zero.
func BigToDecimal(b *big.Int, decimals uint8) decimal.Decimal {
	if b == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(b, -int32(decimals))
}

// MinBig returns the smaller of a and b. Neither argument is modified.
func MinBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// ClampZero returns b, or zero when b is negative or nil.
func ClampZero(b *big.Int) *big.Int {
	if b == nil || b.Sign() < 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(b)
}
