package domain

import (
	"fmt"
	"math/big"
)

// AmountScale is the fixed-point scale for all asset amounts: 1_000000 = 1.0
// unit of the underlying stablecoin (6 decimals).
const AmountScale int64 = 1_000000

// Amount is a fixed-point asset quantity at AmountScale.
type Amount = int64

// MulDiv computes a*b/den without intermediate int64 overflow. den must be
// non-zero; callers guard the zero-denominator cases explicitly.
func MulDiv(a, b, den int64) int64 {
	num := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	num.Div(num, big.NewInt(den))
	return num.Int64()
}

// FormatAmount renders a fixed-point amount as a decimal string for logs and
// API responses.
func FormatAmount(a int64) string {
	neg := ""
	if a < 0 {
		neg = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%06d", neg, a/AmountScale, a%AmountScale)
}
