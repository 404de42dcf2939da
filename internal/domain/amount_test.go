package domain

import "testing"

func TestMulDivAvoidsOverflow(t *testing.T) {
	// The intermediate product here overflows int64; MulDiv must still divide
	// exactly.
	big := int64(6_000_000_000_000_000_000)
	if got := MulDiv(big, 2, 4); got != big/2 {
		t.Errorf("MulDiv large = %d, want %d", got, big/2)
	}

	// Share math shape: amount * totalShares / totalAssets.
	amount := int64(9_000_000_000) * AmountScale
	if got := MulDiv(amount, 3, 2); got != amount/2*3 {
		t.Errorf("MulDiv = %d, want %d", got, amount/2*3)
	}
}

func TestMulDivTruncatesTowardZero(t *testing.T) {
	if got := MulDiv(10, 1, 3); got != 3 {
		t.Errorf("MulDiv(10,1,3) = %d, want 3", got)
	}
	if got := MulDiv(0, 5, 7); got != 0 {
		t.Errorf("MulDiv zero = %d, want 0", got)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.000000"},
		{AmountScale, "1.000000"},
		{1_500_000, "1.500000"},
		{42, "0.000042"},
		{-2_250_000, "-2.250000"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
