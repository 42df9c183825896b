package vat

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPriceWithVAT(t *testing.T) {
	gross, err := PriceWithVAT(dec("100"), dec("25"))
	require.NoError(t, err)
	require.True(t, gross.Equal(dec("125")), "got %s", gross)
}

func TestPriceWithVATRoundsHalfUp(t *testing.T) {
	// 99.99 * 1.19 = 118.9881 -> 118.99
	gross, err := PriceWithVAT(dec("99.99"), dec("19"))
	require.NoError(t, err)
	require.True(t, gross.Equal(dec("118.99")), "got %s", gross)

	// 10.05 * 1.05 = 10.5525 -> 10.55; half-up case: 10.10 * 1.25 = 12.625 -> 12.63
	gross, err = PriceWithVAT(dec("10.10"), dec("25"))
	require.NoError(t, err)
	require.True(t, gross.Equal(dec("12.63")), "got %s", gross)
}

func TestPriceWithoutVAT(t *testing.T) {
	net, err := PriceWithoutVAT(dec("125"), dec("25"))
	require.NoError(t, err)
	require.True(t, net.Equal(dec("100")), "got %s", net)
}

func TestZeroVAT(t *testing.T) {
	b, err := Compute(dec("42.50"), decimal.Zero, false)
	require.NoError(t, err)
	require.True(t, b.WithVAT.Equal(b.WithoutVAT))
	require.True(t, b.VATAmount.IsZero())
}

func TestNegativeAmountRejected(t *testing.T) {
	_, err := PriceWithVAT(dec("-1"), dec("25"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = PriceWithoutVAT(dec("10"), dec("-5"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Compute(dec("-0.01"), decimal.Zero, true)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestComputeFromGross(t *testing.T) {
	b, err := Compute(dec("125"), dec("25"), true)
	require.NoError(t, err)
	require.True(t, b.WithoutVAT.Equal(dec("100")), "net %s", b.WithoutVAT)
	require.True(t, b.VATAmount.Equal(dec("25")), "vat %s", b.VATAmount)
}

func TestComputeSumsExactly(t *testing.T) {
	cases := []struct {
		amount string
		pct    string
		gross  bool
	}{
		{"100", "25", false},
		{"119", "19", true},
		{"33.33", "7.7", false},
		{"0.01", "19", true},
		{"0", "19", false},
	}
	for _, tc := range cases {
		b, err := Compute(dec(tc.amount), dec(tc.pct), tc.gross)
		require.NoError(t, err)
		require.True(t, b.WithVAT.Sub(b.WithoutVAT).Equal(b.VATAmount),
			"amount=%s pct=%s gross=%v: %s - %s != %s", tc.amount, tc.pct, tc.gross, b.WithVAT, b.WithoutVAT, b.VATAmount)
	}
}

func TestRoundTripWithinOneCent(t *testing.T) {
	tolerance := dec("0.01")
	for _, net := range []string{"0", "0.01", "1", "33.33", "99.50", "100", "12345.67"} {
		for _, pct := range []string{"0", "7", "19", "25", "27"} {
			gross, err := PriceWithVAT(dec(net), dec(pct))
			require.NoError(t, err)
			back, err := PriceWithoutVAT(gross, dec(pct))
			require.NoError(t, err)
			diff := back.Sub(dec(net)).Abs()
			require.True(t, diff.LessThanOrEqual(tolerance),
				"net=%s pct=%s round-trip drift %s", net, pct, diff)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "100", FormatAmount(dec("100.00")))
	require.Equal(t, "99.50", FormatAmount(dec("99.5")))
	require.Equal(t, "0", FormatAmount(decimal.Zero))
	require.Equal(t, "12.35", FormatAmount(dec("12.345")))
}
