// Package vat converts between net and gross monetary amounts.
//
// All arithmetic is carried out at full precision and only the final
// result is rounded, half-up, to two decimal places. Gross amounts are
// always derived from net plus a VAT percentage, never authored
// independently, so the two sides cannot drift apart.
package vat

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a negative amount is supplied.
var ErrInvalidAmount = errors.New("vat: amount must be non-negative")

var oneHundred = decimal.NewFromInt(100)

// PriceWithVAT computes the gross amount for a net price and VAT percentage.
func PriceWithVAT(net, vatPct decimal.Decimal) (decimal.Decimal, error) {
	if err := validate(net, vatPct); err != nil {
		return decimal.Zero, err
	}
	if vatPct.IsZero() {
		return net.Round(2), nil
	}
	factor := decimal.NewFromInt(1).Add(vatPct.Div(oneHundred))
	return net.Mul(factor).Round(2), nil
}

// PriceWithoutVAT computes the net amount for a gross price and VAT percentage.
func PriceWithoutVAT(gross, vatPct decimal.Decimal) (decimal.Decimal, error) {
	if err := validate(gross, vatPct); err != nil {
		return decimal.Zero, err
	}
	if vatPct.IsZero() {
		return gross.Round(2), nil
	}
	factor := decimal.NewFromInt(1).Add(vatPct.Div(oneHundred))
	return gross.Div(factor).Round(2), nil
}

// Breakdown holds the three sides of a VAT calculation.
type Breakdown struct {
	WithVAT    decimal.Decimal `json:"withVat"`
	WithoutVAT decimal.Decimal `json:"withoutVat"`
	VATAmount  decimal.Decimal `json:"vatAmount"`
}

// Compute derives all three amounts from one known side. The VAT amount
// is the difference of the rounded gross and net values so the triple
// always sums consistently.
func Compute(amount, vatPct decimal.Decimal, amountIsGross bool) (Breakdown, error) {
	if amountIsGross {
		net, err := PriceWithoutVAT(amount, vatPct)
		if err != nil {
			return Breakdown{}, err
		}
		gross := amount.Round(2)
		return Breakdown{WithVAT: gross, WithoutVAT: net, VATAmount: gross.Sub(net)}, nil
	}
	gross, err := PriceWithVAT(amount, vatPct)
	if err != nil {
		return Breakdown{}, err
	}
	net := amount.Round(2)
	return Breakdown{WithVAT: gross, WithoutVAT: net, VATAmount: gross.Sub(net)}, nil
}

// FormatAmount renders an amount without zero-only decimals: 100 instead
// of 100.00, while 99.50 keeps its cents.
func FormatAmount(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	if rounded.Equal(rounded.Truncate(0)) {
		return rounded.Truncate(0).String()
	}
	return rounded.StringFixed(2)
}

func validate(amount, vatPct decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if vatPct.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}
