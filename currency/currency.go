// Package currency is the single conversion boundary between bill currency
// (USD) and payment currency (NGN). The rate is static configuration; there
// is no live FX.
package currency

import (
	"math"

	"github.com/shopspring/decimal"

	"billing-service/models"
)

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// MaxAmount is the exclusive upper bound of a stored amount. Amount columns
// are numeric(14,2).
var MaxAmount = decimal.New(1, 12)

// InRange reports whether amount is positive, below MaxAmount and has at
// most two decimal places.
func InRange(amount decimal.Decimal) bool {
	return amount.IsPositive() &&
		amount.LessThan(MaxAmount) &&
		amount.Equal(amount.Truncate(2))
}

// Converter converts bill amounts into the payment currency at a fixed rate.
type Converter struct {
	rate decimal.Decimal
}

// NewConverter returns a converter for the given USD->NGN rate.
func NewConverter(usdToNgn decimal.Decimal) Converter {
	return Converter{rate: usdToNgn}
}

// Rate returns the configured USD->NGN rate.
func (c Converter) Rate() decimal.Decimal { return c.rate }

// ToNaira converts a USD amount to NGN.
func (c Converter) ToNaira(usd decimal.Decimal) decimal.Decimal {
	return usd.Mul(c.rate)
}

// BillAmount is the NGN amount a bill debits from the balance.
func (c Converter) BillAmount(b models.Bill) decimal.Decimal {
	return c.ToNaira(b.AmountUSD)
}

// ToMinorUnits converts a major-unit amount (naira) into minor units (kobo).
// It reports false when the amount has sub-kobo precision or does not fit
// in an int64.
func ToMinorUnits(amount decimal.Decimal) (int64, bool) {
	minor := amount.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, false
	}
	if minor.Abs().GreaterThan(maxMinor) {
		return 0, false
	}
	return minor.IntPart(), true
}
