// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits of line totals and sums.
const MoneyScale int32 = 2

// PriceScale is the number of fractional digits stored for unit prices
// (NUMERIC(12,4)).
const PriceScale int32 = 4

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// RoundMoney rounds half away from zero to MoneyScale digits.
// For the non-negative amounts handled here that is round-half-up.
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}

// LineTotal returns round(quantity * unitPrice) at MoneyScale.
func LineTotal(quantity int, unitPrice Money) Money {
	return RoundMoney(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// SumMoney adds already rounded amounts. The result is exact.
func SumMoney(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// FormatMoney renders m with exactly MoneyScale fractional digits.
func FormatMoney(m Money) string {
	return m.StringFixed(MoneyScale)
}

// FormatPrice renders a unit price with exactly PriceScale fractional digits,
// so quantity * price can be checked against the rounded line total.
func FormatPrice(p Money) string {
	return p.StringFixed(PriceScale)
}
