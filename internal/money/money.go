// Package money keeps line and order totals on exact two-decimal amounts.
package money

import "github.com/shopspring/decimal"

const places = 2

// LineTotal returns unitPrice * qty rounded to cents.
func LineTotal(unitPrice float64, qty int) float64 {
	return decimal.NewFromFloat(unitPrice).
		Mul(decimal.NewFromInt(int64(qty))).
		Round(places).
		InexactFloat64()
}

// Sum adds amounts without accumulating binary floating point drift.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.Round(places).InexactFloat64()
}

// Round rounds an amount to cents.
func Round(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(places).InexactFloat64()
}

// Format renders an amount with two decimals.
func Format(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}
