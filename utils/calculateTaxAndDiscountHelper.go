package utils

import (
	"github.com/shopspring/decimal"
)

var decimalOneHundred = decimal.NewFromInt(100)

// CalculateDiscountAmount returns subTotal * (discountPercentage / 100).
// Intermediate division keeps 4 decimal places so long carts don't drift.
func CalculateDiscountAmount(subTotal decimal.Decimal, discountPercentage decimal.Decimal) decimal.Decimal {
	if !discountPercentage.IsPositive() {
		return decimal.Zero
	}
	return subTotal.Mul(discountPercentage).DivRound(decimalOneHundred, 4)
}

// CalculateGstAmount returns amountAfterDiscount * (gstPercentage / 100).
// Gst is always applied to the post-discount amount.
func CalculateGstAmount(amountAfterDiscount decimal.Decimal, gstPercentage decimal.Decimal) decimal.Decimal {
	if !gstPercentage.IsPositive() {
		return decimal.Zero
	}
	return amountAfterDiscount.Mul(gstPercentage).DivRound(decimalOneHundred, 4)
}

// CalculateFlatTaxAmount returns totalAmount * ((gstRate + igstRate) / 100),
// the invoice-level tax used when callers supply a flat rate instead of
// per-line gst.
func CalculateFlatTaxAmount(totalAmount decimal.Decimal, gstRate decimal.Decimal, igstRate decimal.Decimal) decimal.Decimal {
	combined := gstRate.Add(igstRate)
	if !combined.IsPositive() {
		return decimal.Zero
	}
	return totalAmount.Mul(combined).DivRound(decimalOneHundred, 4)
}

// Round2 fixes a monetary value to 2 decimal places for display/storage of
// final figures.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
