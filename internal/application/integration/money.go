package integration

import (
	"github.com/shopspring/decimal"

	"github.com/erp/erli-connector/internal/domain/integration"
)

var (
	hundred           = decimal.NewFromInt(100)
	mismatchTolerance = decimal.RequireFromString("0.01")
)

// MinorToMajor converts grosze to złoty.
func MinorToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// GrossToMinor converts a tax-included price to minor units, rounding half
// away from zero and flooring at 0.
func GrossToMinor(gross decimal.Decimal) int64 {
	minor := gross.Mul(hundred).Round(0).IntPart()
	if minor < 0 {
		return 0
	}
	return minor
}

// KilogramsToGrams converts a weight, rounded and floored at 1 gram.
func KilogramsToGrams(kg decimal.Decimal) int64 {
	grams := kg.Mul(decimal.NewFromInt(1000)).Round(0).IntPart()
	if grams < 1 {
		return 1
	}
	return grams
}

// OrderAmounts are the amounts of a marketplace order in major units.
// A nil field was not derivable from the order.
type OrderAmounts struct {
	Total    *decimal.Decimal
	Items    *decimal.Decimal
	Shipping *decimal.Decimal
}

// AmountsOf derives the order amounts with the marketplace fallback chain.
func AmountsOf(order *integration.MarketplaceOrder) OrderAmounts {
	var out OrderAmounts
	if minor, ok := order.TotalMinor(); ok {
		v := MinorToMajor(minor)
		out.Total = &v
	}
	if minor, ok := order.ItemsTotalMinor(); ok {
		v := MinorToMajor(minor)
		out.Items = &v
	}
	if minor, ok := order.DeliveryMinor(); ok {
		v := MinorToMajor(minor)
		out.Shipping = &v
	}
	return out
}

// Mismatch reports whether the marketplace total differs from the cart total
// by more than one grosz.
func (a OrderAmounts) Mismatch(cartTotal decimal.Decimal) bool {
	if a.Total == nil {
		return false
	}
	return a.Total.Sub(cartTotal).Abs().GreaterThan(mismatchTolerance)
}

// FinalTotals returns the totals recorded on the order: the marketplace total
// when known, else the cart total.
func (a OrderAmounts) FinalTotals(cartTotal decimal.Decimal) integration.OrderTotals {
	paid := cartTotal
	if a.Total != nil {
		paid = *a.Total
	}
	return integration.OrderTotals{Paid: paid, Products: a.Items, Shipping: a.Shipping}
}

// ShippingCost returns the shipping amount, 0 when unknown.
func (a OrderAmounts) ShippingCost() decimal.Decimal {
	if a.Shipping == nil {
		return decimal.Zero
	}
	return *a.Shipping
}
