package checkout

import (
	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Quote derives totals from the cart items and the applied coupon. It is a
// pure function: identical inputs always produce identical totals, and the
// discount is applied to the subtotal exactly once, never compounded.
func Quote(items []catalog.CartItem, coupon *catalog.Coupon) catalog.Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	total := subtotal
	if coupon != nil && coupon.Applied {
		factor := hundred.Sub(clampPercent(coupon.DiscountPercent))
		total = subtotal.Mul(factor).Div(hundred).Round(2)
	}

	return catalog.Totals{Subtotal: subtotal, Total: total}
}

func clampPercent(pct decimal.Decimal) decimal.Decimal {
	if pct.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}
