package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the minimal product projection the storefront works with.
type Product struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CartItem pairs a product with the quantity held in the cart.
// Quantity is always at least 1; a quantity of zero means removal.
type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// LineTotal returns unit price multiplied by quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Product.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// WishlistItem marks a product as saved; presence is the only state.
type WishlistItem struct {
	ProductID uuid.UUID `json:"product_id"`
}

// Coupon is a validated discount code stored client-side.
type Coupon struct {
	Code            string          `json:"code"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Applied         bool            `json:"applied"`
}

// Totals is derived pricing state, recomputed from cart and coupon on
// every read and never stored.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
}
