package apiclient

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type cartAddRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type wishlistAddRequest struct {
	ProductID uuid.UUID `json:"product_id"`
}

type couponValidateRequest struct {
	Code string `json:"code"`
}

// CouponResult is the server's verdict on a coupon code.
type CouponResult struct {
	Code            string          `json:"code"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// CartAdd adds quantity units of the product to the server-side cart.
func (c *Client) CartAdd(ctx context.Context, productID uuid.UUID, quantity int) error {
	return c.withAuthRetry(ctx, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, "/v1/cart/items", cartAddRequest{ProductID: productID, Quantity: quantity}, nil)
	})
}

// CartSetQuantity replaces the quantity for the product in the server-side cart.
func (c *Client) CartSetQuantity(ctx context.Context, productID uuid.UUID, quantity int) error {
	return c.withAuthRetry(ctx, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPut, "/v1/cart/items/"+productID.String(), cartQuantityRequest{Quantity: quantity}, nil)
	})
}

// CartRemove drops the product from the server-side cart.
func (c *Client) CartRemove(ctx context.Context, productID uuid.UUID) error {
	return c.withAuthRetry(ctx, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodDelete, "/v1/cart/items/"+productID.String(), nil, nil)
	})
}

// WishlistAdd saves the product to the server-side wishlist.
func (c *Client) WishlistAdd(ctx context.Context, productID uuid.UUID) error {
	return c.withAuthRetry(ctx, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, "/v1/wishlist/items", wishlistAddRequest{ProductID: productID}, nil)
	})
}

// WishlistRemove drops the product from the server-side wishlist.
func (c *Client) WishlistRemove(ctx context.Context, productID uuid.UUID) error {
	return c.withAuthRetry(ctx, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodDelete, "/v1/wishlist/items/"+productID.String(), nil, nil)
	})
}

// CouponValidate asks the server to validate the code and returns its
// discount. Rejection reasons are owned by the server and passed through
// opaquely.
func (c *Client) CouponValidate(ctx context.Context, code string) (*CouponResult, error) {
	var result CouponResult
	err := c.withAuthRetry(ctx, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, "/v1/coupons/validate", couponValidateRequest{Code: code}, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
