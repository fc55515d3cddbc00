package devserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

type cartAddRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type wishlistAddRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

type couponValidateRequest struct {
	Code string `json:"code" validate:"required"`
}

type couponResponse struct {
	Code            string          `json:"code"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	var body cartAddRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	s.mu.Lock()
	cart := s.carts[claims.UserID]
	if cart == nil {
		cart = make(map[uuid.UUID]int)
		s.carts[claims.UserID] = cart
	}
	next := cart[body.ProductID] + body.Quantity
	if next > maxLineQuantity {
		s.mu.Unlock()
		writeError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeServerRejected, "quantity cap exceeded"))
		return
	}
	cart[body.ProductID] = next
	s.mu.Unlock()

	writeSuccessStatus(w, http.StatusCreated, map[string]int{"quantity": next})
}

func (s *Server) handleCartSetQuantity(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	productID, err := parseProductID(r)
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	var body cartQuantityRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}
	if body.Quantity > maxLineQuantity {
		writeError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeServerRejected, "quantity cap exceeded"))
		return
	}

	s.mu.Lock()
	cart := s.carts[claims.UserID]
	if cart == nil {
		cart = make(map[uuid.UUID]int)
		s.carts[claims.UserID] = cart
	}
	cart[productID] = body.Quantity
	s.mu.Unlock()

	writeSuccess(w, map[string]int{"quantity": body.Quantity})
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	productID, err := parseProductID(r)
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	s.mu.Lock()
	delete(s.carts[claims.UserID], productID)
	s.mu.Unlock()

	writeSuccess(w, map[string]bool{"removed": true})
}

func (s *Server) handleWishlistAdd(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	var body wishlistAddRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	s.mu.Lock()
	list := s.wishlists[claims.UserID]
	if list == nil {
		list = make(map[uuid.UUID]struct{})
		s.wishlists[claims.UserID] = list
	}
	list[body.ProductID] = struct{}{}
	s.mu.Unlock()

	writeSuccessStatus(w, http.StatusCreated, map[string]bool{"saved": true})
}

func (s *Server) handleWishlistRemove(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	productID, err := parseProductID(r)
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	s.mu.Lock()
	delete(s.wishlists[claims.UserID], productID)
	s.mu.Unlock()

	writeSuccess(w, map[string]bool{"removed": true})
}

func (s *Server) handleCouponValidate(w http.ResponseWriter, r *http.Request) {
	if _, err := claimsFromContext(r.Context()); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	var body couponValidateRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	code := strings.ToUpper(strings.TrimSpace(body.Code))

	s.mu.Lock()
	rule, ok := s.coupons[code]
	if !ok {
		s.mu.Unlock()
		writeError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeServerRejected, "unknown coupon code"))
		return
	}
	if rule.expired {
		s.mu.Unlock()
		writeError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeServerRejected, "coupon expired"))
		return
	}
	if rule.remainingUses == 0 {
		s.mu.Unlock()
		writeError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeServerRejected, "coupon already used"))
		return
	}
	if rule.remainingUses > 0 {
		rule.remainingUses--
	}
	result := couponResponse{Code: rule.code, DiscountPercent: rule.discountPercent}
	s.mu.Unlock()

	writeSuccess(w, result)
}

func parseProductID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "productID")
	productID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return productID, nil
}
