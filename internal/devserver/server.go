// Package devserver is a self-contained storefront API stub. It backs local
// development and the client's integration tests: real JWTs, rotating
// refresh tokens, argon2id password checks, and in-memory commerce state.
package devserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/security"
	"github.com/angelmondragon/packfinderz-storefront/pkg/types"
)

const maxLineQuantity = 99

type Params struct {
	Config   config.DevServerConfig
	Password config.PasswordConfig
	Logger   *logger.Logger
}

type account struct {
	identity     types.Identity
	passwordHash string
}

type couponRule struct {
	code            string
	discountPercent decimal.Decimal
	expired         bool
	remainingUses   int // negative means unlimited
}

// Server holds every piece of state behind the stub API. All state is
// process-local and lost on restart, which is the point.
type Server struct {
	cfg  config.DevServerConfig
	logg *logger.Logger

	mu           sync.Mutex
	accounts     map[string]*account  // keyed by lowercase email
	refresh      map[string]uuid.UUID // refresh token -> user id
	carts        map[uuid.UUID]map[uuid.UUID]int
	wishlists    map[uuid.UUID]map[uuid.UUID]struct{}
	coupons      map[string]*couponRule // keyed by uppercase code
	issuedAt     map[string]time.Time   // jti -> exact issue time; iat in the claim is second-truncated
	expireBefore time.Time              // access tokens issued before this count as expired
}

func New(params Params) (*Server, error) {
	if params.Config.JWTSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "devserver: JWT secret is required")
	}

	s := &Server{
		cfg:       params.Config,
		logg:      params.Logger,
		accounts:  make(map[string]*account),
		refresh:   make(map[string]uuid.UUID),
		carts:     make(map[uuid.UUID]map[uuid.UUID]int),
		wishlists: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		coupons:   make(map[string]*couponRule),
		issuedAt:  make(map[string]time.Time),
	}

	if params.Config.SeedEmail != "" {
		hash, err := security.HashPassword(params.Config.SeedPassword, params.Password)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing seed password")
		}
		email := strings.ToLower(params.Config.SeedEmail)
		s.accounts[email] = &account{
			identity: types.Identity{
				UserID:      uuid.New(),
				Email:       email,
				DisplayName: "Demo Shopper",
			},
			passwordHash: hash,
		}
	}

	s.coupons["SAVE10"] = &couponRule{code: "SAVE10", discountPercent: decimal.NewFromInt(10), remainingUses: -1}
	s.coupons["SAVE20"] = &couponRule{code: "SAVE20", discountPercent: decimal.NewFromInt(20), remainingUses: -1}
	s.coupons["EXPIRED"] = &couponRule{code: "EXPIRED", discountPercent: decimal.NewFromInt(15), expired: true}
	s.coupons["WELCOME5"] = &couponRule{code: "WELCOME5", discountPercent: decimal.NewFromInt(5), remainingUses: 1}

	return s, nil
}

// Router assembles the stub's HTTP surface under /v1.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID(s.logg))
	r.Use(logging(s.logg))
	r.Use(recoverer(s.logg))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/logout", s.handleLogout)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth())
				r.Get("/me", s.handleMe)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth())

			r.Route("/cart", func(r chi.Router) {
				r.Post("/items", s.handleCartAdd)
				r.Put("/items/{productID}", s.handleCartSetQuantity)
				r.Delete("/items/{productID}", s.handleCartRemove)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Post("/items", s.handleWishlistAdd)
				r.Delete("/items/{productID}", s.handleWishlistRemove)
			})

			r.Post("/coupons/validate", s.handleCouponValidate)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]string{"status": "ok"})
}

// ExpireActiveTokens makes every access token issued so far report as
// expired, without waiting for the JWT TTL. Lets callers exercise the
// refresh path deterministically.
func (s *Server) ExpireActiveTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireBefore = time.Now()
}

// RevokeRefreshTokens drops every outstanding refresh token, so the next
// refresh attempt is rejected as revoked.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]uuid.UUID)
}
