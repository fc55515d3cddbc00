// Package storefront is the composition root: it wires the API client,
// session manager, synchronized containers and the cross-store invalidator
// into a single client handle.
package storefront

import (
	"context"

	"go.uber.org/multierr"

	"github.com/angelmondragon/packfinderz-storefront/internal/apiclient"
	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/angelmondragon/packfinderz-storefront/internal/checkout"
	"github.com/angelmondragon/packfinderz-storefront/internal/coupon"
	"github.com/angelmondragon/packfinderz-storefront/internal/invalidator"
	"github.com/angelmondragon/packfinderz-storefront/internal/session"
	"github.com/angelmondragon/packfinderz-storefront/internal/sessionstore"
	"github.com/angelmondragon/packfinderz-storefront/internal/wishlist"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
	"github.com/angelmondragon/packfinderz-storefront/pkg/redis"
)

type Params struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// Client is the assembled storefront: one session, one cart, one wishlist,
// one coupon slot, all kept consistent by the invalidator.
type Client struct {
	logg    *logger.Logger
	api     *apiclient.Client
	session *session.Manager

	cart     *cart.Container
	wishlist *wishlist.Container
	coupons  *coupon.Engine

	redisClient *redis.Client
}

func New(ctx context.Context, params Params) (*Client, error) {
	if params.Config == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "storefront: Config is required")
	}
	cfg := params.Config

	api, err := apiclient.New(cfg.API, params.Logger)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building api client")
	}

	c := &Client{logg: params.Logger, api: api}

	store, err := c.buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	manager, err := session.NewManager(session.ManagerParams{
		API:         api,
		Store:       store,
		Logger:      params.Logger,
		Metrics:     params.Metrics,
		LogoutGrace: cfg.Session.LogoutGrace,
	})
	if err != nil {
		return nil, err
	}
	c.session = manager

	// the manager supplies tokens to the client whose calls it brokered
	api.SetTokenSource(manager)
	api.SetRefresher(manager)

	c.cart, err = cart.NewContainer(cart.ContainerParams{
		API:     api,
		Session: manager,
		Logger:  params.Logger,
		Metrics: params.Metrics,
	})
	if err != nil {
		return nil, err
	}

	c.wishlist, err = wishlist.NewContainer(wishlist.ContainerParams{
		API:     api,
		Session: manager,
		Logger:  params.Logger,
		Metrics: params.Metrics,
	})
	if err != nil {
		return nil, err
	}

	c.coupons, err = coupon.NewEngine(coupon.EngineParams{
		API:     api,
		Session: manager,
		Logger:  params.Logger,
		Metrics: params.Metrics,
	})
	if err != nil {
		return nil, err
	}

	inv := invalidator.New(params.Logger, params.Metrics)
	inv.Attach(c.cart, c.wishlist, c.coupons)
	inv.Register(manager)

	return c, nil
}

func (c *Client) buildStore(ctx context.Context, cfg *config.Config) (sessionstore.Store, error) {
	switch cfg.Session.Driver {
	case config.SessionDriverSQLite:
		return sessionstore.NewSQLite(cfg.Session.SQLitePath, cfg.Session.RecordKey)
	case config.SessionDriverRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		c.redisClient = client
		return sessionstore.NewRedis(client, cfg.Session.RecordKey, 0)
	case config.SessionDriverMemory:
		return sessionstore.NewMemory(), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unknown session driver "+cfg.Session.Driver)
	}
}

// Bootstrap restores a persisted session, if any, before the first render.
func (c *Client) Bootstrap(ctx context.Context) error {
	return c.session.Bootstrap(ctx)
}

// Login authenticates and establishes the session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.session.Login(ctx, email, password)
}

// Logout ends the session locally first, then best-effort on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// Verify confirms a bootstrapped session against the server in the
// background.
func (c *Client) Verify(ctx context.Context) error {
	return c.session.Verify(ctx)
}

func (c *Client) Session() *session.Manager {
	return c.session
}

func (c *Client) Cart() *cart.Container {
	return c.cart
}

func (c *Client) Wishlist() *wishlist.Container {
	return c.wishlist
}

func (c *Client) Coupons() *coupon.Engine {
	return c.coupons
}

// Totals prices the current cart with the applied coupon. Derived on every
// call, never cached.
func (c *Client) Totals() catalog.Totals {
	return checkout.Quote(c.cart.Items(), c.coupons.Current())
}

// Close releases owned connections.
func (c *Client) Close() error {
	var errs error
	if c.redisClient != nil {
		errs = multierr.Append(errs, c.redisClient.Close())
	}
	return errs
}
