// Command storefront runs the synchronizer end to end against a running
// API (the devserver by default) and walks through a demo shopping
// session: bootstrap, login, cart and wishlist mutations, a coupon, and
// logout.
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/angelmondragon/packfinderz-storefront/internal/session"
	"github.com/angelmondragon/packfinderz-storefront/internal/storefront"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	if cfg.Metrics.Enabled {
		go serveMetrics(logg, cfg.Metrics.Addr, registry)
	}

	ctx := context.Background()
	client, err := storefront.New(ctx, storefront.Params{
		Config:  cfg,
		Logger:  logg,
		Metrics: syncMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to build storefront client", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logg.Error(ctx, "error closing storefront client", err)
		}
	}()

	if err := client.Bootstrap(ctx); err != nil {
		logg.Error(ctx, "failed to restore persisted session", err)
		os.Exit(1)
	}

	if client.Session().State() == session.StateAuthenticated {
		// confirm the restored session without blocking the flow
		go func() {
			if err := client.Verify(ctx); err != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "session verification failed")
			}
		}()
	} else {
		if err := client.Login(ctx, cfg.DevServer.SeedEmail, cfg.DevServer.SeedPassword); err != nil {
			logg.Error(ctx, "login failed", err)
			os.Exit(1)
		}
	}

	if err := runDemoFlow(ctx, logg, client); err != nil {
		logg.Error(ctx, "demo flow failed", err)
		os.Exit(1)
	}
}

func runDemoFlow(ctx context.Context, logg *logger.Logger, client *storefront.Client) error {
	pack := catalog.Product{
		ID:        uuid.New(),
		Name:      "OG Kush Pack",
		UnitPrice: decimal.RequireFromString("50.00"),
	}
	stickers := catalog.Product{
		ID:        uuid.New(),
		Name:      "Sticker Sheet",
		UnitPrice: decimal.RequireFromString("30.00"),
	}

	if err := client.Cart().Add(ctx, pack, 1); err != nil {
		return err
	}
	if err := client.Cart().Add(ctx, stickers, 1); err != nil {
		return err
	}
	if err := client.Wishlist().Toggle(ctx, pack.ID); err != nil {
		return err
	}
	if err := client.Coupons().Apply(ctx, "SAVE10"); err != nil {
		return err
	}

	totals := client.Totals()
	logg.Info(logg.WithFields(ctx, map[string]any{
		"subtotal": totals.Subtotal.StringFixed(2),
		"total":    totals.Total.StringFixed(2),
		"lines":    client.Cart().Len(),
	}), "cart priced")

	if err := client.Logout(ctx); err != nil {
		return err
	}

	totals = client.Totals()
	logg.Info(logg.WithFields(ctx, map[string]any{
		"subtotal": totals.Subtotal.StringFixed(2),
		"total":    totals.Total.StringFixed(2),
	}), "logged out, local state flushed")
	return nil
}

func serveMetrics(logg *logger.Logger, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logg.Error(context.Background(), "metrics listener stopped unexpectedly", err)
	}
}
