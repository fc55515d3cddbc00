package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STOREFRONT_API_BASE_URL", "http://localhost:8480")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.App.IsDev() {
		t.Fatalf("expected dev env by default, got %q", cfg.App.Env)
	}
	if cfg.Session.Driver != SessionDriverSQLite {
		t.Fatalf("expected sqlite session driver, got %q", cfg.Session.Driver)
	}
	if cfg.Session.LogoutGrace != 3*time.Second {
		t.Fatalf("unexpected logout grace: %v", cfg.Session.LogoutGrace)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Fatalf("unexpected api timeout: %v", cfg.API.Timeout)
	}
}

func TestLoadRequiresBaseURL(t *testing.T) {
	t.Setenv("STOREFRONT_API_BASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when base url missing")
	}
}

func TestValidateRejectsUnknownSessionDriver(t *testing.T) {
	t.Setenv("STOREFRONT_API_BASE_URL", "http://localhost:8480")
	t.Setenv("STOREFRONT_SESSION_DRIVER", "scribbles")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "unknown session driver") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRedisDriverNeedsEndpoint(t *testing.T) {
	t.Setenv("STOREFRONT_API_BASE_URL", "http://localhost:8480")
	t.Setenv("STOREFRONT_SESSION_DRIVER", "redis")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when redis driver has no endpoint")
	}

	t.Setenv("STOREFRONT_REDIS_URL", "redis://localhost:6379/0")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error with redis url set: %v", err)
	}
}
