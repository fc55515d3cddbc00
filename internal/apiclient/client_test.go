package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/types"
)

type staticTokens struct {
	token atomic.Value
}

func (s *staticTokens) AccessToken() string {
	if v, ok := s.token.Load().(string); ok {
		return v
	}
	return ""
}

type fakeRefresher struct {
	calls atomic.Int64
	err   error
	fn    func()
}

func (f *fakeRefresher) AwaitRefresh(ctx context.Context) error {
	f.calls.Add(1)
	if f.fn != nil {
		f.fn()
	}
	return f.err
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := New(config.APIConfig{BaseURL: ts.URL, UserAgent: "test-agent"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client, ts
}

func writeEnvelope(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := New(config.APIConfig{BaseURL: "/v1"}, nil); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func TestLoginDecodesEnvelope(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"user":          map[string]any{"user_id": userID, "email": "demo@packfinderz.dev"},
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
			},
		})
	}))

	result, err := client.Login(context.Background(), Credentials{Email: "demo@packfinderz.dev", Password: "pw"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Identity.UserID != userID || result.AccessToken != "access-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestWireErrorCodePassthrough(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnprocessableEntity, types.ErrorEnvelope{
			Error: types.APIError{Code: string(pkgerrors.CodeServerRejected), Message: "out of stock"},
		})
	}))

	_, err := client.CouponValidate(context.Background(), "SAVE10")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeServerRejected {
		t.Fatalf("unexpected code: %v", err)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() != "out of stock" {
		t.Fatalf("server message lost: %v", err)
	}
}

func TestUnknownWireCodeFallsBackOnStatus(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, types.ErrorEnvelope{
			Error: types.APIError{Code: "SOMETHING_NEW", Message: "nope"},
		})
	}))

	_, err := client.Me(context.Background())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeAuthRequired {
		t.Fatalf("unexpected code: %v", err)
	}
}

func TestNonJSONErrorBodyMapsByStatus(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))

	_, err := client.Me(context.Background())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeInternal {
		t.Fatalf("unexpected code: %v", err)
	}
}

func TestTransportFailureIsNetworkUnavailable(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client, err := New(config.APIConfig{BaseURL: url}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.Me(context.Background())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNetworkUnavailable {
		t.Fatalf("unexpected code: %v", err)
	}
}

func TestAuthRetryRefreshesOnceAndRetries(t *testing.T) {
	t.Parallel()

	tokens := &staticTokens{}
	tokens.token.Store("stale")

	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") == "Bearer fresh" {
			writeEnvelope(w, http.StatusOK, map[string]any{"data": map[string]any{"email": "demo@packfinderz.dev"}})
			return
		}
		writeEnvelope(w, http.StatusUnauthorized, types.ErrorEnvelope{
			Error: types.APIError{Code: string(pkgerrors.CodeAuthExpired), Message: "access token expired"},
		})
	}))

	refresher := &fakeRefresher{fn: func() { tokens.token.Store("fresh") }}
	client.SetTokenSource(tokens)
	client.SetRefresher(refresher)

	identity, err := client.Me(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.Email != "demo@packfinderz.dev" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if refresher.calls.Load() != 1 {
		t.Fatalf("expected one refresh, got %d", refresher.calls.Load())
	}
	if calls.Load() != 2 {
		t.Fatalf("expected original call plus one retry, got %d", calls.Load())
	}
}

func TestAuthRetrySurfacesOriginalErrorWhenRefreshFails(t *testing.T) {
	t.Parallel()

	tokens := &staticTokens{}
	tokens.token.Store("stale")

	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusUnauthorized, types.ErrorEnvelope{
			Error: types.APIError{Code: string(pkgerrors.CodeAuthExpired), Message: "access token expired"},
		})
	}))

	refresher := &fakeRefresher{err: pkgerrors.New(pkgerrors.CodeAuthRequired, "refresh token revoked")}
	client.SetTokenSource(tokens)
	client.SetRefresher(refresher)

	_, err := client.Me(context.Background())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeAuthExpired {
		t.Fatalf("failed refresh must surface the original error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("no retry after a failed refresh, got %d calls", calls.Load())
	}
}

func TestNoRetryOnNonExpiredErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusUnauthorized, types.ErrorEnvelope{
			Error: types.APIError{Code: string(pkgerrors.CodeAuthRequired), Message: "missing credentials"},
		})
	}))

	refresher := &fakeRefresher{}
	client.SetRefresher(refresher)

	_, err := client.Me(context.Background())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeAuthRequired {
		t.Fatalf("unexpected code: %v", err)
	}
	if refresher.calls.Load() != 0 {
		t.Fatal("AUTH_REQUIRED must not trigger a refresh")
	}
	if calls.Load() != 1 {
		t.Fatalf("unexpected retry, got %d calls", calls.Load())
	}
}
