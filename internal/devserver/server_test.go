package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pkgauth "github.com/angelmondragon/packfinderz-storefront/pkg/auth"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

func testConfig() config.DevServerConfig {
	return config.DevServerConfig{
		JWTSecret:         "test-secret",
		JWTIssuer:         "packfinderz-devserver",
		ExpirationMinutes: 15,
		SeedEmail:         "demo@packfinderz.dev",
		SeedPassword:      "demo-password",
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := New(Params{Config: testConfig()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp, buf.Bytes()
}

func decodeData(t *testing.T, raw []byte, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func decodeErrorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return envelope.Error.Code
}

func login(t *testing.T, ts *httptest.Server) tokenPairResponse {
	t.Helper()
	resp, raw := doRequest(t, ts, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "demo@packfinderz.dev",
		"password": "demo-password",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", resp.StatusCode, raw)
	}
	var pair tokenPairResponse
	decodeData(t, raw, &pair)
	return pair
}

func TestLoginSuccess(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)
	pair := login(t, ts)

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
	if pair.User.Email != "demo@packfinderz.dev" {
		t.Fatalf("unexpected identity: %+v", pair.User)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)
	resp, raw := doRequest(t, ts, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "demo@packfinderz.dev",
		"password": "not-the-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if code := decodeErrorCode(t, raw); code != string(pkgerrors.CodeAuthRequired) {
		t.Fatalf("unexpected code: %s", code)
	}
}

func TestMeReturnsIdentity(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)
	pair := login(t, ts)

	resp, raw := doRequest(t, ts, http.MethodGet, "/v1/auth/me", pair.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var identity struct {
		Email string `json:"email"`
	}
	decodeData(t, raw, &identity)
	if identity.Email != "demo@packfinderz.dev" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestExpiredTokenReportedDistinctly(t *testing.T) {
	t.Parallel()

	srv, ts := newTestServer(t)
	pair := login(t, ts)

	expired, err := pkgauth.MintAccessToken(srv.cfg, time.Now().Add(-time.Hour), pkgauth.AccessTokenPayload{
		UserID: pair.User.UserID,
		Email:  "demo@packfinderz.dev",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, raw := doRequest(t, ts, http.MethodGet, "/v1/auth/me", expired, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if code := decodeErrorCode(t, raw); code != string(pkgerrors.CodeAuthExpired) {
		t.Fatalf("expired token must map to %s, got %s", pkgerrors.CodeAuthExpired, code)
	}
}

func TestForcedExpiryReportsTokensExpired(t *testing.T) {
	t.Parallel()

	srv, ts := newTestServer(t)
	pair := login(t, ts)

	resp, _ := doRequest(t, ts, http.MethodGet, "/v1/auth/me", pair.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	srv.ExpireActiveTokens()

	resp, raw := doRequest(t, ts, http.MethodGet, "/v1/auth/me", pair.AccessToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if code := decodeErrorCode(t, raw); code != string(pkgerrors.CodeAuthExpired) {
		t.Fatalf("forced expiry must map to %s, got %s", pkgerrors.CodeAuthExpired, code)
	}

	// a freshly issued token is unaffected
	pair = login(t, ts)
	resp, _ = doRequest(t, ts, http.MethodGet, "/v1/auth/me", pair.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRevokeRefreshTokens(t *testing.T) {
	t.Parallel()

	srv, ts := newTestServer(t)
	pair := login(t, ts)

	srv.RevokeRefreshTokens()

	resp, raw := doRequest(t, ts, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if code := decodeErrorCode(t, raw); code != string(pkgerrors.CodeAuthRequired) {
		t.Fatalf("unexpected code: %s", code)
	}
}

func TestGarbageTokenIsAuthRequired(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)
	resp, raw := doRequest(t, ts, http.MethodGet, "/v1/auth/me", "not-a-jwt", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if code := decodeErrorCode(t, raw); code != string(pkgerrors.CodeAuthRequired) {
		t.Fatalf("unexpected code: %s", code)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)
	pair := login(t, ts)

	resp, raw := doRequest(t, ts, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var rotated tokenPairResponse
	decodeData(t, raw, &rotated)
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh must rotate the refresh token")
	}

	// the presented token is burned
	resp, raw = doRequest(t, ts, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if code := decodeErrorCode(t, raw); code != string(pkgerrors.CodeAuthRequired) {
		t.Fatalf("unexpected code: %s", code)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)
	pair := login(t, ts)

	resp, _ := doRequest(t, ts, http.MethodPost, "/v1/auth/logout", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, ts, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked refresh token must be rejected, got %d", resp.StatusCode)
	}
}

func TestCartRequiresAuth(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)
	resp, raw := doRequest(t, ts, http.MethodPost, "/v1/cart/items", "", map[string]any{
		"product_id": "0b5c7e66-96f3-4f6e-bd0a-0e8d1f3f9f11",
		"quantity":   1,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if code := decodeErrorCode(t, raw); code != string(pkgerrors.CodeAuthRequired) {
		t.Fatalf("unexpected code: %s", code)
	}
}

func TestCartQuantityCap(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)
	pair := login(t, ts)

	resp, _ := doRequest(t, ts, http.MethodPost, "/v1/cart/items", pair.AccessToken, map[string]any{
		"product_id": "0b5c7e66-96f3-4f6e-bd0a-0e8d1f3f9f11",
		"quantity":   90,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	resp, raw := doRequest(t, ts, http.MethodPost, "/v1/cart/items", pair.AccessToken, map[string]any{
		"product_id": "0b5c7e66-96f3-4f6e-bd0a-0e8d1f3f9f11",
		"quantity":   20,
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if code := decodeErrorCode(t, raw); code != string(pkgerrors.CodeServerRejected) {
		t.Fatalf("unexpected code: %s", code)
	}
}

func TestCouponValidation(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)
	pair := login(t, ts)

	resp, raw := doRequest(t, ts, http.MethodPost, "/v1/coupons/validate", pair.AccessToken, map[string]string{
		"code": "save10",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var result couponResponse
	decodeData(t, raw, &result)
	if result.Code != "SAVE10" || !result.DiscountPercent.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected coupon result: %+v", result)
	}

	resp, raw = doRequest(t, ts, http.MethodPost, "/v1/coupons/validate", pair.AccessToken, map[string]string{
		"code": "EXPIRED",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if code := decodeErrorCode(t, raw); code != string(pkgerrors.CodeServerRejected) {
		t.Fatalf("unexpected code: %s", code)
	}

	resp, _ = doRequest(t, ts, http.MethodPost, "/v1/coupons/validate", pair.AccessToken, map[string]string{
		"code": "BOGUS",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestSingleUseCoupon(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)
	pair := login(t, ts)

	resp, _ := doRequest(t, ts, http.MethodPost, "/v1/coupons/validate", pair.AccessToken, map[string]string{
		"code": "WELCOME5",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	resp, raw := doRequest(t, ts, http.MethodPost, "/v1/coupons/validate", pair.AccessToken, map[string]string{
		"code": "WELCOME5",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if code := decodeErrorCode(t, raw); code != string(pkgerrors.CodeServerRejected) {
		t.Fatalf("unexpected code: %s", code)
	}
}
