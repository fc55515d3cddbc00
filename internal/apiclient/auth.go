package apiclient

import (
	"context"
	"net/http"

	"github.com/angelmondragon/packfinderz-storefront/pkg/types"
)

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the token pair plus the authenticated identity, returned by
// both login and refresh.
type LoginResult struct {
	Identity     types.Identity `json:"user"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login exchanges credentials for a token pair. Never auth-retried: a 401
// here means the credentials themselves were rejected.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var result LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", creds, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Refresh trades the refresh token for a rotated pair. Called only from the
// session manager's single-flight slot, so it bypasses the retry wrapper.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	var result LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout revokes the server-side session for the given refresh token.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/auth/logout", logoutRequest{RefreshToken: refreshToken}, nil)
}

// Me returns the identity the server associates with the current credential.
func (c *Client) Me(ctx context.Context) (*types.Identity, error) {
	var identity types.Identity
	err := c.withAuthRetry(ctx, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodGet, "/v1/auth/me", nil, &identity)
	})
	if err != nil {
		return nil, err
	}
	return &identity, nil
}
