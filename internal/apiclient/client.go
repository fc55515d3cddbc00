package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/types"
)

// TokenSource supplies the current bearer token for authenticated calls.
// An empty string means no session; the server decides how to reject.
type TokenSource interface {
	AccessToken() string
}

// TokenRefresher collapses concurrent refresh demands into a single
// in-flight refresh call shared by all waiters.
type TokenRefresher interface {
	AwaitRefresh(ctx context.Context) error
}

// Client speaks the storefront API's uniform envelope over HTTP.
type Client struct {
	http      *http.Client
	baseURL   *url.URL
	userAgent string
	tokens    TokenSource
	refresher TokenRefresher
	logg      *logger.Logger
}

// New builds an API client from config. Token source and refresher are wired
// afterwards because the session manager both uses and feeds this client.
func New(cfg config.APIConfig, logg *logger.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing api base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api base url must be absolute, got %q", cfg.BaseURL)
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   base,
		userAgent: cfg.UserAgent,
		logg:      logg,
	}, nil
}

// SetTokenSource wires the session manager's token view into the client.
func (c *Client) SetTokenSource(source TokenSource) {
	c.tokens = source
}

// SetRefresher wires the shared refresh future used by the auth-retry wrapper.
func (c *Client) SetRefresher(refresher TokenRefresher) {
	c.refresher = refresher
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request body")
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetworkUnavailable, err, "storefront api unreachable")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding response envelope")
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding response data")
		}
		return nil
	}

	return c.decodeError(resp)
}

func (c *Client) decodeError(resp *http.Response) error {
	var envelope types.ErrorEnvelope
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		return pkgerrors.New(fallbackCode(resp.StatusCode), strings.TrimSpace(http.StatusText(resp.StatusCode)))
	}

	code := wireCode(envelope.Error.Code, resp.StatusCode)
	err := pkgerrors.New(code, envelope.Error.Message)
	if envelope.Error.Details != nil {
		err = err.WithDetails(envelope.Error.Details)
	}
	return err
}

func wireCode(wire string, status int) pkgerrors.Code {
	switch pkgerrors.Code(wire) {
	case pkgerrors.CodeAuthRequired,
		pkgerrors.CodeAuthExpired,
		pkgerrors.CodeServerRejected,
		pkgerrors.CodeValidation,
		pkgerrors.CodeInternal:
		return pkgerrors.Code(wire)
	default:
		return fallbackCode(status)
	}
}

func fallbackCode(status int) pkgerrors.Code {
	switch {
	case status == http.StatusUnauthorized:
		return pkgerrors.CodeAuthRequired
	case status >= 400 && status < 500:
		return pkgerrors.CodeServerRejected
	default:
		return pkgerrors.CodeInternal
	}
}
