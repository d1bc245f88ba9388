package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/cboard-org/cboard-billing/pkg/billing"
)

// Client calls the PayPal subscriptions API. The access token is shared by
// all requests and refreshed on expiry.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
	creds    clientcredentials.Config

	mu    sync.Mutex
	token *oauth2.Token
}

// New creates a Client. base is the HTTP client used for both the token
// exchange and API calls; nil uses a client with cfg.Timeout.
func New(cfg Config, base *http.Client) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrMissingCredentials
	}
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	pageSize := cfg.PlansPageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Client{
		baseURL:  baseURL,
		pageSize: pageSize,
		http:     base,
		creds: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     baseURL + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
	}, nil
}

// accessToken returns the cached token, exchanging client credentials under
// ctx when it is missing or expired.
func (c *Client) accessToken(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token.Valid() {
		return c.token, nil
	}
	tok, err := c.creds.Token(context.WithValue(ctx, oauth2.HTTPClient, c.http))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < http.StatusInternalServerError {
			return nil, billing.Internal("paypal rejected client credentials", err)
		}
		return nil, billing.ConnectionFailed("paypal token exchange failed", err)
	}
	c.token = tok
	return tok, nil
}

// do sends a request to path under /v1 and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + "/v1" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return billing.Internal("failed to encode paypal request", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return billing.Internal("failed to build paypal request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	tok, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	tok.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return billing.ConnectionFailed("paypal request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return billing.ConnectionFailed("paypal unavailable", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return billing.InvalidPayload("paypal rejected the request",
			fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(msg)))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return billing.ConnectionFailed("paypal response interrupted", errors.Join(ctx.Err(), err))
		}
		return billing.InvalidPayload("invalid paypal response", err)
	}
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
