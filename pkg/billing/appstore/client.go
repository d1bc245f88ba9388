package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cboard-org/cboard-billing/pkg/billing"
)

// Client verifies App Store purchases.
type Client struct {
	cfg      Config
	http     *http.Client
	tokens   *tokenSource
	payloads *payloadVerifier
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// New creates a Client. Server API credentials are loaded eagerly so a bad
// key fails at startup.
func New(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.ServerAPIEnabled() {
		ts, err := newTokenSource(cfg)
		if err != nil {
			return nil, err
		}
		c.tokens = ts

		pv, err := newPayloadVerifier(cfg)
		if err != nil {
			return nil, err
		}
		c.payloads = pv
	}
	return c, nil
}

// Verify checks an App Store purchase. A receipt goes through verifyReceipt;
// a bare transaction id goes through the Server API.
func (c *Client) Verify(ctx context.Context, p billing.AppStorePurchase) (*billing.VerificationResult, error) {
	switch {
	case p.Receipt != "":
		return c.verifyReceipt(ctx, p)
	case p.TransactionID != "":
		if c.tokens == nil {
			return nil, billing.InvalidInput("appStoreReceipt is required", ErrServerAPIDisabled)
		}
		return c.verifyTransaction(ctx, p)
	default:
		return nil, billing.InvalidInput("appStoreReceipt is required", ErrMissingReceipt)
	}
}

// doJSON performs the request and decodes the body into out. Transport
// failures come back as ConnectionFailed; the HTTP status is returned for the
// caller to interpret.
func (c *Client) doJSON(ctx context.Context, method, url string, headers map[string]string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, billing.Internal("failed to encode app store request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, billing.Internal("failed to build app store request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, billing.ConnectionFailed("app store request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, billing.ConnectionFailed("app store unavailable",
			fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			if ctx.Err() != nil || isTimeout(err) {
				return resp.StatusCode, billing.ConnectionFailed("app store response interrupted", errors.Join(ctx.Err(), err))
			}
			return resp.StatusCode, billing.InvalidPayload(messageInvalidReceipt, err)
		}
	}
	return resp.StatusCode, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
