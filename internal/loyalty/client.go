// Package loyalty talks to the external loyalty engine's wallet API and
// wraps it with circuit breaker protection and persisted breaker state.
package loyalty

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/loyalty-bridge/internal/domain/basket"
)

const (
	openPath   = "/connect/wallet/open"
	settlePath = "/connect/wallet/settle"
)

// Config holds the engine endpoint and credentials.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
}

// StatusError is a non-2xx engine reply.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("loyalty engine returned status %d", e.StatusCode)
}

// WalletClient performs the raw open/settle HTTP calls. Per-call deadlines
// come from the caller's context; the breaker owns timeout policy.
type WalletClient struct {
	http    *http.Client
	baseURL string
	cfg     Config
}

// NewWalletClient creates a WalletClient for the configured engine.
func NewWalletClient(cfg Config) *WalletClient {
	return &WalletClient{
		http:    &http.Client{},
		baseURL: cfg.BaseURL,
		cfg:     cfg,
	}
}

// OpenBasket prices a cart's basket against the engine.
func (c *WalletClient) OpenBasket(ctx context.Context, req *basket.OpenRequest) (*basket.Response, error) {
	return c.post(ctx, openPath, req)
}

// SettleBasket finalizes a previously opened basket.
func (c *WalletClient) SettleBasket(ctx context.Context, req *basket.SettleRequest) (*basket.Response, error) {
	return c.post(ctx, settlePath, req)
}

func (c *WalletClient) post(ctx context.Context, path string, payload any) (*basket.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-EES-AUTH-CLIENT-ID", c.cfg.ClientID)
	req.Header.Set("X-EES-AUTH-HASH", c.authHash(path, body))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "POST %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read response for %s", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: raw}
	}

	var out basket.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrapf(err, "decode response for %s", path)
	}
	return &out, nil
}

// authHash is the engine's request signature: hex SHA-256 over the request
// path, the body, and the shared secret.
func (c *WalletClient) authHash(path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write(body)
	h.Write([]byte(c.cfg.ClientSecret))
	return hex.EncodeToString(h.Sum(nil))
}
