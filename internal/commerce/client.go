// Package commerce is the HTTP client for the commerce platform resources
// the integration reads and updates.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/loyalty-bridge/internal/domain/cart"
)

// Config holds the platform endpoint and credentials. Token refresh is the
// deployment's concern; the client sends the configured bearer token as-is.
type Config struct {
	BaseURL    string
	ProjectKey string
	AuthToken  string
}

var _ cart.Client = (*Client)(nil)

// Client implements cart.Client against the platform's REST API.
type Client struct {
	http *http.Client
	cfg  Config
}

// New creates a Client.
func New(cfg Config) *Client {
	return &Client{
		http: &http.Client{Timeout: 10 * time.Second},
		cfg:  cfg,
	}
}

// GetOrderByID fetches an order. Returns cart.ErrNotFound for 404.
func (c *Client) GetOrderByID(ctx context.Context, id string) (*cart.Order, error) {
	var o cart.Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+id, nil, nil, &o); err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// UpdateOrderByID applies update actions gated by the order version.
func (c *Client) UpdateOrderByID(ctx context.Context, id string, update cart.OrderUpdate) (*cart.Order, error) {
	var o cart.Order
	if err := c.do(ctx, http.MethodPost, "/orders/"+id, nil, update, &o); err != nil {
		return nil, errors.Wrapf(err, "update order %q", id)
	}
	return &o, nil
}

// GetShippingMethods lists shipping methods matching the query.
func (c *Client) GetShippingMethods(ctx context.Context, query cart.ShippingMethodQuery) ([]cart.ShippingMethod, error) {
	q := url.Values{}
	if query.Where != "" {
		q.Set("where", query.Where)
	}

	var page struct {
		Results []cart.ShippingMethod `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/shipping-methods", q, nil, &page); err != nil {
		return nil, errors.Wrap(err, "get shipping methods")
	}
	return page.Results, nil
}

// GetTypeByKey fetches a custom type by key. Returns cart.ErrNotFound when
// it does not exist.
func (c *Client) GetTypeByKey(ctx context.Context, key string) (*cart.TypeRef, error) {
	var t struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodGet, "/types/key="+key, nil, nil, &t); err != nil {
		return nil, errors.Wrapf(err, "get type %q", key)
	}
	return &cart.TypeRef{TypeID: "type", ID: t.ID, Key: t.Key}, nil
}

// CreateType creates a custom type.
func (c *Client) CreateType(ctx context.Context, draft cart.TypeDraft) (*cart.TypeRef, error) {
	var t struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/types", nil, draft, &t); err != nil {
		return nil, errors.Wrapf(err, "create type %q", draft.Key)
	}
	return &cart.TypeRef{TypeID: "type", ID: t.ID, Key: t.Key}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.cfg.BaseURL + "/" + c.cfg.ProjectKey + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return cart.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
