// Package backend calls the function-style RPC surface of a remote Misan
// deployment (POST {base}/functions/v1/{name}).
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/httpclient"
)

// Function names.
const (
	FnAdminGetSettings     = "admin-get-settings"
	FnAdminUpdateSettings  = "admin-update-settings"
	FnPublicGetPricing     = "public-get-pricing"
	FnPublicGetLLMSettings = "public-get-llm-settings"
	FnSupportContact       = "support-contact"
)

// ErrNotConfigured is returned when the client has no base URL.
var ErrNotConfigured = errors.New("backend base url not configured")

type Client struct {
	baseURL string
	apiKey  string
	http    httpclient.HTTPClient
	logger  *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(c httpclient.HTTPClient) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpclient.New(10 * time.Second),
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Configured reports whether the client can make calls.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Invoke calls function name with body and decodes the response into out.
func (c *Client) Invoke(ctx context.Context, name string, body, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if body == nil {
		body = struct{}{}
	}
	url := fmt.Sprintf("%s/functions/v1/%s", c.baseURL, name)
	start := time.Now()
	err := httpclient.SendRequest(ctx, c.http, http.MethodPost, url, httpclient.Bearer(c.apiKey), body, out)
	c.logger.Debug("backend function call",
		zap.String("function", name),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// PublicPricing returns the raw public-get-pricing response.
func (c *Client) PublicPricing(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.Invoke(ctx, FnPublicGetPricing, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// AdminSettings returns the raw admin-get-settings response.
func (c *Client) AdminSettings(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.Invoke(ctx, FnAdminGetSettings, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
