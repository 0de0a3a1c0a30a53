// Package tierapi provides the client for the remote tier lookup service.
//
// The remote service is the authority on each account's subscription tier and
// on the tier catalog; this package only defines the interface the pricing
// resolver consumes and an HTTP implementation of it.
package tierapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/closetiq/closetiq/internal/models"
)

// UserTier is the remote service's answer for one account.
type UserTier struct {
	Tier      models.TierKey `json:"tier"`
	Active    bool           `json:"subscription_active"`
	ExpiresAt *time.Time     `json:"subscription_end,omitempty"`
}

// Service is the tier lookup collaborator consumed by the pricing resolver.
type Service interface {
	// GetUserTier returns the authenticated user's current tier.
	GetUserTier(ctx context.Context) (UserTier, error)

	// GetAllTiers returns the full tier catalog.
	GetAllTiers(ctx context.Context) ([]models.TierRecord, error)

	// SetUserTier requests a tier change and returns the new assignment.
	SetUserTier(ctx context.Context, key models.TierKey) (UserTier, error)
}

// DefaultRequestTimeout bounds a single tier service round-trip.
const DefaultRequestTimeout = 15 * time.Second

// Opts holds configuration for the HTTP tier service client.
type Opts struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
}

// Option configures client construction.
type Option func(*Opts)

// WithBaseURL sets the tier service base URL.
func WithBaseURL(baseURL string) Option {
	return func(o *Opts) {
		o.BaseURL = baseURL
	}
}

// WithAuthToken sets the bearer token attached to every request.
func WithAuthToken(token string) Option {
	return func(o *Opts) {
		o.AuthToken = token
	}
}

// WithHTTPClient overrides the HTTP client, e.g. for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = client
	}
}

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewClient creates a tier service client. A base URL is required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("tierapi.NewClient invoked", "baseURL_set", cfg.BaseURL != "")

	if cfg.BaseURL == "" {
		slog.Error("tierapi.NewClient: base URL not set")
		return nil, fmt.Errorf("tier service base URL not set")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}

	return &Client{baseURL: cfg.BaseURL, authToken: cfg.AuthToken, httpClient: httpClient}, nil
}

// GetUserTier fetches the authenticated user's tier assignment.
func (c *Client) GetUserTier(ctx context.Context) (UserTier, error) {
	var out UserTier
	if err := c.do(ctx, http.MethodGet, "/v1/pricing/tier", nil, &out); err != nil {
		return UserTier{}, fmt.Errorf("get user tier: %w", err)
	}
	slog.Debug("tierapi.GetUserTier succeeded", "tier", out.Tier, "active", out.Active)
	return out, nil
}

// GetAllTiers fetches the tier catalog.
func (c *Client) GetAllTiers(ctx context.Context) ([]models.TierRecord, error) {
	var out struct {
		Tiers []models.TierRecord `json:"tiers"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/pricing/tiers", nil, &out); err != nil {
		return nil, fmt.Errorf("get all tiers: %w", err)
	}
	slog.Debug("tierapi.GetAllTiers succeeded", "count", len(out.Tiers))
	return out.Tiers, nil
}

// SetUserTier requests a tier change for the authenticated user.
func (c *Client) SetUserTier(ctx context.Context, key models.TierKey) (UserTier, error) {
	payload := map[string]models.TierKey{"tier": key}
	var out UserTier
	if err := c.do(ctx, http.MethodPost, "/v1/pricing/tier", payload, &out); err != nil {
		return UserTier{}, fmt.Errorf("set user tier to %s: %w", key, err)
	}
	slog.Debug("tierapi.SetUserTier succeeded", "tier", out.Tier)
	return out, nil
}

// do performs one JSON request against the tier service.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("tierapi request failed", "error", err, "method", method, "path", path)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("tierapi request returned non-success status", "status", resp.StatusCode, "method", method, "path", path)
		return fmt.Errorf("tier service returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
