package listings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"patchwatch/internal/config"
)

// Listing is one third-party release listing as served by the aggregator.
type Listing struct {
	Title          string `json:"title"`
	Link           string `json:"link"`
	Image          string `json:"image"`
	RawVersionText string `json:"rawVersionText"`
}

// Client fetches listings over HTTP with a per-source read-through cache.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *gocache.Cache
	limiter    *rate.Limiter
	ttl        time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (used in tests).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient constructs a listings client from aggregator configuration.
func NewClient(cfg config.Aggregator, opts ...Option) *Client {
	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	client := &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		cache:   gocache.New(ttl, 2*ttl),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		ttl:     ttl,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Fetch returns listings for a source, serving from cache when fresh.
func (c *Client) Fetch(ctx context.Context, source string) ([]Listing, error) {
	if cached, ok := c.cache.Get(source); ok {
		return cached.([]Listing), nil
	}
	return c.fetchRemote(ctx, source)
}

// Refresh bypasses the cache and re-primes the entry for a source. Used by
// the scheduler's cache sweep; idempotent.
func (c *Client) Refresh(ctx context.Context, source string) error {
	_, err := c.fetchRemote(ctx, source)
	return err
}

func (c *Client) fetchRemote(ctx context.Context, source string) ([]Listing, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/listings?source=%s", c.baseURL, url.QueryEscape(source))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build listings request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listings for %q: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch listings for %q: status %d: %s", source, resp.StatusCode, string(body))
	}

	var payload struct {
		Listings []Listing `json:"listings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode listings for %q: %w", source, err)
	}

	c.cache.Set(source, payload.Listings, c.ttl)
	return payload.Listings, nil
}
