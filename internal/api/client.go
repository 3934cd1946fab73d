package api

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Default endpoints and limits.
const (
	DefaultGammaURL            = "https://gamma-api.polymarket.com"
	DefaultClobURL             = "https://clob.polymarket.com"
	DefaultPageSize            = 100
	DefaultMaxPointsPerRequest = 1000
	DefaultRateLimitPerMin     = 300
)

// Client provides access to the Polymarket Gamma and CLOB REST APIs.
type Client struct {
	gammaURL   string
	clobURL    string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter

	maxRetries   int
	retryBackoff time.Duration

	pageSize            int
	maxPointsPerRequest int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(gammaURL, clobURL string, opts ...ClientOption) *Client {
	c := &Client{
		gammaURL: gammaURL,
		clobURL:  clobURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:              slog.Default(),
		limiter:             newLimiter(DefaultRateLimitPerMin),
		maxRetries:          3,
		retryBackoff:        time.Second,
		pageSize:            DefaultPageSize,
		maxPointsPerRequest: DefaultMaxPointsPerRequest,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit caps outgoing requests per minute. Zero or negative disables limiting.
func WithRateLimit(perMin int) ClientOption {
	return func(c *Client) {
		c.limiter = newLimiter(perMin)
	}
}

// WithPageSize sets the number of markets requested per catalog page.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithMaxPointsPerRequest bounds the span of a single price-history request to
// n buckets of the requested interval. Longer windows are split into chunks.
func WithMaxPointsPerRequest(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxPointsPerRequest = n
		}
	}
}

// PageSize returns the catalog page size.
func (c *Client) PageSize() int {
	return c.pageSize
}

func newLimiter(perMin int) *rate.Limiter {
	if perMin <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(perMin)/60.0), 1)
}
