// Package crossref matches free-text citations to DOIs through the CrossRef
// links service.
package crossref

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/helixir/citation-graph-service/internal/citations"
	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/papersources"
)

const (
	// DefaultMatchURL is the CrossRef citation matching endpoint.
	DefaultMatchURL = "http://search.crossref.org/links"

	// DefaultRateLimit is the default rate limit in requests per second.
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retries per request.
	DefaultMaxRetries = 2

	sourceName = "crossref"
)

// BreakerConfig configures the circuit breaker guarding the matcher.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32

	// Interval after which closed-state counts are cleared.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the breaker.
	FailureThreshold float64

	// MinRequests is the sample size required before tripping.
	MinRequests uint32
}

// Config holds configuration for the CrossRef client.
type Config struct {
	// MatchURL is the links endpoint.
	MatchURL string

	// Mailto is sent as the polite-pool contact address. Optional.
	Mailto string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the number of retries on 429, 5xx and network errors.
	MaxRetries int

	Breaker BreakerConfig
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.MatchURL == "" {
		c.MatchURL = DefaultMatchURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = 1
	}
	if c.Breaker.Interval == 0 {
		c.Breaker.Interval = 60 * time.Second
	}
	if c.Breaker.Timeout == 0 {
		c.Breaker.Timeout = 30 * time.Second
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 0.6
	}
	if c.Breaker.MinRequests == 0 {
		c.Breaker.MinRequests = 3
	}
}

// Client implements citations.CitationMatcher against the CrossRef links
// service. It is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	breaker    *gobreaker.CircuitBreaker
	logger     zerolog.Logger
}

// Ensure Client implements CitationMatcher interface.
var _ citations.CitationMatcher = (*Client)(nil)

// New creates a new CrossRef client with the given configuration.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	userAgent := ""
	if cfg.Mailto != "" {
		userAgent = "Helixir-CitationGraph/1.0 (mailto:" + cfg.Mailto + ")"
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     sourceName,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  userAgent,
		Metrics:    metrics,
	})

	return NewWithHTTPClient(cfg, httpClient, logger)
}

// NewWithHTTPClient creates a new CrossRef client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger) *Client {
	cfg.applyDefaults()
	logger = logger.With().Str("component", "crossref").Logger()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        sourceName,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.Breaker.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
	}
}

// State returns the current circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// MatchCitations posts batch as a JSON array and returns one result per
// citation, in order. Results without a match carry an empty DOI.
//
// While the breaker is open the call fails fast with an error wrapping
// domain.ErrServiceUnavailable.
func (c *Client) MatchCitations(ctx context.Context, batch []string) ([]citations.MatchResult, error) {
	if len(batch) == 0 {
		return []citations.MatchResult{}, nil
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.matchCitations(ctx, batch)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: crossref circuit %s", domain.ErrServiceUnavailable, err)
		}
		return nil, err
	}
	return out.([]citations.MatchResult), nil
}

func (c *Client) matchCitations(ctx context.Context, batch []string) ([]citations.MatchResult, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}

	endpoint, err := c.matchURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req, "links")
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(msg), domain.ErrMalformedResponse)
	}

	var links LinksResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&links); err != nil {
		return nil, fmt.Errorf("%w: decoding links response: %v", domain.ErrMalformedResponse, err)
	}
	if links.QueryOK != nil && !*links.QueryOK {
		return nil, fmt.Errorf("%w: links query rejected", domain.ErrMalformedResponse)
	}
	if len(links.Results) != len(batch) {
		return nil, fmt.Errorf("%w: %d results for %d citations",
			domain.ErrMalformedResponse, len(links.Results), len(batch))
	}

	results := make([]citations.MatchResult, len(batch))
	for i, r := range links.Results {
		results[i] = citations.MatchResult{Text: batch[i]}
		if r.matched() {
			results[i].DOI = r.DOI
		}
	}

	c.logger.Debug().
		Int("batch_size", len(batch)).
		Int("matched", countMatched(results)).
		Msg("matched citation batch")

	return results, nil
}

func (c *Client) matchURL() (string, error) {
	u, err := url.Parse(c.config.MatchURL)
	if err != nil {
		return "", fmt.Errorf("parsing match URL: %w", err)
	}
	if c.config.Mailto != "" {
		q := u.Query()
		q.Set("mailto", c.config.Mailto)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func countMatched(results []citations.MatchResult) int {
	n := 0
	for _, r := range results {
		if r.DOI != "" {
			n++
		}
	}
	return n
}
