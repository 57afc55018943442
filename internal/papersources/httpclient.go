package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/observability"
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Source names the remote service in errors and metrics ("arxiv", "crossref").
	Source string

	// Timeout is the per-attempt request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the maximum number of retry attempts after the first one.
	MaxRetries int

	// RetryDelay is the delay between retries when the server gives no Retry-After.
	RetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// Metrics receives per-request counters. Optional.
	Metrics *observability.Metrics
}

// HTTPClient wraps http.Client with rate limiting and retries.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
// The client waits on the rate limiter before each attempt and retries
// network errors, 429 and 5xx responses.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Source == "" {
		cfg.Source = "http"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Helixir-CitationGraph/1.0 (mailto:citation-graph@helixir.dev)"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Source returns the configured source name.
func (c *HTTPClient) Source() string {
	return c.config.Source
}

// Do executes req under the rate limiter, labelling metrics with endpoint.
//
// Requests with a body must set GetBody (http.NewRequest does so for
// bytes and strings readers) to be retried. When retries are exhausted on 429
// the error is a *domain.RateLimitError; on 5xx it is a
// *domain.ExternalAPIError wrapping domain.ErrServiceUnavailable.
func (c *HTTPClient) Do(req *http.Request, endpoint string) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	start := time.Now()
	resp, err := c.do(req)
	c.config.Metrics.RecordSourceRequest(c.config.Source, endpoint, time.Since(start).Seconds())
	if err != nil {
		c.config.Metrics.RecordSourceRequestFailed(c.config.Source, endpoint, errorType(err))
	}
	return resp, err
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.resetRequestBody(req); err != nil {
				return nil, fmt.Errorf("cannot retry request: %w", err)
			}
		}

		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("%s request failed: %w", c.config.Source, err)
			if attempt < c.config.MaxRetries {
				if err := c.waitForRetry(req.Context(), c.config.RetryDelay); err != nil {
					return nil, err
				}
			}
			continue
		}

		if !c.shouldRetry(resp.StatusCode) {
			return resp, nil
		}

		retryDelay := c.getRetryDelay(resp)
		if resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = domain.NewRateLimitError(c.config.Source, retryDelay)
		} else {
			lastErr = domain.NewExternalAPIError(c.config.Source, resp.StatusCode,
				fmt.Sprintf("server error after %d attempts", attempt+1), domain.ErrServiceUnavailable)
		}

		if attempt < c.config.MaxRetries {
			if err := c.waitForRetry(req.Context(), retryDelay); err != nil {
				return nil, err
			}
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no response received")
	}
	return nil, lastErr
}

// shouldRetry returns true if the status code indicates we should retry.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// getRetryDelay honours Retry-After (seconds or HTTP date) and falls back to
// the configured delay.
func (c *HTTPClient) getRetryDelay(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.RetryDelay
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return c.config.RetryDelay
}

// waitForRetry waits for the specified duration, respecting context cancellation.
func (c *HTTPClient) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return errors.New("request body cannot be replayed")
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("get request body: %w", err)
	}
	req.Body = body
	return nil
}

func errorType(err error) string {
	var apiErr *domain.ExternalAPIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.As(err, &apiErr):
		return "status_" + strconv.Itoa(apiErr.StatusCode)
	default:
		return "network"
	}
}
