// Package feedhttp is the HTTP transport shared by the upstream feed adapters.
// It paces requests, retries transport failures a bounded number of times and
// classifies every failure into a domain error kind.
package feedhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"metrotrack/internal/domain"
)

type Config struct {
	// Source names the upstream in errors and logs.
	Source     string
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64
	RateBurst  int
	UserAgent  string
	Transport  http.RoundTripper
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "metrotrack/1.0"
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

// GetJSON fetches rawURL with query and decodes the body into dest.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, dest any) error {
	reqURL := rawURL
	if len(query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", rawURL, query.Encode())
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newBackOff(), uint64(c.cfg.MaxRetries)),
		ctx,
	)

	body, err := backoff.RetryWithData(func() ([]byte, error) {
		return c.fetch(ctx, reqURL)
	}, policy)
	if err != nil {
		return c.classify(ctx, err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return domain.NewError(domain.KindMalformedResponse, c.cfg.Source, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.RandomizationFactor = 0.2
	return b
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait fails early, with ctx still live, when the next token would
		// arrive after the deadline.
		if _, ok := ctx.Deadline(); ok || ctx.Err() != nil {
			return nil, backoff.Permanent(domain.NewError(domain.KindTimeout, c.cfg.Source, fmt.Errorf("rate limiter: %w", err)))
		}
		return nil, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, backoff.Permanent(domain.NewError(domain.KindConfiguration, c.cfg.Source, fmt.Errorf("creating request: %w", err)))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(domain.Errorf(domain.KindUpstreamInvalid, c.cfg.Source, "unexpected status code: %d", resp.StatusCode))
	}

	return body, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewError(domain.KindTimeout, c.cfg.Source, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewError(domain.KindTimeout, c.cfg.Source, err)
	}
	return domain.NewError(domain.KindTransport, c.cfg.Source, err)
}
