// Package fetch downloads source documents over HTTP.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/pdf-digest/internal/infrastructure/resilience"
)

type Options struct {
	Timeout time.Duration
	// RequestsPerSecond caps request starts across all callers; zero disables the cap.
	RequestsPerSecond  float64
	Burst              int
	InsecureSkipVerify bool
	MaxBytes           int64
	UserAgent          string
	ResilienceExecutor *resilience.Executor
}

type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	userAgent  string
	maxBytes   int64
}

func New(options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if options.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for dataset hosts with broken chains
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if options.RequestsPerSecond > 0 {
		burst := options.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), burst)
	}

	userAgent := strings.TrimSpace(options.UserAgent)
	if userAgent == "" {
		userAgent = "pdf-digest/1.0"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		limiter:    limiter,
		executor:   options.ResilienceExecutor,
		userAgent:  userAgent,
		maxBytes:   options.MaxBytes,
	}
}

// Fetch returns the response body of a successful GET. The caller closes it.
func (c *Client) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	body, err := resilience.Do(ctx, c.executor, "http.fetch", func(callCtx context.Context) (io.ReadCloser, error) {
		return c.get(callCtx, url)
	}, classifyFetchError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded(err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/pdf, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch request: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, newHTTPStatusError(url, resp)
	}
	if c.maxBytes > 0 {
		return &cappedBody{body: resp.Body, remaining: c.maxBytes, limit: c.maxBytes, url: url}, nil
	}
	return resp.Body, nil
}

// ErrBodyTooLarge is returned by a fetched body that exceeds MaxBytes.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// cappedBody reads at most limit bytes and fails instead of truncating.
type cappedBody struct {
	body      io.ReadCloser
	remaining int64
	limit     int64
	url       string
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.remaining < 0 {
		return 0, fmt.Errorf("fetch %s: %w (%d bytes)", b.url, ErrBodyTooLarge, b.limit)
	}
	// One byte past the limit is enough to detect overflow.
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.body.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		return n + int(b.remaining), fmt.Errorf("fetch %s: %w (%d bytes)", b.url, ErrBodyTooLarge, b.limit)
	}
	return n, err
}

func (b *cappedBody) Close() error {
	return b.body.Close()
}
