// Package fetch issues JSON GET requests against third-party REST APIs with a
// bounded retry budget.
//
// Only two conditions are retried: HTTP 429 and transport failures. Every other
// non-2xx status fails on the first attempt. Each retry, whatever its cause,
// consumes one attempt, which bounds the total time a caller can wait.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"ipvops/internal/core"
	"ipvops/internal/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultTimeout     = 30 * time.Second
	DefaultMaxWait     = 60 * time.Second

	// maxErrorBody bounds the response body kept on permanent errors.
	maxErrorBody = 500
)

// Fetcher performs GET requests and decodes JSON responses.
type Fetcher struct {
	source      string
	client      *retryablehttp.Client
	header      http.Header
	logger      *slog.Logger
	maxAttempts int
	baseDelay   time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxAttempts sets the total number of attempts, including the first one.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the unit used for both backoff schedules.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.baseDelay = d
		}
	}
}

// WithMaxWait caps the exponential transport-failure backoff. Server supplied
// Retry-After values are never capped.
func WithMaxWait(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.RetryWaitMax = d
		}
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.HTTPClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		if hc != nil {
			f.client.HTTPClient = hc
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(f *Fetcher) { f.header.Set(key, value) }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Fetcher. source labels logs and metrics ("airtable", ...).
func New(source string, opts ...Option) *Fetcher {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.HTTPClient.Timeout = DefaultTimeout
	rc.RetryWaitMax = DefaultMaxWait

	f := &Fetcher{
		source:      source,
		client:      rc,
		header:      make(http.Header),
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(f)
	}

	rc.RetryMax = f.maxAttempts - 1
	rc.RetryWaitMin = f.baseDelay
	rc.CheckRetry = f.checkRetry
	rc.Backoff = f.backoff
	rc.ErrorHandler = f.giveUp
	return f
}

// HTTPClient exposes the client used for individual attempts.
func (f *Fetcher) HTTPClient() *http.Client {
	return f.client.HTTPClient
}

// GetJSON fetches rawURL with the given query and decodes the 2xx body into out.
//
// out is only meaningful when the returned error is nil.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &core.FetchError{Kind: core.ErrPermanent, Err: fmt.Errorf("parse url: %w", err)}
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &core.FetchError{Kind: core.ErrPermanent, Err: fmt.Errorf("build request: %w", err)}
	}
	for k, vs := range f.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		fe := &core.FetchError{
			Kind:       core.ErrPermanent,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
		f.logger.ErrorContext(ctx, "Upstream request failed",
			"source", f.source,
			"url", u.Redacted(),
			"status_code", resp.StatusCode,
			"body", fe.Body)
		return fe
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &core.FetchError{Kind: core.ErrDecode, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// checkRetry retries on 429 and on transport errors; everything else is final.
// Each transport failure is logged here once, with its error.
func (f *Fetcher) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		f.logger.WarnContext(ctx, "Upstream request failed", "source", f.source, "error", err)
		return true, nil
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// backoff is called before every retry with the zero-based index of the attempt
// that just failed.
func (f *Fetcher) backoff(waitMin, waitMax time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp.Header, time.Duration(attemptNum+1)*waitMin)
		metrics.UpstreamRetriesTotal.WithLabelValues(f.source, "rate_limited").Inc()
		f.logger.Warn("Rate limited, waiting before retry",
			"source", f.source,
			"attempt", attemptNum+1,
			"wait", wait.String())
		return wait
	}

	wait := waitMin << attemptNum
	if wait <= 0 || wait > waitMax {
		wait = waitMax
	}
	metrics.UpstreamRetriesTotal.WithLabelValues(f.source, "transport_error").Inc()
	return wait
}

// giveUp turns an exhausted retry budget into a classified error.
func (f *Fetcher) giveUp(resp *http.Response, err error, numTries int) (*http.Response, error) {
	if resp != nil {
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &core.FetchError{
				Kind:       core.ErrTransient,
				StatusCode: resp.StatusCode,
				Attempts:   numTries,
				Err:        core.ErrRateLimited,
			}
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var urlErr *url.Error
		if !errors.As(err, &urlErr) || !urlErr.Timeout() {
			return nil, fmt.Errorf("fetch aborted: %w", err)
		}
	}
	return nil, &core.FetchError{Kind: core.ErrTransient, Attempts: numTries, Err: err}
}

// retryAfter reads a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}
