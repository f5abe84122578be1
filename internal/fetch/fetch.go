// Package fetch downloads register documents and council pages.
// All requests share a per-host gate and a bounded retry policy.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jonathan/council-registers/internal/ratelimit"
)

// DefaultTimeout is the per-attempt HTTP timeout.
const DefaultTimeout = 15 * time.Second

// DefaultUserAgent mimics a desktop Chrome; several council sites reject bare clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const (
	DefaultMaxRetries     = 2
	DefaultRetryBaseDelay = 1 * time.Second
	DefaultMaxBodyBytes   = 20 << 20
)

// Result holds the raw response of a successful fetch.
type Result struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Getter is anything that can fetch a URL. Fetcher and Cache both satisfy it.
type Getter interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}

// Options configures the fetch behavior.
type Options struct {
	Timeout        time.Duration
	UserAgent      string
	Headers        map[string]string
	MaxRetries     int
	RetryBaseDelay time.Duration
	MaxBodyBytes   int64
	// Transport overrides the HTTP transport (tests use an in-process fake web).
	Transport http.RoundTripper
	Gate      *ratelimit.HostGate
	Logger    *slog.Logger
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
		MaxRetries:     DefaultMaxRetries,
		RetryBaseDelay: DefaultRetryBaseDelay,
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

// Fetcher performs gated GET requests with retry.
type Fetcher struct {
	opts   Options
	client *http.Client
	gate   *ratelimit.HostGate
	logger *slog.Logger
}

// New creates a Fetcher. Zero-valued options fall back to the defaults.
func New(opts *Options) *Fetcher {
	o := DefaultOptions()
	if opts != nil {
		merged := *opts
		if merged.Timeout <= 0 {
			merged.Timeout = o.Timeout
		}
		if merged.UserAgent == "" {
			merged.UserAgent = o.UserAgent
		}
		if merged.MaxRetries < 0 {
			merged.MaxRetries = 0
		}
		if merged.RetryBaseDelay <= 0 {
			merged.RetryBaseDelay = o.RetryBaseDelay
		}
		if merged.MaxBodyBytes <= 0 {
			merged.MaxBodyBytes = o.MaxBodyBytes
		}
		o = &merged
	}

	gate := o.Gate
	if gate == nil {
		gate = ratelimit.NewHostGate(ratelimit.DefaultHostDelay)
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		opts:   *o,
		client: &http.Client{Transport: o.Transport},
		gate:   gate,
		logger: logger,
	}
}

// Fetch retrieves a URL. Connection errors, timeouts and 5xx responses are retried
// up to MaxRetries more times with exponential backoff; anything else fails at once.
// Failures are returned as *Error unless the caller's context ended.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, &Error{URL: rawURL, Kind: KindInvalidURL, Cause: err}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.RetryBaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = f.opts.RetryBaseDelay << uint(f.opts.MaxRetries)
	b.MaxElapsedTime = 0
	b.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.opts.MaxRetries)), ctx)

	attempt := 0
	operation := func() (*Result, error) {
		attempt++
		res, err := f.attempt(ctx, parsed)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		var fetchErr *Error
		if errors.As(err, &fetchErr) && fetchErr.Retryable() {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Debug("retrying fetch", "url", rawURL, "attempt", attempt, "wait", wait, "error", err)
	}

	res, err := backoff.RetryNotifyWithData(operation, policy, notify)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return res, nil
}

// attempt performs one gated request with its own timeout.
func (f *Fetcher) attempt(ctx context.Context, u *url.URL) (*Result, error) {
	rawURL := u.String()

	release, err := f.gate.Acquire(ctx, u.Host)
	if err != nil {
		return nil, err
	}
	defer release()

	attemptCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Kind: KindInvalidURL, Cause: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")
	for key, value := range f.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &Error{URL: rawURL, Kind: KindHTTP, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > f.opts.MaxBodyBytes {
		return nil, &Error{
			URL:   rawURL,
			Kind:  KindTooLarge,
			Cause: fmt.Errorf("content length %d exceeds limit %d", resp.ContentLength, f.opts.MaxBodyBytes),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, classify(rawURL, err)
	}
	if int64(len(body)) > f.opts.MaxBodyBytes {
		return nil, &Error{
			URL:   rawURL,
			Kind:  KindTooLarge,
			Cause: fmt.Errorf("body exceeds limit %d", f.opts.MaxBodyBytes),
		}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// classify maps a transport error onto an Error kind.
func classify(rawURL string, err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{URL: rawURL, Kind: KindTimeout, Cause: err}
	}
	return &Error{URL: rawURL, Kind: KindConnection, Cause: err}
}
