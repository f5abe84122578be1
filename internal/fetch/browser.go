package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jonathan/council-registers/internal/ratelimit"
)

// MinContentLength is the minimum extracted text length for a static fetch to count.
// Shorter pages are likely built client-side and are worth rendering.
const MinContentLength = 500

// DefaultRenderTimeout bounds one headless render.
const DefaultRenderTimeout = 30 * time.Second

// ShouldRender returns true if the extracted text is too short to hold a register.
func ShouldRender(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// Renderer renders pages in headless Chrome. It needs Chrome or Chromium on the host.
// Renders take the same per-host gate as static fetches; share the Fetcher's gate.
type Renderer struct {
	Timeout time.Duration
	Gate    *ratelimit.HostGate
	Logger  *slog.Logger

	// render replaces the browser in tests.
	render func(ctx context.Context, rawURL string, timeout time.Duration) (string, error)
}

// RenderHTML navigates to rawURL and returns the rendered document HTML.
func (r *Renderer) RenderHTML(ctx context.Context, rawURL string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", &Error{URL: rawURL, Kind: KindInvalidURL, Cause: err}
	}
	if r.Gate != nil {
		release, err := r.Gate.Acquire(ctx, u.Host)
		if err != nil {
			return "", err
		}
		defer release()
	}

	logger.Debug("rendering page in headless browser", "url", rawURL)
	render := r.render
	if render == nil {
		render = renderChrome
	}
	html, err := render(ctx, rawURL, timeout)
	if err != nil {
		return "", err
	}
	logger.Debug("rendered page", "url", rawURL, "bytes", len(html))
	return html, nil
}

func renderChrome(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		// ModernGov and similar render member tables after load
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed for %s: %w", rawURL, err)
	}
	return html, nil
}
