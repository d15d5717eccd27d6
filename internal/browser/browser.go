package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrChallenge is returned when an anti-bot interstitial does not clear in time.
var ErrChallenge = errors.New("anti-bot challenge did not clear")

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ProxyUsername  string
	ProxyPassword  string
	MaxRetries     int
	ExtraHeaders   map[string]string
}

// RenderOptions control a single page render.
type RenderOptions struct {
	// WaitSelector is awaited for at most WaitTimeout; a timeout is not an error.
	WaitSelector string
	WaitTimeout  time.Duration
	// Settle is slept after navigation so client-side rendering can finish.
	Settle            time.Duration
	NavigationTimeout time.Duration
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "fr-FR,fr;q=0.9,en;q=0.8",
		TimezoneID:     "Europe/Paris",
		Locale:         "fr-FR",
		MaxRetries:     2,
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(launchOptions(opts))
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := map[string]string{"Accept-Language": opts.AcceptLanguage}
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	}

	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

func launchOptions(opts *Options) playwright.BrowserTypeLaunchOptions {
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
			"--user-agent=" + opts.UserAgent,
		},
	}

	if opts.ProxyServer != "" {
		proxy := &playwright.Proxy{Server: opts.ProxyServer}
		if opts.ProxyUsername != "" {
			proxy.Username = playwright.String(opts.ProxyUsername)
			proxy.Password = playwright.String(opts.ProxyPassword)
		}
		launchOpts.Proxy = proxy
	}

	return launchOpts
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

// Render loads url in a fresh page and returns the rendered document.
// The page is closed on every path.
func (b *Browser) Render(ctx context.Context, url string, opts RenderOptions) (string, error) {
	page, err := b.NewPage()
	if err != nil {
		return "", err
	}
	defer func() {
		if err := page.Close(); err != nil {
			b.logger.Debug("failed to close page", "error", err)
		}
	}()

	if err := b.NavigateWithRetry(ctx, page, url, b.opts.MaxRetries, opts.NavigationTimeout); err != nil {
		return "", err
	}

	if opts.WaitSelector != "" {
		waitTimeout := opts.WaitTimeout
		if waitTimeout <= 0 {
			waitTimeout = 10 * time.Second
		}
		err := page.Locator(opts.WaitSelector).First().WaitFor(playwright.LocatorWaitForOptions{
			Timeout: playwright.Float(float64(waitTimeout.Milliseconds())),
		})
		if err != nil {
			b.logger.Debug("selector not found before timeout", "selector", opts.WaitSelector, "url", url)
		}
	}

	if err := sleep(ctx, opts.Settle); err != nil {
		return "", err
	}

	content, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}

	return content, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (b *Browser) NavigateWithRetry(ctx context.Context, page playwright.Page, url string, maxRetries int, timeout time.Duration) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if timeout <= 0 {
		timeout = b.opts.Timeout
	}

	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			b.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			if err := sleep(ctx, time.Duration(i+1)*time.Second); err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
			Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		})

		if err == nil {
			if err := b.WaitForChallenge(ctx, page, 15*time.Second); err != nil {
				lastErr = err
				continue
			}
			return nil
		}

		lastErr = err
		b.logger.Warn("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// WaitForChallenge waits until a Cloudflare interstitial on the page has cleared.
func (b *Browser) WaitForChallenge(ctx context.Context, page playwright.Page, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)

	for {
		title, err := page.Title()
		if err != nil {
			return fmt.Errorf("failed to get page title: %w", err)
		}

		content, err := page.Content()
		if err != nil {
			return fmt.Errorf("failed to get page content: %w", err)
		}

		if !IsChallenge(title, content) {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrChallenge
		}

		b.logger.Info("anti-bot challenge detected, waiting", "title", title)
		if err := sleep(ctx, 2*time.Second); err != nil {
			return err
		}
	}
}

// IsChallenge reports whether a page is an anti-bot interstitial rather than content.
func IsChallenge(title, content string) bool {
	if strings.Contains(title, "Just a moment") || strings.Contains(title, "Un instant") {
		return true
	}
	return strings.Contains(content, "cf-challenge") ||
		strings.Contains(content, "challenge-platform") && strings.Contains(content, "cf-chl")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
