package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/pfrederiksen/camp-watch/internal/logger"
)

const (
	NavigationTimeout = 30 * time.Second
	SelectorTimeout   = 10 * time.Second
)

// Browser renders a page in headless Chromium and returns the resulting HTML.
// Chromium must be installed beforehand:
//
//	go run github.com/playwright-community/playwright-go/cmd/playwright install chromium
type Browser struct {
	WaitSelector      string
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	Headless          bool
}

// NewBrowser creates a headless Browser fetcher. If waitSelector is set, Fetch
// waits for a matching element after navigation.
func NewBrowser(waitSelector string) *Browser {
	return &Browser{
		WaitSelector:      waitSelector,
		NavigationTimeout: NavigationTimeout,
		SelectorTimeout:   SelectorTimeout,
		Headless:          true,
	}
}

// Fetch starts a browser, loads the page and reads its DOM. The browser and the
// Playwright driver are shut down before Fetch returns, on every path.
func (b *Browser) Fetch(ctx context.Context, pageURL string) (content string, err error) {
	if err := ctx.Err(); err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}

	pw, err := playwright.Run()
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("starting playwright: %w", err)}
	}
	defer func() {
		if stopErr := pw.Stop(); stopErr != nil {
			logger.Warn("stopping playwright", logger.Fields{"url": pageURL, "error": stopErr.Error()})
		}
	}()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.Headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("launching browser: %w", err)}
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			logger.Warn("closing browser", logger.Fields{"url": pageURL, "error": closeErr.Error()})
		}
	}()

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(UserAgent),
		Locale:    playwright.String("ja-JP"),
	})
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("creating page: %w", err)}
	}

	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(millis(ctx, b.NavigationTimeout)),
	}); err != nil {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("navigating: %w", err)}
	}

	if b.WaitSelector != "" {
		if err := page.Locator(b.WaitSelector).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: playwright.Float(millis(ctx, b.SelectorTimeout)),
		}); err != nil {
			return "", &FetchError{URL: pageURL, Err: fmt.Errorf("waiting for %q: %w", b.WaitSelector, err)}
		}
	}

	content, err = page.Content()
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("reading content: %w", err)}
	}
	return content, nil
}

// millis converts a timeout to Playwright milliseconds, shortened to the
// context deadline when that comes first.
func millis(ctx context.Context, d time.Duration) float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return float64(d / time.Millisecond)
}
