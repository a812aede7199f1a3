package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/time/rate"

	"deal_hunter/config"
	"deal_hunter/httputil"
	"deal_hunter/models"
)

const (
	defaultNavTimeout  = 45 * time.Second
	resultsWaitTimeout = 10 * time.Second
)

// BrowserHandler renders pages in a persistent Chromium profile, one
// profile directory per source so cookies and consent survive restarts.
type BrowserHandler struct {
	site    *config.SourceConfig
	browser config.BrowserConfig
	limiter *rate.Limiter

	mu          sync.Mutex
	inflight    sync.WaitGroup
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	initialized bool
	warmedUp    bool
}

func NewBrowserHandler(site *config.SourceConfig, browser config.BrowserConfig) *BrowserHandler {
	return &BrowserHandler{
		site:    site,
		browser: browser,
		limiter: newLimiter(site.RateLimitMS),
	}
}

func (h *BrowserHandler) ID() models.Source {
	return h.site.ID
}

// Fetch loads pageURL and returns the rendered HTML. Playwright calls do
// not take a context, so the page work runs in its own goroutine and
// Fetch returns as soon as ctx is done.
func (h *BrowserHandler) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if err := h.ensureBrowser(); err != nil {
		return "", err
	}

	h.mu.Lock()
	browserCtx := h.context
	h.mu.Unlock()
	if browserCtx == nil {
		return "", fmt.Errorf("browser closed")
	}

	return h.runTracked(ctx, func() (string, error) {
		return h.render(ctx, browserCtx, pageURL)
	})
}

// runTracked runs fn in its own goroutine and returns when fn finishes or
// ctx is done. Close waits for every tracked fn before tearing down the
// browser.
func (h *BrowserHandler) runTracked(ctx context.Context, fn func() (string, error)) (string, error) {
	type result struct {
		content string
		err     error
	}
	done := make(chan result, 1)
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		content, err := fn()
		done <- result{content, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.content, r.err
	}
}

func (h *BrowserHandler) render(ctx context.Context, browserCtx playwright.BrowserContext, pageURL string) (string, error) {
	page, err := browserCtx.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()
	// closing the page aborts whatever playwright call is in flight
	stop := context.AfterFunc(ctx, func() { page.Close() })
	defer stop()

	timeout := navTimeout(ctx, h.site.TimeoutSec)
	h.warmup(page, timeout)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	log.Printf("[%s] Navigating to: %s", h.site.ID, pageURL)
	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Printf("[%s] Navigation error (continuing): %v", h.site.ID, err)
	}

	humanDelay(800, 1600)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h.handleConsent(page)
	found := h.waitForResults(page)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	content, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	if found {
		return content, nil
	}

	if trigger := detectChallenge(content); trigger != "" {
		log.Printf("[%s] Bot check detected: %s", h.site.ID, trigger)
		h.handleChallenge(page)
		if content, err = page.Content(); err != nil {
			return "", fmt.Errorf("read page content: %w", err)
		}
		if trigger := detectChallenge(content); trigger != "" {
			return "", fmt.Errorf("blocked by bot check (%s)", trigger)
		}
	}
	return content, nil
}

// warmup visits the source's home page once per browser session, which
// some marketplaces require before search results render.
func (h *BrowserHandler) warmup(page playwright.Page, timeout time.Duration) {
	h.mu.Lock()
	if h.site.WarmupURL == "" || h.warmedUp {
		h.mu.Unlock()
		return
	}
	h.warmedUp = true
	h.mu.Unlock()

	log.Printf("[%s] Warming up session at %s", h.site.ID, h.site.WarmupURL)
	if _, err := page.Goto(h.site.WarmupURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		log.Printf("[%s] Warning: warmup failed: %v", h.site.ID, err)
		return
	}
	humanDelay(1500, 3000)
	h.handleConsent(page)
	simulateHumanBehavior(page)
}

func (h *BrowserHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	userDataDir := filepath.Join(h.browser.ProfileDir, string(h.site.ID))
	if err := os.MkdirAll(userDataDir, 0o755); err != nil {
		h.pw.Stop()
		return fmt.Errorf("create browser profile: %w", err)
	}

	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:  playwright.Bool(h.browser.Headless),
		UserAgent: playwright.String(httputil.DefaultUserAgent),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if h.browser.ProxyURL != "" {
		opts.Proxy = &playwright.Proxy{Server: h.browser.ProxyURL}
	}

	h.context, err = h.pw.Chromium.LaunchPersistentContext(userDataDir, opts)
	if err != nil {
		h.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	h.initialized = true
	return nil
}

func (h *BrowserHandler) Close() error {
	h.inflight.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return nil
	}
	if h.context != nil {
		h.context.Close()
		h.context = nil
	}
	if h.pw != nil {
		h.pw.Stop()
	}
	h.initialized = false
	h.warmedUp = false
	return nil
}

// waitForResults reports whether the source's results selector appeared.
func (h *BrowserHandler) waitForResults(page playwright.Page) bool {
	if h.site.WaitSelector == "" {
		page.WaitForTimeout(2000)
		return false
	}
	err := page.Locator(h.site.WaitSelector).First().WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(float64(resultsWaitTimeout.Milliseconds())),
	})
	if err != nil {
		log.Printf("[%s] Timeout waiting for results", h.site.ID)
		return false
	}
	return true
}

func (h *BrowserHandler) handleChallenge(page playwright.Page) {
	page.WaitForTimeout(2000)

	clickSelectors := []string{
		"iframe#main-iframe",
		"[id*='checkbox']",
		"input[type='checkbox']",
		"button:has-text('Verify')",
		"button:has-text('Continue')",
	}
	for _, selector := range clickSelectors {
		el := page.Locator(selector).First()
		if visible, _ := el.IsVisible(); visible {
			log.Printf("[%s] Clicking challenge element: %s", h.site.ID, selector)
			el.Click()
			page.WaitForTimeout(3000)
			break
		}
	}

	for _, frame := range page.Frames() {
		if frame == page.MainFrame() {
			continue
		}
		for _, selector := range []string{"input[type='checkbox']", "span[role='checkbox']", "button"} {
			el := frame.Locator(selector).First()
			if visible, _ := el.IsVisible(); visible {
				el.Click()
				page.WaitForTimeout(3000)
				return
			}
		}
	}
}

func (h *BrowserHandler) handleConsent(page playwright.Page) {
	consentSelectors := []string{
		"#gdpr-banner-accept",
		"#onetrust-accept-btn-handler",
		"#didomi-notice-agree-button",
		"button[id*='accept']",
		"button[class*='consent']",
		"button:has-text('Accept All')",
		"button:has-text('Accept')",
		"button:has-text('I Agree')",
	}

	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			log.Printf("[%s] Clicking consent button: %s", h.site.ID, selector)
			btn.Click()
			page.WaitForTimeout(1000)
			break
		}
	}
}

func simulateHumanBehavior(page playwright.Page) {
	page.Mouse().Move(float64(300+rand.Intn(400)), float64(200+rand.Intn(300)))
	page.WaitForTimeout(float64(200 + rand.Intn(300)))
	page.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, 100+rand.Intn(300)))
}

func humanDelay(minMs, maxMs int) {
	delay := minMs + rand.Intn(maxMs-minMs)
	time.Sleep(time.Duration(delay) * time.Millisecond)
}

// navTimeout is the source timeout, shortened to the context deadline.
func navTimeout(ctx context.Context, timeoutSec int) time.Duration {
	timeout := defaultNavTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout < time.Second {
		timeout = time.Second
	}
	return timeout
}
