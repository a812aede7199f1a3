package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"golang.org/x/time/rate"

	"deal_hunter/config"
	"deal_hunter/httputil"
	"deal_hunter/models"
)

const maxPageBytes = 8 << 20

// HTTPHandler fetches server-rendered pages with a plain GET.
type HTTPHandler struct {
	site    *config.SourceConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPHandler(site *config.SourceConfig, client *http.Client) *HTTPHandler {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPHandler{
		site:    site,
		client:  client,
		limiter: newLimiter(site.RateLimitMS),
	}
}

func (h *HTTPHandler) ID() models.Source {
	return h.site.ID
}

func (h *HTTPHandler) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	httputil.BrowserHeaders(req)

	log.Printf("[%s] GET %s", h.site.ID, pageURL)
	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned %d", h.site.Name, resp.StatusCode)
	}

	content := string(body)
	if trigger := detectChallenge(content); trigger != "" {
		return "", fmt.Errorf("blocked by bot check (%s)", trigger)
	}
	return content, nil
}

func (h *HTTPHandler) Close() error {
	return nil
}
