package scraper

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"deal_hunter/config"
	"deal_hunter/httputil"
	"deal_hunter/models"
)

// Handler is the transport for one marketplace: it turns a page URL into
// rendered HTML. Extraction happens elsewhere.
type Handler interface {
	ID() models.Source
	Fetch(ctx context.Context, pageURL string) (string, error)
	Close() error
}

func NewHandler(site *config.SourceConfig, browser config.BrowserConfig, clients *httputil.Clients) Handler {
	switch site.Handler {
	case config.HandlerBrowser:
		return NewBrowserHandler(site, browser)
	default:
		return NewHTTPHandler(site, clients.Scraping)
	}
}

// newLimiter paces requests to one source; a zero interval disables pacing.
func newLimiter(intervalMS int) *rate.Limiter {
	if intervalMS <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Duration(intervalMS)*time.Millisecond), 1)
}

var challengeMarkers = []string{
	"Pardon Our Interruption",
	"Checking your browser before accessing",
	"cf-challenge",
	"Request unsuccessful. Incapsula",
	"Incapsula incident ID",
	"Access Denied",
	"This request was blocked",
}

// detectChallenge returns the bot-check marker found in content, or "".
func detectChallenge(content string) string {
	for _, m := range challengeMarkers {
		if strings.Contains(content, m) {
			return m
		}
	}
	return ""
}
