package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"deal_hunter/config"
	"deal_hunter/extract"
	"deal_hunter/httputil"
	"deal_hunter/identity"
	"deal_hunter/models"
)

var (
	errNotConfigured = errors.New("source not configured")
	errDisabled      = errors.New("source disabled")
	errForeignURL    = errors.New("url does not belong to a known source")
)

// Orchestrator fans a query out to every requested source and extracts
// each returned page. It implements services.Collector.
type Orchestrator struct {
	sites     map[models.Source]*config.SourceConfig
	handlers  map[models.Source]Handler
	extractor *extract.Extractor
	timeout   time.Duration
}

func NewOrchestrator(extractor *extract.Extractor, sites map[models.Source]*config.SourceConfig, handlers map[models.Source]Handler, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{
		sites:     sites,
		handlers:  handlers,
		extractor: extractor,
		timeout:   timeout,
	}
}

// FromConfig builds handlers and layouts for every known source.
func FromConfig(cfg *config.Config, clients *httputil.Clients) (*Orchestrator, error) {
	sites := make(map[models.Source]*config.SourceConfig)
	handlers := make(map[models.Source]Handler)
	var layouts []extract.Layout

	for _, src := range models.AllSources {
		site := cfg.Site(src)
		if site == nil {
			continue
		}
		sites[src] = site
		layouts = append(layouts, site.ResolvedLayout())
		if site.IsEnabled() {
			handlers[src] = NewHandler(site, cfg.Browser, clients)
		}
	}

	extractor, err := extract.NewExtractor(layouts...)
	if err != nil {
		return nil, fmt.Errorf("layouts: %w", err)
	}
	return NewOrchestrator(extractor, sites, handlers, cfg.Hunt.SourceTimeout), nil
}

func (o *Orchestrator) Extractor() *extract.Extractor {
	return o.extractor
}

// Collect runs one goroutine per source. Every goroutine returns nil to
// the group, so one failing source never cancels the others; failures
// are recorded on that source's result. Results keep request order.
func (o *Orchestrator) Collect(ctx context.Context, query string, sources []models.Source, maxResults int) []models.SourceResult {
	results := make([]models.SourceResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = o.collectOne(gctx, src, query, maxResults)
			return nil
		})
	}
	g.Wait()

	return results
}

func (o *Orchestrator) collectOne(ctx context.Context, src models.Source, query string, maxResults int) (res models.SourceResult) {
	res.Source = src
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	site, ok := o.sites[src]
	if !ok {
		res.Fail(&models.SourceError{Source: src, Err: errNotConfigured})
		return res
	}
	if !site.IsEnabled() {
		res.Fail(&models.SourceError{Source: src, Err: errDisabled})
		return res
	}
	handler, ok := o.handlers[src]
	if !ok {
		res.Fail(&models.SourceError{Source: src, Err: errNotConfigured})
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	content, err := handler.Fetch(ctx, site.SearchURLFor(query, maxResults))
	if err != nil {
		log.Printf("[%s] Warning: fetch failed: %v", src, err)
		res.Fail(&models.SourceError{Source: src, Err: err})
		return res
	}

	records, report, err := o.extractor.Extract(src, content, maxResults)
	if err != nil {
		log.Printf("[%s] Warning: extraction failed: %v", src, err)
		res.Fail(&models.SourceError{Source: src, Err: fmt.Errorf("%w: %v", models.ErrExtractionFailure, err)})
		return res
	}

	res.Listings = records
	res.Count = len(records)
	res.Matcher = report.Matcher
	res.Fallback = report.Fallback
	log.Printf("[%s] %d listings from %d containers (matcher %q, fallback %v, %d rejected, %d failed)",
		src, report.Extracted, report.Containers, report.Matcher, report.Fallback, report.Rejected, report.Failed)
	return res
}

// SourceForURL finds the source whose base URL host matches itemURL.
func (o *Orchestrator) SourceForURL(itemURL string) (models.Source, string, error) {
	canonical, ok := identity.CanonicalURL(itemURL, "")
	if !ok {
		return "", "", fmt.Errorf("invalid url %q", itemURL)
	}
	u, _ := url.Parse(canonical)
	for src, site := range o.sites {
		layout, ok := o.extractor.Layout(src)
		if !ok || layout.BaseURL == "" {
			continue
		}
		base, err := url.Parse(layout.BaseURL)
		if err != nil {
			continue
		}
		if sameSite(u.Hostname(), base.Hostname()) && site.IsEnabled() {
			return src, canonical, nil
		}
	}
	return "", "", errForeignURL
}

// FetchDetail loads an item page through its source's handler.
func (o *Orchestrator) FetchDetail(ctx context.Context, itemURL string) (models.Source, *extract.Detail, error) {
	src, canonical, err := o.SourceForURL(itemURL)
	if err != nil {
		return "", nil, err
	}
	handler, ok := o.handlers[src]
	if !ok {
		return src, nil, &models.SourceError{Source: src, Err: errNotConfigured}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	content, err := handler.Fetch(ctx, canonical)
	if err != nil {
		return src, nil, &models.SourceError{Source: src, Err: err}
	}
	detail, err := o.extractor.ParseDetail(src, content)
	return src, detail, err
}

func (o *Orchestrator) Close() error {
	var errs []error
	for _, h := range o.handlers {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sameSite(host, base string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	base = strings.TrimPrefix(strings.ToLower(base), "www.")
	return host == base || strings.HasSuffix(host, "."+base)
}
