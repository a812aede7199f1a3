package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"deal_hunter/extract"
	"deal_hunter/models"
	"deal_hunter/notify"
	"deal_hunter/services"
	"deal_hunter/storage"
)

// DetailFetcher loads and parses an item page. scraper.Orchestrator
// implements it.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, itemURL string) (models.Source, *extract.Detail, error)
}

// EnrichmentWorker re-fetches item pages for top deals whose search card
// showed no condition, then re-scores them with what the page says.
type EnrichmentWorker struct {
	fetcher   DetailFetcher
	estimator *services.Estimator
	analyzer  *services.Analyzer
	store     storage.SeenStore
	limit     int
	delay     time.Duration
	logFunc   LogFunc
}

// NewEnrichmentWorker creates a worker that looks at no more than limit
// deals per hunt. A limit of 0 disables hunt enrichment; Inspect still
// works.
func NewEnrichmentWorker(fetcher DetailFetcher, estimator *services.Estimator, analyzer *services.Analyzer, store storage.SeenStore, limit int) *EnrichmentWorker {
	return &EnrichmentWorker{
		fetcher:   fetcher,
		estimator: estimator,
		analyzer:  analyzer,
		store:     store,
		limit:     limit,
		delay:     500 * time.Millisecond,
		logFunc:   NoOpLogger,
	}
}

func (w *EnrichmentWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// ItemReport is a single item page scored on its own.
type ItemReport struct {
	Source   models.Source          `json:"source"`
	URL      string                 `json:"url"`
	Detail   *extract.Detail        `json:"detail"`
	Estimate *models.RetailEstimate `json:"estimate"`
	Deal     *notify.Alert          `json:"deal,omitempty"`
}

// Inspect fetches one item page and scores it. Deal is nil when the
// title has no retail estimate.
func (w *EnrichmentWorker) Inspect(ctx context.Context, itemURL string) (*ItemReport, error) {
	src, detail, err := w.fetcher.FetchDetail(ctx, itemURL)
	if err != nil {
		return nil, fmt.Errorf("fetch detail: %w", err)
	}

	listing := models.ListingRecord{Source: src, URL: itemURL}
	mergeDetail(&listing, detail)

	report := &ItemReport{Source: src, URL: itemURL, Detail: detail}
	report.Estimate = w.estimator.Estimate(listing.Title)
	if analysis := w.analyzer.Analyze(listing, report.Estimate, listing.ConditionText); analysis != nil {
		alert := notify.AlertFromDeal(models.Deal{Listing: listing, Estimate: report.Estimate, Analysis: analysis})
		report.Deal = &alert
	}
	return report, nil
}

// Enrich re-scores the top deals of a hunt that lack a condition, then
// re-ranks the result with filter. It returns how many deals changed.
func (w *EnrichmentWorker) Enrich(ctx context.Context, res *services.HuntResult, filter services.Filter) int {
	if w.limit <= 0 || len(res.Deals) == 0 {
		return 0
	}

	deals := make([]models.Deal, len(res.Deals))
	copy(deals, res.Deals)

	enriched := 0
	for i := range services.TopN(deals, w.limit) {
		d := &deals[i]
		if !needsDetail(d.Listing) {
			continue
		}
		if enriched > 0 && !sleepCtx(ctx, w.delay) {
			break
		}

		_, detail, err := w.fetcher.FetchDetail(ctx, d.Listing.URL)
		if err != nil {
			log.Printf("[enrich] Warning: failed to enrich %s: %v", d.Listing.URL, err)
			continue
		}
		mergeDetail(&d.Listing, detail)
		analysis := w.analyzer.Analyze(d.Listing, d.Estimate, d.Listing.ConditionText)
		if analysis == nil {
			continue
		}
		d.Analysis = analysis
		enriched++

		if !res.Degraded {
			if err := w.store.MarkSeen(ctx, models.NewSeenDeal(*d, false)); err != nil {
				log.Printf("[enrich] Warning: failed to update %s: %v", d.Listing.URL, err)
			}
		}
		log.Printf("[enrich] %s: condition %q, profit %.2f", d.Listing.URL, d.Listing.ConditionText, analysis.Profit())
	}
	if enriched == 0 {
		return 0
	}

	res.Deals = services.Rank(deals, filter)
	res.NewDeals = res.NewDeals[:0]
	for _, d := range res.Deals {
		if d.New {
			res.NewDeals = append(res.NewDeals, d)
		}
	}
	res.Run.DealsFound = len(res.Deals)
	res.Run.NewDeals = len(res.NewDeals)
	w.logFunc(models.LogLevelInfo, "enrich", fmt.Sprintf("re-scored %d deals for %q", enriched, res.Run.Query))
	return enriched
}

func needsDetail(l models.ListingRecord) bool {
	return l.ConditionText == "" || l.ConditionText == models.Unknown
}

// mergeDetail lets the item page override what the search card showed.
func mergeDetail(l *models.ListingRecord, d *extract.Detail) {
	if d.ConditionText != "" {
		l.ConditionText = d.ConditionText
	}
	if d.Price != nil && *d.Price > 0 {
		l.Price = *d.Price
	}
	if d.ShippingCost != nil {
		l.ShippingCost = *d.ShippingCost
	}
	if l.Title == "" {
		l.Title = d.Title
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
