package services

import (
	"context"
	"errors"
	"testing"

	"deal_hunter/models"
	"deal_hunter/storage"
)

type fakeCollector struct {
	results []models.SourceResult
	onCall  func()
}

func (f *fakeCollector) Collect(ctx context.Context, query string, sources []models.Source, maxResults int) []models.SourceResult {
	if f.onCall != nil {
		f.onCall()
	}
	return f.results
}

func sampleResults() []models.SourceResult {
	return []models.SourceResult{
		{
			Source: models.SourceEbay,
			Listings: []models.ListingRecord{
				{Source: models.SourceEbay, Title: "Nintendo Switch OLED White", Price: 80, ConditionText: "Brand New", URL: "https://www.ebay.com/itm/1"},
				{Source: models.SourceEbay, Title: "iPhone 14 Pro 128GB", Price: 400, ShippingCost: 10, ConditionText: "Used - Good", URL: "https://www.ebay.com/itm/2"},
				{Source: models.SourceEbay, Title: "USB-C Charger Cable", Price: 5, ConditionText: "New", URL: "https://www.ebay.com/itm/3"},
			},
		},
		{
			Source: models.SourceGovDeals,
			Err:    &models.SourceError{Source: models.SourceGovDeals, Err: context.DeadlineExceeded},
		},
		{
			Source: models.SourcePropertyRoom,
			Listings: []models.ListingRecord{
				{Source: models.SourcePropertyRoom, Title: "Apple MacBook Air M1 Laptop", Price: 200, ShippingCost: 20, ConditionText: "Used", URL: "https://www.propertyroom.com/l/9"},
			},
		},
	}
}

func newTestHunt(store HuntStore, collector Collector) *HuntService {
	return NewHuntService(collector, NewDefaultEstimator(), NewDefaultAnalyzer(), store, nil, 30)
}

func defaultFilter() Filter {
	return Filter{MinProfit: Float(30), MinMargin: Float(25)}
}

func TestHunt_Pipeline(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newTestHunt(store, &fakeCollector{results: sampleResults()})

	res, err := h.Hunt(context.Background(), HuntRequest{Query: "gadgets", Filter: defaultFilter()})
	if err != nil {
		t.Fatalf("hunt failed: %v", err)
	}
	if len(res.Listings) != 4 {
		t.Fatalf("expected 4 raw listings, got %d", len(res.Listings))
	}
	if res.Unscored != 1 {
		t.Fatalf("expected 1 unscored, got %d", res.Unscored)
	}
	// switch: margin ~64; macbook air: 900*.65=585, profit 288.95, margin ~49; iphone dropped
	if len(res.Deals) != 2 || res.Deals[0].Listing.URL != "https://www.ebay.com/itm/1" {
		t.Fatalf("expected switch then macbook, got %v", urlsOf(res.Deals))
	}
	if len(res.NewDeals) != 2 || !res.Deals[0].New {
		t.Fatalf("expected both deals new, got %d", len(res.NewDeals))
	}
	if res.Degraded {
		t.Fatal("expected healthy run")
	}
	if !res.Found() {
		t.Fatal("expected Found")
	}

	if res.Run.Status != models.RunStatusCompleted || res.Run.ResultsCount != 4 || res.Run.DealsFound != 2 {
		t.Fatalf("unexpected run %+v", res.Run)
	}
	if res.Run.SourceCounts[models.SourceEbay] != 3 || res.Run.SourceCounts[models.SourceGovDeals] != 0 {
		t.Fatalf("unexpected source counts %v", res.Run.SourceCounts)
	}

	seen, _ := store.GetSeen(context.Background(), "https://www.ebay.com/itm/1")
	if seen == nil || seen.Notified {
		t.Fatalf("expected unnotified sighting, got %+v", seen)
	}
	if seen, _ := store.IsSeen(context.Background(), "https://www.ebay.com/itm/2"); seen {
		t.Fatal("expected filtered-out deal not to be recorded")
	}
	runs, _ := store.RecentSearches(context.Background(), 10)
	if len(runs) != 1 {
		t.Fatalf("expected search logged, got %d", len(runs))
	}
}

func TestHunt_SecondRunNotNew(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newTestHunt(store, &fakeCollector{results: sampleResults()})

	if _, err := h.Hunt(context.Background(), HuntRequest{Query: "gadgets", Filter: defaultFilter()}); err != nil {
		t.Fatalf("first hunt failed: %v", err)
	}
	res, err := h.Hunt(context.Background(), HuntRequest{Query: "gadgets", Filter: defaultFilter()})
	if err != nil {
		t.Fatalf("second hunt failed: %v", err)
	}
	if len(res.Deals) != 2 || len(res.NewDeals) != 0 {
		t.Fatalf("expected 2 deals and none new, got %d and %d", len(res.Deals), len(res.NewDeals))
	}
}

func TestHunt_NotifiedSurvivesRescan(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	url := "https://www.ebay.com/itm/1"
	store.MarkSeen(ctx, &models.SeenDeal{URL: url, Source: models.SourceEbay, Notified: true})

	h := newTestHunt(store, &fakeCollector{results: sampleResults()})
	if _, err := h.Hunt(ctx, HuntRequest{Query: "gadgets", Filter: defaultFilter()}); err != nil {
		t.Fatalf("hunt failed: %v", err)
	}
	seen, _ := store.GetSeen(ctx, url)
	if !seen.Notified {
		t.Fatal("expected notified to survive an unnotified rescan")
	}
}

func TestHunt_StoreUnavailable(t *testing.T) {
	store := storage.NewUnavailableStore(errors.New("database is locked"))
	h := newTestHunt(store, &fakeCollector{results: sampleResults()})

	res, err := h.Hunt(context.Background(), HuntRequest{Query: "gadgets", Filter: defaultFilter()})
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if !res.Degraded || !res.Run.Degraded {
		t.Fatal("expected degraded run")
	}
	if len(res.NewDeals) != len(res.Deals) || len(res.Deals) != 2 {
		t.Fatalf("expected every deal treated as new, got %d of %d", len(res.NewDeals), len(res.Deals))
	}
}

func TestHunt_CancelledBeforeStoreWrites(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	h := newTestHunt(store, &fakeCollector{results: sampleResults(), onCall: cancel})

	_, err := h.Hunt(ctx, HuntRequest{Query: "gadgets", Filter: defaultFilter()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	stats, _ := store.Stats(context.Background())
	if stats.TotalDealsSeen != 0 || stats.TotalSearches != 0 {
		t.Fatalf("expected no store writes, got %+v", stats)
	}
}

func TestHunt_NoResults(t *testing.T) {
	h := newTestHunt(storage.NewMemoryStore(), &fakeCollector{})
	res, err := h.Hunt(context.Background(), HuntRequest{Query: "nothing"})
	if err != nil {
		t.Fatalf("hunt failed: %v", err)
	}
	if res.Found() || len(res.Listings) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestHunt_EmptyQuery(t *testing.T) {
	h := newTestHunt(storage.NewMemoryStore(), &fakeCollector{})
	if _, err := h.Hunt(context.Background(), HuntRequest{Query: "  "}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestHunt_DedupesURLAcrossSources(t *testing.T) {
	shared := "https://www.ebay.com/itm/1"
	collector := &fakeCollector{results: []models.SourceResult{
		{
			Source: models.SourceEbay,
			Listings: []models.ListingRecord{
				{Source: models.SourceEbay, Title: "Nintendo Switch OLED White", Price: 80, ConditionText: "Brand New", URL: shared},
			},
		},
		{
			Source: models.SourceGovDeals,
			Listings: []models.ListingRecord{
				{Source: models.SourceGovDeals, Title: "Nintendo Switch OLED White", Price: 75, ConditionText: "Brand New", URL: shared},
			},
		},
	}}

	store := storage.NewMemoryStore()
	res, err := newTestHunt(store, collector).Hunt(context.Background(), HuntRequest{Query: "switch", Filter: defaultFilter()})
	if err != nil {
		t.Fatalf("hunt failed: %v", err)
	}
	if len(res.Listings) != 1 || len(res.Deals) != 1 || len(res.NewDeals) != 1 {
		t.Fatalf("expected 1/1/1, got listings=%d deals=%d new=%d", len(res.Listings), len(res.Deals), len(res.NewDeals))
	}
	if res.Deals[0].Listing.Source != models.SourceEbay || res.Deals[0].Listing.Price != 80 {
		t.Fatalf("expected the first source's listing to win, got %s at %v", res.Deals[0].Listing.Source, res.Deals[0].Listing.Price)
	}
	if res.Run.ResultsCount != 1 {
		t.Fatalf("expected 1 result counted, got %d", res.Run.ResultsCount)
	}
}
