package workers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"deal_hunter/extract"
	"deal_hunter/models"
	"deal_hunter/notify"
	"deal_hunter/services"
	"deal_hunter/storage"
)

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []notify.Summary
	err       error
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Send(_ context.Context, s notify.Summary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.summaries = append(n.summaries, s)
	return nil
}

func seedSeen(t *testing.T, store storage.DealStore, rows ...models.SeenDeal) {
	t.Helper()
	for i := range rows {
		if err := store.MarkSeen(context.Background(), &rows[i]); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
}

func TestAlertWorker_Sweep(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	seedSeen(t, store,
		models.SeenDeal{URL: "https://www.ebay.com/itm/1", Title: "great", Profit: 100, Margin: 50},
		models.SeenDeal{URL: "https://www.ebay.com/itm/2", Title: "good", Profit: 40, Margin: 30},
		// inclusive in the store query, but not a good deal
		models.SeenDeal{URL: "https://www.ebay.com/itm/3", Title: "edge", Profit: 31, Margin: 25},
		models.SeenDeal{URL: "https://www.ebay.com/itm/4", Title: "done", Profit: 200, Margin: 60, Notified: true},
	)

	n := &recordingNotifier{}
	w := NewAlertWorker(store, n, models.DefaultDealThresholds(), 1)

	sent, err := w.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if sent != 2 || len(n.summaries) != 1 {
		t.Fatalf("expected 2 deals in 1 summary, got %d in %d", sent, len(n.summaries))
	}
	alerts := n.summaries[0].Alerts
	if alerts[0].Title != "great" || alerts[0].Tier != models.TierGreat || alerts[1].Tier != models.TierGood {
		t.Fatalf("unexpected alerts %+v", alerts)
	}

	for url, want := range map[string]bool{
		"https://www.ebay.com/itm/1": true,
		"https://www.ebay.com/itm/2": true,
		"https://www.ebay.com/itm/3": false,
	} {
		got, _ := store.GetSeen(ctx, url)
		if got.Notified != want {
			t.Fatalf("%s: expected notified=%v, got %v", url, want, got.Notified)
		}
	}

	sent, err = w.Sweep(ctx)
	if err != nil || sent != 0 || len(n.summaries) != 1 {
		t.Fatalf("expected second sweep to send nothing, got %d, %v", sent, err)
	}
}

func TestAlertWorker_MinDeals(t *testing.T) {
	store := storage.NewMemoryStore()
	seedSeen(t, store, models.SeenDeal{URL: "u1", Profit: 100, Margin: 50})

	n := &recordingNotifier{}
	w := NewAlertWorker(store, n, models.DefaultDealThresholds(), 2)
	if sent, _ := w.Sweep(context.Background()); sent != 0 || len(n.summaries) != 0 {
		t.Fatalf("expected no delivery below min deals, got %d", sent)
	}
}

func TestAlertWorker_SendFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	seedSeen(t, store, models.SeenDeal{URL: "u1", Profit: 100, Margin: 50})

	w := NewAlertWorker(store, &recordingNotifier{err: errors.New("webhook 500")}, models.DefaultDealThresholds(), 1)
	if _, err := w.Sweep(ctx); err == nil {
		t.Fatal("expected send error")
	}
	got, _ := store.GetSeen(ctx, "u1")
	if got.Notified {
		t.Fatal("expected deal to stay pending after failed send")
	}
}

func dealFor(url, title, condition string, price, retail float64) models.Deal {
	est := &models.RetailEstimate{Title: title, EstimatedRetail: &retail, Confidence: models.ConfidenceMedium}
	l := models.ListingRecord{Source: models.SourceEbay, Title: title, Price: price, ConditionText: condition, URL: url}
	return models.Deal{
		Listing:  l,
		Estimate: est,
		Analysis: services.NewDefaultAnalyzer().Analyze(l, est, condition),
	}
}

func TestAlertWorker_Notify(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	good := dealFor("https://www.ebay.com/itm/10", "Nintendo Switch OLED", "New", 100, 350)
	good.New = true
	poor := dealFor("https://www.ebay.com/itm/11", "Nintendo Switch OLED", "New", 290, 350)
	poor.New = true
	for _, d := range []models.Deal{good, poor} {
		store.MarkSeen(ctx, models.NewSeenDeal(d, false))
	}

	res := &services.HuntResult{
		Run:      models.NewSearchRun("switch", nil),
		Listings: []models.ListingRecord{good.Listing, poor.Listing},
		Deals:    []models.Deal{good, poor},
		NewDeals: []models.Deal{good, poor},
	}

	n := &recordingNotifier{}
	w := NewAlertWorker(store, n, models.DefaultDealThresholds(), 1)
	sent, err := w.Notify(ctx, res)
	if err != nil || sent != 1 {
		t.Fatalf("expected 1 deal sent, got %d, %v", sent, err)
	}
	if n.summaries[0].Query != "switch" || n.summaries[0].Scanned != 2 {
		t.Fatalf("unexpected summary %+v", n.summaries[0])
	}
	if got, _ := store.GetSeen(ctx, good.Listing.URL); !got.Notified {
		t.Fatal("expected delivered deal to be marked notified")
	}
	if got, _ := store.GetSeen(ctx, poor.Listing.URL); got.Notified {
		t.Fatal("expected poor deal to stay unnotified")
	}
}

type fakeUploader struct {
	keys []string
	docs []any
	err  error
}

func (f *fakeUploader) PutJSON(_ context.Context, key string, v any) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.docs = append(f.docs, v)
	return nil
}

func TestReportKey(t *testing.T) {
	run := &models.SearchRun{
		ID:        uuid.MustParse("6f1c1f0e-8a8e-4c39-9d36-1f4d7c1f2a10"),
		StartedAt: time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC),
	}
	want := "reports/2026/03/07/6f1c1f0e-8a8e-4c39-9d36-1f4d7c1f2a10.json"
	if got := ReportKey(run); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestReportWorker_Export(t *testing.T) {
	up := &fakeUploader{}
	w := NewReportWorker(up, 1)

	deal := dealFor("https://www.ebay.com/itm/10", "Nintendo Switch OLED", "New", 100, 350)
	res := &services.HuntResult{
		Run:      models.NewSearchRun("switch", []models.Source{models.SourceEbay}),
		Listings: []models.ListingRecord{deal.Listing},
		Deals:    []models.Deal{deal},
		Unscored: 3,
	}

	key, err := w.Export(context.Background(), res)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.HasPrefix(key, "reports/") || !strings.HasSuffix(key, res.Run.ID.String()+".json") {
		t.Fatalf("unexpected key %s", key)
	}
	report, ok := up.docs[0].(*Report)
	if !ok {
		t.Fatalf("expected *Report, got %T", up.docs[0])
	}
	if len(report.Deals) != 1 || report.Unscored != 3 || report.Deals[0].Tier != models.TierGreat {
		t.Fatalf("unexpected report %+v", report)
	}

	up.err = errors.New("access denied")
	if _, err := w.Export(context.Background(), res); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestReportWorker_EnqueueDropsWhenFull(t *testing.T) {
	w := NewReportWorker(&fakeUploader{}, 1)
	res := &services.HuntResult{Run: models.NewSearchRun("q", nil)}
	if !w.Enqueue(res) {
		t.Fatal("expected first enqueue to succeed")
	}
	if w.Enqueue(res) {
		t.Fatal("expected full queue to drop")
	}
}

func TestReportWorker_Run(t *testing.T) {
	up := &fakeUploader{}
	w := NewReportWorker(up, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.Enqueue(&services.HuntResult{Run: models.NewSearchRun("q", nil)})
	deadline := time.After(2 * time.Second)
	for {
		if n := len(w.queue); n == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected queued report to be consumed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

type fakeFetcher struct {
	details map[string]*extract.Detail
	calls   []string
}

func (f *fakeFetcher) FetchDetail(_ context.Context, itemURL string) (models.Source, *extract.Detail, error) {
	f.calls = append(f.calls, itemURL)
	d, ok := f.details[itemURL]
	if !ok {
		return "", nil, errors.New("not found")
	}
	return models.SourceEbay, d, nil
}

func TestEnrichmentWorker_Enrich(t *testing.T) {
	price := 120.0
	fetcher := &fakeFetcher{details: map[string]*extract.Detail{
		"https://www.ebay.com/itm/1": {Title: "MacBook Pro", ConditionText: "For parts or not working"},
		"https://www.ebay.com/itm/2": {Title: "Switch", ConditionText: "Brand New", Price: &price},
	}}

	a := dealFor("https://www.ebay.com/itm/1", "MacBook Pro 14 M1", models.Unknown, 500, 1700)
	b := dealFor("https://www.ebay.com/itm/2", "Nintendo Switch OLED", "", 100, 350)
	b.New = true
	c := dealFor("https://www.ebay.com/itm/3", "iPhone 14 Pro", "Used", 300, 800)

	res := &services.HuntResult{
		Run:      models.NewSearchRun("mixed", nil),
		Deals:    services.Rank([]models.Deal{a, b, c}, services.Filter{}),
		NewDeals: []models.Deal{b},
	}
	before := a.Analysis.Profit()

	store := storage.NewMemoryStore()
	w := NewEnrichmentWorker(fetcher, services.NewDefaultEstimator(), services.NewDefaultAnalyzer(), store, 5)
	w.delay = 0

	n := w.Enrich(context.Background(), res, services.Filter{MinProfit: services.Float(0)})
	if n != 2 {
		t.Fatalf("expected 2 enriched deals, got %d", n)
	}
	if len(fetcher.calls) != 2 {
		t.Fatalf("expected deals with a known condition to be skipped, got %v", fetcher.calls)
	}

	for _, d := range res.Deals {
		if d.Listing.URL == a.Listing.URL {
			t.Fatalf("expected for-parts macbook to drop below the filter, got profit %.2f (was %.2f)", d.Analysis.Profit(), before)
		}
	}
	if len(res.NewDeals) != 1 || res.NewDeals[0].Listing.Price != 120 {
		t.Fatalf("expected new deal with detail price, got %+v", res.NewDeals)
	}
	if got, _ := store.GetSeen(context.Background(), b.Listing.URL); got == nil || got.Price != 120 {
		t.Fatalf("expected store refreshed with detail price, got %+v", got)
	}
}

func TestEnrichmentWorker_Disabled(t *testing.T) {
	fetcher := &fakeFetcher{}
	w := NewEnrichmentWorker(fetcher, services.NewDefaultEstimator(), services.NewDefaultAnalyzer(), storage.NewMemoryStore(), 0)
	res := &services.HuntResult{
		Run:   models.NewSearchRun("q", nil),
		Deals: []models.Deal{dealFor("u", "MacBook Pro", "", 100, 1700)},
	}
	if n := w.Enrich(context.Background(), res, services.Filter{}); n != 0 || len(fetcher.calls) != 0 {
		t.Fatalf("expected disabled worker to do nothing, got %d", n)
	}
}

func TestEnrichmentWorker_Inspect(t *testing.T) {
	price := 80.0
	ship := 10.0
	fetcher := &fakeFetcher{details: map[string]*extract.Detail{
		"https://www.ebay.com/itm/7": {Title: "Nintendo Switch OLED Model", ConditionText: "New", Price: &price, ShippingCost: &ship},
		"https://www.ebay.com/itm/8": {Title: "Mystery box of cables", Price: &price},
	}}
	w := NewEnrichmentWorker(fetcher, services.NewDefaultEstimator(), services.NewDefaultAnalyzer(), storage.NewMemoryStore(), 0)

	report, err := w.Inspect(context.Background(), "https://www.ebay.com/itm/7")
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if report.Deal == nil || report.Deal.Price != 80 || report.Deal.Shipping != 10 {
		t.Fatalf("expected scored deal, got %+v", report.Deal)
	}

	report, err = w.Inspect(context.Background(), "https://www.ebay.com/itm/8")
	if err != nil || report.Deal != nil {
		t.Fatalf("expected unscored report, got %+v, %v", report, err)
	}

	if _, err := w.Inspect(context.Background(), "https://www.ebay.com/itm/9"); err == nil {
		t.Fatal("expected fetch error")
	}
}
