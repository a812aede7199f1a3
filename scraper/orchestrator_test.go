package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"deal_hunter/config"
	"deal_hunter/extract"
	"deal_hunter/models"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

type fakeHandler struct {
	id      models.Source
	content string
	err     error
	delay   time.Duration

	mu   sync.Mutex
	urls []string
}

func (f *fakeHandler) ID() models.Source { return f.id }

func (f *fakeHandler) Fetch(ctx context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	f.urls = append(f.urls, pageURL)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.content, f.err
}

func (f *fakeHandler) Close() error { return nil }

func testSites(t *testing.T) map[models.Source]*config.SourceConfig {
	t.Helper()
	sites := make(map[models.Source]*config.SourceConfig)
	for _, src := range models.AllSources {
		site, _ := config.DefaultSourceConfig(src)
		sites[src] = site
	}
	return sites
}

func TestCollect_MixedSources(t *testing.T) {
	good := &fakeHandler{id: models.SourceEbay, content: loadFixture(t, "ebay_search.html")}
	slow := &fakeHandler{id: models.SourceGovDeals, delay: 5 * time.Second}
	failing := &fakeHandler{id: models.SourceLiquidation, err: errors.New("connection reset")}
	pr := &fakeHandler{id: models.SourcePropertyRoom, content: loadFixture(t, "propertyroom_search.html")}

	o := NewOrchestrator(extract.NewDefaultExtractor(), testSites(t), map[models.Source]Handler{
		models.SourceEbay:         good,
		models.SourceGovDeals:     slow,
		models.SourceLiquidation:  failing,
		models.SourcePropertyRoom: pr,
	}, 200*time.Millisecond)

	sources := []models.Source{models.SourcePropertyRoom, models.SourceGovDeals, models.SourceEbay, models.SourceLiquidation}
	start := time.Now()
	results := o.Collect(context.Background(), "macbook pro", sources, 30)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected slow source to time out, took %v", elapsed)
	}

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, src := range sources {
		if results[i].Source != src {
			t.Fatalf("expected result %d for %s, got %s", i, src, results[i].Source)
		}
	}

	if results[0].Err != nil || results[0].Count != 2 {
		t.Fatalf("expected 2 propertyroom listings, got %d (%v)", results[0].Count, results[0].Err)
	}
	if !errors.Is(results[1].Err, models.ErrSourceUnavailable) || !errors.Is(results[1].Err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout source error, got %v", results[1].Err)
	}
	if results[2].Err != nil || results[2].Count != 4 {
		t.Fatalf("expected 4 ebay listings, got %d (%v)", results[2].Count, results[2].Err)
	}
	if results[2].Matcher == "" || results[2].Fallback {
		t.Fatalf("expected a container matcher, got %q fallback=%v", results[2].Matcher, results[2].Fallback)
	}
	if !errors.Is(results[3].Err, models.ErrSourceUnavailable) || results[3].Error == "" {
		t.Fatalf("expected failed source, got %+v", results[3])
	}

	if len(good.urls) != 1 || !strings.Contains(good.urls[0], "_nkw=macbook+pro") {
		t.Fatalf("expected search url with query, got %v", good.urls)
	}
}

func TestCollect_UnconfiguredAndDisabled(t *testing.T) {
	sites := testSites(t)
	off := false
	sites[models.SourceGovDeals].Enabled = &off

	o := NewOrchestrator(extract.NewDefaultExtractor(), sites, map[models.Source]Handler{}, time.Second)
	results := o.Collect(context.Background(), "ps5", []models.Source{models.SourceEbay, models.SourceGovDeals}, 10)

	for _, r := range results {
		if !errors.Is(r.Err, models.ErrSourceUnavailable) {
			t.Fatalf("expected %s to fail, got %v", r.Source, r.Err)
		}
	}
}

func TestCollect_CancelledContext(t *testing.T) {
	slow := &fakeHandler{id: models.SourceEbay, delay: time.Second}
	o := NewOrchestrator(extract.NewDefaultExtractor(), testSites(t), map[models.Source]Handler{models.SourceEbay: slow}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := o.Collect(ctx, "ps5", []models.Source{models.SourceEbay}, 10)
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", results[0].Err)
	}
}

func TestFetchDetail(t *testing.T) {
	item := &fakeHandler{id: models.SourceEbay, content: loadFixture(t, "ebay_item.html")}
	o := NewOrchestrator(extract.NewDefaultExtractor(), testSites(t), map[models.Source]Handler{models.SourceEbay: item}, time.Second)

	src, detail, err := o.FetchDetail(context.Background(), "https://www.ebay.com/itm/394857261034?hash=abc#tabs")
	if err != nil {
		t.Fatalf("fetch detail failed: %v", err)
	}
	if src != models.SourceEbay {
		t.Fatalf("expected ebay, got %s", src)
	}
	if detail.Price == nil || *detail.Price != 405 {
		t.Fatalf("expected price 405, got %v", detail.Price)
	}
	if item.urls[0] != "https://www.ebay.com/itm/394857261034" {
		t.Fatalf("expected canonical url, got %s", item.urls[0])
	}
}

func TestSourceForURL_Rejects(t *testing.T) {
	o := NewOrchestrator(extract.NewDefaultExtractor(), testSites(t), nil, time.Second)
	for _, u := range []string{"https://evil.example/itm/1", "notaurl", "ftp://www.ebay.com/itm/1"} {
		if _, _, err := o.SourceForURL(u); err == nil {
			t.Fatalf("expected %q to be rejected", u)
		}
	}
	if src, _, err := o.SourceForURL("https://ebay.com/itm/5"); err != nil || src != models.SourceEbay {
		t.Fatalf("expected bare host to match ebay, got %s, %v", src, err)
	}
}

func TestHTTPHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("expected a user agent")
		}
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte("<html><body>results</body></html>"))
		case "/blocked":
			w.Write([]byte("<html><body>Pardon Our Interruption</body></html>"))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	site := &config.SourceConfig{ID: models.SourcePropertyRoom, Name: "PropertyRoom"}
	h := NewHTTPHandler(site, srv.Client())

	content, err := h.Fetch(context.Background(), srv.URL+"/ok")
	if err != nil || !strings.Contains(content, "results") {
		t.Fatalf("expected page content, got %q, %v", content, err)
	}
	if _, err := h.Fetch(context.Background(), srv.URL+"/blocked"); err == nil {
		t.Fatal("expected bot check error")
	}
	if _, err := h.Fetch(context.Background(), srv.URL+"/down"); err == nil {
		t.Fatal("expected status error")
	}
}

func TestNavTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if got := navTimeout(ctx, 45); got > 3*time.Second {
		t.Fatalf("expected deadline to cap timeout, got %v", got)
	}
	if got := navTimeout(context.Background(), 0); got != defaultNavTimeout {
		t.Fatalf("expected default, got %v", got)
	}
}
