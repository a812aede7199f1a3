package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"deal_hunter/config"
	"deal_hunter/models"
	"deal_hunter/services"
	"deal_hunter/storage"
	"deal_hunter/workers"
)

type fakeHunter struct {
	last services.HuntRequest
	res  *services.HuntResult
}

func (f *fakeHunter) Hunt(_ context.Context, req services.HuntRequest) (*services.HuntResult, error) {
	f.last = req
	if f.res != nil {
		return f.res, nil
	}
	return &services.HuntResult{Run: models.NewSearchRun(req.Query, req.Sources)}, nil
}

type fakeInspector struct{}

func (fakeInspector) Inspect(_ context.Context, itemURL string) (*workers.ItemReport, error) {
	switch {
	case strings.Contains(itemURL, "ebay.com"):
		return &workers.ItemReport{Source: models.SourceEbay, URL: itemURL}, nil
	case strings.Contains(itemURL, "govdeals"):
		return nil, &models.SourceError{Source: models.SourceGovDeals, Err: errors.New("blocked")}
	default:
		return nil, errors.New("url does not belong to a known source")
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Hunt: config.HuntConfig{MinProfit: 30, MinMargin: 25, SourceTimeout: time.Second},
		API:  config.APIConfig{Addr: ":0"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, store storage.DealStore, hunter *fakeHunter) *Server {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	if hunter == nil {
		hunter = &fakeHunter{}
	}
	return New(cfg, hunter, store, fakeInspector{})
}

func do(t *testing.T, s *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, nil)
	resp, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	down := newTestServer(t, testConfig(), storage.NewUnavailableStore(errors.New("disk full")), nil)
	resp, _ = do(t, down, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	retail := 350.0
	l := models.ListingRecord{Source: models.SourceEbay, Title: "Nintendo Switch OLED", Price: 100, ConditionText: "New", URL: "https://www.ebay.com/itm/1"}
	est := &models.RetailEstimate{EstimatedRetail: &retail}
	deal := models.Deal{Listing: l, Estimate: est, Analysis: services.NewDefaultAnalyzer().Analyze(l, est, l.ConditionText), New: true}

	hunter := &fakeHunter{res: &services.HuntResult{
		Run:      models.NewSearchRun("switch", []models.Source{models.SourceEbay}),
		Listings: []models.ListingRecord{l, {Title: "cable"}},
		Deals:    []models.Deal{deal},
		Unscored: 1,
	}}
	s := newTestServer(t, testConfig(), nil, hunter)

	resp, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/search?q=switch&sources=ebay,govdeals&min_profit=50&max_margin=90&max_results=5", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	if hunter.last.Query != "switch" || len(hunter.last.Sources) != 2 || hunter.last.MaxResults != 5 {
		t.Fatalf("unexpected request %+v", hunter.last)
	}
	f := hunter.last.Filter
	if *f.MinProfit != 50 || *f.MinMargin != 25 || *f.MaxMargin != 90 {
		t.Fatalf("expected query bounds over config defaults, got %+v", f)
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Listings != 2 || out.Unscored != 1 || len(out.Deals) != 1 {
		t.Fatalf("unexpected response %+v", out)
	}
	if !out.Deals[0].New || out.Deals[0].Tier != models.TierGreat || out.Deals[0].URL != l.URL {
		t.Fatalf("unexpected deal %+v", out.Deals[0])
	}
}

func TestSearch_BadInput(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, nil)
	for _, target := range []string{
		"/api/search",
		"/api/search?q=x&sources=craigslist",
		"/api/search?q=x&min_profit=lots",
		"/api/search?q=x&max_results=-1",
	} {
		resp, _ := do(t, s, httptest.NewRequest(http.MethodGet, target, nil))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, resp.StatusCode)
		}
	}
}

func TestSavedDeals(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, nil)

	body := `{"url":"https://www.ebay.com/itm/77?hash=x","title":"Switch","price":100,"notes":"check shipping"}`
	req := httptest.NewRequest(http.MethodPost, "/api/saved", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, raw := do(t, s, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, raw)
	}

	resp, raw = do(t, s, httptest.NewRequest(http.MethodGet, "/api/saved", nil))
	var list struct {
		Saved []models.SavedDeal `json:"saved"`
	}
	json.Unmarshal(raw, &list)
	if resp.StatusCode != http.StatusOK || len(list.Saved) != 1 || list.Saved[0].URL != "https://www.ebay.com/itm/77" {
		t.Fatalf("expected one canonical saved deal, got %s", raw)
	}

	resp, _ = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/saved?url=https://www.ebay.com/itm/77", nil))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp, _ = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/saved?url=https://www.ebay.com/itm/77", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/saved", strings.NewReader(`{"title":"no url"}`))
	req.Header.Set("Content-Type", "application/json")
	if resp, _ = do(t, s, req); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStatsAndHistory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	run := models.NewSearchRun("ps5", nil)
	run.Finish(models.RunStatusCompleted)
	store.LogSearch(ctx, run)
	store.MarkSeen(ctx, &models.SeenDeal{URL: "u1", Profit: 50, Margin: 30})

	s := newTestServer(t, testConfig(), store, nil)

	_, raw := do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var stats models.Stats
	json.Unmarshal(raw, &stats)
	if stats.TotalSearches != 1 || stats.TotalDealsSeen != 1 {
		t.Fatalf("unexpected stats %s", raw)
	}

	_, raw = do(t, s, httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil))
	if !strings.Contains(string(raw), `"query":"ps5"`) {
		t.Fatalf("expected search in history, got %s", raw)
	}

	_, raw = do(t, s, httptest.NewRequest(http.MethodGet, "/api/deals", nil))
	if !strings.Contains(string(raw), `"url":"u1"`) {
		t.Fatalf("expected deal in recent deals, got %s", raw)
	}

	down := newTestServer(t, testConfig(), storage.NewUnavailableStore(errors.New("locked")), nil)
	if resp, _ := do(t, down, httptest.NewRequest(http.MethodGet, "/api/stats", nil)); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestItem(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, nil)
	cases := map[string]int{
		"/api/item":                                        http.StatusBadRequest,
		"/api/item?url=https://www.ebay.com/itm/1":         http.StatusOK,
		"/api/item?url=https://www.govdeals.com/asset/1":   http.StatusBadGateway,
		"/api/item?url=http://169.254.169.254/latest/meta": http.StatusBadRequest,
	}
	for target, want := range cases {
		resp, raw := do(t, s, httptest.NewRequest(http.MethodGet, target, nil))
		if resp.StatusCode != want {
			t.Fatalf("%s: expected %d, got %d: %s", target, want, resp.StatusCode, raw)
		}
	}
}

func TestCommands(t *testing.T) {
	store := storage.NewMemoryStore()
	s := newTestServer(t, testConfig(), store, nil)

	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/commands", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := do(t, s, req)
		return resp.StatusCode
	}

	if code := post(`{"command":"hunt_query","query":"ps5","sources":["ebay"]}`); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if code := post(`{"command":"hunt_query"}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without query, got %d", code)
	}
	if code := post(`{"command":"reboot"}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown command, got %d", code)
	}

	pending, _ := store.PendingCommands(context.Background())
	if len(pending) != 1 || pending[0].Command != models.CmdHuntQuery {
		t.Fatalf("expected one queued command, got %+v", pending)
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.API.User, cfg.API.Pass = "admin", "secret"
	s := newTestServer(t, cfg, nil, nil)

	resp, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.SetBasicAuth("admin", "secret")
	if resp, _ = do(t, s, req); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if resp, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil)); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected open health check, got %d", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.API.RateLimit = 2
	s := newTestServer(t, cfg, nil, nil)

	var codes []int
	for i := 0; i < 3; i++ {
		resp, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
		codes = append(codes, resp.StatusCode)
	}
	if fmt.Sprint(codes) != "[200 200 429]" {
		t.Fatalf("expected third request limited, got %v", codes)
	}
}
