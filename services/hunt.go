package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"deal_hunter/models"
	"deal_hunter/storage"
)

// Collector fetches and extracts listings from each source concurrently.
// It never fails as a whole; per-source failures are reported in the
// results.
type Collector interface {
	Collect(ctx context.Context, query string, sources []models.Source, maxResults int) []models.SourceResult
}

// HuntStore is the part of the store the pipeline writes to.
type HuntStore interface {
	storage.SeenStore
	LogSearch(ctx context.Context, run *models.SearchRun) error
	Log(ctx context.Context, runID *uuid.UUID, level models.LogLevel, message, source string) error
}

// HuntService runs the discovery pipeline: collect, estimate, analyze,
// rank, then record sightings.
type HuntService struct {
	collector  Collector
	estimator  *Estimator
	analyzer   *Analyzer
	store      HuntStore
	sources    []models.Source
	maxResults int
}

func NewHuntService(collector Collector, estimator *Estimator, analyzer *Analyzer, store HuntStore, sources []models.Source, maxResults int) *HuntService {
	if len(sources) == 0 {
		sources = models.AllSources
	}
	return &HuntService{
		collector:  collector,
		estimator:  estimator,
		analyzer:   analyzer,
		store:      store,
		sources:    sources,
		maxResults: maxResults,
	}
}

type HuntRequest struct {
	Query      string
	Sources    []models.Source
	MaxResults int
	Filter     Filter
}

// HuntResult keeps every extracted listing, including the ones that
// could not be scored, alongside the ranked deals.
type HuntResult struct {
	Run      *models.SearchRun      `json:"run"`
	Listings []models.ListingRecord `json:"listings"`
	Deals    []models.Deal          `json:"deals"`
	NewDeals []models.Deal          `json:"new_deals"`
	Sources  []models.SourceResult  `json:"sources"`
	Unscored int                    `json:"unscored"`
	Degraded bool                   `json:"degraded"`
}

// Found reports whether at least one deal passed the filter. A search
// with no qualifying deals is still a successful run.
func (r *HuntResult) Found() bool {
	return len(r.Deals) > 0
}

func (s *HuntService) Estimator() *Estimator { return s.estimator }
func (s *HuntService) Analyzer() *Analyzer   { return s.analyzer }

// Hunt runs one search. Store writes happen only after every listing
// has been scored, so a cancelled hunt leaves the store untouched.
func (s *HuntService) Hunt(ctx context.Context, req HuntRequest) (*HuntResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	sources := req.Sources
	if len(sources) == 0 {
		sources = s.sources
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	run := models.NewSearchRun(query, sources)
	result := &HuntResult{Run: run}
	s.log(ctx, &run.ID, models.LogLevelInfo, fmt.Sprintf("hunting %q on %d sources", query, len(sources)), "")

	result.Sources = s.collector.Collect(ctx, query, sources, maxResults)
	// url is the listing identity; the first source in request order keeps it
	seenURLs := make(map[string]bool)
	duplicates := 0
	for _, sr := range result.Sources {
		run.SourceCounts[sr.Source] = len(sr.Listings)
		if sr.Err != nil {
			s.log(ctx, &run.ID, models.LogLevelWarn, fmt.Sprintf("Warning: source skipped: %v", sr.Err), string(sr.Source))
			continue
		}
		for _, l := range sr.Listings {
			if seenURLs[l.URL] {
				duplicates++
				continue
			}
			seenURLs[l.URL] = true
			result.Listings = append(result.Listings, l)
		}
	}
	if duplicates > 0 {
		s.log(ctx, &run.ID, models.LogLevelInfo, fmt.Sprintf("dropped %d listings already reported by another source", duplicates), "")
	}

	scored := make([]models.Deal, 0, len(result.Listings))
	for _, l := range result.Listings {
		est := s.estimator.Estimate(l.Title)
		analysis := s.analyzer.Analyze(l, est, l.ConditionText)
		if analysis == nil {
			result.Unscored++
			continue
		}
		scored = append(scored, models.Deal{Listing: l, Estimate: est, Analysis: analysis})
	}
	result.Deals = Rank(scored, req.Filter)

	if err := ctx.Err(); err != nil {
		run.Finish(models.RunStatusCancelled)
		return nil, err
	}

	s.recordSightings(ctx, result)

	run.ResultsCount = len(result.Listings)
	run.DealsFound = len(result.Deals)
	run.NewDeals = len(result.NewDeals)
	run.Degraded = result.Degraded
	run.Finish(models.RunStatusCompleted)
	if err := s.store.LogSearch(ctx, run); err != nil {
		log.Printf("[hunt] Warning: failed to record search: %v", err)
	}

	s.log(ctx, &run.ID, models.LogLevelInfo, fmt.Sprintf("%d listings, %d unscored, %d deals (%d new)",
		len(result.Listings), result.Unscored, len(result.Deals), len(result.NewDeals)), "")
	return result, nil
}

// recordSightings flags new deals and upserts every ranked deal. If the
// store fails, every deal counts as new and the run is marked degraded.
func (s *HuntService) recordSightings(ctx context.Context, result *HuntResult) {
	if len(result.Deals) == 0 {
		return
	}

	urls := make([]string, len(result.Deals))
	for i, d := range result.Deals {
		urls[i] = d.Listing.URL
	}

	unseen := make(map[string]bool, len(urls))
	fresh, err := s.store.FilterUnseen(ctx, urls)
	if err != nil {
		s.degrade(result, err)
		fresh = urls
	}
	for _, u := range fresh {
		unseen[u] = true
	}

	for i := range result.Deals {
		d := &result.Deals[i]
		d.New = unseen[d.Listing.URL]
		if d.New {
			result.NewDeals = append(result.NewDeals, *d)
		}
		if result.Degraded {
			continue
		}
		if err := s.store.MarkSeen(ctx, models.NewSeenDeal(*d, false)); err != nil {
			s.degrade(result, err)
		}
	}
}

func (s *HuntService) degrade(result *HuntResult, err error) {
	if result.Degraded {
		return
	}
	result.Degraded = true
	if !errors.Is(err, models.ErrStoreUnavailable) {
		err = fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	log.Printf("[hunt] Warning: %v; dedup disabled for run %s, treating all deals as unseen", err, result.Run.ID)
}

func (s *HuntService) log(ctx context.Context, runID *uuid.UUID, level models.LogLevel, msg, source string) {
	prefix := "[hunt]"
	if source != "" {
		prefix = "[" + source + "]"
	}
	log.Printf("%s %s", prefix, msg)
	if err := s.store.Log(ctx, runID, level, msg, source); err != nil && level != models.LogLevelInfo {
		log.Printf("[hunt] Warning: failed to persist log: %v", err)
	}
}
