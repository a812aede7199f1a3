package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
)

// SearchRun records one hunt across sources.
type SearchRun struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	Query        string         `json:"query" db:"query"`
	Sources      []Source       `json:"sources" db:"sources"`
	ResultsCount int            `json:"results_count" db:"results_count"`
	DealsFound   int            `json:"deals_found" db:"deals_found"`
	NewDeals     int            `json:"new_deals" db:"new_deals"`
	SourceCounts map[Source]int `json:"source_counts" db:"source_counts"`
	Degraded     bool           `json:"degraded" db:"degraded"`
	Status       RunStatus      `json:"status" db:"status"`
	StartedAt    time.Time      `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at" db:"finished_at"`
}

func NewSearchRun(query string, sources []Source) *SearchRun {
	return &SearchRun{
		ID:           uuid.New(),
		Query:        query,
		Sources:      sources,
		SourceCounts: make(map[Source]int),
		Status:       RunStatusRunning,
		StartedAt:    time.Now().UTC(),
	}
}

func (r *SearchRun) Finish(status RunStatus) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Status = status
}

// SourceResult is what one marketplace contributed to a search. A
// failed source carries Err and no listings.
type SourceResult struct {
	Source   Source          `json:"source"`
	Listings []ListingRecord `json:"-"`
	Count    int             `json:"count"`
	Matcher  string          `json:"matcher,omitempty"`
	Fallback bool            `json:"fallback,omitempty"`
	Err      error           `json:"-"`
	Error    string          `json:"error,omitempty"`
	Duration time.Duration   `json:"duration"`
}

func (r *SourceResult) Fail(err error) {
	r.Listings = nil
	r.Count = 0
	r.Err = err
	r.Error = err.Error()
}
