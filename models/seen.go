package models

import "time"

// SeenDeal is the persisted sighting of a listing, keyed by URL.
// Notified only ever moves from false to true.
type SeenDeal struct {
	URL         string    `json:"url" db:"url"`
	Source      Source    `json:"source" db:"source"`
	Title       string    `json:"title" db:"title"`
	Price       float64   `json:"price" db:"price"`
	Profit      float64   `json:"profit" db:"profit"`
	Margin      float64   `json:"margin" db:"margin"`
	FirstSeenAt time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at" db:"last_seen_at"`
	Notified    bool      `json:"notified" db:"notified"`
}

// NewSeenDeal builds the store row for a scored deal.
func NewSeenDeal(d Deal, notified bool) *SeenDeal {
	s := &SeenDeal{
		URL:      d.Listing.URL,
		Source:   d.Listing.Source,
		Title:    d.Listing.Title,
		Price:    d.Listing.Price,
		Notified: notified,
	}
	if d.Analysis != nil {
		s.Profit = d.Analysis.Profit()
		s.Margin = d.Analysis.MarginPercent()
	}
	return s
}

// SavedDeal is a deal a user pinned from the dashboard or API.
type SavedDeal struct {
	URL      string    `json:"url" db:"url"`
	Source   Source    `json:"source" db:"source"`
	Title    string    `json:"title" db:"title"`
	Price    float64   `json:"price" db:"price"`
	Profit   float64   `json:"profit" db:"profit"`
	Margin   float64   `json:"margin" db:"margin"`
	ImageURL string    `json:"image_url" db:"image_url"`
	Notes    string    `json:"notes" db:"notes"`
	SavedAt  time.Time `json:"saved_at" db:"saved_at"`
}

type Stats struct {
	TotalDealsSeen int `json:"total_deals_seen"`
	TotalNotified  int `json:"total_notified"`
	TotalSearches  int `json:"total_searches"`
	TotalSaved     int `json:"total_saved"`
}
