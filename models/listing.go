package models

// Source identifies the marketplace a listing came from.
type Source string

const (
	SourceEbay         Source = "ebay"
	SourceGovDeals     Source = "govdeals"
	SourceLiquidation  Source = "liquidation"
	SourcePropertyRoom Source = "propertyroom"
)

// AllSources is the default search order.
var AllSources = []Source{SourceEbay, SourceGovDeals, SourceLiquidation, SourcePropertyRoom}

func IsKnownSource(s Source) bool {
	for _, known := range AllSources {
		if s == known {
			return true
		}
	}
	return false
}

// Unknown is the sentinel for text fields the extractor could not resolve.
const Unknown = "unknown"

// ListingRecord is one auction lot as read from a search results page.
// URL is the only identity; records are rebuilt on every pass.
type ListingRecord struct {
	Source        Source   `json:"source"`
	ExternalID    string   `json:"external_id"`
	Title         string   `json:"title"`
	Price         float64  `json:"price"`
	ShippingCost  float64  `json:"shipping_cost"`
	ConditionText string   `json:"condition"`
	TimeRemaining string   `json:"time_remaining,omitempty"`
	BidCount      int      `json:"bid_count"`
	URL           string   `json:"url"`
	ImageURL      string   `json:"image_url,omitempty"`
	ListedRetail  *float64 `json:"listed_retail,omitempty"` // MSRP shown by the source, informational
}

// HasTimeRemaining reports whether the source showed a countdown.
func (r ListingRecord) HasTimeRemaining() bool {
	return r.TimeRemaining != "" && r.TimeRemaining != Unknown
}
