package models

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// RetailEstimate is the estimator's guess at what an item sells for.
// A nil EstimatedRetail means the item cannot be scored.
type RetailEstimate struct {
	Title           string     `json:"title"`
	EstimatedRetail *float64   `json:"estimated_retail"`
	Confidence      Confidence `json:"confidence"`
	Category        string     `json:"category,omitempty"`
	Rule            string     `json:"rule,omitempty"`
}

func (e *RetailEstimate) Scoreable() bool {
	return e != nil && e.EstimatedRetail != nil && *e.EstimatedRetail > 0
}
