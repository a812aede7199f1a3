package services

import (
	"sort"

	"deal_hunter/config"
	"deal_hunter/models"
)

// Filter holds optional bounds; nil means unbounded. MaxMargin guards
// against implausible margins from a bad retail estimate.
type Filter struct {
	MinProfit *float64 `json:"min_profit,omitempty"`
	MinMargin *float64 `json:"min_margin,omitempty"`
	MaxMargin *float64 `json:"max_margin,omitempty"`
}

// FilterFromConfig builds the default filter. A zero MaxMargin leaves the
// upper bound open.
func FilterFromConfig(h config.HuntConfig) Filter {
	f := Filter{MinProfit: Float(h.MinProfit), MinMargin: Float(h.MinMargin)}
	if h.MaxMargin > 0 {
		f.MaxMargin = Float(h.MaxMargin)
	}
	return f
}

// Override replaces the bounds that are set in o.
func (f Filter) Override(o Filter) Filter {
	if o.MinProfit != nil {
		f.MinProfit = o.MinProfit
	}
	if o.MinMargin != nil {
		f.MinMargin = o.MinMargin
	}
	if o.MaxMargin != nil {
		f.MaxMargin = o.MaxMargin
	}
	return f
}

func (f Filter) accepts(p *models.ProfitAnalysis) bool {
	if p == nil {
		return false
	}
	if f.MinProfit != nil && p.Profit() < *f.MinProfit {
		return false
	}
	margin := p.MarginPercent()
	if f.MinMargin != nil && margin < *f.MinMargin {
		return false
	}
	if f.MaxMargin != nil && margin > *f.MaxMargin {
		return false
	}
	return true
}

// Rank keeps the deals within bounds and orders them by margin, then
// profit, then input order. Unscored deals are dropped.
func Rank(deals []models.Deal, f Filter) []models.Deal {
	out := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		if f.accepts(d.Analysis) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		mi, mj := out[i].Analysis.MarginPercent(), out[j].Analysis.MarginPercent()
		if mi != mj {
			return mi > mj
		}
		return out[i].Analysis.Profit() > out[j].Analysis.Profit()
	})
	return out
}

// TopN returns at most n deals; n <= 0 returns all.
func TopN(deals []models.Deal, n int) []models.Deal {
	if n <= 0 || n >= len(deals) {
		return deals
	}
	return deals[:n]
}

func Float(v float64) *float64 {
	return &v
}
