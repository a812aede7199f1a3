package services

import (
	"deal_hunter/models"
)

// Analyzer scores a listing against its retail estimate. It is pure and
// safe to call from many goroutines.
type Analyzer struct {
	feePercent float64
	thresholds models.DealThresholds
	conditions *ConditionTable
}

func NewAnalyzer(feePercent float64, thresholds models.DealThresholds, conditions *ConditionTable) *Analyzer {
	if conditions == nil {
		conditions = NewConditionTable(DefaultConditionRules())
	}
	return &Analyzer{feePercent: feePercent, thresholds: thresholds, conditions: conditions}
}

func NewDefaultAnalyzer() *Analyzer {
	return NewAnalyzer(models.DefaultPlatformFeePercent, models.DefaultDealThresholds(), nil)
}

// Analyze returns nil when the estimate cannot be scored.
func (a *Analyzer) Analyze(listing models.ListingRecord, estimate *models.RetailEstimate, conditionText string) *models.ProfitAnalysis {
	if !estimate.Scoreable() {
		return nil
	}
	return &models.ProfitAnalysis{
		AuctionPrice:       nonNegative(listing.Price),
		ShippingCost:       nonNegative(listing.ShippingCost),
		EstimatedRetail:    *estimate.EstimatedRetail,
		ConditionModifier:  a.conditions.Modifier(conditionText),
		PlatformFeePercent: a.feePercent,
		Thresholds:         a.thresholds,
	}
}

func (a *Analyzer) Conditions() *ConditionTable {
	return a.conditions
}

func (a *Analyzer) Thresholds() models.DealThresholds {
	return a.thresholds
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
