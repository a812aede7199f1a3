package models

// DefaultPlatformFeePercent is the marketplace cut taken on resale.
const DefaultPlatformFeePercent = 13.0

// DealThresholds are the good/great classification boundaries.
type DealThresholds struct {
	GoodMinProfit  float64 `json:"good_min_profit" yaml:"good_min_profit"`
	GoodMinMargin  float64 `json:"good_min_margin" yaml:"good_min_margin"`
	GreatMinProfit float64 `json:"great_min_profit" yaml:"great_min_profit"`
	GreatMinMargin float64 `json:"great_min_margin" yaml:"great_min_margin"`
}

func DefaultDealThresholds() DealThresholds {
	return DealThresholds{
		GoodMinProfit:  30,
		GoodMinMargin:  25,
		GreatMinProfit: 75,
		GreatMinMargin: 40,
	}
}

// Validate rejects thresholds where a great deal could fail to be good.
func (t DealThresholds) Validate() error {
	if t.GreatMinProfit < t.GoodMinProfit || t.GreatMinMargin < t.GoodMinMargin {
		return ErrInvalidThresholds
	}
	return nil
}

// ProfitAnalysis holds only inputs; every derived figure is recomputed
// from them on demand and never rounded.
type ProfitAnalysis struct {
	AuctionPrice       float64        `json:"auction_price"`
	ShippingCost       float64        `json:"shipping_cost"`
	EstimatedRetail    float64        `json:"estimated_retail"`
	ConditionModifier  float64        `json:"condition_modifier"`
	PlatformFeePercent float64        `json:"platform_fee_percent"`
	Thresholds         DealThresholds `json:"-"`
}

func (p *ProfitAnalysis) TotalCost() float64 {
	return p.AuctionPrice + p.ShippingCost
}

func (p *ProfitAnalysis) ExpectedSellPrice() float64 {
	return p.EstimatedRetail * p.ConditionModifier
}

func (p *ProfitAnalysis) PlatformFees() float64 {
	return p.ExpectedSellPrice() * p.PlatformFeePercent / 100
}

func (p *ProfitAnalysis) Profit() float64 {
	return p.ExpectedSellPrice() - p.TotalCost() - p.PlatformFees()
}

// MarginPercent is profit as a share of the resale price, not of cost.
func (p *ProfitAnalysis) MarginPercent() float64 {
	sell := p.ExpectedSellPrice()
	if sell <= 0 {
		return 0
	}
	return p.Profit() / sell * 100
}

func (p *ProfitAnalysis) ROIPercent() float64 {
	cost := p.TotalCost()
	if cost <= 0 {
		return 0
	}
	return p.Profit() / cost * 100
}

func (p *ProfitAnalysis) IsGoodDeal() bool {
	return p.Profit() > p.Thresholds.GoodMinProfit && p.MarginPercent() > p.Thresholds.GoodMinMargin
}

func (p *ProfitAnalysis) IsGreatDeal() bool {
	return p.IsGoodDeal() &&
		p.Profit() > p.Thresholds.GreatMinProfit && p.MarginPercent() > p.Thresholds.GreatMinMargin
}

type DealTier string

const (
	TierGreat DealTier = "great"
	TierGood  DealTier = "good"
	TierOther DealTier = "other"
)

func (p *ProfitAnalysis) Tier() DealTier {
	switch {
	case p.IsGreatDeal():
		return TierGreat
	case p.IsGoodDeal():
		return TierGood
	default:
		return TierOther
	}
}

// Deal is a scored listing as handed to the ranker and to presentation.
type Deal struct {
	Listing  ListingRecord   `json:"listing"`
	Estimate *RetailEstimate `json:"estimate"`
	Analysis *ProfitAnalysis `json:"analysis"`
	New      bool            `json:"new"`
}
