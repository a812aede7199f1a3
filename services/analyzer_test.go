package services

import (
	"math"
	"testing"

	"deal_hunter/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func analyzeTitle(t *testing.T, title string, price, shipping float64, condition string) *models.ProfitAnalysis {
	t.Helper()
	listing := models.ListingRecord{Title: title, Price: price, ShippingCost: shipping, ConditionText: condition}
	est := NewDefaultEstimator().Estimate(title)
	return NewDefaultAnalyzer().Analyze(listing, est, condition)
}

func TestAnalyze_RefurbishedMacBook(t *testing.T) {
	p := analyzeTitle(t, "MacBook Pro 16 M3 Pro", 1200, 0, "Excellent - Refurbished")
	if p == nil {
		t.Fatal("expected analysis")
	}
	if p.EstimatedRetail != 2000 || p.ConditionModifier != 0.85 {
		t.Fatalf("expected retail 2000 x 0.85, got %v x %v", p.EstimatedRetail, p.ConditionModifier)
	}
	if !approx(p.ExpectedSellPrice(), 1700) {
		t.Fatalf("expected sell 1700, got %v", p.ExpectedSellPrice())
	}
	if !approx(p.PlatformFees(), 221) {
		t.Fatalf("expected fees 221, got %v", p.PlatformFees())
	}
	if !approx(p.Profit(), 279) {
		t.Fatalf("expected profit 279, got %v", p.Profit())
	}
	if math.Abs(p.MarginPercent()-16.41) > 0.01 {
		t.Fatalf("expected margin ~16.4, got %v", p.MarginPercent())
	}
	if p.IsGoodDeal() || p.IsGreatDeal() {
		t.Fatal("expected neither good nor great")
	}
}

func TestAnalyze_UsedIPhone(t *testing.T) {
	p := analyzeTitle(t, "iPhone 14 Pro 128GB", 400, 10, "Used - Good")
	if p == nil {
		t.Fatal("expected analysis")
	}
	if !approx(p.ExpectedSellPrice(), 560) || !approx(p.PlatformFees(), 72.8) {
		t.Fatalf("expected sell 560 and fees 72.8, got %v and %v", p.ExpectedSellPrice(), p.PlatformFees())
	}
	if !approx(p.Profit(), 77.2) {
		t.Fatalf("expected profit 77.2, got %v", p.Profit())
	}
	if math.Abs(p.MarginPercent()-13.79) > 0.01 {
		t.Fatalf("expected margin ~13.8, got %v", p.MarginPercent())
	}
	if p.IsGoodDeal() || p.IsGreatDeal() {
		t.Fatal("expected margin to block both tiers")
	}
	if p.Tier() != models.TierOther {
		t.Fatalf("expected tier other, got %s", p.Tier())
	}
}

func TestAnalyze_AccessoryIsUnscored(t *testing.T) {
	if p := analyzeTitle(t, "USB-C Charger Cable", 5, 0, "New"); p != nil {
		t.Fatalf("expected nil analysis, got %+v", p)
	}
}

func TestAnalyze_GreatDeal(t *testing.T) {
	p := analyzeTitle(t, "Nintendo Switch OLED White", 80, 0, "Brand New")
	// 350 sell, 45.5 fees, 224.5 profit
	if !approx(p.Profit(), 224.5) {
		t.Fatalf("expected profit 224.5, got %v", p.Profit())
	}
	if !p.IsGreatDeal() || p.Tier() != models.TierGreat {
		t.Fatalf("expected great deal, got tier %s", p.Tier())
	}
	if !approx(p.ROIPercent(), 224.5/80*100) {
		t.Fatalf("expected roi %v, got %v", 224.5/80*100, p.ROIPercent())
	}
}

func TestAnalyze_Invariants(t *testing.T) {
	a := NewDefaultAnalyzer()
	retail := 1000.0
	est := &models.RetailEstimate{EstimatedRetail: &retail, Confidence: models.ConfidenceHigh}

	prices := []float64{0, 10, 100, 250, 400, 650, 900, 1200}
	conditions := []string{"New", "Used", "Salvage", "For parts", "unknown"}
	for _, price := range prices {
		for _, cond := range conditions {
			p := a.Analyze(models.ListingRecord{Price: price, ShippingCost: 15}, est, cond)
			sell := p.ExpectedSellPrice()
			if !approx(p.MarginPercent(), p.Profit()/sell*100) {
				t.Fatalf("margin mismatch at %v/%s", price, cond)
			}
			if !approx(p.Profit(), sell-p.TotalCost()-p.PlatformFees()) {
				t.Fatalf("profit mismatch at %v/%s", price, cond)
			}
			if p.IsGreatDeal() && !p.IsGoodDeal() {
				t.Fatalf("great without good at %v/%s", price, cond)
			}
		}
	}
}

func TestAnalyze_ZeroSellPrice(t *testing.T) {
	zero := 0.0
	p := &models.ProfitAnalysis{EstimatedRetail: zero, ConditionModifier: 0.7, PlatformFeePercent: 13, AuctionPrice: 10}
	if p.MarginPercent() != 0 {
		t.Fatalf("expected margin 0, got %v", p.MarginPercent())
	}
	if p.IsGoodDeal() {
		t.Fatal("expected not good")
	}
}

func TestAnalyze_NegativeInputsClamped(t *testing.T) {
	retail := 500.0
	est := &models.RetailEstimate{EstimatedRetail: &retail}
	p := NewDefaultAnalyzer().Analyze(models.ListingRecord{Price: -5, ShippingCost: -1}, est, "new")
	if p.AuctionPrice != 0 || p.ShippingCost != 0 {
		t.Fatalf("expected clamped cost, got %v and %v", p.AuctionPrice, p.ShippingCost)
	}
}
