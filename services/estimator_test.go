package services

import (
	"testing"

	"deal_hunter/config"
	"deal_hunter/models"
)

func TestEstimate_Table(t *testing.T) {
	e := NewDefaultEstimator()

	tests := []struct {
		title      string
		rule       string
		retail     float64
		confidence models.Confidence
	}{
		{"MacBook Pro 16 M3 Pro", "macbook-pro-large", 2000, models.ConfidenceHigh},
		{"Apple MacBook Pro 13\" 2019 i5", "macbook-pro", 1200, models.ConfidenceMedium},
		{"MacBook Air M1 8GB", "macbook-air", 900, models.ConfidenceHigh},
		{"Lenovo ThinkPad X1 Carbon Gen 9", "thinkpad-x1", 1200, models.ConfidenceHigh},
		{"Lenovo ThinkPad T480 14in", "thinkpad", 600, models.ConfidenceMedium},
		{"HP Pavilion Laptop 15", "laptop", 400, models.ConfidenceMedium},
		{"iPhone 14 Pro 128GB", "iphone-14-pro", 800, models.ConfidenceHigh},
		{"Apple iPhone 12 64GB Unlocked", "iphone-12", 400, models.ConfidenceHigh},
		{"iPhone 11 Black", "iphone", 350, models.ConfidenceMedium},
		{"Samsung Galaxy S23 Ultra", "galaxy-s24-s23", 700, models.ConfidenceHigh},
		{"iPad Pro 11 2nd Gen", "ipad-pro", 800, models.ConfidenceHigh},
		{"Sony PS5 Disc Edition", "playstation-5", 450, models.ConfidenceMedium},
		{"Nintendo Switch OLED White", "switch-oled", 350, models.ConfidenceHigh},
		{"iPhone14 Pro", "iphone-14-pro", 800, models.ConfidenceHigh},
		{"Galaxy S23Ultra 256GB", "galaxy-s24-s23", 700, models.ConfidenceHigh},
		{"MacBook Pro 14 M1 16GB", "macbook-pro", 1200, models.ConfidenceMedium},
		{"Apple iPhone 13 128GB", "iphone-13", 500, models.ConfidenceHigh},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			est := e.Estimate(tt.title)
			if !est.Scoreable() {
				t.Fatalf("expected an estimate, got rule %q", est.Rule)
			}
			if est.Rule != tt.rule {
				t.Fatalf("expected rule %s, got %s", tt.rule, est.Rule)
			}
			if *est.EstimatedRetail != tt.retail {
				t.Fatalf("expected retail %v, got %v", tt.retail, *est.EstimatedRetail)
			}
			if est.Confidence != tt.confidence {
				t.Fatalf("expected confidence %s, got %s", tt.confidence, est.Confidence)
			}
		})
	}
}

func TestEstimate_AccessoryRejected(t *testing.T) {
	e := NewDefaultEstimator()

	for _, title := range []string{"USB-C Charger Cable", "Laptop Sleeve 15 inch", "Replacement keyboard cover"} {
		est := e.Estimate(title)
		if est.EstimatedRetail != nil {
			t.Fatalf("expected nil retail for %q, got %v", title, *est.EstimatedRetail)
		}
		if est.Confidence != models.ConfidenceLow || est.Rule != "accessory" {
			t.Fatalf("expected low confidence accessory, got %+v", est)
		}
	}

	// a primary device word wins over the accessory list
	if est := e.Estimate("Galaxy S21 with case"); est.Rule != "galaxy-s22-s21" {
		t.Fatalf("expected galaxy-s22-s21, got %s", est.Rule)
	}
}

func TestEstimate_NoMatch(t *testing.T) {
	est := NewDefaultEstimator().Estimate("Vintage oak dining table")
	if est.Scoreable() || est.Confidence != models.ConfidenceLow || est.Rule != "" {
		t.Fatalf("expected miss, got %+v", est)
	}
}

func TestEstimate_WholeWords(t *testing.T) {
	est := NewDefaultEstimator().Estimate("iPhone 11 128GB")
	if est.Rule != "iphone" {
		t.Fatalf("expected 128gb not to match the 12 rule, got %s", est.Rule)
	}
}

func TestNewEstimatorFromConfig(t *testing.T) {
	p := &config.PricingConfig{
		AccessoryWords: []string{"case"},
		Rules: []config.PriceRuleSpec{
			{Name: "widget-pro", Category: "gadget", All: []string{"widget pro"}, Price: 500, Confidence: "high"},
			{Name: "widget", Category: "gadget", Any: []string{"widget"}, None: []string{"broken"}, Price: 200},
		},
	}
	e, err := NewEstimatorFromConfig(p)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if est := e.Estimate("Acme Widget Pro 2"); est.Rule != "widget-pro" || est.Confidence != models.ConfidenceHigh {
		t.Fatalf("expected widget-pro high, got %+v", est)
	}
	if est := e.Estimate("Acme Widget"); est.Rule != "widget" || est.Confidence != models.ConfidenceMedium {
		t.Fatalf("expected widget medium, got %+v", est)
	}
	if est := e.Estimate("Broken widget"); est.Scoreable() {
		t.Fatalf("expected none-phrase to exclude, got %+v", est)
	}
	if est := e.Estimate("Widget case"); est.Scoreable() {
		t.Fatalf("expected accessory rejection, got %+v", est)
	}
}

func TestNewEstimatorFromConfig_Nil(t *testing.T) {
	e, err := NewEstimatorFromConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Rules()) != len(DefaultPriceRules()) {
		t.Fatalf("expected built-in rules, got %d", len(e.Rules()))
	}
}

func TestCompileRules_Invalid(t *testing.T) {
	bad := [][]config.PriceRuleSpec{
		{{Price: 10, Any: []string{"x"}}},
		{{Name: "a", Price: 0, Any: []string{"x"}}},
		{{Name: "a", Price: 10}},
		{{Name: "a", Price: 10, Any: []string{"x"}, Confidence: "low"}},
	}
	for i, specs := range bad {
		if _, err := CompileRules(specs); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
