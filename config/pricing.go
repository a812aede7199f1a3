package config

import (
	"strings"

	"deal_hunter/models"
)

// PricingConfig replaces the built-in retail table when pricing.yaml exists.
type PricingConfig struct {
	AccessoryWords []string        `yaml:"accessory_words"`
	PrimaryWords   []string        `yaml:"primary_words"`
	Rules          []PriceRuleSpec `yaml:"rules"`
}

// PriceRuleSpec matches when the title contains every phrase in All, at
// least one phrase in Any, and none in None. Rules are tried in file
// order, so list refinements before the family default.
type PriceRuleSpec struct {
	Name       string   `yaml:"name"`
	Category   string   `yaml:"category"`
	All        []string `yaml:"all"`
	Any        []string `yaml:"any"`
	None       []string `yaml:"none"`
	Price      float64  `yaml:"price"`
	Confidence string   `yaml:"confidence"`
}

// LoadPricing returns nil when the file is missing.
func LoadPricing(path string) (*PricingConfig, error) {
	var p PricingConfig
	found, err := readYAML(path, &p)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

// WatchItem is one scheduled query with optional per-query overrides.
type WatchItem struct {
	Query      string   `yaml:"query"`
	Sources    []string `yaml:"sources"`
	MinProfit  *float64 `yaml:"min_profit"`
	MinMargin  *float64 `yaml:"min_margin"`
	MaxMargin  *float64 `yaml:"max_margin"`
	MaxResults int      `yaml:"max_results"`
}

// SourceList parses the item's sources, defaulting to fallback.
func (w WatchItem) SourceList(fallback []models.Source) ([]models.Source, error) {
	if len(w.Sources) == 0 {
		return fallback, nil
	}
	return ParseSources(strings.Join(w.Sources, ","))
}

type watchlistFile struct {
	Queries []WatchItem `yaml:"queries"`
}

// LoadWatchlist returns nil when the file is missing. Entries without a
// query are dropped.
func LoadWatchlist(path string) ([]WatchItem, error) {
	var f watchlistFile
	if _, err := readYAML(path, &f); err != nil {
		return nil, err
	}
	var items []WatchItem
	for _, item := range f.Queries {
		if item.Query == "" {
			continue
		}
		if _, err := item.SourceList(nil); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
