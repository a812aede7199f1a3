package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"deal_hunter/extract"
	"deal_hunter/models"
)

const (
	HandlerBrowser = "browser"
	HandlerHTTP    = "http"
)

// SourceConfig is one marketplace: how to fetch its search page and the
// layout overrides used to read it.
type SourceConfig struct {
	ID           models.Source  `yaml:"id"`
	Name         string         `yaml:"name"`
	Handler      string         `yaml:"handler"`
	SearchURL    string         `yaml:"search_url"` // {query} and {max} are substituted
	WarmupURL    string         `yaml:"warmup_url"`
	WaitSelector string         `yaml:"wait_selector"`
	RateLimitMS  int            `yaml:"rate_limit_ms"`
	TimeoutSec   int            `yaml:"timeout_sec"`
	Enabled      *bool          `yaml:"enabled"`
	Layout       extract.Layout `yaml:"layout"`
}

func (s *SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// SearchURLFor fills the search template for one query.
func (s *SourceConfig) SearchURLFor(query string, maxResults int) string {
	r := strings.NewReplacer(
		"{query}", url.QueryEscape(strings.TrimSpace(query)),
		"{max}", strconv.Itoa(maxResults),
	)
	return r.Replace(s.SearchURL)
}

// ResolvedLayout is the built-in layout with the YAML overrides on top.
func (s *SourceConfig) ResolvedLayout() extract.Layout {
	base, ok := extract.DefaultLayout(s.ID)
	if !ok {
		base = extract.Layout{}
	}
	merged := base.Merge(s.Layout)
	merged.Source = s.ID
	return merged
}

var defaultSites = map[models.Source]SourceConfig{
	models.SourceEbay: {
		Name:         "eBay",
		Handler:      HandlerBrowser,
		SearchURL:    "https://www.ebay.com/sch/i.html?_nkw={query}&_sop=1&LH_Auction=1&_ipg=60",
		WaitSelector: ".srp-results, .s-card, li.s-item",
		RateLimitMS:  2000,
		TimeoutSec:   45,
	},
	models.SourceGovDeals: {
		Name:         "GovDeals",
		Handler:      HandlerBrowser,
		SearchURL:    "https://www.govdeals.com/search?q={query}",
		WaitSelector: "[class*=search-result], [class*=auction-card], .card",
		RateLimitMS:  2000,
		TimeoutSec:   45,
	},
	models.SourceLiquidation: {
		Name:         "Liquidation.com",
		Handler:      HandlerBrowser,
		SearchURL:    "https://www.liquidation.com/aucSearch/index/search?q={query}",
		WarmupURL:    "https://www.liquidation.com",
		WaitSelector: ".auction-tile, .search-result-tile, .lot-card",
		RateLimitMS:  3000,
		TimeoutSec:   45,
	},
	models.SourcePropertyRoom: {
		Name:        "PropertyRoom",
		Handler:     HandlerHTTP,
		SearchURL:   "https://www.propertyroom.com/s/{query}",
		RateLimitMS: 1000,
		TimeoutSec:  30,
	},
}

// DefaultSourceConfig returns the built-in config for a source.
func DefaultSourceConfig(src models.Source) (*SourceConfig, bool) {
	def, ok := defaultSites[src]
	if !ok {
		return nil, false
	}
	def.ID = src
	return &def, true
}

func (c *Config) loadSiteConfigs() error {
	configDir := filepath.Join(c.ConfigDir, "sites")
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		site, err := LoadSourceConfig(filepath.Join(configDir, entry.Name()))
		if err != nil {
			return err
		}
		c.Sites[site.ID] = site
	}

	return nil
}

// LoadSourceConfig reads one site file. Fields left out fall back to the
// built-in config for that source.
func LoadSourceConfig(path string) (*SourceConfig, error) {
	var site SourceConfig
	if _, err := readYAML(path, &site); err != nil {
		return nil, err
	}
	if site.ID == "" {
		return nil, fmt.Errorf("%s: id is required", path)
	}
	if !models.IsKnownSource(site.ID) {
		return nil, fmt.Errorf("%s: unknown source %q", path, site.ID)
	}

	def, _ := DefaultSourceConfig(site.ID)
	if site.Name == "" {
		site.Name = def.Name
	}
	if site.Handler == "" {
		site.Handler = def.Handler
	}
	if site.SearchURL == "" {
		site.SearchURL = def.SearchURL
	}
	if site.WarmupURL == "" {
		site.WarmupURL = def.WarmupURL
	}
	if site.WaitSelector == "" {
		site.WaitSelector = def.WaitSelector
	}
	if site.RateLimitMS == 0 {
		site.RateLimitMS = def.RateLimitMS
	}
	if site.TimeoutSec == 0 {
		site.TimeoutSec = def.TimeoutSec
	}
	if site.Handler != HandlerBrowser && site.Handler != HandlerHTTP {
		return nil, fmt.Errorf("%s: handler must be %q or %q", path, HandlerBrowser, HandlerHTTP)
	}

	layout := site.ResolvedLayout()
	if err := layout.Compile(); err != nil {
		return nil, fmt.Errorf("%s: layout: %w", path, err)
	}
	return &site, nil
}
