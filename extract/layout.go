package extract

import (
	"fmt"
	"regexp"
	"strings"

	"deal_hunter/models"
)

// Layout describes where listing data lives on one source's results
// page. Selector lists are tried in order.
type Layout struct {
	Source  models.Source `yaml:"-"`
	BaseURL string        `yaml:"base_url"`

	ContainerSelectors []string `yaml:"container_selectors"`
	ItemLinkSelector   string   `yaml:"item_link_selector"`
	ItemLinkPattern    string   `yaml:"item_link_pattern"`
	PlaceholderPattern string   `yaml:"placeholder_pattern"`
	AncestorSelectors  []string `yaml:"ancestor_selectors"`
	IDAttr             string   `yaml:"id_attr"`
	SkipContainerText  []string `yaml:"skip_container_text"`
	IgnorePhrases      []string `yaml:"ignore_phrases"`

	TitleSelector     string   `yaml:"title_selector"`
	TitleMinLen       int      `yaml:"title_min_len"`
	TitleSkip         []string `yaml:"title_skip"`
	TitleSkipPrefixes []string `yaml:"title_skip_prefixes"`

	PriceSelector string `yaml:"price_selector"`
	PricePattern  string `yaml:"price_pattern"`
	RetailPattern string `yaml:"retail_pattern"`

	TimeSelector    string   `yaml:"time_selector"`
	TimeKeywords    []string `yaml:"time_keywords"`
	TimeUnitPattern string   `yaml:"time_unit_pattern"`

	ConditionKeywords []string `yaml:"condition_keywords"`
	DefaultCondition  string   `yaml:"default_condition"`

	ImageSelector string `yaml:"image_selector"`

	Detail DetailLayout `yaml:"detail"`

	itemLink    *regexp.Regexp
	placeholder *regexp.Regexp
	price       *regexp.Regexp
	retail      *regexp.Regexp
	timeUnit    *regexp.Regexp
	condition   *regexp.Regexp
	ignore      *regexp.Regexp
}

// DetailLayout locates fields on a single item page.
type DetailLayout struct {
	TitleSelectors       []string `yaml:"title_selectors"`
	PriceSelectors       []string `yaml:"price_selectors"`
	ConditionSelectors   []string `yaml:"condition_selectors"`
	ShippingSelectors    []string `yaml:"shipping_selectors"`
	DescriptionSelectors []string `yaml:"description_selectors"`
}

const moneyPattern = `\$\s*([\d,]+(?:\.\d{1,2})?)`

var genericConditions = []string{
	"brand new", "new", "open box", "used", "pre-owned", "refurbished", "renewed",
	"like new", "salvage", "customer returns", "customer return", "for parts", "parts only", "not working",
}

// DefaultLayout returns the built-in layout for a source.
func DefaultLayout(source models.Source) (Layout, bool) {
	switch source {
	case models.SourceEbay:
		return Layout{
			Source:  source,
			BaseURL: "https://www.ebay.com",
			ContainerSelectors: []string{
				".srp-results .s-card",
				".s-card.s-card--horizontal",
				"div.s-card",
				"li.s-item",
			},
			ItemLinkSelector:   `a[href*="/itm/"]`,
			ItemLinkPattern:    `/itm/(?:[^/?#]+/)?(\d+)`,
			PlaceholderPattern: `/itm/123456(?:[^\d]|$)`,
			AncestorSelectors:  []string{".s-card", "li.s-item", "li"},
			SkipContainerText:  []string{"Shop on eBay"},
			IgnorePhrases:      []string{"Opens in a new window or tab", "Opens in a new window", "New listing", "Sponsored"},
			TitleMinLen:        10,
			TitleSkip:          []string{"Opens in"},
			PricePattern:       `^(?:US\s*)?\$\s?([\d,]+(?:\.\d{1,2})?)$`,
			TimeKeywords:       []string{"left"},
			TimeUnitPattern:    `(?i)\d+\s*[dhm]\b|\bdays?\b|\b(?:hours?|hrs?)\b|\bmin(?:ute)?s?\b`,
			ConditionKeywords:  genericConditions,
			DefaultCondition:   models.Unknown,
			Detail: DetailLayout{
				TitleSelectors:       []string{"h1.x-item-title__mainTitle", "h1"},
				PriceSelectors:       []string{".x-price-primary", `[itemprop="price"]`, ".x-bid-price__value"},
				ConditionSelectors:   []string{".x-item-condition-text", `[data-testid="x-item-condition"]`, "#vi-itm-cond"},
				ShippingSelectors:    []string{".ux-labels-values--shipping", `[data-testid="ux-labels-values-shipping"]`},
				DescriptionSelectors: []string{"#viTabs_0_is", ".x-item-description"},
			},
		}, true

	case models.SourceGovDeals:
		return Layout{
			Source:  source,
			BaseURL: "https://www.govdeals.com",
			ContainerSelectors: []string{
				".card.auction-card",
				`[class*="auction-card"]`,
				`[class*="search-result"]`,
				".card[routerlink]",
			},
			ItemLinkSelector:  `a[href*="/asset/"]`,
			ItemLinkPattern:   `/asset/(\d+(?:/\d+)?)`,
			AncestorSelectors: []string{".card", `[class*="auction-card"]`, "li"},
			TitleMinLen:       15,
			TitleSkipPrefixes: []string{"$"},
			PricePattern:      moneyPattern,
			TimeKeywords:      []string{"day", "hour", "min", "end", "closes"},
			ConditionKeywords: genericConditions,
			DefaultCondition:  models.Unknown,
			Detail: DetailLayout{
				TitleSelectors:       []string{"h1"},
				PriceSelectors:       []string{`[class*="current-bid"]`, `[class*="price"]`},
				ConditionSelectors:   []string{`[class*="condition"]`},
				DescriptionSelectors: []string{`[class*="description"]`},
			},
		}, true

	case models.SourceLiquidation:
		return Layout{
			Source:  source,
			BaseURL: "https://www.liquidation.com",
			ContainerSelectors: []string{
				".auction-tile",
				".search-result-tile",
				`[class*="auction-card"]`,
				".lot-card",
			},
			ItemLinkSelector:  `a[href*="/auction/"]`,
			ItemLinkPattern:   `/auction/(?:view/)?(\d+)`,
			AncestorSelectors: []string{".auction-tile", ".lot-card", "li"},
			TitleMinLen:       20,
			TitleSkipPrefixes: []string{"$", "Bid"},
			PricePattern:      moneyPattern,
			RetailPattern:     `(?i)(?:retail|msrp)[^$\d]*\$?\s*([\d,]+(?:\.\d{1,2})?)`,
			TimeKeywords:      []string{"day", "hour", "end", "closes", "left"},
			ConditionKeywords: genericConditions,
			DefaultCondition:  models.Unknown,
			Detail: DetailLayout{
				TitleSelectors:       []string{"h1"},
				PriceSelectors:       []string{`[class*="current-bid"]`, `[class*="price"]`},
				ConditionSelectors:   []string{`[class*="condition"]`},
				ShippingSelectors:    []string{`[class*="shipping"]`},
				DescriptionSelectors: []string{`[class*="description"]`},
			},
		}, true

	case models.SourcePropertyRoom:
		return Layout{
			Source:             source,
			BaseURL:            "https://www.propertyroom.com",
			ContainerSelectors: []string{".ListingContainer"},
			ItemLinkSelector:   `.product-name-category a, a[href*="/l/"]`,
			ItemLinkPattern:    `/l/(?:[^/?#]+/)?(\d+)`,
			AncestorSelectors:  []string{".ListingContainer", "li"},
			IDAttr:             "lid",
			TitleSelector:      ".product-name-category a",
			TitleMinLen:        5,
			PriceSelector:      `[id*="uxPrice"]`,
			PricePattern:       moneyPattern,
			TimeSelector:       `[id*="uxTimeLeft"]`,
			TimeKeywords:       []string{"day", "hour", "min", "left"},
			ConditionKeywords:  genericConditions,
			DefaultCondition:   models.Unknown,
			ImageSelector:      `img[id*="uxImage"]`,
			Detail: DetailLayout{
				TitleSelectors:       []string{"h1"},
				PriceSelectors:       []string{`[id*="uxPrice"]`, `[class*="price"]`},
				DescriptionSelectors: []string{`[id*="Description"]`, `[class*="description"]`},
			},
		}, true
	}
	return Layout{}, false
}

// Merge overlays the non-zero fields of o onto l.
func (l Layout) Merge(o Layout) Layout {
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setList := func(dst *[]string, v []string) {
		if len(v) > 0 {
			*dst = v
		}
	}

	setStr(&l.BaseURL, o.BaseURL)
	setList(&l.ContainerSelectors, o.ContainerSelectors)
	setStr(&l.ItemLinkSelector, o.ItemLinkSelector)
	setStr(&l.ItemLinkPattern, o.ItemLinkPattern)
	setStr(&l.PlaceholderPattern, o.PlaceholderPattern)
	setList(&l.AncestorSelectors, o.AncestorSelectors)
	setStr(&l.IDAttr, o.IDAttr)
	setList(&l.SkipContainerText, o.SkipContainerText)
	setList(&l.IgnorePhrases, o.IgnorePhrases)
	setStr(&l.TitleSelector, o.TitleSelector)
	if o.TitleMinLen > 0 {
		l.TitleMinLen = o.TitleMinLen
	}
	setList(&l.TitleSkip, o.TitleSkip)
	setList(&l.TitleSkipPrefixes, o.TitleSkipPrefixes)
	setStr(&l.PriceSelector, o.PriceSelector)
	setStr(&l.PricePattern, o.PricePattern)
	setStr(&l.RetailPattern, o.RetailPattern)
	setStr(&l.TimeSelector, o.TimeSelector)
	setList(&l.TimeKeywords, o.TimeKeywords)
	setStr(&l.TimeUnitPattern, o.TimeUnitPattern)
	setList(&l.ConditionKeywords, o.ConditionKeywords)
	setStr(&l.DefaultCondition, o.DefaultCondition)
	setStr(&l.ImageSelector, o.ImageSelector)
	setList(&l.Detail.TitleSelectors, o.Detail.TitleSelectors)
	setList(&l.Detail.PriceSelectors, o.Detail.PriceSelectors)
	setList(&l.Detail.ConditionSelectors, o.Detail.ConditionSelectors)
	setList(&l.Detail.ShippingSelectors, o.Detail.ShippingSelectors)
	setList(&l.Detail.DescriptionSelectors, o.Detail.DescriptionSelectors)
	return l
}

// Compile prepares the layout's patterns. It must be called before the
// layout is used for extraction.
func (l *Layout) Compile() error {
	if l.Source == "" {
		return fmt.Errorf("layout has no source")
	}
	if l.ItemLinkSelector == "" {
		return fmt.Errorf("%s: item_link_selector is required", l.Source)
	}
	if l.DefaultCondition == "" {
		l.DefaultCondition = models.Unknown
	}
	if l.PricePattern == "" {
		l.PricePattern = moneyPattern
	}

	var err error
	compile := func(dst **regexp.Regexp, expr, field string) {
		if err != nil || expr == "" {
			return
		}
		*dst, err = regexp.Compile(expr)
		if err != nil {
			err = fmt.Errorf("%s: %s: %w", l.Source, field, err)
		}
	}
	compile(&l.itemLink, l.ItemLinkPattern, "item_link_pattern")
	compile(&l.placeholder, l.PlaceholderPattern, "placeholder_pattern")
	compile(&l.price, l.PricePattern, "price_pattern")
	compile(&l.retail, l.RetailPattern, "retail_pattern")
	compile(&l.timeUnit, l.TimeUnitPattern, "time_unit_pattern")
	if len(l.ConditionKeywords) > 0 {
		compile(&l.condition, `(?i)\b(?:`+alternation(l.ConditionKeywords)+`)\b`, "condition_keywords")
	}
	if len(l.IgnorePhrases) > 0 {
		compile(&l.ignore, `(?i)(?:`+alternation(l.IgnorePhrases)+`)`, "ignore_phrases")
	}
	return err
}

func alternation(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	return strings.Join(quoted, "|")
}
