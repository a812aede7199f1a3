package extract

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"deal_hunter/identity"
	"deal_hunter/models"
)

var (
	errNoURL         = errors.New("no item url")
	errSkipped       = errors.New("container skipped")
	errUnknownSource = errors.New("no layout for source")
)

// Report summarizes one extraction pass.
type Report struct {
	Source     models.Source `json:"source"`
	Matcher    string        `json:"matcher"`
	Fallback   bool          `json:"fallback"`
	Containers int           `json:"containers"`
	Extracted  int           `json:"extracted"`
	Rejected   int           `json:"rejected"`
	Failed     int           `json:"failed"`
	Duplicates int           `json:"duplicates"`
}

// Extractor turns results pages into listing records, one Layout per source.
type Extractor struct {
	layouts map[models.Source]*Layout
}

func NewExtractor(layouts ...Layout) (*Extractor, error) {
	e := &Extractor{layouts: make(map[models.Source]*Layout)}
	for _, l := range layouts {
		l := l
		if err := l.Compile(); err != nil {
			return nil, err
		}
		e.layouts[l.Source] = &l
	}
	return e, nil
}

// NewDefaultExtractor uses the built-in layout of every known source.
func NewDefaultExtractor() *Extractor {
	var layouts []Layout
	for _, src := range models.AllSources {
		l, _ := DefaultLayout(src)
		layouts = append(layouts, l)
	}
	e, err := NewExtractor(layouts...)
	if err != nil {
		panic(fmt.Sprintf("built-in layouts: %v", err))
	}
	return e
}

func (e *Extractor) Layout(source models.Source) (*Layout, bool) {
	l, ok := e.layouts[source]
	return l, ok
}

// Extract reads up to maxResults listings from content in page order.
// A malformed item is counted and skipped, never fatal for the batch.
func (e *Extractor) Extract(source models.Source, content string, maxResults int) ([]models.ListingRecord, Report, error) {
	report := Report{Source: source}
	layout, ok := e.layouts[source]
	if !ok {
		return nil, report, fmt.Errorf("%s: %w", source, errUnknownSource)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, report, fmt.Errorf("%s: parse page: %w", source, err)
	}

	containers, matcher := locate(doc, layout)
	if len(containers) == 0 {
		containers = fallbackContainers(doc, layout)
		matcher = layout.ItemLinkSelector
		report.Fallback = true
	}
	report.Matcher = matcher
	report.Containers = len(containers)

	var (
		records []models.ListingRecord
		seen    = make(map[string]bool)
	)
	for _, c := range containers {
		if maxResults > 0 && len(records) >= maxResults {
			break
		}
		rec, err := parseGuarded(c, layout)
		switch {
		case errors.Is(err, errNoURL), errors.Is(err, errSkipped):
			report.Rejected++
			continue
		case err != nil:
			report.Failed++
			log.Printf("[%s] Warning: %v", source, err)
			continue
		}
		if seen[rec.URL] {
			report.Duplicates++
			continue
		}
		seen[rec.URL] = true
		records = append(records, rec)
	}
	report.Extracted = len(records)
	return records, report, nil
}

// locate tries each container selector in order and stops at the first
// one that yields a container holding exactly one real item link.
func locate(doc *goquery.Document, layout *Layout) ([]*goquery.Selection, string) {
	for _, selector := range layout.ContainerSelectors {
		var found []*goquery.Selection
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if plausible(s, layout) {
				found = append(found, s)
			}
		})
		if len(found) > 0 {
			return found, selector
		}
	}
	return nil, ""
}

// plausible reports whether s looks like a single real listing: one
// distinct non-placeholder item id among its links.
func plausible(s *goquery.Selection, layout *Layout) bool {
	ids := itemIDs(s, layout)
	return len(ids) == 1
}

func itemIDs(s *goquery.Selection, layout *Layout) map[string]bool {
	ids := make(map[string]bool)
	s.Find(layout.ItemLinkSelector).Each(func(_ int, a *goquery.Selection) {
		if link, ok := itemLink(a, layout); ok {
			ids[identity.ExternalID(link, layout.itemLink)] = true
		}
	})
	return ids
}

// itemLink returns the canonical href of an item anchor, rejecting
// placeholder and unresolvable links.
func itemLink(a *goquery.Selection, layout *Layout) (string, bool) {
	href, ok := a.Attr("href")
	if !ok {
		return "", false
	}
	if layout.placeholder != nil && layout.placeholder.MatchString(href) {
		return "", false
	}
	link, ok := identity.CanonicalURL(href, layout.BaseURL)
	if !ok {
		return "", false
	}
	if layout.itemLink != nil && !layout.itemLink.MatchString(link) {
		return "", false
	}
	return link, true
}

// fallbackContainers rebuilds containers from item anchors when no
// selector matched, using the nearest structural ancestor.
func fallbackContainers(doc *goquery.Document, layout *Layout) []*goquery.Selection {
	var (
		out      []*goquery.Selection
		seenIDs  = make(map[string]bool)
		seenNode = make(map[*html.Node]bool)
	)
	doc.Find(layout.ItemLinkSelector).Each(func(_ int, a *goquery.Selection) {
		link, ok := itemLink(a, layout)
		if !ok {
			return
		}
		id := identity.ExternalID(link, layout.itemLink)
		if seenIDs[id] {
			return
		}
		seenIDs[id] = true

		container := nearestAncestor(a, layout)
		node := container.Get(0)
		if node == nil || seenNode[node] {
			return
		}
		seenNode[node] = true
		out = append(out, container)
	})
	return out
}

func nearestAncestor(a *goquery.Selection, layout *Layout) *goquery.Selection {
	for _, selector := range layout.AncestorSelectors {
		if c := a.Closest(selector); c.Length() > 0 && len(itemIDs(c, layout)) == 1 {
			return c
		}
	}
	if gp := a.Parent().Parent(); gp.Length() > 0 {
		return gp
	}
	return a.Parent()
}

func parseGuarded(c *goquery.Selection, layout *Layout) (rec models.ListingRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", models.ErrExtractionFailure, r)
		}
	}()
	return parseContainer(c, layout)
}

func parseContainer(c *goquery.Selection, layout *Layout) (models.ListingRecord, error) {
	rec := models.ListingRecord{Source: layout.Source}

	var link string
	c.Find(layout.ItemLinkSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if l, ok := itemLink(a, layout); ok {
			link = l
			return false
		}
		return true
	})
	if link == "" && goquery.NodeName(c) == "a" {
		link, _ = itemLink(c, layout)
	}
	if link == "" {
		return rec, errNoURL
	}
	rec.URL = link

	rec.ExternalID = identity.ExternalID(link, layout.itemLink)
	if layout.IDAttr != "" {
		if id, ok := c.Attr(layout.IDAttr); ok && strings.TrimSpace(id) != "" {
			rec.ExternalID = strings.TrimSpace(id)
		}
	}

	raw := VisibleLines(c)
	if containsAnyFold(strings.Join(raw, "\n"), layout.SkipContainerText) {
		return rec, errSkipped
	}
	f := newFields(layout, stripIgnored(raw, layout.ignore))

	if layout.TitleSelector != "" {
		rec.Title = selectionText(c.Find(layout.TitleSelector))
	}
	if rec.Title == "" {
		if t, ok := f.title(); ok {
			rec.Title = t
		}
	} else {
		f.claimTitle(rec.Title)
	}
	if rec.Title == "" {
		rec.Title = models.Unknown
	}

	rec.ListedRetail = f.listedRetail()

	if layout.PriceSelector != "" {
		if m := layout.price.FindStringSubmatch(selectionText(c.Find(layout.PriceSelector))); len(m) > 1 {
			rec.Price, _ = ParseAmount(m[1])
		}
	}
	if rec.Price == 0 {
		rec.Price = f.price()
	}

	rec.BidCount = f.bids()

	if layout.TimeSelector != "" {
		rec.TimeRemaining = selectionText(c.Find(layout.TimeSelector))
	}
	if rec.TimeRemaining == "" {
		rec.TimeRemaining = f.timeRemaining()
	}
	if rec.TimeRemaining == "" {
		rec.TimeRemaining = models.Unknown
	}

	rec.ShippingCost = f.shipping()
	rec.ConditionText = f.condition()

	imgSel := "img"
	if layout.ImageSelector != "" {
		imgSel = layout.ImageSelector
	}
	rec.ImageURL = imageURL(c.Find(imgSel), layout.BaseURL)

	return rec, nil
}
