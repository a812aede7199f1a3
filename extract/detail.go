package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"deal_hunter/identity"
	"deal_hunter/models"
)

// Detail is what an item page adds on top of its search card.
type Detail struct {
	Title         string   `json:"title"`
	Price         *float64 `json:"price,omitempty"`
	ConditionText string   `json:"condition"`
	ShippingCost  *float64 `json:"shipping_cost,omitempty"`
	Description   string   `json:"description,omitempty"`
}

const maxDescription = 2000

// ParseDetail reads an item page with the source's detail selectors,
// falling back to og:title for the title.
func (e *Extractor) ParseDetail(source models.Source, content string) (*Detail, error) {
	layout, ok := e.layouts[source]
	if !ok {
		return nil, fmt.Errorf("%s: %w", source, errUnknownSource)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%s: parse detail: %w", source, err)
	}

	d := &Detail{ConditionText: layout.DefaultCondition}

	d.Title = firstText(doc, layout.Detail.TitleSelectors)
	if d.Title == "" {
		if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			d.Title = identity.CollapseSpace(og)
		}
	}

	if txt := firstText(doc, layout.Detail.PriceSelectors); txt != "" {
		if m := amountRegex.FindStringSubmatch(txt); len(m) > 1 {
			if v, ok := ParseAmount(m[1]); ok {
				d.Price = &v
			}
		}
	}
	if d.Price == nil {
		if content, ok := doc.Find(`[itemprop="price"]`).Attr("content"); ok {
			if v, ok := ParseAmount(content); ok {
				d.Price = &v
			}
		}
	}

	if cond := firstText(doc, layout.Detail.ConditionSelectors); cond != "" {
		d.ConditionText = cond
	}

	if txt := firstText(doc, layout.Detail.ShippingSelectors); txt != "" {
		f := newFields(layout, []string{"shipping " + txt})
		v := f.shipping()
		d.ShippingCost = &v
	}

	desc := firstText(doc, layout.Detail.DescriptionSelectors)
	if r := []rune(desc); len(r) > maxDescription {
		desc = string(r[:maxDescription])
	}
	d.Description = desc

	if d.Title == "" && d.Price == nil {
		return nil, fmt.Errorf("%s: %w: no title or price on item page", source, models.ErrExtractionFailure)
	}
	return d, nil
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if txt := selectionText(doc.Find(sel)); txt != "" {
			return txt
		}
	}
	return ""
}
