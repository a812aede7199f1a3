package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"deal_hunter/identity"
)

var (
	bidsRegex     = regexp.MustCompile(`(?i)(\d[\d,]*)\s*bids?\b`)
	amountRegex   = regexp.MustCompile(`\$\s*(\d[\d,]*(?:\.\d{1,2})?)`)
	shippingRegex = regexp.MustCompile(`(?i)\b(?:delivery|shipping)\b`)
	freeRegex     = regexp.MustCompile(`(?i)\bfree\b`)
)

// ParseAmount converts "1,299.99" style text into a non-negative value.
func ParseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// fields is the per-container scan state. Lines already claimed by a
// field are not offered to later heuristics.
type fields struct {
	layout   *Layout
	lines    []string
	claimed  map[int]bool
	titleIdx int
}

func newFields(layout *Layout, lines []string) *fields {
	return &fields{layout: layout, lines: lines, claimed: make(map[int]bool), titleIdx: -1}
}

func (f *fields) title() (string, bool) {
	for i, line := range f.lines {
		if len(line) <= f.layout.TitleMinLen {
			continue
		}
		if containsAnyFold(line, f.layout.TitleSkip) || hasAnyPrefix(line, f.layout.TitleSkipPrefixes) {
			continue
		}
		if f.isRetail(line) {
			continue
		}
		f.claimTitleAt(i)
		return line, true
	}
	return "", false
}

func (f *fields) price() float64 {
	for i, line := range f.lines {
		if i == f.titleIdx || f.isRetail(line) || shippingRegex.MatchString(line) {
			continue
		}
		m := f.layout.price.FindStringSubmatch(line)
		if len(m) < 2 {
			continue
		}
		if v, ok := ParseAmount(m[1]); ok {
			f.claimed[i] = true
			return v
		}
	}
	return 0
}

func (f *fields) listedRetail() *float64 {
	if f.layout.retail == nil {
		return nil
	}
	for i, line := range f.lines {
		m := f.layout.retail.FindStringSubmatch(line)
		if len(m) < 2 {
			continue
		}
		if v, ok := ParseAmount(m[1]); ok && v > 0 {
			f.claimed[i] = true
			return &v
		}
	}
	return nil
}

func (f *fields) isRetail(line string) bool {
	return f.layout.retail != nil && f.layout.retail.MatchString(line)
}

func (f *fields) bids() int {
	for i, line := range f.lines {
		if i == f.titleIdx {
			continue
		}
		if m := bidsRegex.FindStringSubmatch(line); len(m) > 1 {
			if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
				f.claimed[i] = true
				return n
			}
		}
	}
	return 0
}

func (f *fields) timeRemaining() string {
	if len(f.layout.TimeKeywords) == 0 {
		return ""
	}
	for i, line := range f.lines {
		if i == f.titleIdx {
			continue
		}
		isTime := func(s string) bool {
			if !containsAnyFold(s, f.layout.TimeKeywords) {
				return false
			}
			return f.layout.timeUnit == nil || f.layout.timeUnit.MatchString(s)
		}
		if !isTime(line) {
			continue
		}
		f.claimed[i] = true
		return segment(line, isTime)
	}
	return ""
}

// shipping maps a "Free delivery" line to zero and otherwise takes the
// first amount on the line.
func (f *fields) shipping() float64 {
	for i, line := range f.lines {
		if i == f.titleIdx || !shippingRegex.MatchString(line) {
			continue
		}
		f.claimed[i] = true
		if freeRegex.MatchString(line) {
			return 0
		}
		if m := amountRegex.FindStringSubmatch(line); len(m) > 1 {
			if v, ok := ParseAmount(m[1]); ok {
				return v
			}
		}
		return 0
	}
	return 0
}

// condition returns the first unclaimed line naming a condition. When
// the line is a "·" separated attribute row, only the matching segment
// is kept.
func (f *fields) condition() string {
	if f.layout.condition == nil {
		return f.layout.DefaultCondition
	}
	for i, line := range f.lines {
		if f.claimed[i] || !f.layout.condition.MatchString(line) {
			continue
		}
		f.claimed[i] = true
		return segment(line, f.layout.condition.MatchString)
	}
	return f.layout.DefaultCondition
}

// segment narrows a "·" or "|" separated attribute row to the first
// part satisfying match.
func segment(line string, match func(string) bool) string {
	for _, seg := range strings.FieldsFunc(line, func(r rune) bool { return r == '·' || r == '|' }) {
		if seg = strings.TrimSpace(seg); seg != "" && match(seg) {
			return seg
		}
	}
	return line
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func selectionText(sel *goquery.Selection) string {
	return identity.CollapseSpace(sel.First().Text())
}

func imageURL(sel *goquery.Selection, base string) string {
	img := sel.First()
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		src, ok := img.Attr(attr)
		if !ok || src == "" || strings.HasPrefix(src, "data:") {
			continue
		}
		if u, ok := identity.CanonicalURL(src, base); ok {
			return u
		}
	}
	return ""
}

func (f *fields) claimTitle(title string) {
	for i, line := range f.lines {
		if line == title {
			f.claimTitleAt(i)
			return
		}
	}
}

func (f *fields) claimTitleAt(i int) {
	f.claimed[i] = true
	f.titleIdx = i
}
