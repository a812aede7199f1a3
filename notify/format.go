package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"deal_hunter/models"
)

const (
	maxTitleLen     = 80
	summaryTopN     = 5
	summaryTitleLen = 40
)

// Alert is the presentation view of one deal. It is built either from a
// freshly scored Deal or from a stored sighting, which lacks the
// listing details.
type Alert struct {
	Title           string          `json:"title"`
	URL             string          `json:"url"`
	Source          models.Source   `json:"source"`
	ImageURL        string          `json:"image_url,omitempty"`
	Condition       string          `json:"condition,omitempty"`
	TimeLeft        string          `json:"time_left,omitempty"`
	Bids            int             `json:"bids"`
	Price           float64         `json:"price"`
	Shipping        float64         `json:"shipping"`
	EstimatedRetail float64         `json:"estimated_retail,omitempty"`
	Profit          float64         `json:"profit"`
	Margin          float64         `json:"margin"`
	ROI             float64         `json:"roi,omitempty"`
	Tier            models.DealTier `json:"tier"`
}

func AlertFromDeal(d models.Deal) Alert {
	a := Alert{
		Title:     d.Listing.Title,
		URL:       d.Listing.URL,
		Source:    d.Listing.Source,
		ImageURL:  d.Listing.ImageURL,
		Condition: d.Listing.ConditionText,
		TimeLeft:  d.Listing.TimeRemaining,
		Bids:      d.Listing.BidCount,
		Price:     d.Listing.Price,
		Shipping:  d.Listing.ShippingCost,
		Tier:      models.TierOther,
	}
	if p := d.Analysis; p != nil {
		a.EstimatedRetail = p.EstimatedRetail
		a.Profit = p.Profit()
		a.Margin = p.MarginPercent()
		a.ROI = p.ROIPercent()
		a.Tier = p.Tier()
	}
	return a
}

// AlertFromSeen rebuilds an alert from a stored sighting, classifying it
// with the same strict bounds the analyzer uses.
func AlertFromSeen(s models.SeenDeal, th models.DealThresholds) Alert {
	tier := models.TierOther
	good := s.Profit > th.GoodMinProfit && s.Margin > th.GoodMinMargin
	if good && s.Profit > th.GreatMinProfit && s.Margin > th.GreatMinMargin {
		tier = models.TierGreat
	} else if good {
		tier = models.TierGood
	}
	return Alert{
		Title:  s.Title,
		URL:    s.URL,
		Source: s.Source,
		Price:  s.Price,
		Profit: s.Profit,
		Margin: s.Margin,
		Tier:   tier,
	}
}

// Summary is one delivery: the query that produced it and its alerts in
// rank order.
type Summary struct {
	Query   string  `json:"query"`
	Scanned int     `json:"scanned"`
	Alerts  []Alert `json:"alerts"`
}

func (s Summary) GreatCount() int {
	n := 0
	for _, a := range s.Alerts {
		if a.Tier == models.TierGreat {
			n++
		}
	}
	return n
}

func TierIcon(t models.DealTier) string {
	switch t {
	case models.TierGreat:
		return "🔥"
	case models.TierGood:
		return "💰"
	default:
		return "📊"
	}
}

// IsUrgent reports whether the auction ends within hours or minutes:
// either spelled out ("3 hours") or compact ("2h 15m") with no day part.
func IsUrgent(timeLeft string) bool {
	t := strings.ToLower(timeLeft)
	if strings.Contains(t, "hour") || strings.Contains(t, "min") {
		return true
	}
	urgent := false
	for _, f := range strings.Fields(t) {
		if len(f) < 2 || !isDigits(f[:len(f)-1]) {
			continue
		}
		switch f[len(f)-1] {
		case 'd':
			return false
		case 'h', 'm':
			urgent = true
		}
	}
	return urgent
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Money rounds to cents for display only.
func Money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// Percent rounds to whole percent for display only.
func Percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(0) + "%"
}

func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}

// FormatDealAlert renders one deal as a plain text message.
func FormatDealAlert(a Alert) string {
	var b strings.Builder

	b.WriteString(TierIcon(a.Tier))
	if IsUrgent(a.TimeLeft) {
		b.WriteString(" ⚡ URGENT:")
	}
	b.WriteString(" Auction Deal Found!\n\n")
	b.WriteString(Truncate(a.Title, maxTitleLen))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Price: %s", Money(a.Price))
	if a.Shipping > 0 {
		fmt.Fprintf(&b, " + %s shipping", Money(a.Shipping))
	}
	b.WriteString("\n")
	if a.EstimatedRetail > 0 {
		fmt.Fprintf(&b, "Est. value: %s\n", Money(a.EstimatedRetail))
	}
	fmt.Fprintf(&b, "Profit: %s (%s margin)\n", Money(a.Profit), Percent(a.Margin))
	if a.Condition != "" && a.Condition != models.Unknown {
		fmt.Fprintf(&b, "Condition: %s\n", a.Condition)
	}
	if a.TimeLeft != "" && a.TimeLeft != models.Unknown {
		fmt.Fprintf(&b, "Time left: %s\n", a.TimeLeft)
	}
	fmt.Fprintf(&b, "Bids: %d\n", a.Bids)
	fmt.Fprintf(&b, "Source: %s\n\n", a.Source)
	b.WriteString(a.URL)
	return b.String()
}

// FormatSummary lists the top deals of a hunt.
func FormatSummary(s Summary) string {
	if len(s.Alerts) == 0 {
		return fmt.Sprintf("🔍 Auction Hunt: %s\n\nNo profitable deals found from %d items scanned.", s.Query, s.Scanned)
	}

	lines := []string{
		fmt.Sprintf("🎯 Auction Hunt Results: %s", s.Query),
		"",
		fmt.Sprintf("Found %d profitable deals from %d items", len(s.Alerts), s.Scanned),
		fmt.Sprintf("🔥 Great deals: %d", s.GreatCount()),
		"",
	}
	for i, a := range s.Alerts {
		if i == summaryTopN {
			break
		}
		lines = append(lines, fmt.Sprintf("%s %s profit (%s) - %s",
			TierIcon(a.Tier), Money(a.Profit), Percent(a.Margin), Truncate(a.Title, summaryTitleLen)))
	}
	if extra := len(s.Alerts) - summaryTopN; extra > 0 {
		lines = append(lines, "", fmt.Sprintf("...and %d more deals", extra))
	}
	return strings.Join(lines, "\n")
}
