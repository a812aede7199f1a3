package notify

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"deal_hunter/models"
	"deal_hunter/services"
)

// ConsoleReporter prints hunts and alerts for a terminal.
type ConsoleReporter struct {
	w      io.Writer
	green  func(a ...interface{}) string
	red    func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	bold   func(a ...interface{}) string
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{
		w:      w,
		green:  color.New(color.FgGreen).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		cyan:   color.New(color.FgCyan).SprintFunc(),
		bold:   color.New(color.Bold).SprintFunc(),
	}
}

func (c *ConsoleReporter) Name() string { return "console" }

func (c *ConsoleReporter) Send(_ context.Context, s Summary) error {
	_, err := fmt.Fprintln(c.w, FormatSummary(s))
	return err
}

// PrintHunt writes the per-source status, the counts and every ranked deal.
func (c *ConsoleReporter) PrintHunt(res *services.HuntResult) {
	fmt.Fprintf(c.w, "%s %s\n\n", c.bold("Hunt:"), res.Run.Query)

	for _, sr := range res.Sources {
		status := c.green("ok")
		detail := fmt.Sprintf("%d listings", sr.Count)
		if sr.Err != nil {
			status = c.red("failed")
			detail = sr.Err.Error()
		} else if sr.Fallback {
			detail += " (anchor fallback)"
		}
		fmt.Fprintf(c.w, "  %-13s %s  %s  %s\n", sr.Source, status, detail, sr.Duration.Round(10*time.Millisecond))
	}

	fmt.Fprintf(c.w, "\nScanned %s listings, %s without a retail estimate, %s deals (%s new)\n",
		c.cyan(len(res.Listings)), c.yellow(res.Unscored), c.green(len(res.Deals)), c.green(len(res.NewDeals)))
	if res.Degraded {
		fmt.Fprintln(c.w, c.yellow("Warning: store unavailable, every deal reported as new"))
	}
	if len(res.Deals) == 0 {
		fmt.Fprintln(c.w, "\nNo deals passed the filter.")
		return
	}

	fmt.Fprintln(c.w)
	for i, d := range res.Deals {
		c.printDeal(i+1, d)
	}
}

func (c *ConsoleReporter) printDeal(n int, d models.Deal) {
	a := AlertFromDeal(d)
	marker := ""
	if d.New {
		marker = c.cyan(" NEW")
	}
	urgent := ""
	if IsUrgent(a.TimeLeft) {
		urgent = c.red(" ⚡")
	}

	fmt.Fprintf(c.w, "%2d. %s %s%s%s\n", n, TierIcon(a.Tier), c.bold(Truncate(a.Title, maxTitleLen)), marker, urgent)
	fmt.Fprintf(c.w, "    %s + %s ship -> est. %s | profit %s | margin %s | roi %s\n",
		Money(a.Price), Money(a.Shipping), Money(a.EstimatedRetail),
		c.green(Money(a.Profit)), c.green(Percent(a.Margin)), Percent(a.ROI))
	fmt.Fprintf(c.w, "    %s | %s | %d bids | %s\n", a.Source, a.Condition, a.Bids, orUnknown(a.TimeLeft))
	fmt.Fprintf(c.w, "    %s\n", a.URL)
}

// PrintEstimate shows how a title and condition would be scored.
func (c *ConsoleReporter) PrintEstimate(est *models.RetailEstimate, conditions *services.ConditionTable, condition string) {
	fmt.Fprintf(c.w, "%s %s\n", c.bold("Title:"), est.Title)
	if est.EstimatedRetail == nil {
		fmt.Fprintf(c.w, "  %s (rule %q, confidence %s)\n", c.yellow("no estimate"), est.Rule, est.Confidence)
	} else {
		fmt.Fprintf(c.w, "  retail %s via %s [%s], confidence %s\n",
			c.green(Money(*est.EstimatedRetail)), est.Rule, est.Category, est.Confidence)
	}
	if condition != "" {
		mod, rule := conditions.Resolve(condition)
		fmt.Fprintf(c.w, "  condition %q -> %.2f (%s)\n", condition, mod, rule)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return models.Unknown
	}
	return s
}
