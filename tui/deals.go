package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"deal_hunter/models"
	"deal_hunter/notify"
	"deal_hunter/storage"
)

const recentDealLimit = 100

type dealsMsg struct {
	deals []models.SeenDeal
	saved []models.SavedDeal
	err   error
}

// dealsView lists recent sightings with the saved ones marked.
type dealsView struct {
	store    storage.DealStore
	height   int
	deals    []models.SeenDeal
	saved    map[string]bool
	selected int
	offset   int
	err      error
}

func newDealsView(store storage.DealStore) dealsView {
	return dealsView{store: store, height: 20, saved: map[string]bool{}}
}

func (v dealsView) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		deals, err := v.store.RecentDeals(ctx, recentDealLimit)
		if err != nil {
			return dealsMsg{err: err}
		}
		saved, err := v.store.SavedDeals(ctx)
		return dealsMsg{deals: deals, saved: saved, err: err}
	}
}

func (v dealsView) selectedDeal() (models.SeenDeal, bool) {
	if v.selected < 0 || v.selected >= len(v.deals) {
		return models.SeenDeal{}, false
	}
	return v.deals[v.selected], true
}

// saveSelected pins the highlighted deal.
func (v dealsView) saveSelected() (string, error) {
	d, ok := v.selectedDeal()
	if !ok {
		return "", fmt.Errorf("no deal selected")
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	err := v.store.SaveDeal(ctx, &models.SavedDeal{
		URL:    d.URL,
		Source: d.Source,
		Title:  d.Title,
		Price:  d.Price,
		Profit: d.Profit,
		Margin: d.Margin,
	})
	return d.Title, err
}

func (v dealsView) update(msg tea.Msg) (dealsView, tea.Cmd) {
	switch msg := msg.(type) {
	case dealsMsg:
		v.err = msg.err
		if msg.deals != nil || msg.err == nil {
			v.deals = msg.deals
		}
		v.saved = make(map[string]bool, len(msg.saved))
		for _, s := range msg.saved {
			v.saved[s.URL] = true
		}
		if v.selected >= len(v.deals) {
			v.selected = max(len(v.deals)-1, 0)
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			v.selected = max(v.selected-1, 0)
		case "down", "j":
			v.selected = min(v.selected+1, max(len(v.deals)-1, 0))
		case "pgup":
			v.selected = max(v.selected-10, 0)
		case "pgdown":
			v.selected = min(v.selected+10, max(len(v.deals)-1, 0))
		}
	}

	rows := v.visibleRows()
	if v.selected < v.offset {
		v.offset = v.selected
	} else if v.selected >= v.offset+rows {
		v.offset = v.selected - rows + 1
	}
	return v, nil
}

func (v dealsView) visibleRows() int {
	return max(v.height-6, 5)
}

func (v dealsView) view(thresholds models.DealThresholds) string {
	parts := []string{titleStyle.Render(fmt.Sprintf("Deals (%d)", len(v.deals)))}
	if v.err != nil {
		parts = append(parts, errorStyle.Render("store: "+v.err.Error()))
	}
	if len(v.deals) == 0 {
		parts = append(parts, mutedStyle.Render("  no deals seen yet"))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	lines := []string{headerStyle.Render(fmt.Sprintf("    %-12s %-44s %10s %10s %7s %s", "Source", "Title", "Price", "Profit", "Margin", "Seen"))}
	end := min(v.offset+v.visibleRows(), len(v.deals))
	for i := v.offset; i < end; i++ {
		d := v.deals[i]
		a := notify.AlertFromSeen(d, thresholds)
		mark := " "
		if v.saved[d.URL] {
			mark = "★"
		}
		if d.Notified {
			mark += "✓"
		} else {
			mark += " "
		}
		line := fmt.Sprintf("%s %s %-12s %-44s %10s %10s %7s %s",
			mark, notify.TierIcon(a.Tier), d.Source, truncate(d.Title, 44),
			notify.Money(d.Price), notify.Money(d.Profit), notify.Percent(d.Margin),
			d.LastSeenAt.Local().Format("01-02 15:04"))
		if i == v.selected {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	parts = append(parts, strings.Join(lines, "\n"))

	if d, ok := v.selectedDeal(); ok {
		parts = append(parts, "", mutedStyle.Render(d.URL))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
