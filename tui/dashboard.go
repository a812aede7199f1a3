package tui

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"deal_hunter/models"
	"deal_hunter/storage"
)

const (
	recentSearches = 10
	logBuffer      = 200
	queryTimeout   = 5 * time.Second
)

type dashboardDataMsg struct {
	stats    *models.Stats
	searches []models.SearchRun
	err      error
}

type logTailMsg struct {
	lines []string
}

type dashboard struct {
	store         storage.DealStore
	logPath       string
	width, height int
	stats         *models.Stats
	searches      []models.SearchRun
	err           error
	logLines      []string
	logScroll     int // 0 = newest
	logViewport   int
}

func newDashboard(store storage.DealStore, logPath string) dashboard {
	return dashboard{store: store, logPath: logPath, logViewport: 12}
}

func (d dashboard) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		stats, err := d.store.Stats(ctx)
		if err != nil {
			return dashboardDataMsg{err: err}
		}
		searches, err := d.store.RecentSearches(ctx, recentSearches)
		return dashboardDataMsg{stats: stats, searches: searches, err: err}
	}
}

func (d dashboard) tailLog() tea.Cmd {
	return func() tea.Msg {
		return logTailMsg{lines: readLastLines(d.logPath, logBuffer)}
	}
}

func readLastLines(path string, n int) []string {
	f, err := os.Open(path)
	if err != nil {
		return []string{"(no log file)"}
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if len(lines) == 0 {
		return []string{"(empty log)"}
	}
	return lines
}

func (d dashboard) update(msg tea.Msg) (dashboard, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.err = msg.err
		if msg.stats != nil {
			d.stats = msg.stats
			d.searches = msg.searches
		}
	case logTailMsg:
		d.logLines = msg.lines
		d.logScroll = min(d.logScroll, max(len(d.logLines)-d.logViewport, 0))
	case tea.KeyMsg:
		maxScroll := len(d.logLines) - d.logViewport
		if maxScroll < 0 {
			maxScroll = 0
		}
		switch msg.String() {
		case "up", "k":
			d.logScroll = min(d.logScroll+1, maxScroll)
		case "down", "j":
			d.logScroll = max(d.logScroll-1, 0)
		case "home":
			d.logScroll = maxScroll
		case "end":
			d.logScroll = 0
		}
	}
	return d, nil
}

func (d dashboard) view() string {
	parts := []string{titleStyle.Render("Dashboard")}
	if d.err != nil {
		parts = append(parts, errorStyle.Render("store: "+d.err.Error()))
	}
	parts = append(parts,
		d.renderStatCards(),
		"",
		titleStyle.Render("Recent Searches"),
		d.renderSearches(),
		"",
		d.renderLogTail(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (d dashboard) renderStatCards() string {
	var s models.Stats
	if d.stats != nil {
		s = *d.stats
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		statCard("Deals seen", s.TotalDealsSeen),
		statCard("Notified", s.TotalNotified),
		statCard("Searches", s.TotalSearches),
		statCard("Saved", s.TotalSaved),
	)
}

func statCard(label string, value int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		statValueStyle.Render(fmt.Sprintf("%d", value)),
		statLabelStyle.Render(label),
	)
	return cardStyle.Width(16).Render(content)
}

func (d dashboard) renderSearches() string {
	if len(d.searches) == 0 {
		return mutedStyle.Render("  no searches yet")
	}
	lines := []string{headerStyle.Render(fmt.Sprintf("  %-19s %-28s %8s %6s %5s  %s", "Started", "Query", "Listings", "Deals", "New", "Status"))}
	for _, r := range d.searches {
		status := successStyle.Render(string(r.Status))
		switch {
		case r.Degraded:
			status = warningStyle.Render("degraded")
		case r.Status != models.RunStatusCompleted:
			status = warningStyle.Render(string(r.Status))
		}
		lines = append(lines, fmt.Sprintf("  %-19s %-28s %8d %6d %5d  %s",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), truncate(r.Query, 28),
			r.ResultsCount, r.DealsFound, r.NewDeals, status))
	}
	return strings.Join(lines, "\n")
}

func (d dashboard) renderLogTail() string {
	total := len(d.logLines)
	end := total - d.logScroll
	start := max(end-d.logViewport, 0)

	var lines []string
	for _, line := range d.logLines[start:end] {
		lines = append(lines, styleLogLine(truncate(line, max(d.width-8, 20))))
	}

	live := successStyle.Render(" ● LIVE ")
	if d.logScroll > 0 {
		live = warningStyle.Render(fmt.Sprintf(" ↑%d ", d.logScroll))
	}
	header := titleStyle.Render("Log") + live + mutedStyle.Render(fmt.Sprintf("[%d-%d/%d]", start+1, end, total))
	return logBoxStyle.Width(max(d.width-4, 40)).Render(header + "\n" + strings.Join(lines, "\n"))
}

func styleLogLine(line string) string {
	switch {
	case strings.Contains(line, "Error") || strings.Contains(line, "error"):
		return errorStyle.Render(line)
	case strings.Contains(line, "Warning"):
		return warningStyle.Render(line)
	}
	return line
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
