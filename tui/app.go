package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"deal_hunter/models"
	"deal_hunter/storage"
)

type tab int

const (
	tabDashboard tab = iota
	tabDeals
	tabCount
)

type tickMsg time.Time
type logTickMsg time.Time

// Model is the terminal dashboard. It reads the store directly and
// talks to a running daemon through the command queue.
type Model struct {
	store         storage.DealStore
	thresholds    models.DealThresholds
	activeTab     tab
	width, height int
	notification  string
	notifyUntil   time.Time

	dashboard dashboard
	deals     dealsView
}

func New(store storage.DealStore, thresholds models.DealThresholds, logPath string) Model {
	return Model{
		store:      store,
		thresholds: thresholds,
		dashboard:  newDashboard(store, logPath),
		deals:      newDealsView(store),
	}
}

// Run blocks until the user quits.
func Run(store storage.DealStore, thresholds models.DealThresholds, logPath string) error {
	p := tea.NewProgram(New(store, thresholds, logPath), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.dashboard.refresh(),
		m.dashboard.tailLog(),
		m.deals.refresh(),
		tickCmd(),
		logTickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func logTickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return logTickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "d":
			m.activeTab = tabDashboard
		case "l":
			m.activeTab = tabDeals
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "r":
			m.notify("Refreshed")
			return m, m.refreshAll()
		case "h":
			m.sendCommand(models.CmdHuntNow, "Hunt command sent!")
		case "p":
			m.sendCommand(models.CmdPause, "Pause command sent")
		case "u":
			m.sendCommand(models.CmdResume, "Resume command sent")
		case "s":
			if m.activeTab == tabDeals {
				if title, err := m.deals.saveSelected(); err != nil {
					m.notify("Save failed: " + err.Error())
				} else {
					m.notify("Saved " + truncate(title, 30))
					cmds = append(cmds, m.deals.refresh())
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.dashboard.width = msg.Width
		m.dashboard.height = msg.Height - 4
		m.deals.height = msg.Height - 4

	case tickMsg:
		cmds = append(cmds, m.refreshAll(), tickCmd())

	case logTickMsg:
		cmds = append(cmds, m.dashboard.tailLog(), logTickCmd())
	}

	// data messages reach every view, keys only the active one
	switch msg.(type) {
	case tea.KeyMsg:
		switch m.activeTab {
		case tabDashboard:
			var cmd tea.Cmd
			m.dashboard, cmd = m.dashboard.update(msg)
			cmds = append(cmds, cmd)
		case tabDeals:
			var cmd tea.Cmd
			m.deals, cmd = m.deals.update(msg)
			cmds = append(cmds, cmd)
		}
	default:
		var cmd1, cmd2 tea.Cmd
		m.dashboard, cmd1 = m.dashboard.update(msg)
		m.deals, cmd2 = m.deals.update(msg)
		cmds = append(cmds, cmd1, cmd2)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) notify(text string) {
	m.notification = text
	m.notifyUntil = time.Now().Add(2 * time.Second)
}

func (m *Model) sendCommand(cmd models.CommandType, done string) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := m.store.EnqueueCommand(ctx, cmd, nil); err != nil {
		m.notify(fmt.Sprintf("%s failed: %v", cmd, err))
		return
	}
	m.notify(done)
}

func (m Model) refreshAll() tea.Cmd {
	return tea.Batch(m.dashboard.refresh(), m.deals.refresh())
}

func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), m.renderContent(), m.renderStatusBar())
}

func (m Model) renderTabs() string {
	names := []string{"Dashboard", "Deals"}
	var rendered []string
	for i, name := range names {
		if tab(i) == m.activeTab {
			rendered = append(rendered, tabActiveStyle.Render(name))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...) + "\n"
}

func (m Model) renderContent() string {
	if m.activeTab == tabDeals {
		return m.deals.view(m.thresholds)
	}
	return m.dashboard.view()
}

func (m Model) renderStatusBar() string {
	left := "d Dash  l Deals  r Refresh  h Hunt  p Pause  u Resume  s Save  q Quit"
	right := ""
	if time.Now().Before(m.notifyUntil) {
		right = notificationStyle.Render(m.notification)
	}
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 0)
	return statusBarStyle.Render(left) + lipgloss.NewStyle().Width(gap).Render("") + right
}
