// Package tui is a terminal dashboard over the operational database. It
// reads runs, logs and records and queues commands for a running daemon.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"presale_scraper/models"
)

// Source is the slice of the SQLite store the dashboard needs.
type Source interface {
	AllSiteStats() ([]models.SiteStats, error)
	RecentRuns(siteID string, limit int) ([]models.ScrapeRun, error)
	RecentLogs(limit int, level models.LogLevel) ([]models.ScrapeLog, error)
	ListRecords(limit, offset int) ([]models.StoredRecord, error)
	TotalRecords() (int, error)
	EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error)
}

type tab int

const (
	tabDashboard tab = iota
	tabRecords
	tabLogs
	tabCount
)

var tabNames = []string{"Dashboard", "Records", "Logs"}

type tickMsg time.Time
type logTickMsg time.Time

type Model struct {
	src           Source
	activeTab     tab
	width, height int
	notification  string
	notifyUntil   time.Time

	dashboard Dashboard
	records   Records
	logs      Logs
}

func New(src Source, logPath string) Model {
	return Model{
		src:       src,
		dashboard: NewDashboard(src, logPath),
		records:   NewRecords(src),
		logs:      NewLogs(src),
	}
}

// Run starts the dashboard in the alternate screen and blocks until quit.
func Run(src Source, logPath string) error {
	_, err := tea.NewProgram(New(src, logPath), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.dashboard.Init(),
		m.records.Init(),
		m.logs.Init(),
		tickCmd(),
		logTickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func logTickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return logTickMsg(t) })
}

func (m *Model) notify(text string) {
	m.notification = text
	m.notifyUntil = time.Now().Add(2 * time.Second)
}

func (m *Model) send(cmd models.CommandType, done string) {
	if _, err := m.src.EnqueueCommand(cmd, nil); err != nil {
		m.notify("Command failed: " + err.Error())
		return
	}
	m.notify(done)
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
			return m, nil
		case "e":
			m.activeTab = tabRecords
			return m, nil
		case "l":
			m.activeTab = tabLogs
			return m, nil
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "r":
			m.notify("Refreshed")
			return m, m.refreshActive()
		case "s":
			m.send(models.CmdScrapeNow, "Scrape command sent!")
			return m, nil
		case "x":
			m.send(models.CmdPause, "Pause command sent")
			return m, nil
		case "u":
			m.send(models.CmdResume, "Resume command sent")
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.dashboard = m.dashboard.SetSize(msg.Width, msg.Height-4)
		m.records = m.records.SetSize(msg.Width, msg.Height-4)
		m.logs = m.logs.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tickMsg:
		cmds = append(cmds, m.refreshActive(), tickCmd())

	case logTickMsg:
		cmds = append(cmds, m.dashboard.TailLog(), logTickCmd())
	}

	// Keys go to the active tab only; data messages go everywhere.
	var cmd tea.Cmd
	if _, ok := msg.(tea.KeyMsg); ok {
		switch m.activeTab {
		case tabDashboard:
			m.dashboard, cmd = m.dashboard.Update(msg)
		case tabRecords:
			m.records, cmd = m.records.Update(msg)
		case tabLogs:
			m.logs, cmd = m.logs.Update(msg)
		}
		cmds = append(cmds, cmd)
	} else {
		m.dashboard, cmd = m.dashboard.Update(msg)
		cmds = append(cmds, cmd)
		m.records, cmd = m.records.Update(msg)
		cmds = append(cmds, cmd)
		m.logs, cmd = m.logs.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) refreshActive() tea.Cmd {
	switch m.activeTab {
	case tabRecords:
		return m.records.Refresh()
	case tabLogs:
		return m.logs.Refresh()
	default:
		return m.dashboard.Refresh()
	}
}

func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), m.renderContent(), m.renderStatusBar())
}

func (m Model) renderTabs() string {
	var rendered []string
	for i, name := range tabNames {
		if tab(i) == m.activeTab {
			rendered = append(rendered, tabActive.Render(name))
		} else {
			rendered = append(rendered, tabInactive.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...) + "\n"
}

func (m Model) renderContent() string {
	switch m.activeTab {
	case tabRecords:
		return m.records.View()
	case tabLogs:
		return m.logs.View()
	default:
		return m.dashboard.View()
	}
}

func (m Model) renderStatusBar() string {
	left := "d Dash  e Records  l Logs  r Refresh  s Scrape  x Pause  u Resume  q Quit"
	right := ""
	if time.Now().Before(m.notifyUntil) {
		right = notification.Render(m.notification)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 0 {
		gap = 0
	}
	return statusBar.Render(left) + lipgloss.NewStyle().Width(gap).Render("") + right
}
