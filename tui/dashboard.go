package tui

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"presale_scraper/models"
)

// A log file untouched for this long marks the daemon as stopped.
const staleLogAfter = 2 * time.Minute

type dashboardDataMsg struct {
	stats        []models.SiteStats
	runs         []models.ScrapeRun
	totalRecords int
}

type logTailMsg struct {
	lines   []string
	modTime time.Time
}

type Dashboard struct {
	src           Source
	width, height int

	stats        []models.SiteStats
	runs         []models.ScrapeRun
	totalRecords int

	logPath     string
	logLines    []string
	logModTime  time.Time
	logScroll   int // 0 = newest
	logViewport int
	logBuffer   int
}

func NewDashboard(src Source, logPath string) Dashboard {
	return Dashboard{
		src:         src,
		logPath:     logPath,
		logViewport: 20,
		logBuffer:   200,
	}
}

func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.Refresh(), d.TailLog())
}

func (d Dashboard) Refresh() tea.Cmd {
	return func() tea.Msg {
		stats, _ := d.src.AllSiteStats()
		runs, _ := d.src.RecentRuns("", 10)
		total, _ := d.src.TotalRecords()
		return dashboardDataMsg{stats: stats, runs: runs, totalRecords: total}
	}
}

func (d Dashboard) TailLog() tea.Cmd {
	if d.logPath == "" {
		return nil
	}
	return func() tea.Msg {
		lines, modTime := readLastLines(d.logPath, d.logBuffer)
		return logTailMsg{lines: lines, modTime: modTime}
	}
}

func readLastLines(path string, n int) ([]string, time.Time) {
	f, err := os.Open(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	defer f.Close()

	var modTime time.Time
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if len(lines) == 0 {
		return []string{"(empty log)"}, modTime
	}
	return lines, modTime
}

func (d Dashboard) SetSize(w, h int) Dashboard {
	d.width, d.height = w, h
	if h > 0 {
		d.logViewport = max(5, h/3)
	}
	return d
}

func (d Dashboard) Update(msg tea.Msg) (Dashboard, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.stats = msg.stats
		d.runs = msg.runs
		d.totalRecords = msg.totalRecords
	case logTailMsg:
		d.logLines = msg.lines
		d.logModTime = msg.modTime
	case tea.KeyMsg:
		maxScroll := max(0, len(d.logLines)-d.logViewport)
		switch msg.String() {
		case "up", "k":
			d.logScroll = min(d.logScroll+1, maxScroll)
		case "down", "j":
			d.logScroll = max(d.logScroll-1, 0)
		case "pgup":
			d.logScroll = min(d.logScroll+10, maxScroll)
		case "pgdown":
			d.logScroll = max(d.logScroll-10, 0)
		case "home":
			d.logScroll = maxScroll
		case "end":
			d.logScroll = 0
		}
	}
	return d, nil
}

func (d Dashboard) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		title.Render("Dashboard"),
		d.renderStatCards(),
		"",
		d.renderSiteCards(),
		"",
		title.Render("Recent Runs"),
		d.renderRunsTable(),
		"",
		d.renderLogTail(),
	)
}

func (d Dashboard) renderStatCards() string {
	lastStatus := "-"
	if len(d.runs) > 0 {
		lastStatus = string(d.runs[0].Status)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatCard("Records", fmt.Sprintf("%d", d.totalRecords)),
		renderStatCard("Sites", fmt.Sprintf("%d", len(d.stats))),
		renderStatCard("Runs", fmt.Sprintf("%d", len(d.runs))),
		renderStatCard("Last run", lastStatus),
	)
}

func renderStatCard(label, value string) string {
	content := lipgloss.JoinVertical(lipgloss.Center, statValue.Render(value), statLabel.Render(label))
	return cardBorder.Width(16).Render(content)
}

func (d Dashboard) renderSiteCards() string {
	if len(d.stats) == 0 {
		return muted.Render("No runs recorded yet")
	}
	var cards []string
	for _, s := range d.stats {
		cards = append(cards, renderSiteCard(s))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func renderSiteCard(s models.SiteStats) string {
	status := "○ never run"
	switch s.LastRunStatus {
	case "completed":
		status = "✓ completed"
	case "partial":
		status = "◑ partial"
	case "failed":
		status = "✗ failed"
	case "running":
		status = "◐ running"
	}

	lastRun := "never"
	if s.LastRunAt != nil {
		lastRun = relativeTime(*s.LastRunAt)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		statValue.Render(s.SiteID),
		statusStyle(s.LastRunStatus).Render(status),
		statLabel.Render("Last: "+lastRun),
		statLabel.Render(fmt.Sprintf("Records: %d", s.TotalRecords)),
		statLabel.Render(fmt.Sprintf("Rate: %.0f%%", s.SuccessRate*100)),
		statLabel.Render(fmt.Sprintf("Avg: %ds", s.AvgRunDurationSec)),
	)
	return siteCardBorder.Width(24).Render(content)
}

func (d Dashboard) renderRunsTable() string {
	if len(d.runs) == 0 {
		return muted.Render("No runs yet")
	}

	header := fmt.Sprintf("%-12s %-10s %-14s %6s %6s %6s %6s %6s",
		"Site", "Status", "Started", "Query", "Failed", "Found", "New", "Pages")
	rows := []string{tableHeader.Render(header)}
	for _, r := range d.runs {
		rows = append(rows, fmt.Sprintf("%-12s %s %-14s %6d %6d %6d %6d %6d",
			truncate(r.SiteID, 12),
			statusStyle(string(r.Status)).Render(fmt.Sprintf("%-10s", r.Status)),
			r.StartedAt.Local().Format("01-02 15:04:05"),
			r.QueriesRun,
			r.QueriesFailed,
			r.RecordsFound,
			r.RecordsNew,
			r.PagesScraped,
		))
	}
	return strings.Join(rows, "\n")
}

func (d Dashboard) renderLogTail() string {
	width := max(d.width-4, 20)
	if len(d.logLines) == 0 {
		return logBox.Width(width).Render(muted.Render("(waiting for logs...)"))
	}

	total := len(d.logLines)
	end := total - d.logScroll
	start := max(end-d.logViewport, 0)

	var lines []string
	for _, line := range d.logLines[start:end] {
		lines = append(lines, styleLogLine(truncate(line, width-4)))
	}

	var indicator string
	switch {
	case d.logModTime.IsZero() || time.Since(d.logModTime) > staleLogAfter:
		indicator = statusError.Render(" ● IDLE ")
	case d.logScroll > 0:
		indicator = statusPending.Render(fmt.Sprintf(" ↑%d ", d.logScroll))
	default:
		indicator = statusSuccess.Render(" ● LIVE ")
	}

	header := title.Render("Live Log") + indicator + muted.Render(fmt.Sprintf("[%d-%d/%d]", start+1, end, total))
	return logBox.Width(width).Render(header + "\n" + strings.Join(lines, "\n"))
}

// styleLogLine colours logrus text-formatter lines by their level field.
func styleLogLine(line string) string {
	switch {
	case strings.Contains(line, "level=error"), strings.Contains(line, "level=fatal"):
		return statusError.Render(line)
	case strings.Contains(line, "level=warning"):
		return statusPending.Render(line)
	case strings.Contains(line, "level=debug"):
		return muted.Render(line)
	default:
		return line
	}
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
