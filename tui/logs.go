package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"presale_scraper/models"
)

var logLevels = []models.LogLevel{"", models.LogLevelDebug, models.LogLevelInfo, models.LogLevelWarn, models.LogLevelError}

type logsMsg struct {
	logs []models.ScrapeLog
}

type Logs struct {
	src           Source
	width, height int
	logs          []models.ScrapeLog
	levelIndex    int
	scrollOffset  int
}

func NewLogs(src Source) Logs {
	return Logs{src: src}
}

func (l Logs) Init() tea.Cmd {
	return l.Refresh()
}

func (l Logs) Refresh() tea.Cmd {
	level := logLevels[l.levelIndex]
	return func() tea.Msg {
		logs, _ := l.src.RecentLogs(200, level)
		return logsMsg{logs: logs}
	}
}

func (l Logs) SetSize(w, h int) Logs {
	l.width, l.height = w, h
	return l
}

func (l Logs) visibleLines() int {
	if l.height <= 6 {
		return 10
	}
	return l.height - 6
}

func (l Logs) Update(msg tea.Msg) (Logs, tea.Cmd) {
	switch msg := msg.(type) {
	case logsMsg:
		l.logs = msg.logs
		l.scrollOffset = 0
	case tea.KeyMsg:
		maxScroll := max(len(l.logs)-l.visibleLines(), 0)
		switch msg.String() {
		case "left":
			if l.levelIndex > 0 {
				l.levelIndex--
				return l, l.Refresh()
			}
		case "right":
			if l.levelIndex < len(logLevels)-1 {
				l.levelIndex++
				return l, l.Refresh()
			}
		case "up", "k":
			l.scrollOffset = max(l.scrollOffset-1, 0)
		case "down", "j":
			l.scrollOffset = min(l.scrollOffset+1, maxScroll)
		case "g":
			l.scrollOffset = 0
		case "G":
			l.scrollOffset = maxScroll
		}
	}
	return l, nil
}

func (l Logs) View() string {
	return lipgloss.JoinVertical(lipgloss.Left, title.Render("Logs"), l.renderFilter(), "", l.renderLogs())
}

func (l Logs) renderFilter() string {
	var parts []string
	for i, level := range logLevels {
		name := strings.ToUpper(string(level))
		if level == "" {
			name = "ALL"
		}
		if i == l.levelIndex {
			parts = append(parts, tabActive.Render("["+name+"]"))
		} else {
			parts = append(parts, tabInactive.Render(name))
		}
	}
	return "Filter: " + strings.Join(parts, " ") + "  (←/→ to change)"
}

func (l Logs) renderLogs() string {
	if len(l.logs) == 0 {
		return muted.Render("No logs")
	}

	start := l.scrollOffset
	end := min(start+l.visibleLines(), len(l.logs))

	lines := []string{muted.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, len(l.logs)))}
	for _, entry := range l.logs[start:end] {
		lines = append(lines, l.formatLog(entry))
	}
	return strings.Join(lines, "\n")
}

func (l Logs) formatLog(entry models.ScrapeLog) string {
	var levelStyle lipgloss.Style
	switch entry.Level {
	case models.LogLevelDebug:
		levelStyle = muted
	case models.LogLevelInfo:
		levelStyle = statusSuccess
	case models.LogLevelWarn:
		levelStyle = statusPending
	case models.LogLevelError:
		levelStyle = statusError
	default:
		levelStyle = lipgloss.NewStyle()
	}

	site := ""
	if entry.SiteID != "" {
		site = "[" + entry.SiteID + "] "
	}
	msg := entry.Message
	if l.width > 30 {
		msg = truncate(msg, l.width-30)
	}

	return fmt.Sprintf("%s %s %s%s",
		muted.Render(entry.Timestamp.Local().Format("01-02 15:04:05")),
		levelStyle.Render(fmt.Sprintf("%-5s", strings.ToUpper(string(entry.Level)))),
		muted.Render(site),
		msg,
	)
}
