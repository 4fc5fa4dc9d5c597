package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"presale_scraper/models"
)

type fakeSource struct {
	stats    []models.SiteStats
	runs     []models.ScrapeRun
	logs     []models.ScrapeLog
	records  []models.StoredRecord
	commands []models.CommandType
	levels   []models.LogLevel
	offsets  []int
}

func (f *fakeSource) AllSiteStats() ([]models.SiteStats, error) { return f.stats, nil }

func (f *fakeSource) RecentRuns(siteID string, limit int) ([]models.ScrapeRun, error) {
	return f.runs, nil
}

func (f *fakeSource) RecentLogs(limit int, level models.LogLevel) ([]models.ScrapeLog, error) {
	f.levels = append(f.levels, level)
	return f.logs, nil
}

func (f *fakeSource) ListRecords(limit, offset int) ([]models.StoredRecord, error) {
	f.offsets = append(f.offsets, offset)
	return f.records, nil
}

func (f *fakeSource) TotalRecords() (int, error) { return len(f.records), nil }

func (f *fakeSource) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error) {
	f.commands = append(f.commands, cmd)
	return int64(len(f.commands)), nil
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestKeysQueueCommands(t *testing.T) {
	src := &fakeSource{}
	m := New(src, "")

	for _, k := range []string{"s", "x", "u"} {
		m = update(t, m, key(k))
	}

	want := []models.CommandType{models.CmdScrapeNow, models.CmdPause, models.CmdResume}
	if len(src.commands) != len(want) {
		t.Fatalf("queued %v, want %v", src.commands, want)
	}
	for i := range want {
		if src.commands[i] != want[i] {
			t.Fatalf("queued %v, want %v", src.commands, want)
		}
	}
	if !strings.Contains(m.View(), "Resume command sent") {
		t.Fatal("expected a notification in the status bar")
	}
}

func TestTabSwitching(t *testing.T) {
	m := New(&fakeSource{}, "")
	if m.activeTab != tabDashboard {
		t.Fatalf("start tab = %d", m.activeTab)
	}
	m = update(t, m, key("e"))
	if m.activeTab != tabRecords {
		t.Fatalf("after e: tab = %d", m.activeTab)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.activeTab != tabLogs {
		t.Fatalf("after tab: tab = %d", m.activeTab)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.activeTab != tabDashboard {
		t.Fatalf("tab should wrap, got %d", m.activeTab)
	}
}

func TestDashboardRendersRunsAndSites(t *testing.T) {
	now := time.Now()
	src := &fakeSource{
		stats: []models.SiteStats{{SiteID: "lvr_land", LastRunAt: &now, LastRunStatus: "partial", TotalRecords: 12, SuccessRate: 0.5}},
		runs:  []models.ScrapeRun{{SiteID: "lvr_land", Status: models.RunStatusPartial, StartedAt: now, RecordsFound: 12, RecordsNew: 3}},
	}
	d := NewDashboard(src, "")
	d, _ = d.Update(d.Refresh()())

	view := d.View()
	for _, want := range []string{"lvr_land", "◑ partial", "Rate: 50%", "Recent Runs"} {
		if !strings.Contains(view, want) {
			t.Fatalf("dashboard view missing %q:\n%s", want, view)
		}
	}
}

func TestReadLastLinesKeepsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.log")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0644); err != nil {
		t.Fatal(err)
	}
	lines, mod := readLastLines(path, 2)
	if len(lines) != 2 || lines[0] != "three" || lines[1] != "four" {
		t.Fatalf("unexpected tail %v", lines)
	}
	if mod.IsZero() {
		t.Fatal("expected a modification time")
	}

	lines, mod = readLastLines(filepath.Join(t.TempDir(), "missing.log"), 2)
	if len(lines) != 1 || !mod.IsZero() {
		t.Fatalf("unexpected result for missing file %v %v", lines, mod)
	}
}

func TestRecordsNavigationAndPaging(t *testing.T) {
	src := &fakeSource{}
	for i := 0; i < 3; i++ {
		src.records = append(src.records, models.StoredRecord{
			SiteID: "lvr_land",
			City:   "臺北市",
			Record: models.RecordFrom("建案名稱", []string{"甲", "乙", "丙"}[i], "地址", "中正路"),
		})
	}
	r := NewRecords(src)
	r, _ = r.Update(r.Refresh()())

	r, _ = r.Update(key("j"))
	r, _ = r.Update(key("j"))
	r, _ = r.Update(key("j"))
	if r.selected != 2 {
		t.Fatalf("selected = %d, want 2", r.selected)
	}
	if !strings.Contains(r.View(), "丙") {
		t.Fatal("expected selected record in view")
	}

	// Only one page exists, so ] must not refetch.
	if _, cmd := r.Update(key("]")); cmd != nil {
		t.Fatal("expected no refresh past the last page")
	}
	if len(src.offsets) != 1 || src.offsets[0] != 0 {
		t.Fatalf("unexpected offsets %v", src.offsets)
	}
}

func TestLogsLevelFilter(t *testing.T) {
	src := &fakeSource{logs: []models.ScrapeLog{{Level: models.LogLevelError, Message: "boom", SiteID: "lvr_land"}}}
	l := NewLogs(src)

	l, cmd := l.Update(tea.KeyMsg{Type: tea.KeyRight})
	if cmd == nil {
		t.Fatal("expected a refresh after changing level")
	}
	l, _ = l.Update(cmd())

	if got := src.levels[len(src.levels)-1]; got != models.LogLevelDebug {
		t.Fatalf("level = %q, want debug", got)
	}
	view := l.View()
	if !strings.Contains(view, "[DEBUG]") || !strings.Contains(view, "boom") || !strings.Contains(view, "[lvr_land]") {
		t.Fatalf("unexpected logs view:\n%s", view)
	}
}

func TestTruncateCountsWideRunes(t *testing.T) {
	if got := truncate("預售屋建案", 6); !strings.HasPrefix(got, "預售") || runewidth.StringWidth(got) > 6 {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Fatalf("truncate = %q", got)
	}
	if got := pad("臺北", 6); got != "臺北  " {
		t.Fatalf("pad = %q", got)
	}
}
