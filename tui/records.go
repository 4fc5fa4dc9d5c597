package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"presale_scraper/models"
)

const recordsPageSize = 100

// nameColumns are tried in order for the table's name column.
var nameColumns = []string{"建案名稱", "社區名稱", "name"}

type recordsMsg struct {
	records []models.StoredRecord
	total   int
}

type Records struct {
	src           Source
	width, height int
	records       []models.StoredRecord
	total         int
	selected      int
	page          int
}

func NewRecords(src Source) Records {
	return Records{src: src}
}

func (r Records) Init() tea.Cmd {
	return r.Refresh()
}

func (r Records) Refresh() tea.Cmd {
	page := r.page
	return func() tea.Msg {
		recs, _ := r.src.ListRecords(recordsPageSize, page*recordsPageSize)
		total, _ := r.src.TotalRecords()
		return recordsMsg{records: recs, total: total}
	}
}

func (r Records) SetSize(w, h int) Records {
	r.width, r.height = w, h
	return r
}

func (r Records) totalPages() int {
	if r.total == 0 {
		return 1
	}
	return (r.total + recordsPageSize - 1) / recordsPageSize
}

func (r Records) Update(msg tea.Msg) (Records, tea.Cmd) {
	switch msg := msg.(type) {
	case recordsMsg:
		r.records = msg.records
		r.total = msg.total
		if r.selected >= len(r.records) {
			r.selected = 0
		}
	case tea.KeyMsg:
		last := len(r.records) - 1
		switch msg.String() {
		case "up", "k":
			r.selected = max(r.selected-1, 0)
		case "down", "j":
			r.selected = max(min(r.selected+1, last), 0)
		case "pgup", "ctrl+u":
			r.selected = max(r.selected-10, 0)
		case "pgdown", "ctrl+d":
			r.selected = max(min(r.selected+10, last), 0)
		case "home", "g":
			r.selected = 0
		case "end", "G":
			r.selected = max(last, 0)
		case "[":
			if r.page > 0 {
				r.page--
				r.selected = 0
				return r, r.Refresh()
			}
		case "]":
			if r.page < r.totalPages()-1 {
				r.page++
				r.selected = 0
				return r, r.Refresh()
			}
		}
	}
	return r, nil
}

func (r Records) visibleRows() int {
	if r.height <= 0 {
		return 20
	}
	return max(r.height*55/100, 8)
}

func (r Records) View() string {
	position := 0
	if len(r.records) > 0 {
		position = r.page*recordsPageSize + r.selected + 1
	}
	header := title.Render("Records") +
		statValue.Render(fmt.Sprintf("  %d/%d", position, r.total)) +
		statLabel.Render(fmt.Sprintf("  Page %d/%d", r.page+1, r.totalPages())) +
		"  " + muted.Render("[[ ]] Prev/Next page")

	return lipgloss.JoinVertical(lipgloss.Left, header, r.renderTable(), "", r.renderDetail())
}

func (r Records) renderTable() string {
	if len(r.records) == 0 {
		return muted.Render("No records stored")
	}

	rows := []string{tableHeader.Render(
		pad("Site", 12) + " " + pad("City", 8) + " " + pad("District", 8) + " " +
			pad("Name", 30) + " " + pad("Seen", 5) + " " + "Last seen")}

	visible := r.visibleRows()
	offset := 0
	if r.selected >= visible {
		offset = r.selected - visible + 1
	}
	end := min(offset+visible, len(r.records))

	for i := offset; i < end; i++ {
		rec := r.records[i]
		row := pad(truncate(rec.SiteID, 12), 12) + " " +
			pad(truncate(rec.City, 8), 8) + " " +
			pad(truncate(rec.District, 8), 8) + " " +
			pad(truncate(recordName(rec.Record), 30), 30) + " " +
			pad(fmt.Sprintf("%d", rec.TimesSeen), 5) + " " +
			rec.LastSeenAt.Local().Format("2006-01-02 15:04")
		if i == r.selected {
			row = tableSelected.Render(row)
		}
		rows = append(rows, row)
	}
	if len(r.records) > visible {
		rows = append(rows, muted.Render(fmt.Sprintf("  [%d-%d of %d]", offset+1, end, len(r.records))))
	}
	return strings.Join(rows, "\n")
}

func (r Records) renderDetail() string {
	width := max(r.width-4, 30)
	if len(r.records) == 0 {
		return cardBorder.Width(width).Render(muted.Render("Select a record"))
	}

	rec := r.records[r.selected]
	lines := []string{
		title.Render("Details"),
		statLabel.Render("Fingerprint: ") + truncate(rec.Fingerprint, 16),
		statLabel.Render("First seen: ") + rec.FirstSeenAt.Local().Format("2006-01-02 15:04"),
	}
	for _, k := range rec.Record.Keys() {
		lines = append(lines, statLabel.Render(k+": ")+truncate(rec.Record.Get(k), width-runewidth.StringWidth(k)-6))
	}
	return cardBorder.Width(width).Render(strings.Join(lines, "\n"))
}

func recordName(rec models.Record) string {
	for _, col := range nameColumns {
		if v := rec.Get(col); v != "" {
			return v
		}
	}
	if keys := rec.Keys(); len(keys) > 0 {
		return rec.Get(keys[0])
	}
	return ""
}

// truncate cuts s to n display cells, counting wide CJK runes as two.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return runewidth.Truncate(s, n, "…")
}

func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}
