package scraper

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"presale_scraper/models"
	"presale_scraper/parse"
)

// DefaultHeaders label the columns when the result table has no header row.
var DefaultHeaders = []string{
	"建案名稱", "地址", "起造人", "總戶數", "使用分區", "主要用途",
	"主要建材", "申報價格期間", "備註", "建照號碼", "發照日期",
}

var tableSelectors = []string{"table", "div[class='table']", "div[class*='results']"}

type TableResult struct {
	Selector string
	Headers  []string
	Records  []models.Record
	// DefaultHeaders is set when no header row could be read.
	DefaultHeaders bool
}

// Signature identifies the page content so traversal can tell whether
// clicking "next" actually changed the page.
func (t TableResult) Signature() string {
	h := sha256.New()
	for _, r := range t.Records {
		for _, k := range r.Keys() {
			fmt.Fprintf(h, "%s=%s\x1f", k, r.Get(k))
		}
		h.Write([]byte{'\x1e'})
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// ExtractTable reads the largest result table of an HTML page into records.
// defaults replaces DefaultHeaders when non-empty.
func ExtractTable(html string, defaults []string) (TableResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return TableResult{}, fmt.Errorf("parse html: %w", err)
	}
	return extractTable(doc.Selection, defaults)
}

func extractTable(root *goquery.Selection, defaults []string) (TableResult, error) {
	var (
		table    *goquery.Selection
		selector string
	)
	for _, sel := range tableSelectors {
		found := root.Find(sel)
		if found.Length() == 0 {
			continue
		}
		best, most := found.First(), -1
		found.Each(func(_ int, s *goquery.Selection) {
			if n := s.Find("tr").Length(); n > most {
				best, most = s, n
			}
		})
		table, selector = best, sel
		break
	}
	if table == nil {
		return TableResult{}, ErrNoResults
	}

	res := TableResult{Selector: selector}
	rows := table.Find("tr")

	headerRow := rows.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("th").Length() > 0
	}).First()
	if headerRow.Length() == 0 {
		headerRow = rows.First()
	}

	if headerRow.Length() > 0 {
		cells := headerRow.Find("th")
		if cells.Length() == 0 {
			cells = headerRow.Find("td")
		}
		blank := true
		cells.Each(func(_ int, c *goquery.Selection) {
			text := parse.CleanText(c.Text())
			if text != "" {
				blank = false
			}
			res.Headers = append(res.Headers, text)
		})
		if blank {
			res.Headers = nil
		}
	}

	if len(res.Headers) == 0 {
		res.DefaultHeaders = true
		res.Headers = DefaultHeaders
		if len(defaults) > 0 {
			res.Headers = defaults
		}
	}

	rows.Each(func(_ int, row *goquery.Selection) {
		// A blank header row is not data either.
		if headerRow.Length() > 0 && row.IsSelection(headerRow) {
			return
		}
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}
		rec := models.NewRecord()
		cells.Each(func(i int, c *goquery.Selection) {
			value := parse.CleanText(c.Text())
			if i < len(res.Headers) {
				rec.Set(res.Headers[i], value)
			} else {
				rec.Set(models.OverflowColumn(i+1), value)
			}
		})
		res.Records = append(res.Records, rec)
	})

	return res, nil
}

type TableCounts struct {
	TR int
	TD int
	TH int
}

// Loaded is the portal's "results rendered" heuristic.
func (c TableCounts) Loaded() bool {
	return c.TR > 5 || c.TD > 10 || c.TH > 5
}

func CountTableElements(html string) (TableCounts, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return TableCounts{}, fmt.Errorf("parse html: %w", err)
	}
	return TableCounts{
		TR: doc.Find("tr").Length(),
		TD: doc.Find("td").Length(),
		TH: doc.Find("th").Length(),
	}, nil
}
