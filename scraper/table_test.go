package scraper

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"presale_scraper/models"
)

func TestExtractTableWithHeaderRow(t *testing.T) {
	res, err := ExtractTable(loadFixture(t, "results_page1.html"), nil)
	if err != nil {
		t.Fatalf("ExtractTable: %v", err)
	}
	if res.Selector != "table" || res.DefaultHeaders {
		t.Fatalf("unexpected result meta: selector=%q default=%v", res.Selector, res.DefaultHeaders)
	}
	if diff := cmp.Diff([]string{"建案名稱", "地址", "總價", "發照日期"}, res.Headers); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}

	first := res.Records[0]
	if first.Get("建案名稱") != "幸福苑" || first.Get("總價") != "1,200~2,400萬" {
		t.Fatalf("unexpected first record: %v", first.Map())
	}

	second := res.Records[1]
	want := []string{"建案名稱", "地址", "總價", "發照日期", models.OverflowColumn(5)}
	if diff := cmp.Diff(want, second.Keys()); diff != "" {
		t.Fatalf("overflow keys mismatch (-want +got):\n%s", diff)
	}
	if second.Get("建案名稱") != "森活 大院" || second.Get("欄位5") != "附註" {
		t.Fatalf("unexpected second record: %v", second.Map())
	}
}

func TestExtractTableDefaultHeaders(t *testing.T) {
	html := loadFixture(t, "headerless_table.html")

	res, err := ExtractTable(html, nil)
	if err != nil {
		t.Fatalf("ExtractTable: %v", err)
	}
	if !res.DefaultHeaders {
		t.Fatal("expected default headers")
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records from the larger table, got %d", len(res.Records))
	}
	got := res.Records[0]
	if got.Get("建案名稱") != "甲建案" || got.Get("地址") != "新北市板橋區文化路1號" || got.Get("起造人") != "甲建設" {
		t.Fatalf("unexpected record: %v", got.Map())
	}

	custom, err := ExtractTable(html, []string{"名稱", "位置", "建商"})
	if err != nil {
		t.Fatalf("ExtractTable: %v", err)
	}
	if custom.Records[1].Get("建商") != "乙建設" {
		t.Fatalf("custom headers not applied: %v", custom.Records[1].Map())
	}
}

func TestExtractTableSkipsBlankHeaderRow(t *testing.T) {
	html := `<table>
<tr><td> </td><td></td></tr>
<tr><td>甲建案</td><td>新北市板橋區文化路1號</td></tr>
</table>`

	res, err := ExtractTable(html, []string{"建案名稱", "地址"})
	if err != nil {
		t.Fatalf("ExtractTable: %v", err)
	}
	if !res.DefaultHeaders {
		t.Fatal("expected default headers")
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected only the data row, got %d records: %v", len(res.Records), res.Records)
	}
	if res.Records[0].Get("建案名稱") != "甲建案" {
		t.Fatalf("unexpected record: %v", res.Records[0].Map())
	}
}

func TestExtractTableFirstRowAsHeader(t *testing.T) {
	html := `<table>
		<tr><td>名稱</td><td>地址</td></tr>
		<tr><td>甲</td><td>一路</td></tr>
		<tr><td>乙</td><td>二路</td></tr>
	</table>`
	res, err := ExtractTable(html, nil)
	if err != nil {
		t.Fatalf("ExtractTable: %v", err)
	}
	if res.DefaultHeaders || len(res.Records) != 2 {
		t.Fatalf("expected 2 records under the first row's headers, got %+v", res)
	}
	if res.Records[0].Get("名稱") != "甲" {
		t.Fatalf("unexpected record: %v", res.Records[0].Map())
	}
}

func TestExtractTableNoTable(t *testing.T) {
	_, err := ExtractTable(`<div>nothing</div>`, nil)
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestSignatureTracksContent(t *testing.T) {
	p1, err := ExtractTable(loadFixture(t, "results_page1.html"), nil)
	if err != nil {
		t.Fatal(err)
	}
	again, err := ExtractTable(loadFixture(t, "results_page1.html"), nil)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := ExtractTable(loadFixture(t, "results_page2.html"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if p1.Signature() != again.Signature() {
		t.Fatal("identical pages should share a signature")
	}
	if p1.Signature() == p2.Signature() {
		t.Fatal("different pages should not share a signature")
	}
}

func TestCountTableElements(t *testing.T) {
	counts, err := CountTableElements(loadFixture(t, "results_page1.html"))
	if err != nil {
		t.Fatalf("CountTableElements: %v", err)
	}
	if counts.TR != 3 || counts.TH != 4 || counts.TD != 9 {
		t.Fatalf("unexpected counts %+v", counts)
	}
	if counts.Loaded() {
		t.Fatal("3 rows should not count as loaded")
	}

	tests := []struct {
		c    TableCounts
		want bool
	}{
		{TableCounts{TR: 6}, true},
		{TableCounts{TD: 11}, true},
		{TableCounts{TH: 6}, true},
		{TableCounts{TR: 5, TD: 10, TH: 5}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Loaded(); got != tt.want {
			t.Fatalf("%+v.Loaded() = %v, want %v", tt.c, got, tt.want)
		}
	}
}
