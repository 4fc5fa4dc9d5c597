package scraper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"presale_scraper/models"
)

const formURL = "https://portal.test/list.jsp"

func testQuery(city, district string) models.Query {
	return models.Query{
		Site:     "lvr_land",
		City:     city,
		District: district,
		Start:    models.ROCMonth{Year: 110, Month: 1},
		End:      models.ROCMonth{Year: 113, Month: 12},
	}
}

func newTestForm(t *testing.T, clicks map[string]string) (*presaleForm, *fakePage) {
	t.Helper()
	p := newFakePage(t, map[string]string{formURL: loadFixture(t, "presale_form.html")}, clicks)
	return &presaleForm{
		page:       p,
		strategies: DefaultStrategies(),
		headers:    DefaultHeaders,
		debugDir:   t.TempDir(),
	}, p
}

func TestPresaleFormScrapeAllPages(t *testing.T) {
	form, p := newTestForm(t, map[string]string{
		"searchBtn": loadFixture(t, "results_page1.html"),
		"next1":     loadFixture(t, "results_page2.html"),
	})

	res, err := form.Scrape(context.Background(), formURL, testQuery("臺北市", "中正區"))
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if res.Pages != 2 || len(res.Records) != 3 {
		t.Fatalf("got %d pages, %d records", res.Pages, len(res.Records))
	}
	if res.Records[2].Get("建案名稱") != "河岸首席" {
		t.Fatalf("unexpected last record: %v", res.Records[2].Map())
	}

	if len(p.scripts) != 1 || !strings.Contains(p.scripts[0], "#pills-saleremark") {
		t.Fatalf("expected the presale tab to be clicked by script, got %v", p.scripts)
	}
	if p.labels["citycd"] != "臺北市" || p.labels["districtcd"] != "中正區" {
		t.Fatalf("unexpected selections: %v", p.labels)
	}
	if p.filled["startYrId"] != "110" || p.filled["endYrId"] != "113" {
		t.Fatalf("unexpected years: %v", p.filled)
	}
	if p.values["startMonId"] != "1" || p.values["endMonId"] != "12" {
		t.Fatalf("unexpected months: %v", p.values)
	}
	if len(p.clicked) != 2 || p.clicked[0] != "searchBtn" || p.clicked[1] != "next1" {
		t.Fatalf("unexpected clicks: %v", p.clicked)
	}
}

func TestPresaleFormMaxPages(t *testing.T) {
	form, _ := newTestForm(t, map[string]string{
		"searchBtn": loadFixture(t, "results_page1.html"),
		"next1":     loadFixture(t, "results_page2.html"),
	})
	q := testQuery("臺北市", "")
	q.MaxPages = 1

	res, err := form.Scrape(context.Background(), formURL, q)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if res.Pages != 1 || len(res.Records) != 2 {
		t.Fatalf("got %d pages, %d records", res.Pages, len(res.Records))
	}
}

func TestPresaleFormNoResults(t *testing.T) {
	form, _ := newTestForm(t, map[string]string{"searchBtn": loadFixture(t, "no_result.html")})

	res, err := form.Scrape(context.Background(), formURL, testQuery("新北市", ""))
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(res.Records) != 0 || res.Pages != 0 {
		t.Fatalf("expected an empty result, got %+v", res)
	}
}

func TestPresaleFormUnknownDistrictSearchesWholeCity(t *testing.T) {
	form, p := newTestForm(t, map[string]string{"searchBtn": loadFixture(t, "results_page2.html")})

	res, err := form.Scrape(context.Background(), formURL, testQuery("臺北市", "大安區"))
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if _, ok := p.labels["districtcd"]; ok {
		t.Fatalf("district should not be selected, got %q", p.labels["districtcd"])
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
}

func TestPresaleFormCityFallsBackToFirstOption(t *testing.T) {
	form, p := newTestForm(t, nil)
	if err := form.GotoPresalePage(context.Background(), formURL); err != nil {
		t.Fatalf("GotoPresalePage: %v", err)
	}

	label, err := form.SelectCity(context.Background(), "高雄市")
	if err != nil {
		t.Fatalf("SelectCity: %v", err)
	}
	if label != "請選擇縣市" || p.labels["citycd"] != label {
		t.Fatalf("expected first non-empty option, got %q", label)
	}
}

func TestPresaleFormUnconfirmedSearchSavesDebug(t *testing.T) {
	form, p := newTestForm(t, map[string]string{"searchBtn": `<html><body><p>載入中</p></body></html>`})

	_, err := form.Scrape(context.Background(), formURL, testQuery("臺北市", ""))
	if err == nil {
		t.Fatal("expected an error when results cannot be confirmed")
	}
	if len(p.shots) != 1 {
		t.Fatalf("expected a debug screenshot, got %v", p.shots)
	}

	matches, _ := filepath.Glob(filepath.Join(form.debugDir, "debug_search_*.html"))
	if len(matches) != 1 {
		t.Fatalf("expected one debug html file, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "載入中") {
		t.Fatalf("debug html does not hold the page: %s", data)
	}
}

func TestGotoPresalePageWithoutTab(t *testing.T) {
	html := `<html><body>
		<input id="qryType" type="hidden" value="sale">
		<div id="SaleResultPost1" style="display:none"></div>
		<select id="city"><option>臺北市</option></select>
	</body></html>`
	p := newFakePage(t, map[string]string{formURL: html}, nil)
	form := &presaleForm{page: p, strategies: DefaultStrategies()}

	if err := form.GotoPresalePage(context.Background(), formURL); err != nil {
		t.Fatalf("GotoPresalePage: %v", err)
	}
	if len(p.scripts) != 1 || !strings.Contains(p.scripts[0], "saleRemark") {
		t.Fatalf("expected the query type script, got %v", p.scripts)
	}
}

func TestGotoPresalePageActiveTabNotClicked(t *testing.T) {
	html := `<html><body>
		<a class="nav-link active" href="#pills-saleremark">預售屋</a>
		<div id="pills-saleremark"><select id="citycd"></select></div>
	</body></html>`
	p := newFakePage(t, map[string]string{formURL: html}, nil)
	form := &presaleForm{page: p, strategies: DefaultStrategies()}

	if err := form.GotoPresalePage(context.Background(), formURL); err != nil {
		t.Fatalf("GotoPresalePage: %v", err)
	}
	if len(p.scripts) != 0 {
		t.Fatalf("active tab should not be clicked, got %v", p.scripts)
	}
}

func TestGotoPresalePageUnconfirmed(t *testing.T) {
	p := newFakePage(t, map[string]string{formURL: `<html><body><p>維護中</p></body></html>`}, nil)
	form := &presaleForm{page: p, strategies: DefaultStrategies()}

	if err := form.GotoPresalePage(context.Background(), formURL); err == nil {
		t.Fatal("expected the page to be unconfirmed")
	}
}

func TestGotoPresalePageConfirmedByText(t *testing.T) {
	p := newFakePage(t, map[string]string{formURL: `<html><body><h1>預售屋建案查詢</h1></body></html>`}, nil)
	form := &presaleForm{page: p, strategies: DefaultStrategies()}

	if err := form.GotoPresalePage(context.Background(), formURL); err != nil {
		t.Fatalf("GotoPresalePage: %v", err)
	}
}

func TestSetDateRangeMonthByIndex(t *testing.T) {
	html := `<html><body>
		<input id="startYrId"><select id="startMonId"><option value="">月</option><option>一月</option><option>二月</option></select>
	</body></html>`
	p := newFakePage(t, map[string]string{formURL: html}, nil)
	if err := p.Goto(context.Background(), formURL); err != nil {
		t.Fatal(err)
	}
	form := &presaleForm{page: p, strategies: DefaultStrategies()}

	err := form.SetDateRange(context.Background(), models.ROCMonth{Year: 111, Month: 2}, models.ROCMonth{Year: 112, Month: 1})
	if err != nil {
		t.Fatalf("SetDateRange: %v", err)
	}
	if p.indexes["startMonId"] != 2 || p.filled["startYrId"] != "111" {
		t.Fatalf("unexpected form state: indexes=%v filled=%v", p.indexes, p.filled)
	}

	empty := newFakePage(t, map[string]string{formURL: `<p></p>`}, nil)
	if err := empty.Goto(context.Background(), formURL); err != nil {
		t.Fatal(err)
	}
	form.page = empty
	if err := form.SetDateRange(context.Background(), models.ROCMonth{Year: 111, Month: 2}, models.ROCMonth{Year: 112, Month: 1}); err == nil {
		t.Fatal("expected an error when no date field exists")
	}
}
