package scraper

// Strategy names, also the keys accepted under "selectors:" in site YAML.
const (
	StrategyPresaleTab    = "presale_tab"
	StrategyPresalePane   = "presale_pane"
	StrategyCity          = "city"
	StrategyDistrict      = "district"
	StrategyStartYear     = "start_year"
	StrategyStartMonth    = "start_month"
	StrategyEndYear       = "end_year"
	StrategyEndMonth      = "end_month"
	StrategySearchButton  = "search_button"
	StrategyResultTable   = "result_table"
	StrategyNoResult      = "no_result"
	StrategyNextPage      = "next_page"
	searchButtonSelectors = "button, input[type='button']"
)

// NoResultText is the portal's empty-result message.
const NoResultText = "查無資料"

type Strategies map[string]Strategy

func DefaultStrategies() Strategies {
	return Strategies{
		StrategyPresaleTab: {
			Name:       StrategyPresaleTab,
			Candidates: []Candidate{{Selector: "a[href='#pills-saleremark']"}},
		},
		StrategyPresalePane: {
			Name:       StrategyPresalePane,
			Candidates: []Candidate{{Selector: "#pills-saleremark"}},
		},
		StrategyCity: {
			Name: StrategyCity,
			Candidates: []Candidate{
				{Selector: "select#citycd"},
				{Selector: "select[id*='city']"},
				{Selector: "select[name*='city']"},
				{Selector: "select[class*='city']"},
			},
			Fallbacks: []Fallback{{Kind: ByPosition, Selector: "select", Index: 0}},
		},
		StrategyDistrict: {
			Name: StrategyDistrict,
			Candidates: []Candidate{
				{Selector: "select#districtcd"},
				{Selector: "select[id*='district']"},
				{Selector: "select[name*='district']"},
				{Selector: "select[class*='district']"},
				{Selector: "select#regioncd"},
				{Selector: "select[id*='region']"},
			},
			Fallbacks: []Fallback{{Kind: ByPosition, Selector: "select", Index: 1}},
		},
		StrategyStartYear: {
			Name: StrategyStartYear,
			Candidates: []Candidate{
				{Selector: "input#startYrId"},
				{Selector: "input[id*='startYr']"},
				{Selector: "input[name*='startYr']"},
				{Selector: "input[placeholder*='起']"},
			},
		},
		StrategyStartMonth: {
			Name: StrategyStartMonth,
			Candidates: []Candidate{
				{Selector: "select#startMonId"},
				{Selector: "select[id*='startMon']"},
				{Selector: "select[name*='startMon']"},
			},
		},
		StrategyEndYear: {
			Name: StrategyEndYear,
			Candidates: []Candidate{
				{Selector: "input#endYrId"},
				{Selector: "input[id*='endYr']"},
				{Selector: "input[name*='endYr']"},
				{Selector: "input[placeholder*='迄']"},
			},
		},
		StrategyEndMonth: {
			Name: StrategyEndMonth,
			Candidates: []Candidate{
				{Selector: "select#endMonId"},
				{Selector: "select[id*='endMon']"},
				{Selector: "select[name*='endMon']"},
			},
		},
		StrategySearchButton: {
			Name: StrategySearchButton,
			Candidates: []Candidate{
				{Selector: "button", Text: "查詢"},
				{Selector: "input[type='button']", Text: "查詢"},
				{Selector: "button[class*='search']"},
				{Selector: "button[id*='search']"},
				{Selector: "input[class*='search']"},
				{Selector: "input[id*='search']"},
			},
			Fallbacks: []Fallback{
				{Kind: ByKeyword, Selector: searchButtonSelectors, Keywords: []string{"查詢"}},
				{Kind: ByPosition, Selector: searchButtonSelectors, Index: 0, VisibleOnly: true},
			},
		},
		StrategyResultTable: {
			Name: StrategyResultTable,
			Candidates: []Candidate{
				{Selector: "table"},
				{Selector: "div[class*='table']"},
				{Selector: "div[class*='result']"},
				{Selector: "div[id*='result']"},
			},
			RequireVisible: true,
		},
		StrategyNoResult: {
			Name: StrategyNoResult,
			Candidates: []Candidate{
				{Selector: "div:not(:has(div))", Text: NoResultText},
				{Selector: "span", Text: NoResultText},
				{Selector: "div[class*='no-data']"},
				{Selector: "div[class*='no-result']"},
			},
			RequireVisible: true,
		},
		StrategyNextPage: {
			Name: StrategyNextPage,
			Candidates: []Candidate{
				{Selector: "a", Text: "下一頁"},
				{Selector: "a[class*='next']"},
				{Selector: "a[title*='下一頁']"},
				{Selector: "a", Text: ">", Exact: true},
				{Selector: "a", Text: "下頁"},
			},
			Fallbacks: []Fallback{{
				Kind:     ByKeyword,
				Selector: "div[class*='page'] a",
				Keywords: []string{">", "下一頁", "下頁"},
				Exact:    true,
			}},
			RequireVisible: true,
			RequireEnabled: true,
			ExcludeClass:   "disabled",
		},
	}
}

// WithOverrides returns a copy where extra selectors are tried ahead of the
// built-in candidates. Unknown strategy names are ignored.
func (s Strategies) WithOverrides(overrides map[string][]string) Strategies {
	out := make(Strategies, len(s))
	for name, st := range s {
		extra := overrides[name]
		if len(extra) == 0 {
			out[name] = st
			continue
		}
		cands := make([]Candidate, 0, len(extra)+len(st.Candidates))
		for _, sel := range extra {
			if sel != "" {
				cands = append(cands, Candidate{Selector: sel})
			}
		}
		st.Candidates = append(cands, st.Candidates...)
		out[name] = st
	}
	return out
}
