package parse

import "testing"

func TestROCConversion(t *testing.T) {
	if ROCToAD(110) != 2021 {
		t.Fatalf("expected 2021, got %d", ROCToAD(110))
	}
	if ADToROC(2025) != 114 {
		t.Fatalf("expected 114, got %d", ADToROC(2025))
	}
}

func TestPriceRange(t *testing.T) {
	tests := []struct {
		in       string
		min, max int
		ok       bool
	}{
		{"總價 1,000~2,000萬", 1000, 2000, true},
		{"單價 30～50萬/坪", 30, 50, true},
		{"68萬/坪", 68, 68, true},
		{"1 200 萬", 1200, 1200, true},
		{"洽詢", 0, 0, false},
		{"", 0, 0, false},
		{"約30萬至50萬", 0, 0, false},
	}
	for _, tt := range tests {
		min, max, ok := PriceRange(tt.in)
		if ok != tt.ok || min != tt.min || max != tt.max {
			t.Fatalf("PriceRange(%q) = %d, %d, %v; want %d, %d, %v", tt.in, min, max, ok, tt.min, tt.max, tt.ok)
		}
	}
}

func TestDate(t *testing.T) {
	tests := map[string]string{
		"民國111年01月01日": "2022-01-01",
		"111/1/5":      "2022-01-05",
		"111-01-01":    "2022-01-01",
		"2022/03/04":   "2022-03-04",
		" 112/12/31 ":  "2023-12-31",
		"預計114年":       "預計114年",
		"111/01":       "111/01",
		"":             "",
	}
	for in, want := range tests {
		if got := Date(in); got != want {
			t.Fatalf("Date(%q) = %q, want %q", in, got, want)
		}
	}
	if !IsDate("110/02/03") || IsDate("板橋區") {
		t.Fatal("IsDate misclassified input")
	}
}

func TestCleanText(t *testing.T) {
	if got := CleanText("  新北市 \n\t 板橋區  "); got != "新北市 板橋區" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestBuildingType(t *testing.T) {
	if got := BuildingType("地上15層住宅大樓"); got != "住宅大樓" {
		t.Fatalf("unexpected %q", got)
	}
	if got := BuildingType("農舍"); got != Unclassified {
		t.Fatalf("unexpected %q", got)
	}
}
