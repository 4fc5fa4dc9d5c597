package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"presale_scraper/models"
)

var stamp = time.Date(2024, 3, 1, 8, 30, 0, 0, time.Local)

func sampleRecords() []models.Record {
	return []models.Record{
		models.RecordFrom("建案名稱", "幸福苑", "交易日期", "112/05/01", "城市", "臺北市"),
		models.RecordFrom("建案名稱", "森活", "總價", "1,000~2,000萬", "城市", "新北市", "區域", "板橋區"),
	}
}

func TestColumnsFirstSeenOrder(t *testing.T) {
	got := Columns(sampleRecords())
	want := []string{"建案名稱", "交易日期", "城市", "總價", "區域"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Columns mismatch (-want +got):\n%s", diff)
	}
}

func TestTimestampedName(t *testing.T) {
	if got := TimestampedName("預售屋建案查詢", ".xlsx", stamp); got != "預售屋建案查詢_20240301_083000.xlsx" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestWriteCSVHasBOMAndBlankCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteCSV(path, sampleRecords()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Fatal("missing UTF-8 BOM")
	}

	rows, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := [][]string{
		{"建案名稱", "交易日期", "城市", "總價", "區域"},
		{"幸福苑", "112/05/01", "臺北市", "", ""},
		{"森活", "", "新北市", "1,000~2,000萬", "板橋區"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := WriteExcel(path, sampleRecords()); err != nil {
		t.Fatalf("WriteExcel: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "建案名稱" || rows[2][3] != "1,000~2,000萬" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestWriteJSONKeepsOrderAndUnescaped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	recs := []models.Record{models.RecordFrom("b", "<x>", "a", "1")}
	if err := WriteJSON(path, recs); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "[\n  {\n    \"b\": \"<x>\",\n    \"a\": \"1\"\n  }\n]\n"
	if string(data) != want {
		t.Fatalf("unexpected JSON:\n%s", data)
	}
}

func TestExportWritesBothFormats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	files, err := Export(dir, sampleRecords(), Options{ExcelName: "預售屋建案查詢.xlsx", CSVName: "預售屋建案查詢.csv", Now: stamp})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %+v", files)
	}
	if files[0].Format != FormatExcel || filepath.Base(files[0].Path) != "預售屋建案查詢_20240301_083000.xlsx" {
		t.Errorf("unexpected excel file: %+v", files[0])
	}
	if files[1].Format != FormatCSV || files[1].Rows != 2 {
		t.Errorf("unexpected csv file: %+v", files[1])
	}
	for _, f := range files {
		if _, err := os.Stat(f.Path); err != nil {
			t.Errorf("missing %s: %v", f.Path, err)
		}
	}
}

func TestExportFallsBackToJSON(t *testing.T) {
	dir := t.TempDir()
	// A directory squatting on the workbook path makes the save fail.
	if err := os.Mkdir(filepath.Join(dir, "out_20240301_083000.xlsx"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := Export(dir, sampleRecords(), Options{ExcelName: "out", CSVName: "out", Now: stamp})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	var jsonFile *models.ExportFile
	for i := range files {
		if files[i].Format == FormatJSON {
			jsonFile = &files[i]
		}
	}
	if jsonFile == nil {
		t.Fatalf("expected a JSON fallback, got %+v", files)
	}
	if filepath.Base(jsonFile.Path) != "results_20240301_083000.json" {
		t.Errorf("unexpected fallback name %s", jsonFile.Path)
	}

	data, err := os.ReadFile(jsonFile.Path)
	if err != nil {
		t.Fatal(err)
	}
	var got []models.Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode fallback: %v", err)
	}
	if len(got) != 2 || got[1].Get("區域") != "板橋區" {
		t.Errorf("unexpected fallback content: %s", data)
	}
}

func TestExportNoRecords(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "empty")
	files, err := Export(dir, nil, Options{Now: stamp})
	if err != nil || files != nil {
		t.Fatalf("Export(nil) = %v, %v", files, err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected no output dir, stat err = %v", err)
	}
}

func TestNormalizeAddsDerivedColumns(t *testing.T) {
	recs := Normalize(sampleRecords())

	first := recs[0]
	if got := first.Get("交易日期(西元)"); got != "2023-05-01" {
		t.Errorf("交易日期(西元) = %q", got)
	}
	if got := first.Get("交易日期"); got != "112/05/01" {
		t.Errorf("original value changed to %q", got)
	}
	if got := first.Get(ColumnBuilding); got != "未分類" {
		t.Errorf("建築類型 = %q", got)
	}

	second := recs[1]
	if second.Get("總價最低") != "1000" || second.Get("總價最高") != "2000" {
		t.Errorf("price columns = %q, %q", second.Get("總價最低"), second.Get("總價最高"))
	}

	if _, ok := sampleRecords()[0].Lookup("交易日期(西元)"); ok {
		t.Error("Normalize mutated its input")
	}
}
