// Package exporter writes scraped records to spreadsheet, CSV and JSON files.
package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"presale_scraper/models"
)

const (
	FormatExcel = "xlsx"
	FormatCSV   = "csv"
	FormatJSON  = "json"

	sheetName    = "預售屋建案"
	fallbackBase = "results"
	timeLayout   = "20060102_150405"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Options struct {
	ExcelName string
	CSVName   string
	Normalize bool
	// Now stamps the file names; zero means time.Now.
	Now time.Time
}

// Columns is the union of record keys in first-seen order.
func Columns(records []models.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func TimestampedName(base, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", base, t.Format(timeLayout), strings.TrimPrefix(ext, "."))
}

func rows(records []models.Record, cols []string) [][]string {
	out := make([][]string, len(records))
	for i, r := range records {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = r.Get(c)
		}
		out[i] = row
	}
	return out
}

func WriteExcel(path string, records []models.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	cols := Columns(records)
	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	for i, row := range rows(records, cols) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
	}

	if len(cols) > 0 {
		if err := f.SetPanes(sheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

// WriteCSV writes UTF-8 with a BOM so spreadsheet tools detect the encoding.
func WriteCSV(path string, records []models.Record) error {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	cols := Columns(records)
	if err := w.Write(cols); err != nil {
		return err
	}
	if err := w.WriteAll(rows(records, cols)); err != nil {
		return err
	}

	return os.WriteFile(path, buf.Bytes(), 0644)
}

func WriteJSON(path string, records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func baseName(name, def string) string {
	if name == "" {
		name = def
	}
	return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
}

// Export writes the XLSX and CSV files into dir. If either fails the records
// are saved as results_<ts>.json instead. Nothing is written for zero records.
func Export(dir string, records []models.Record, opts Options) ([]models.ExportFile, error) {
	if len(records) == 0 {
		log.Warn("No records to export")
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	if opts.Normalize {
		records = Normalize(records)
	}

	excelPath := filepath.Join(dir, TimestampedName(baseName(opts.ExcelName, "presale"), FormatExcel, now))
	csvPath := filepath.Join(dir, TimestampedName(baseName(opts.CSVName, "presale"), FormatCSV, now))

	var files []models.ExportFile
	var errs []error
	if err := WriteExcel(excelPath, records); err != nil {
		errs = append(errs, fmt.Errorf("excel: %w", err))
	} else {
		files = append(files, models.ExportFile{Path: excelPath, Format: FormatExcel, Rows: len(records), CreatedAt: now})
		log.Infof("Saved %d records to %s", len(records), excelPath)
	}
	if err := WriteCSV(csvPath, records); err != nil {
		errs = append(errs, fmt.Errorf("csv: %w", err))
	} else {
		files = append(files, models.ExportFile{Path: csvPath, Format: FormatCSV, Rows: len(records), CreatedAt: now})
		log.Infof("Saved %d records to %s", len(records), csvPath)
	}
	if len(errs) == 0 {
		return files, nil
	}

	exportErr := errors.Join(errs...)
	log.Errorf("Export failed, falling back to JSON: %v", exportErr)

	jsonPath := filepath.Join(dir, TimestampedName(fallbackBase, FormatJSON, now))
	if err := WriteJSON(jsonPath, records); err != nil {
		return files, errors.Join(exportErr, fmt.Errorf("json: %w", err))
	}
	log.Infof("Saved %d records to %s", len(records), jsonPath)
	files = append(files, models.ExportFile{Path: jsonPath, Format: FormatJSON, Rows: len(records), CreatedAt: now})
	return files, nil
}
