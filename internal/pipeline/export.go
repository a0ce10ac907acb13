package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"ismparse/internal"
)

const (
	sheetIndices    = "Indices"
	sheetIndustries = "Industries"
	sheetSummaries  = "Summaries"
)

// ExportRecordToXLSX writes one report as an indices sheet, an industries
// sheet and, when summaries are given, a summaries sheet.
func ExportRecordToXLSX(rec internal.FlatRecord, summaries map[string]string, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	first := f.GetSheetName(0)
	if err := f.SetSheetName(first, sheetIndices); err != nil {
		return err
	}
	writeRow(f, sheetIndices, 1, "month_year", "report_type", "index_name", "value", "direction")
	for i, idx := range rec.Indices {
		writeRow(f, sheetIndices, i+2, rec.MonthYear, rec.ReportType, idx.IndexName, derefFloat(idx.Value), idx.Direction)
	}

	if _, err := f.NewSheet(sheetIndustries); err != nil {
		return err
	}
	writeRow(f, sheetIndustries, 1, "index_name", "category", "industry")
	for i, row := range rec.Industries {
		writeRow(f, sheetIndustries, i+2, row.IndexName, row.Category, row.Industry)
	}

	if len(summaries) > 0 {
		if _, err := f.NewSheet(sheetSummaries); err != nil {
			return err
		}
		writeRow(f, sheetSummaries, 1, "index_name", "summary")
		for i, name := range sortedKeys(summaries) {
			writeRow(f, sheetSummaries, i+2, name, summaries[name])
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// ExportReportToXLSX exports a processed report including its summaries.
func ExportReportToXLSX(report *internal.Report, outputPath string) error {
	return ExportRecordToXLSX(report.Flatten(), report.IndexSummaries, outputPath)
}

func writeRow(f *excelize.File, sheet string, r int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, r)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
