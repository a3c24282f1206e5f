package simmatch

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExportOptions controls the generated workbook.
type ExportOptions struct {
	SheetName string
	// IncludeBest adds a second sheet with the best match of every left row.
	IncludeBest bool
}

const scoreNumFmt = 2 // built-in "0.00"

// ExportHeader returns the column titles of the match grid.
func ExportHeader(res Result) []string {
	header := []string{res.Left.Name + " row"}
	header = append(header, prefixed(res.Left.Name, res.Left.IDHeaders)...)
	header = append(header, prefixed(res.Left.Name, []string{res.Left.TextHeader})...)
	header = append(header, res.Right.Name+" row")
	header = append(header, prefixed(res.Right.Name, res.Right.IDHeaders)...)
	header = append(header, prefixed(res.Right.Name, []string{res.Right.TextHeader})...)
	return append(header, "Similarity")
}

func prefixed(name string, headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = fmt.Sprintf("%s %s", name, h)
	}
	return out
}

func exportRow(m Match) []any {
	row := []any{m.Left.Row}
	for _, id := range m.Left.IDs {
		row = append(row, id)
	}
	row = append(row, m.Left.Text, m.Right.Row)
	for _, id := range m.Right.IDs {
		row = append(row, id)
	}
	return append(row, m.Right.Text, float64(m.Score))
}

// WriteMatchesXLSX writes matching rows to a new workbook with a bold header.
func WriteMatchesXLSX(w io.Writer, res Result, opts ExportOptions) error {
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Matches"
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := writeMatchSheet(f, sheet, res, res.Matches); err != nil {
		return err
	}
	if opts.IncludeBest {
		best := bestSheetName(sheet)
		if _, err := f.NewSheet(best); err != nil {
			return fmt.Errorf("add sheet: %w", err)
		}
		if err := writeMatchSheet(f, best, res, res.Best); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// bestSheetName names the best-match sheet so that it never collides with the
// match sheet; sheet names compare case-insensitively in a workbook.
func bestSheetName(sheet string) string {
	if strings.EqualFold(sheet, "Best") {
		return "Best per row"
	}
	return "Best"
}

func writeMatchSheet(f *excelize.File, sheet string, res Result, matches []Match) error {
	header := ExportHeader(res)
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	scoreStyle, err := f.NewStyle(&excelize.Style{NumFmt: scoreNumFmt})
	if err != nil {
		return fmt.Errorf("create score style: %w", err)
	}
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for i, m := range matches {
		row := exportRow(m)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if len(matches) > 0 {
		if err := f.SetCellStyle(sheet, lastCol+"2", lastCol+strconv.Itoa(len(matches)+1), scoreStyle); err != nil {
			return fmt.Errorf("style scores: %w", err)
		}
	}
	leftText := len(res.Left.IDHeaders) + 1
	rightText := leftText + len(res.Right.IDHeaders) + 2
	for i := range header {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := 14.0
		if i == leftText || i == rightText {
			width = 60
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	return nil
}

// WriteMatchesCSV writes the same grid as WriteMatchesXLSX in CSV form.
func WriteMatchesCSV(w io.Writer, res Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ExportHeader(res)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, m := range res.Matches {
		row := exportRow(m)
		record := make([]string, len(row))
		for c, v := range row {
			switch val := v.(type) {
			case float64:
				record[c] = strconv.FormatFloat(val, 'f', 4, 64)
			default:
				record[c] = fmt.Sprint(val)
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush result: %w", err)
	}
	return nil
}

// SaveMatches writes res to path, choosing CSV for .csv and XLSX otherwise.
func SaveMatches(path string, res Result, opts ExportOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create result file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		err = WriteMatchesCSV(f, res)
	} else {
		err = WriteMatchesXLSX(f, res, opts)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close result file: %w", cerr)
	}
	return err
}
