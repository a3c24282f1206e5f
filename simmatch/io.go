package simmatch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrEmptyTable is returned when a file has no header row.
	ErrEmptyTable = errors.New("empty table")
	// ErrColumnNotFound is returned when a requested or detected column is missing.
	ErrColumnNotFound = errors.New("column not found")
	// ErrUnsupportedFormat is returned for files that are not xlsx, csv or tsv.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// ReadOptions tunes how a file is turned into a Table.
type ReadOptions struct {
	// Sheet selects a worksheet by name; the first sheet is used when empty.
	Sheet string
	// Name overrides the table name derived from the file name.
	Name string
}

// TableMetadata provides header information and automatic column suggestions.
type TableMetadata struct {
	Columns       []string `json:"columns"`
	SuggestedText string   `json:"suggestedText,omitempty"`
	SuggestedIDs  []string `json:"suggestedIds,omitempty"`
	Rows          int      `json:"rows"`
}

// SupportedExtension reports whether the file name has a readable extension.
func SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".csv", ".tsv":
		return true
	}
	return false
}

// ReadTable opens path and parses it according to its extension.
func ReadTable(path string, opts ReadOptions) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return ReadTableFrom(f, filepath.Base(path), opts)
}

// ReadTableFrom parses r, using filename only to pick the format and the
// default table name.
func ReadTableFrom(r io.Reader, filename string, opts ReadOptions) (Table, error) {
	var (
		rows [][]string
		err  error
	)
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbookRows(r, opts.Sheet)
	case ".csv":
		rows, err = readDelimitedRows(r, ',')
	case ".tsv":
		rows, err = readDelimitedRows(r, '\t')
	default:
		return Table{}, fmt.Errorf("%s: %w", filename, ErrUnsupportedFormat)
	}
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", filename, err)
	}
	if len(rows) == 0 {
		return Table{}, fmt.Errorf("%s: %w", filename, ErrEmptyTable)
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return Table{
		Name:   name,
		Header: lo.Map(rows[0], func(cell string, _ int) string { return cleanCell(cell) }),
		Rows:   rows[1:],
	}, nil
}

func readWorkbookRows(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyTable
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readDelimitedRows(r io.Reader, comma rune) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.ReadAll()
}

// ReadTableMetadata returns the header and column suggestions of a file.
func ReadTableMetadata(path string, cands ColumnCandidates) (TableMetadata, error) {
	t, err := ReadTable(path, ReadOptions{})
	if err != nil {
		return TableMetadata{}, err
	}
	return DescribeTable(t, cands), nil
}

// DescribeTable suggests text and identifier columns for an already parsed table.
func DescribeTable(t Table, cands ColumnCandidates) TableMetadata {
	cands = cands.withDefaults()
	meta := TableMetadata{Columns: cloneStrings(t.Header), Rows: len(t.Rows)}
	textIdx, err := ResolveColumn(t.Header, "", cands.Text)
	if err == nil {
		meta.SuggestedText = headerNameForIndex(t.Header, textIdx)
	}
	if idIdx := findColumn(t.Header, cands.ID, textIdx); idIdx >= 0 {
		meta.SuggestedIDs = []string{headerNameForIndex(t.Header, idIdx)}
	}
	return meta
}

// ResolveColumn returns the index of explicit (a header name or a 1-based
// "#n" reference) or, when explicit is empty, of the first candidate found.
func ResolveColumn(header []string, explicit string, candidates []string) (int, error) {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return matchExplicitColumn(header, trimmed)
	}
	if idx := findColumn(header, candidates, -1); idx >= 0 {
		return idx, nil
	}
	if len(header) == 1 {
		return 0, nil
	}
	return -1, fmt.Errorf("no text column detected among [%s]: %w", strings.Join(header, ", "), ErrColumnNotFound)
}

// SelectRecords reduces a table to the records described by spec. Rows with
// an empty text cell are skipped but the remaining rows keep their position.
func SelectRecords(t Table, spec TableSpec, cands ColumnCandidates) (Side, error) {
	cands = cands.withDefaults()
	textIdx, err := ResolveColumn(t.Header, spec.TextColumn, cands.Text)
	if err != nil {
		return Side{}, fmt.Errorf("%s: %w", t.Name, err)
	}
	idIdx, err := resolveIDColumns(t.Header, spec.IDColumns, cands.ID, textIdx)
	if err != nil {
		return Side{}, fmt.Errorf("%s: %w", t.Name, err)
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = t.Name
	}
	side := Side{
		Name:       name,
		Header:     cloneStrings(t.Header),
		TextHeader: headerNameForIndex(t.Header, textIdx),
		IDHeaders:  lo.Map(idIdx, func(i int, _ int) string { return headerNameForIndex(t.Header, i) }),
		Records:    make([]Record, 0, len(t.Rows)),
	}
	for i, row := range t.Rows {
		text := cleanCell(cellAt(row, textIdx))
		if text == "" {
			continue
		}
		rec := Record{Row: i + 1, Text: text, Cells: make([]string, len(t.Header))}
		for c := range rec.Cells {
			rec.Cells[c] = cleanCell(cellAt(row, c))
		}
		if len(idIdx) > 0 {
			rec.IDs = lo.Map(idIdx, func(col int, _ int) string { return cleanCell(cellAt(row, col)) })
		}
		side.Records = append(side.Records, rec)
	}
	return side, nil
}

func resolveIDColumns(header []string, explicit []string, candidates []string, textIdx int) ([]int, error) {
	if explicit != nil {
		out := make([]int, 0, len(explicit))
		for _, col := range explicit {
			if strings.TrimSpace(col) == "" {
				continue
			}
			idx, err := matchExplicitColumn(header, col)
			if err != nil {
				return nil, err
			}
			out = append(out, idx)
		}
		return lo.Uniq(out), nil
	}
	if idx := findColumn(header, candidates, textIdx); idx >= 0 {
		return []int{idx}, nil
	}
	return nil, nil
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func cleanCell(v string) string {
	v = strings.TrimPrefix(v, "\ufeff")
	return strings.TrimSpace(v)
}

// findColumn returns the first header matching a candidate, trying candidates
// in priority order. The column at skip is never returned.
func findColumn(header []string, candidates []string, skip int) int {
	for _, cand := range candidates {
		key := headerKey(cand)
		if key == "" {
			continue
		}
		for i, col := range header {
			if i != skip && headerKey(col) == key {
				return i
			}
		}
	}
	return -1
}

func matchExplicitColumn(header []string, explicit string) (int, error) {
	trimmed := strings.TrimSpace(explicit)
	key := headerKey(trimmed)
	for i, col := range header {
		if headerKey(col) == key {
			return i, nil
		}
	}
	if strings.HasPrefix(trimmed, "#") {
		idx, err := parseColumnIndex(trimmed)
		if err != nil {
			return -1, err
		}
		if idx >= len(header) {
			return -1, fmt.Errorf("column index %s is out of range: %w", trimmed, ErrColumnNotFound)
		}
		return idx, nil
	}
	return -1, fmt.Errorf("column %q: %w", explicit, ErrColumnNotFound)
}

func parseColumnIndex(token string) (int, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(token, "#"))
	idx, err := strconv.Atoi(trimmed)
	if err != nil {
		return -1, fmt.Errorf("invalid column index %q", token)
	}
	if idx <= 0 {
		return -1, fmt.Errorf("column indices are 1-based: %q", token)
	}
	return idx - 1, nil
}

func headerNameForIndex(header []string, idx int) string {
	if idx < 0 {
		return ""
	}
	if idx < len(header) {
		if name := strings.Join(strings.Fields(header[idx]), " "); name != "" {
			return name
		}
	}
	return fmt.Sprintf("#%d", idx+1)
}
