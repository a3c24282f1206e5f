package app

import (
	"fmt"
	"strings"

	"yashubustudio/simmatch/simmatch"
)

type columnChoice struct {
	Index int
	// Ref is the value handed to simmatch.TableSpec.
	Ref   string
	Label string
}

// buildColumnChoices lists every column of t with a short sample value.
func buildColumnChoices(t simmatch.Table) []columnChoice {
	maxCols := len(t.Header)
	for _, row := range t.Rows {
		if len(row) > maxCols {
			maxCols = len(row)
		}
	}
	choices := make([]columnChoice, 0, maxCols)
	for col := 0; col < maxCols; col++ {
		header := fmt.Sprintf("列%d", col+1)
		if col < len(t.Header) {
			if h := strings.Join(strings.Fields(t.Header[col]), " "); h != "" {
				header = h
			}
		}
		label := fmt.Sprintf("[%d] %s", col+1, header)
		if sample := columnSample(t.Rows, col); sample != "" {
			label = fmt.Sprintf("%s (例: %s)", label, sample)
		}
		choices = append(choices, columnChoice{Index: col, Ref: fmt.Sprintf("#%d", col+1), Label: label})
	}
	return choices
}

func columnSample(rows [][]string, col int) string {
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		if val := strings.TrimSpace(row[col]); val != "" {
			return truncateText(val, 20)
		}
	}
	return ""
}

// choiceForHeader returns the position in choices of the column named name,
// or -1.
func choiceForHeader(choices []columnChoice, header []string, name string) int {
	if name == "" {
		return -1
	}
	idx, err := simmatch.ResolveColumn(header, name, nil)
	if err != nil {
		return -1
	}
	for i, c := range choices {
		if c.Index == idx {
			return i
		}
	}
	return -1
}

func truncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}

// describeRecord lists the non-empty cells of rec, one "header: value" line
// each, under the record's row number.
func describeRecord(side simmatch.Side, rec simmatch.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d行目", side.Name, rec.Row)
	for i, v := range rec.Cells {
		if v == "" {
			continue
		}
		name := fmt.Sprintf("列%d", i+1)
		if i < len(side.Header) {
			if h := strings.Join(strings.Fields(side.Header[i]), " "); h != "" {
				name = h
			}
		}
		fmt.Fprintf(&b, "\n%s: %s", name, truncateText(v, 200))
	}
	return b.String()
}
