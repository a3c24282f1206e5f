package simmatch

import (
	"fmt"
	"strconv"
)

// FormatMatch renders a match the way the report prints it.
func FormatMatch(m Match, leftName, rightName string) string {
	return fmt.Sprintf("Similarity between sentence %d of %s and sentence %d of %s: %.2f",
		m.Left.Row, leftName, m.Right.Row, rightName, m.Score)
}

// FormatReport returns one line per match.
func FormatReport(res Result) []string {
	lines := make([]string, len(res.Matches))
	for i, m := range res.Matches {
		lines[i] = FormatMatch(m, res.Left.Name, res.Right.Name)
	}
	return lines
}

// Summary is a one-line description of a result.
func Summary(res Result) string {
	return fmt.Sprintf("%d matches >= %.2f among %d pairs (%s: %d rows, %s: %d rows)",
		len(res.Matches), res.Threshold, res.Pairs(),
		res.Left.Name, len(res.Left.Records), res.Right.Name, len(res.Right.Records))
}

// MatchCells renders a match as the text cells of one export row, with the
// score rounded to two decimals.
func MatchCells(m Match) []string {
	cells := []string{strconv.Itoa(m.Left.Row)}
	cells = append(cells, m.Left.IDs...)
	cells = append(cells, m.Left.Text, strconv.Itoa(m.Right.Row))
	cells = append(cells, m.Right.IDs...)
	return append(cells, m.Right.Text, fmt.Sprintf("%.2f", m.Score))
}
