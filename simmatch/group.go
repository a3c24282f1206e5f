package simmatch

import "sort"

// BestPerLeft keeps the highest-scoring match of every left row. Ties go to
// the earlier right row. The output is ordered by left row.
func BestPerLeft(matches []Match) []Match {
	if len(matches) == 0 {
		return nil
	}
	best := make(map[int]Match)
	order := make([]int, 0)
	for _, m := range matches {
		cur, ok := best[m.Left.Row]
		if !ok {
			order = append(order, m.Left.Row)
			best[m.Left.Row] = m
			continue
		}
		if m.Score > cur.Score || (m.Score == cur.Score && m.Right.Row < cur.Right.Row) {
			best[m.Left.Row] = m
		}
	}
	sort.Ints(order)
	out := make([]Match, 0, len(order))
	for _, row := range order {
		out = append(out, best[row])
	}
	return out
}

// CountByRight reports how many left rows matched each right row.
func CountByRight(matches []Match) map[int]int {
	out := make(map[int]int)
	for _, m := range matches {
		out[m.Right.Row]++
	}
	return out
}
