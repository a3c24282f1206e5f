package simmatch

import (
	"math"
	"sort"
)

// SimilarityMatrix scores every vector of a against every vector of b.
// The result has len(a) rows and len(b) columns.
func SimilarityMatrix(a, b [][]float32) [][]float32 {
	bNorms := make([]float64, len(b))
	for j, v := range b {
		bNorms[j] = vecNorm(v)
	}
	out := make([][]float32, len(a))
	for i, va := range a {
		row := make([]float32, len(b))
		na := vecNorm(va)
		for j, vb := range b {
			row[j] = cosineWithNorms(va, vb, na, bNorms[j])
		}
		out[i] = row
	}
	return out
}

// FilterMatches returns every (i, j) whose score is at least threshold, in
// row-major order.
func FilterMatches(matrix [][]float32, left, right []Record, threshold float32) []Match {
	var out []Match
	for i, row := range matrix {
		for j, score := range row {
			if score >= threshold {
				out = append(out, Match{Left: left[i], Right: right[j], Score: score})
			}
		}
	}
	return out
}

// SortByScore orders matches by descending score, keeping row-major order
// among equal scores.
func SortByScore(matches []Match) []Match {
	out := append([]Match(nil), matches...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func cosineWithNorms(a, b []float32, na, nb float64) float32 {
	if len(a) == 0 || len(b) == 0 || na == 0 || nb == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	sim := dot / (na * nb)
	// Rounding can push identical vectors a hair past 1.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return float32(sim)
}

func vecNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
