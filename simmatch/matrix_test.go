package simmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarityMatrix(t *testing.T) {
	a := [][]float32{{1, 0}, {0, 2}, {0, 0}}
	b := [][]float32{{3, 0}, {1, 1}}
	m := SimilarityMatrix(a, b)
	require.Len(t, m, 3)
	require.Len(t, m[0], 2)
	assert.InDelta(t, 1.0, m[0][0], 1e-6)
	assert.InDelta(t, 0.7071, m[0][1], 1e-4)
	assert.InDelta(t, 0.0, m[1][0], 1e-6)
	assert.InDelta(t, 0.7071, m[1][1], 1e-4)
	assert.Equal(t, []float32{0, 0}, m[2], "zero vectors score 0")
}

func TestCosineSimilarityBounds(t *testing.T) {
	m := SimilarityMatrix(
		[][]float32{{0.1, 0.2, 0.3}, {1, 1, 0}, nil},
		[][]float32{{0.1, 0.2, 0.3}, {-1, -1, 0}},
	)
	assert.Equal(t, float32(1), m[0][0])
	assert.Equal(t, float32(-1), m[1][1])
	assert.Equal(t, []float32{0, 0}, m[2])
}

func TestFilterMatchesInclusiveRowMajor(t *testing.T) {
	left := []Record{{Row: 1, Text: "a"}, {Row: 3, Text: "b"}}
	right := []Record{{Row: 1, Text: "x"}, {Row: 2, Text: "y"}}
	matrix := [][]float32{
		{0.7, 0.69},
		{0.95, 0.71},
	}
	matches := FilterMatches(matrix, left, right, 0.7)
	require.Len(t, matches, 3)
	assert.Equal(t, 1, matches[0].Left.Row)
	assert.Equal(t, 1, matches[0].Right.Row)
	assert.Equal(t, float32(0.7), matches[0].Score)
	assert.Equal(t, 3, matches[1].Left.Row)
	assert.Equal(t, 1, matches[1].Right.Row)
	assert.Equal(t, 2, matches[2].Right.Row)

	assert.Empty(t, FilterMatches(matrix, left, right, 0.99))
}

func TestSortByScore(t *testing.T) {
	in := []Match{
		{Left: Record{Row: 1}, Score: 0.8},
		{Left: Record{Row: 2}, Score: 0.9},
		{Left: Record{Row: 3}, Score: 0.8},
	}
	out := SortByScore(in)
	assert.Equal(t, []int{2, 1, 3}, []int{out[0].Left.Row, out[1].Left.Row, out[2].Left.Row})
	assert.Equal(t, 1, in[0].Left.Row, "input is left untouched")
}

func TestBestPerLeft(t *testing.T) {
	matches := []Match{
		{Left: Record{Row: 4}, Right: Record{Row: 1}, Score: 0.75},
		{Left: Record{Row: 2}, Right: Record{Row: 5}, Score: 0.8},
		{Left: Record{Row: 2}, Right: Record{Row: 3}, Score: 0.8},
		{Left: Record{Row: 4}, Right: Record{Row: 2}, Score: 0.9},
	}
	best := BestPerLeft(matches)
	require.Len(t, best, 2)
	assert.Equal(t, 2, best[0].Left.Row)
	assert.Equal(t, 3, best[0].Right.Row)
	assert.Equal(t, 4, best[1].Left.Row)
	assert.Equal(t, 2, best[1].Right.Row)

	assert.Nil(t, BestPerLeft(nil))
	assert.Equal(t, map[int]int{1: 1, 5: 1, 3: 1, 2: 1}, CountByRight(matches))
}
