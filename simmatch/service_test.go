package simmatch

import (
	"bytes"
	"context"
	"log"
	"math"
	"path/filepath"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ideasTable() Table {
	return Table{
		Name:   "usine",
		Header: []string{"Décrire votre idée"},
		Rows: [][]string{
			{"Login page fails on mobile"},
			{"Export to PDF"},
			{""},
			{"Password reset by email"},
		},
	}
}

func issuesTable() Table {
	return Table{
		Name:   "jira",
		Header: []string{"Issue key", "Summary"},
		Rows: [][]string{
			{"J-1", "PDF export broken"},
			{"J-2", "Login error"},
			{"J-3", "Unrelated chore"},
		},
	}
}

func newTestService(t *testing.T, cfg Config) (*Service, *keywordBackend, *bytes.Buffer) {
	t.Helper()
	backend := newKeywordBackend("login", "export", "password")
	var buf bytes.Buffer
	svc, err := NewService(NewCachedEmbedder(backend, "kw"), cfg, log.New(&buf, "", 0))
	require.NoError(t, err)
	return svc, backend, &buf
}

func TestServiceCompare(t *testing.T) {
	svc, _, logs := newTestService(t, Config{})
	var stages []string
	res, err := svc.Compare(context.Background(), ideasTable(), issuesTable(), CompareOptions{
		Left:     TableSpec{Name: "USINE"},
		Right:    TableSpec{Name: "JIRA"},
		Progress: func(stage string) { stages = append(stages, stage) },
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultThreshold, res.Threshold)
	assert.Equal(t, []string{"selected", "embedded-left", "embedded-right", "scored"}, stages)
	assert.Equal(t, 9, res.Pairs())
	require.Len(t, res.Matrix, 3)
	require.Len(t, res.Matrix[0], 3)

	require.Len(t, res.Matches, 2)
	assert.Equal(t, 1, res.Matches[0].Left.Row)
	assert.Equal(t, 2, res.Matches[0].Right.Row)
	assert.Equal(t, []string{"J-2"}, res.Matches[0].Right.IDs)
	assert.Equal(t, 2, res.Matches[1].Left.Row)
	assert.Equal(t, 1, res.Matches[1].Right.Row)
	assert.InDelta(t, 1.0, res.Matches[0].Score, 1e-6)
	assert.Len(t, res.Best, 2)

	assert.Equal(t, 4, res.Left.Records[2].Row, "blank rows keep numbering")
	assert.Equal(t, []string{
		"Similarity between sentence 1 of USINE and sentence 2 of JIRA: 1.00",
		"Similarity between sentence 2 of USINE and sentence 1 of JIRA: 1.00",
	}, FormatReport(res))
	assert.Contains(t, logs.String(), "Found 2 matches out of 9 pairs")
}

func TestServiceCompareThreshold(t *testing.T) {
	svc, _, _ := newTestService(t, Config{Threshold: 0.9})
	ctx := context.Background()

	res, err := svc.Compare(ctx, ideasTable(), issuesTable(), CompareOptions{Threshold: lo.ToPtr[float32](-1)})
	require.NoError(t, err)
	assert.Equal(t, float32(-1), res.Threshold)
	assert.Len(t, res.Matches, 9)

	res, err = svc.Compare(ctx, ideasTable(), issuesTable(), CompareOptions{})
	require.NoError(t, err)
	assert.Equal(t, float32(0.9), res.Threshold)

	// An explicit zero is kept rather than replaced by the configured value.
	res, err = svc.Compare(ctx, ideasTable(), issuesTable(), CompareOptions{Threshold: lo.ToPtr[float32](0)})
	require.NoError(t, err)
	assert.Equal(t, float32(0), res.Threshold)
	assert.Len(t, res.Matches, 9)

	for _, bad := range []float32{1.5, -1.01, float32(math.NaN()), float32(math.Inf(1))} {
		_, err = svc.Compare(ctx, ideasTable(), issuesTable(), CompareOptions{Threshold: lo.ToPtr(bad)})
		assert.ErrorIs(t, err, ErrInvalidThreshold, "threshold %v", bad)
	}

	svc.UpdateConfig(Config{Threshold: float32(math.NaN())})
	_, err = svc.Compare(ctx, ideasTable(), issuesTable(), CompareOptions{})
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestServiceCompareSortAndEmpty(t *testing.T) {
	svc, backend, _ := newTestService(t, Config{})
	ctx := context.Background()

	res, err := svc.Compare(ctx, ideasTable(), issuesTable(), CompareOptions{Threshold: lo.ToPtr[float32](-1), SortByScore: true})
	require.NoError(t, err)
	for i := 1; i < len(res.Matches); i++ {
		assert.GreaterOrEqual(t, res.Matches[i-1].Score, res.Matches[i].Score)
	}

	calls := backend.calls
	empty := Table{Name: "empty", Header: []string{"Summary"}, Rows: [][]string{{" "}}}
	res, err = svc.Compare(ctx, empty, issuesTable(), CompareOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Equal(t, 0, res.Pairs())
	assert.Equal(t, calls, backend.calls)
}

func TestServiceCompareColumnErrors(t *testing.T) {
	svc, _, _ := newTestService(t, Config{Right: TableSpec{TextColumn: "Body"}})
	_, err := svc.Compare(context.Background(), ideasTable(), issuesTable(), CompareOptions{})
	assert.ErrorIs(t, err, ErrColumnNotFound)

	_, err = svc.Compare(context.Background(), ideasTable(), issuesTable(), CompareOptions{Right: TableSpec{TextColumn: "Summary"}})
	assert.NoError(t, err)
}

func TestServiceCompareCanceled(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.embedder = NewCachedEmbedder(cancelAwareBackend{}, "c")
	_, err := svc.Compare(ctx, ideasTable(), issuesTable(), CompareOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServiceCompareFiles(t *testing.T) {
	left := writeWorkbook(t, "usine.xlsx", [][]any{{"Décrire votre idée"}, {"Export to PDF"}})
	right := writeWorkbook(t, "jira.xlsx", [][]any{{"Issue key", "Summary"}, {"J-1", "PDF export broken"}})
	svc, _, _ := newTestService(t, Config{})
	res, err := svc.CompareFiles(context.Background(), left, right, CompareOptions{})
	require.NoError(t, err)
	assert.Equal(t, "usine", res.Left.Name)
	assert.Equal(t, "jira", res.Right.Name)
	require.Len(t, res.Matches, 1)

	res, err = svc.CompareFiles(context.Background(), left, right, CompareOptions{Right: TableSpec{Name: "JIRA"}})
	require.NoError(t, err)
	assert.Equal(t, "JIRA", res.Right.Name)
	assert.Equal(t, "Similarity between sentence 1 of usine and sentence 1 of JIRA: 1.00", FormatReport(res)[0])

	_, err = svc.CompareFiles(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"), right, CompareOptions{})
	assert.ErrorContains(t, err, "read left file")
}

func TestServiceUpdateConfig(t *testing.T) {
	svc, backend, _ := newTestService(t, Config{})
	svc.UpdateConfig(Config{Threshold: 0.5})
	assert.Equal(t, float32(0.5), svc.Config().Threshold)
	assert.Equal(t, BackendONNX, svc.Config().Embedder.Backend)
	require.NoError(t, svc.Close())
	assert.True(t, backend.closed)

	_, err := NewService(nil, Config{}, nil)
	assert.Error(t, err)
}

type cancelAwareBackend struct{}

func (cancelAwareBackend) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return make([][]float32, len(texts)), nil
}

func (cancelAwareBackend) Close() error { return nil }
