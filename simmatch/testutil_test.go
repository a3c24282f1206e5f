package simmatch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// keywordBackend maps each text onto a fixed vocabulary so related sentences
// share dimensions. Identical texts always produce identical vectors.
type keywordBackend struct {
	mu     sync.Mutex
	vocab  []string
	calls  int
	texts  []string
	closed bool
}

func newKeywordBackend(vocab ...string) *keywordBackend {
	return &keywordBackend{vocab: vocab}
}

func (b *keywordBackend) Encode(_ context.Context, texts []string) ([][]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.texts = append(b.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, len(b.vocab)+1)
		lower := strings.ToLower(t)
		hit := false
		for d, word := range b.vocab {
			if strings.Contains(lower, word) {
				vec[d] = 1
				hit = true
			}
		}
		if !hit {
			vec[len(b.vocab)] = 1
		}
		out[i] = vec
	}
	return out, nil
}

func (b *keywordBackend) Close() error {
	b.closed = true
	return nil
}

func writeWorkbook(t *testing.T, name string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}
