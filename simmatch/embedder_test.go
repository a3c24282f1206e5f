package simmatch

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbedderDeduplicates(t *testing.T) {
	backend := newKeywordBackend("login", "export")
	embedder := NewCachedEmbedder(backend, "test-model")
	ctx := context.Background()

	vecs, err := embedder.EmbedTexts(ctx, []string{"Login fails", "Login fails", "  Login fails\x00 ", "Export"})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, []string{"Login fails", "Export"}, backend.texts)
	assert.Equal(t, vecs[0], vecs[1])
	assert.Equal(t, vecs[0], vecs[2])

	vecs[0][0] = 42
	again, err := embedder.EmbedText(ctx, "Login fails")
	require.NoError(t, err)
	assert.Equal(t, float32(1), again[0], "returned vectors are copies")
	assert.Equal(t, 1, backend.calls)

	require.NoError(t, embedder.Close())
	assert.True(t, backend.closed)
	_, err = embedder.EmbedTexts(ctx, []string{"x"})
	assert.Error(t, err)
}

func TestCachedEmbedderUsesPersistentCache(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	disk, err := NewDiskCache(dir)
	require.NoError(t, err)
	first := newKeywordBackend("login")
	_, err = NewCachedEmbedder(first, "m1", disk).EmbedTexts(ctx, []string{"login", "other"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.calls)

	second := newKeywordBackend("login")
	vecs, err := NewCachedEmbedder(second, "m1", disk).EmbedTexts(ctx, []string{"login", "other"})
	require.NoError(t, err)
	assert.Equal(t, 0, second.calls)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{0, 1}, vecs[1])

	third := newKeywordBackend("login")
	_, err = NewCachedEmbedder(third, "m2", disk).EmbedTexts(ctx, []string{"login"})
	require.NoError(t, err)
	assert.Equal(t, 1, third.calls, "cache keys depend on the model")
}

func TestNewEmbedderRejectsUnknownBackend(t *testing.T) {
	ctx := context.Background()
	_, err := NewEmbedder(ctx, EmbedderConfig{Backend: "word2vec"}, nil)
	assert.Error(t, err)

	_, err = NewEmbedder(ctx, EmbedderConfig{Backend: BackendOpenAI}, nil)
	assert.Error(t, err, "api key is required")
}

func TestNewEmbedderUnreachableRedis(t *testing.T) {
	_, err := NewEmbedder(context.Background(), EmbedderConfig{
		Backend: BackendOpenAI,
		Redis:   RedisConfig{Address: "127.0.0.1:1"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis at 127.0.0.1:1")
}

type brokenCache struct{}

func (brokenCache) Load(context.Context, string) ([]float32, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenCache) Save(context.Context, string, []float32) error {
	return errors.New("connection refused")
}

func TestCachedEmbedderReportsCacheFailures(t *testing.T) {
	var logs bytes.Buffer
	backend := newKeywordBackend("login")
	embedder := NewCachedEmbedder(backend, "m", brokenCache{})
	embedder.SetLogger(log.New(&logs, "", 0))

	vecs, err := embedder.EmbedTexts(context.Background(), []string{"login", "other"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, int64(4), embedder.CacheFailures())
	assert.Equal(t, 1, strings.Count(logs.String(), "Vector cache load failed"))

	require.NoError(t, embedder.Close())
	assert.Contains(t, logs.String(), "Vector cache reported 4 errors")
}
