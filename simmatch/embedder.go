package simmatch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"yashubustudio/simmatch/emb"
)

// Supported embedding backends.
const (
	BackendONNX   = "onnx"
	BackendOpenAI = "openai"
)

// Embedder exposes the minimal surface required by the service layer.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
	ModelID() string
}

// Backend produces raw embeddings for a batch of already normalized texts.
type Backend interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// CachedEmbedder normalizes texts and serves repeated ones from memory or
// from the configured vector caches before asking the backend.
type CachedEmbedder struct {
	backend  Backend
	modelID  string
	caches   []VectorCache
	memCache map[string][]float32
	mu       sync.RWMutex

	logger *log.Logger
	// cacheFailures counts Load/Save errors; only the first one is logged.
	cacheFailures atomic.Int64
}

// NewCachedEmbedder wraps backend. Caches are consulted in order on lookup and
// all of them receive new vectors.
func NewCachedEmbedder(backend Backend, modelID string, caches ...VectorCache) *CachedEmbedder {
	return &CachedEmbedder{
		backend:  backend,
		modelID:  modelID,
		caches:   caches,
		memCache: make(map[string][]float32),
	}
}

// redisPingTimeout bounds the connection check made when the Redis cache is
// configured.
const redisPingTimeout = 3 * time.Second

// NewEmbedder builds the backend selected by cfg together with its caches.
// A configured Redis cache that does not answer a ping is an error.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig, logger *log.Logger) (*CachedEmbedder, error) {
	caches, err := openCaches(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var backend Backend
	modelID := cfg.ModelID
	switch strings.ToLower(cfg.Backend) {
	case "", BackendONNX:
		var ort *OrtBackend
		ort, err = NewOrtBackend(cfg)
		if modelID == "" {
			modelID = filepath.Base(filepath.Dir(cfg.ModelPath))
		}
		if err == nil {
			backend = ort
			logTo(logger, "Loaded ONNX model %s (%d dimensions)", modelID, ort.Dimensions())
		}
	case BackendOpenAI:
		backend, err = NewOpenAIBackend(cfg.OpenAI)
		if modelID == "" {
			modelID = cfg.OpenAI.Model
		}
	default:
		err = fmt.Errorf("unknown embedding backend %q", cfg.Backend)
	}
	if err != nil {
		closeCaches(caches)
		return nil, err
	}
	e := NewCachedEmbedder(backend, modelID, caches...)
	e.SetLogger(logger)
	return e, nil
}

func openCaches(ctx context.Context, cfg EmbedderConfig) ([]VectorCache, error) {
	var caches []VectorCache
	if cfg.CacheDir != "" {
		disk, err := NewDiskCache(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		caches = append(caches, disk)
	}
	if cfg.Redis.Address != "" {
		rc := NewRedisCache(cfg.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Address, err)
		}
		caches = append(caches, rc)
	}
	return caches, nil
}

func closeCaches(caches []VectorCache) {
	for _, vc := range caches {
		if closer, ok := vc.(io.Closer); ok {
			_ = closer.Close()
		}
	}
}

// SetLogger sets where cache failures are reported.
func (c *CachedEmbedder) SetLogger(logger *log.Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// Close releases the backend and any closable cache.
func (c *CachedEmbedder) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.backend != nil {
		errs = append(errs, c.backend.Close())
		c.backend = nil
	}
	for _, vc := range c.caches {
		if closer, ok := vc.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	if n := c.cacheFailures.Load(); n > 0 {
		logTo(c.logger, "Vector cache reported %d errors", n)
	}
	c.caches = nil
	c.memCache = nil
	return errors.Join(errs...)
}

// ModelID returns the identifier used for cache keys.
func (c *CachedEmbedder) ModelID() string {
	return c.modelID
}

// EmbedText embeds a single string.
func (c *CachedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds texts, sending only uncached distinct texts to the backend.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.RLock()
	backend := c.backend
	c.mu.RUnlock()
	if backend == nil {
		return nil, errors.New("embedder is not initialized")
	}
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	pending := make(map[string][]int)
	var missTexts, missKeys []string
	for i, t := range texts {
		normalized := NormalizeText(t)
		key := c.cacheKey(normalized)
		keys[i] = key
		if vec := c.getFromMemory(key); vec != nil {
			out[i] = vec
			continue
		}
		if idx, ok := pending[key]; ok {
			pending[key] = append(idx, i)
			continue
		}
		if vec := c.loadFromCaches(ctx, key); vec != nil {
			c.storeInMemory(key, vec)
			out[i] = cloneVector(vec)
			continue
		}
		pending[key] = []int{i}
		missTexts = append(missTexts, normalized)
		missKeys = append(missKeys, key)
	}
	if len(missTexts) == 0 {
		return c.fillDuplicates(out, keys), nil
	}
	vecs, err := backend.Encode(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("backend returned %d vectors for %d texts", len(vecs), len(missTexts))
	}
	for n, key := range missKeys {
		c.storeInMemory(key, vecs[n])
		c.saveToCaches(ctx, key, vecs[n])
		for _, i := range pending[key] {
			out[i] = cloneVector(vecs[n])
		}
	}
	return c.fillDuplicates(out, keys), nil
}

func (c *CachedEmbedder) fillDuplicates(out [][]float32, keys []string) [][]float32 {
	for i := range out {
		if out[i] == nil {
			out[i] = c.getFromMemory(keys[i])
		}
	}
	return out
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, c.modelID)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbedder) getFromMemory(key string) []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if vec, ok := c.memCache[key]; ok {
		return cloneVector(vec)
	}
	return nil
}

func (c *CachedEmbedder) storeInMemory(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memCache != nil {
		c.memCache[key] = cloneVector(vec)
	}
}

func (c *CachedEmbedder) loadFromCaches(ctx context.Context, key string) []float32 {
	for _, vc := range c.caches {
		vec, ok, err := vc.Load(ctx, key)
		if err != nil {
			c.cacheFailed("load", err)
			continue
		}
		if ok {
			return vec
		}
	}
	return nil
}

func (c *CachedEmbedder) saveToCaches(ctx context.Context, key string, vec []float32) {
	for _, vc := range c.caches {
		if err := vc.Save(ctx, key, vec); err != nil {
			c.cacheFailed("save", err)
		}
	}
}

// CacheFailures reports how many cache reads and writes failed.
func (c *CachedEmbedder) CacheFailures() int64 {
	return c.cacheFailures.Load()
}

func (c *CachedEmbedder) cacheFailed(op string, err error) {
	if c.cacheFailures.Add(1) == 1 {
		c.mu.RLock()
		logger := c.logger
		c.mu.RUnlock()
		logTo(logger, "Vector cache %s failed, continuing without it: %v", op, err)
	}
}

func logTo(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// OrtBackend runs the local ONNX encoder.
type OrtBackend struct {
	enc *emb.Encoder
}

// NewOrtBackend initializes the ONNX runtime session.
func NewOrtBackend(cfg EmbedderConfig) (*OrtBackend, error) {
	encoder := &emb.Encoder{}
	if err := encoder.Init(emb.Config{
		OrtDLL:        cfg.OrtDLL,
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		MaxSeqLen:     cfg.MaxSeqLen,
		HiddenSize:    cfg.HiddenSize,
	}); err != nil {
		return nil, fmt.Errorf("init onnx encoder: %w", err)
	}
	return &OrtBackend{enc: encoder}, nil
}

// Encode embeds texts sequentially.
func (b *OrtBackend) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := b.enc.Encode(t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions reports the embedding width of the loaded model.
func (b *OrtBackend) Dimensions() int {
	return b.enc.Dimensions()
}

// Close releases ORT resources.
func (b *OrtBackend) Close() error {
	if b.enc != nil {
		b.enc.Close()
		b.enc = nil
	}
	return nil
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
