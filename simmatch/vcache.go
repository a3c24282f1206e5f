package simmatch

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// VectorCache persists embeddings between runs.
type VectorCache interface {
	Load(ctx context.Context, key string) ([]float32, bool, error)
	Save(ctx context.Context, key string, vec []float32) error
}

// DiskCache stores one little-endian file per vector under Dir.
type DiskCache struct {
	Dir string
}

// NewDiskCache prepares the cache directory.
func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &DiskCache{Dir: dir}, nil
}

func (c *DiskCache) Load(_ context.Context, key string) ([]float32, bool, error) {
	path := filepath.Join(c.Dir, key+".bin")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	vec, err := decodeVector(data)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return vec, true, nil
}

func (c *DiskCache) Save(_ context.Context, key string, vec []float32) error {
	path := filepath.Join(c.Dir, key+".bin")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encodeVector(vec), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// RedisCache shares vectors between processes through Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to the configured Redis server.
func NewRedisCache(cfg RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisCache{
		client: client,
		prefix: "simmatch:vec:",
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
	}
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Load(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	vec, err := decodeVector(data)
	if err != nil {
		return nil, false, fmt.Errorf("redis key %s: %w", key, err)
	}
	return vec, true, nil
}

func (c *RedisCache) Save(ctx context.Context, key string, vec []float32) error {
	return c.client.Set(ctx, c.prefix+key, encodeVector(vec), c.ttl).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// encodeVector writes a uint32 length followed by the float32 bits.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4+len(vec)*4)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec)))
	off := 4
	for _, v := range vec {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, errors.New("cache entry too small")
	}
	length := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != length*4 {
		return nil, errors.New("cache length mismatch")
	}
	vec := make([]float32, length)
	for i := 0; i < length; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return vec, nil
}
