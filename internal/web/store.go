package web

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"yashubustudio/simmatch/simmatch"
)

// ErrResultNotFound is returned for unknown or expired result ids.
var ErrResultNotFound = errors.New("result not found")

// StoredResult is a comparison kept around for the download link.
type StoredResult struct {
	ID        string
	CreatedAt time.Time
	Result    simmatch.Result
}

// ResultStore keeps results in memory until their TTL runs out.
type ResultStore struct {
	items *cache.Cache
}

// NewResultStore creates a store whose entries expire after ttl.
func NewResultStore(ttl time.Duration) *ResultStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ResultStore{items: cache.New(ttl, ttl/2)}
}

// Put stores res under a fresh id.
func (s *ResultStore) Put(res simmatch.Result) StoredResult {
	entry := StoredResult{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Result:    res,
	}
	s.items.Set(entry.ID, entry, cache.DefaultExpiration)
	StoredResults.Set(float64(s.items.ItemCount()))
	return entry
}

// Get returns the result stored under id.
func (s *ResultStore) Get(id string) (StoredResult, error) {
	if _, err := uuid.Parse(id); err != nil {
		return StoredResult{}, ErrResultNotFound
	}
	v, ok := s.items.Get(id)
	if !ok {
		return StoredResult{}, ErrResultNotFound
	}
	return v.(StoredResult), nil
}

// Len reports the number of unexpired entries.
func (s *ResultStore) Len() int {
	return s.items.ItemCount()
}
