package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

type RistrettoCache struct {
	cache *ristretto.Cache[string, []byte]
}

// NewRistrettoCache sizes the cache by byte cost. maxCost is the total
// budget in bytes for cached payloads.
func NewRistrettoCache(maxCost int64) (*RistrettoCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e6,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoCache{cache: c}, nil
}

func (r *RistrettoCache) Get(key string) ([]byte, bool) {
	return r.cache.Get(key)
}

func (r *RistrettoCache) SetWithTTL(key string, value []byte, ttl time.Duration) error {
	r.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

func (r *RistrettoCache) Delete(key string) error {
	r.cache.Del(key)
	return nil
}

// Wait blocks until pending writes are applied. Only tests need this;
// ristretto admits entries asynchronously.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}

func (r *RistrettoCache) Close() {
	r.cache.Close()
}
