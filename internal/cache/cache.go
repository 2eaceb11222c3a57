package cache

import (
	"context"
	"fmt"
	"time"

	config "example.com/postfeed/internal/init"
	"example.com/postfeed/internal/logger"
)

var logg = logger.New()

const (
	BackendMemory    = "memory"
	BackendCassandra = "cassandra"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the stored value and true, or false on a miss or expired entry.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
	Close()
}

// New builds the backend selected by CACHE_BACKEND.
func New() (Cache, error) {
	cfg := config.Get()
	switch cfg.CacheBackend {
	case "", BackendMemory:
		logg.Info("cache", "Using in-memory page cache")
		return NewMemory(nil), nil
	case BackendCassandra:
		return NewCassandra(cfg)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
