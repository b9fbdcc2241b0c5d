// Package cache provides query-result caching for the market engine.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface. The in-memory implementation is the
// default; Redis is available for deployments that share a cache between
// processes.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// Key derives a deterministic cache key from the given parts. Parts are
// sorted so that argument order cannot produce distinct keys for the same
// logical query. Every setting that affects results (result kind, page size,
// excluded seller) must be included as a part.
func Key(parts ...string) string {
	sorted := make([]string, len(parts))
	copy(sorted, parts)
	sort.Strings(sorted)

	combined := strings.Join(sorted, "|")
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:16])
}
