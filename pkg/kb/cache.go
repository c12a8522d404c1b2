package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/singleflight"

	"github.com/soundprediction/minerva/pkg/types"
)

// Cache stores lookup results by key.
type Cache interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Close() error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (m *MemoryCache) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemoryCache) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = bytes.Clone(value)
	return nil
}

func (m *MemoryCache) Close() error { return nil }

// BadgerCache persists lookups across runs so re-running the linker does not hit
// the network again.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerCache opens (or creates) a badger database at path. An empty path
// opens an in-memory database. A zero ttl keeps entries forever.
func NewBadgerCache(path string, ttl time.Duration) (*BadgerCache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache at %q: %w", path, err)
	}
	return &BadgerCache{db: db, ttl: ttl}, nil
}

func (b *BadgerCache) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get %q: %w", key, err)
	}
	return value, true, nil
}

func (b *BadgerCache) Set(key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if b.ttl > 0 {
			entry = entry.WithTTL(b.ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (b *BadgerCache) Close() error {
	return b.db.Close()
}

var notFoundMarker = []byte("!notfound")

// Cached deduplicates concurrent identical lookups and caches their results,
// including NotFound answers. Transient errors are not cached.
type Cached struct {
	searcher Searcher
	fetcher  Fetcher
	cache    Cache
	group    singleflight.Group
	logger   *slog.Logger
}

// NewCached creates a caching wrapper. A nil cache uses a MemoryCache.
func NewCached(searcher Searcher, fetcher Fetcher, cache Cache, logger *slog.Logger) *Cached {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{searcher: searcher, fetcher: fetcher, cache: cache, logger: logger}
}

// BreakerState forwards the breaker state of the wrapped searcher.
func (c *Cached) BreakerState() string {
	if r, ok := c.searcher.(BreakerReporter); ok {
		return r.BreakerState()
	}
	return "disabled"
}

// Search implements Searcher
func (c *Cached) Search(ctx context.Context, query, lang string, limit int) ([]string, error) {
	key := "search:" + lang + ":" + strconv.Itoa(limit) + ":" + query
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if data, ok := c.lookup(key); ok {
			var ids []string
			if err := json.Unmarshal(data, &ids); err == nil {
				return ids, nil
			}
		}
		ids, err := c.searcher.Search(ctx, query, lang, limit)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(ids); err == nil {
			c.store(key, data)
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), v.([]string)...), nil
}

// Fetch implements Fetcher
func (c *Cached) Fetch(ctx context.Context, id string) (*types.KnowledgeRecord, error) {
	key := "record:" + id
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if data, ok := c.lookup(key); ok {
			if bytes.Equal(data, notFoundMarker) {
				return nil, types.NewNotFoundError(id)
			}
			return data, nil
		}
		record, err := c.fetcher.Fetch(ctx, id)
		if errors.Is(err, types.ErrNotFound) {
			c.store(key, notFoundMarker)
			return nil, err
		}
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("failed to encode record %s: %w", id, err)
		}
		c.store(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	var record types.KnowledgeRecord
	if err := json.Unmarshal(v.([]byte), &record); err != nil {
		return nil, fmt.Errorf("failed to decode cached record %s: %w", id, err)
	}
	return &record, nil
}

func (c *Cached) lookup(key string) ([]byte, bool) {
	data, ok, err := c.cache.Get(key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	return data, ok
}

func (c *Cached) store(key string, data []byte) {
	if err := c.cache.Set(key, data); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Close closes the underlying cache.
func (c *Cached) Close() error {
	return c.cache.Close()
}
