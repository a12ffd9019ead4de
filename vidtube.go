// Package vidtube is the shared cache service behind the video platform
// client. Views read server state through it by cache key, mutations
// invalidate or overwrite keys, and every reader of a key observes the same
// value without issuing duplicate network calls.
package vidtube

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mrchypark/vidtube/internal/worker"
	"github.com/mrchypark/vidtube/pkg/lock"
	"github.com/zeebo/xxh3"
)

// ErrNotFound is returned when a key has no cached entry and no origin value
// could be produced.
//
// Peek returns it for every key that has not been loaded yet. Fetchers may
// return it for failures that must not be remembered; the cache passes it
// through to the caller without writing anything.
var ErrNotFound = errors.New("vidtube: object not found")

// ErrNotModified is returned by Fetchers when the origin confirms that the
// cached value is still current. The cache keeps the existing entry and does
// not notify subscribers.
var ErrNotModified = errors.New("vidtube: resource not modified")

// ErrCacheableNotFound is returned when a fetch failed and that failure
// must be remembered.
//
// The cache stores a negative entry (IsNegative=true) for the key. Later
// reads of the key return ErrCacheableNotFound straight from the store, with
// no refetch, until the key is invalidated or overwritten. This is how a
// failed read "stays failed" instead of being retried on every render.
//
// Example handling:
//
//	stream, meta, err := cache.Get(ctx, key, fetcher)
//	if errors.Is(err, vidtube.ErrCacheableNotFound) {
//	    // render the "could not load" state
//	    return
//	}
var ErrCacheableNotFound = errors.New("vidtube: resource not found, but this state is cacheable")

// ErrCacheClosed is returned by every operation after Close has been called.
var ErrCacheClosed = errors.New("vidtube: cache is closed")

// ErrNoKey is returned when an operation receives NoKey, the "do not fetch
// yet" key used while prerequisite data is still missing.
var ErrNoKey = errors.New("vidtube: key is not ready")

// ErrRevalidateDropped is returned by Revalidate when the background worker
// queue is full and the refresh job was not accepted.
var ErrRevalidateDropped = errors.New("vidtube: revalidation queue is full")

// Cache is the process-wide key-value store shared by every view.
//
// Entries are created by Get (on a miss) and by Set, replaced by Set and
// Revalidate, and removed by Invalidate or by the hot store's eviction
// policy. There is no time-based expiry, no refetch on focus and no
// automatic retry after a failed fetch.
//
// All methods are safe for concurrent use.
//
// Example usage:
//
//	cache, err := vidtube.New(logger,
//	    vidtube.WithHotStore(memstore.New(64<<20, policy.NewLRUPolicy())),
//	)
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
//
//	stream, meta, err := cache.Get(ctx, vidtube.NewKey("/users/me", nil), fetcher)
type Cache interface {
	// Get returns the cached value for key, fetching it through fetcher on a
	// miss. Concurrent Gets of one key share a single fetch. A cached negative
	// entry is reported as ErrCacheableNotFound with a nil stream and its
	// metadata. NoKey yields ErrNoKey without touching any store.
	Get(ctx context.Context, key Key, fetcher Fetcher) (io.ReadCloser, *Metadata, error)

	// Peek returns the cached value for key without ever fetching.
	// ErrNotFound means nothing is cached yet.
	Peek(ctx context.Context, key Key) (io.ReadCloser, *Metadata, error)

	// Set returns a writer for a known value. The value is committed to every
	// tier and announced to subscribers when the writer is closed.
	Set(ctx context.Context, key Key, metadata *Metadata) (io.WriteCloser, error)

	// Invalidate removes key from every tier and tells subscribers that their
	// value is gone, so their next read fetches again.
	Invalidate(ctx context.Context, key Key) error

	// InvalidatePrefix removes every key scoped like prefix whose path starts
	// with prefix's path, for changes whose affected keys cannot be listed
	// (every video detail showing one channel, every page of a video list).
	// Stores that cannot enumerate keys are skipped.
	InvalidatePrefix(ctx context.Context, prefix Key) error

	// Revalidate schedules a background refetch of key. A changed value is
	// written and announced; an identical value is dropped silently.
	Revalidate(ctx context.Context, key Key, fetcher Fetcher) error

	// Subscribe registers fn for events on key. The returned func removes the
	// subscription and is safe to call more than once.
	Subscribe(key Key, fn func(Event)) (cancel func())

	// Close stops the background worker and rejects further operations.
	Close()
}

// Metadata describes a cached entry.
type Metadata struct {
	ETag       string    `json:"etag,omitempty"`
	IsNegative bool      `json:"is_negative,omitempty"`
	CachedAt   time.Time `json:"cached_at"`
}

// FetchResult holds the result of a fetch operation.
type FetchResult struct {
	Body     io.ReadCloser
	Metadata *Metadata
}

// Fetcher produces the origin value for a key on a cache miss or during
// revalidation. oldMetadata is the metadata of the entry currently cached for
// the key, or nil.
type Fetcher interface {
	Fetch(ctx context.Context, oldMetadata *Metadata) (*FetchResult, error)
}

// Store is a single cache tier.
type Store interface {
	GetStream(ctx context.Context, key string) (io.ReadCloser, *Metadata, error)
	SetWithWriter(ctx context.Context, key string, metadata *Metadata) (io.WriteCloser, error)
	Delete(ctx context.Context, key string) error
	Stat(ctx context.Context, key string) (*Metadata, error)
}

// PrefixDeleter is implemented by stores that can drop every entry whose
// key starts with a prefix.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// EvictionPolicy decides which keys a capacity-bounded store drops.
// Implementations are not required to be thread-safe; the store serializes
// calls.
type EvictionPolicy interface {
	Touch(key string)
	Add(key string, size int64)
	Remove(key string)
	Evict() []string
}

// Locker provides per-key mutual exclusion.
type Locker interface {
	Lock(key string)
	Unlock(key string)
	RLock(key string)
	RUnlock(key string)
}

// EventKind tells subscribers what happened to a key.
type EventKind int

const (
	// EventUpdated means a new value was committed for the key.
	EventUpdated EventKind = iota + 1
	// EventInvalidated means the key was removed and must be fetched again.
	EventInvalidated
)

func (k EventKind) String() string {
	switch k {
	case EventUpdated:
		return "updated"
	case EventInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers of a key.
type Event struct {
	Key      Key
	Kind     EventKind
	Metadata *Metadata
}

type nullEvictionPolicy struct{}

func (p *nullEvictionPolicy) Touch(key string)           {}
func (p *nullEvictionPolicy) Add(key string, size int64) {}
func (p *nullEvictionPolicy) Remove(key string)          {}
func (p *nullEvictionPolicy) Evict() []string            { return nil }

// NewNullEvictionPolicy returns a policy that never evicts.
func NewNullEvictionPolicy() EvictionPolicy {
	return &nullEvictionPolicy{}
}

// New creates a Cache. A hot store is required; the cold store defaults to a
// no-op store.
func New(logger log.Logger, opts ...Option) (Cache, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	cfg := Config{
		DefaultTimeout:   30 * time.Second,
		ShutdownTimeout:  30 * time.Second,
		WorkerStrategy:   "pool",
		WorkerPoolSize:   1,
		WorkerQueueSize:  500,
		WorkerJobTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.HotStore == nil {
		return nil, &ConfigError{"hotStore is required"}
	}
	if cfg.ColdStore == nil {
		level.Debug(logger).Log("msg", "cold store not configured, using null store")
		cfg.ColdStore = newNullStore()
	}
	if cfg.Locker == nil {
		cfg.Locker = lock.NewStripeLock(256)
	}

	workerManager, err := worker.NewManager(cfg.WorkerStrategy, logger, cfg.WorkerPoolSize, cfg.WorkerQueueSize, cfg.WorkerJobTimeout)
	if err != nil {
		return nil, err
	}

	c := &SharedCache{
		Logger:          logger,
		HotStore:        cfg.HotStore,
		ColdStore:       cfg.ColdStore,
		Locker:          cfg.Locker,
		Worker:          workerManager,
		DefaultTimeout:  cfg.DefaultTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		subs:            make(map[string]*subscription),
	}

	level.Info(logger).Log("msg", "vidtube cache initialized", "default_timeout", c.DefaultTimeout, "worker", cfg.WorkerStrategy)
	return c, nil
}

// ETagOf returns the content hash used as the ETag of cached payloads.
func ETagOf(data []byte) string {
	return strconv.FormatUint(xxh3.Hash(data), 16)
}

// GetBytes is a convenience wrapper around Cache.Get that reads the whole
// value.
func GetBytes(ctx context.Context, cache Cache, key Key, fetcher Fetcher) ([]byte, *Metadata, error) {
	stream, meta, err := cache.Get(ctx, key, fetcher)
	if err != nil {
		return nil, meta, err
	}
	defer stream.Close()
	data, err := io.ReadAll(stream)
	return data, meta, err
}

// SetBytes writes data for key through Cache.Set.
func SetBytes(ctx context.Context, cache Cache, key Key, data []byte, metadata *Metadata) error {
	writer, err := cache.Set(ctx, key, metadata)
	if err != nil {
		return err
	}
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// SimpleFetcher adapts a function returning bytes into a Fetcher.
type SimpleFetcher func(ctx context.Context, oldMetadata *Metadata) ([]byte, *Metadata, error)

// Fetch implements Fetcher.
func (f SimpleFetcher) Fetch(ctx context.Context, oldMetadata *Metadata) (*FetchResult, error) {
	data, metadata, err := f(ctx, oldMetadata)
	if err != nil {
		return nil, err
	}
	return &FetchResult{
		Body:     io.NopCloser(bytes.NewReader(data)),
		Metadata: metadata,
	}, nil
}
