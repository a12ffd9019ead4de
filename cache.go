package vidtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mrchypark/vidtube/internal/worker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// negativeBody is what a negative entry holds: the null sentinel.
var negativeBody = []byte("null")

// SharedCache is the concrete implementation of Cache.
type SharedCache struct {
	HotStore        Store
	ColdStore       Store
	Locker          Locker
	Logger          log.Logger
	Worker          *worker.Manager
	DefaultTimeout  time.Duration
	ShutdownTimeout time.Duration

	flight singleflight.Group
	closed atomic.Bool

	subMu   sync.RWMutex
	subs    map[string]*subscription
	nextSub uint64
}

// subscription holds the callbacks registered for one key.
type subscription struct {
	key Key
	fns map[uint64]func(Event)
}

// Compile-time check that SharedCache satisfies Cache.
var _ Cache = (*SharedCache)(nil)

// loaded is the value shared between the callers of one singleflight slot.
type loaded struct {
	data      []byte
	meta      *Metadata
	unchanged bool
}

// Get implements Cache.
func (c *SharedCache) Get(ctx context.Context, key Key, fetcher Fetcher) (io.ReadCloser, *Metadata, error) {
	if c.closed.Load() {
		return nil, nil, ErrCacheClosed
	}
	if key.IsZero() {
		return nil, nil, ErrNoKey
	}

	opCtx, cancel := c.newCtxWithTimeout(ctx)
	defer cancel()

	stream, meta, err := c.lookup(opCtx, key.storeKey())
	if err == nil {
		level.Debug(c.Logger).Log("msg", "cache hit", "key", key, "negative", meta.IsNegative)
		return entryResult(stream, meta)
	}
	if !errors.Is(err, ErrNotFound) {
		level.Error(c.Logger).Log("msg", "cache lookup failed, fetching from origin", "key", key, "err", err)
	}

	level.Debug(c.Logger).Log("msg", "cache miss, fetching from origin", "key", key)
	v, err, shared := c.flight.Do(key.storeKey(), func() (interface{}, error) {
		// The fetch outlives any single caller's cancellation: other callers
		// may be waiting on the same slot.
		fetchCtx, fetchCancel := c.newCtxWithTimeout(context.WithoutCancel(ctx))
		defer fetchCancel()
		return c.load(fetchCtx, key, fetcher)
	})
	if err != nil {
		return nil, nil, err
	}
	if shared {
		level.Debug(c.Logger).Log("msg", "shared in-flight fetch", "key", key)
	}

	l := v.(*loaded)
	return entryResult(io.NopCloser(bytes.NewReader(l.data)), l.meta)
}

// Peek implements Cache.
func (c *SharedCache) Peek(ctx context.Context, key Key) (io.ReadCloser, *Metadata, error) {
	if c.closed.Load() {
		return nil, nil, ErrCacheClosed
	}
	if key.IsZero() {
		return nil, nil, ErrNoKey
	}

	ctx, cancel := c.newCtxWithTimeout(ctx)
	defer cancel()

	stream, meta, err := c.lookup(ctx, key.storeKey())
	if err != nil {
		return nil, nil, err
	}
	return entryResult(stream, meta)
}

// Set implements Cache.
func (c *SharedCache) Set(ctx context.Context, key Key, metadata *Metadata) (io.WriteCloser, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	if key.IsZero() {
		return nil, ErrNoKey
	}
	return &setWriter{ctx: ctx, cache: c, key: key, meta: metadata}, nil
}

// Invalidate implements Cache.
func (c *SharedCache) Invalidate(ctx context.Context, key Key) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if key.IsZero() {
		return ErrNoKey
	}

	ctx, cancel := c.newCtxWithTimeout(ctx)
	defer cancel()

	k := key.storeKey()
	c.Locker.Lock(k)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.HotStore.Delete(gCtx, k); err != nil {
			level.Error(c.Logger).Log("msg", "failed to delete from hot store", "key", k, "err", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := c.ColdStore.Delete(gCtx, k); err != nil {
			level.Error(c.Logger).Log("msg", "failed to delete from cold store", "key", k, "err", err)
			return err
		}
		return nil
	})
	err := g.Wait()
	c.Locker.Unlock(k)

	// A fetch that is still running for the old value must not be joined by
	// readers arriving after the invalidation.
	c.flight.Forget(k)

	level.Debug(c.Logger).Log("msg", "key invalidated", "key", k)
	c.notify(Event{Key: key, Kind: EventInvalidated})
	return err
}

// InvalidatePrefix implements Cache.
func (c *SharedCache) InvalidatePrefix(ctx context.Context, prefix Key) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if prefix.IsZero() {
		return ErrNoKey
	}

	ctx, cancel := c.newCtxWithTimeout(ctx)
	defer cancel()

	p := prefix.storeKey()
	g, gCtx := errgroup.WithContext(ctx)
	for name, store := range map[string]Store{"hot": c.HotStore, "cold": c.ColdStore} {
		pd, ok := store.(PrefixDeleter)
		if !ok {
			level.Warn(c.Logger).Log("msg", "store cannot delete by prefix, skipping", "tier", name, "prefix", p)
			continue
		}
		g.Go(func() error {
			if err := pd.DeletePrefix(gCtx, p); err != nil {
				level.Error(c.Logger).Log("msg", "failed to delete prefix", "tier", name, "prefix", p, "err", err)
				return err
			}
			return nil
		})
	}
	err := g.Wait()

	keys := c.subscribedUnder(prefix)
	for _, key := range keys {
		c.flight.Forget(key.storeKey())
		c.notify(Event{Key: key, Kind: EventInvalidated})
	}
	level.Debug(c.Logger).Log("msg", "prefix invalidated", "prefix", p, "subscribed", len(keys))
	return err
}

// Revalidate implements Cache.
func (c *SharedCache) Revalidate(ctx context.Context, key Key, fetcher Fetcher) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if key.IsZero() {
		return ErrNoKey
	}
	if c.Worker == nil {
		return &ConfigError{"worker is not configured"}
	}

	job := func(jobCtx context.Context) {
		level.Debug(c.Logger).Log("msg", "starting background revalidation", "key", key)
		v, err, _ := c.flight.Do(key.storeKey(), func() (interface{}, error) {
			return c.load(jobCtx, key, fetcher)
		})
		if err != nil {
			level.Warn(c.Logger).Log("msg", "background revalidation failed", "key", key, "err", err)
			return
		}
		if v.(*loaded).unchanged {
			level.Debug(c.Logger).Log("msg", "revalidated value unchanged", "key", key)
			return
		}
		level.Debug(c.Logger).Log("msg", "background revalidation stored new value", "key", key)
	}

	if !c.Worker.Submit(job) {
		return ErrRevalidateDropped
	}
	return nil
}

// Subscribe implements Cache.
func (c *SharedCache) Subscribe(key Key, fn func(Event)) func() {
	if key.IsZero() || fn == nil {
		return func() {}
	}
	k := key.storeKey()

	c.subMu.Lock()
	c.nextSub++
	id := c.nextSub
	sub := c.subs[k]
	if sub == nil {
		sub = &subscription{key: key, fns: make(map[uint64]func(Event))}
		c.subs[k] = sub
	}
	sub.fns[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if sub, ok := c.subs[k]; ok {
				delete(sub.fns, id)
				if len(sub.fns) == 0 {
					delete(c.subs, k)
				}
			}
		})
	}
}

// Close implements Cache.
func (c *SharedCache) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	level.Info(c.Logger).Log("msg", "shutting down vidtube cache")
	if c.Worker != nil {
		if err := c.Worker.Shutdown(c.ShutdownTimeout); err != nil {
			level.Error(c.Logger).Log("msg", "worker shutdown failed", "err", err)
		}
	}
}

// --- internal helpers ---

func (c *SharedCache) newCtxWithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.DefaultTimeout)
}

// entryResult turns a stored entry into Get's return values.
func entryResult(stream io.ReadCloser, meta *Metadata) (io.ReadCloser, *Metadata, error) {
	if meta != nil && meta.IsNegative {
		stream.Close()
		return nil, meta, ErrCacheableNotFound
	}
	return stream, meta, nil
}

// lookup reads key from the hot tier and falls back to the cold tier,
// promoting cold hits into the hot tier.
func (c *SharedCache) lookup(ctx context.Context, key string) (io.ReadCloser, *Metadata, error) {
	c.Locker.RLock(key)
	stream, meta, err := c.HotStore.GetStream(ctx, key)
	c.Locker.RUnlock(key)
	if err == nil {
		return stream, normalizeMeta(meta), nil
	}
	if !errors.Is(err, ErrNotFound) {
		level.Error(c.Logger).Log("msg", "hot store get failed", "key", key, "err", err)
	}

	coldStream, coldMeta, err := c.ColdStore.GetStream(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	defer coldStream.Close()

	data, err := io.ReadAll(coldStream)
	if err != nil {
		return nil, nil, fmt.Errorf("read cold entry: %w", err)
	}
	coldMeta = normalizeMeta(coldMeta)

	c.Locker.Lock(key)
	if err := writeStore(ctx, c.HotStore, key, data, coldMeta); err != nil {
		level.Warn(c.Logger).Log("msg", "failed to promote cold entry", "key", key, "err", err)
	} else {
		level.Debug(c.Logger).Log("msg", "promoted cold entry to hot store", "key", key)
	}
	c.Locker.Unlock(key)

	return io.NopCloser(bytes.NewReader(data)), coldMeta, nil
}

// load fetches key from the origin and commits the result. A result whose
// ETag matches the current entry is reported as unchanged and not committed.
func (c *SharedCache) load(ctx context.Context, key Key, fetcher Fetcher) (*loaded, error) {
	k := key.storeKey()

	old, statErr := c.HotStore.Stat(ctx, k)
	if statErr != nil {
		old = nil
	}

	result, err := fetcher.Fetch(ctx, old)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotModified):
		if old == nil {
			return nil, ErrNotFound
		}
		stream, meta, lookupErr := c.lookup(ctx, k)
		if lookupErr != nil {
			return nil, lookupErr
		}
		defer stream.Close()
		data, readErr := io.ReadAll(stream)
		if readErr != nil {
			return nil, readErr
		}
		return &loaded{data: data, meta: meta, unchanged: true}, nil
	case errors.Is(err, ErrCacheableNotFound):
		level.Debug(c.Logger).Log("msg", "storing negative entry", "key", k)
		result = &FetchResult{
			Body:     io.NopCloser(bytes.NewReader(negativeBody)),
			Metadata: &Metadata{IsNegative: true},
		}
	default:
		level.Warn(c.Logger).Log("msg", "origin fetch failed", "key", k, "err", err)
		return nil, err
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read origin body: %w", err)
	}

	meta := &Metadata{}
	if result.Metadata != nil {
		*meta = *result.Metadata
	}
	if meta.ETag == "" {
		meta.ETag = ETagOf(data)
	}
	if meta.CachedAt.IsZero() {
		meta.CachedAt = time.Now()
	}

	if old != nil && old.ETag == meta.ETag && old.IsNegative == meta.IsNegative {
		return &loaded{data: data, meta: old, unchanged: true}, nil
	}

	c.commit(ctx, key, data, meta)
	return &loaded{data: data, meta: meta}, nil
}

// commit writes data to every tier under the key lock and then announces the
// new value. Store write failures are logged; readers still get the value.
func (c *SharedCache) commit(ctx context.Context, key Key, data []byte, meta *Metadata) {
	k := key.storeKey()

	c.Locker.Lock(k)
	if err := writeStore(ctx, c.HotStore, k, data, meta); err != nil {
		level.Error(c.Logger).Log("msg", "failed to write hot store", "key", k, "err", err)
	}
	if err := writeStore(ctx, c.ColdStore, k, data, meta); err != nil {
		level.Error(c.Logger).Log("msg", "failed to write cold store", "key", k, "err", err)
	}
	c.Locker.Unlock(k)

	c.notify(Event{Key: key, Kind: EventUpdated, Metadata: meta})
}

func (c *SharedCache) notify(ev Event) {
	c.subMu.RLock()
	var fns []func(Event)
	if sub, ok := c.subs[ev.Key.storeKey()]; ok {
		fns = make([]func(Event), 0, len(sub.fns))
		for _, fn := range sub.fns {
			fns = append(fns, fn)
		}
	}
	c.subMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// subscribedUnder returns the subscribed keys that start with prefix.
func (c *SharedCache) subscribedUnder(prefix Key) []Key {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	var keys []Key
	for _, sub := range c.subs {
		if sub.key.HasPrefix(prefix) {
			keys = append(keys, sub.key)
		}
	}
	return keys
}

func writeStore(ctx context.Context, store Store, key string, data []byte, meta *Metadata) error {
	w, err := store.SetWithWriter(ctx, key, meta)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func normalizeMeta(meta *Metadata) *Metadata {
	if meta == nil {
		return &Metadata{}
	}
	return meta
}

// setWriter buffers a known value and commits it on Close.
type setWriter struct {
	ctx    context.Context
	cache  *SharedCache
	key    Key
	meta   *Metadata
	buf    bytes.Buffer
	closed bool
}

func (w *setWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("vidtube: write on closed writer")
	}
	return w.buf.Write(p)
}

func (w *setWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.cache.closed.Load() {
		return ErrCacheClosed
	}

	ctx, cancel := w.cache.newCtxWithTimeout(w.ctx)
	defer cancel()

	data := w.buf.Bytes()
	meta := &Metadata{}
	if w.meta != nil {
		*meta = *w.meta
	}
	if meta.ETag == "" {
		meta.ETag = ETagOf(data)
	}
	if meta.CachedAt.IsZero() {
		meta.CachedAt = time.Now()
	}

	w.cache.commit(ctx, w.key, data, meta)
	return nil
}
