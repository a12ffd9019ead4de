package vidtube

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore is an in-memory Store for cache tests.
type mockStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	meta  map[string]*Metadata
	sets  int
	fails bool
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string][]byte), meta: make(map[string]*Metadata)}
}

func (s *mockStore) GetStream(_ context.Context, key string) (io.ReadCloser, *Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[key]
	if !ok {
		return nil, nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(d)), s.meta[key], nil
}

func (s *mockStore) SetWithWriter(_ context.Context, key string, metadata *Metadata) (io.WriteCloser, error) {
	if s.fails {
		return nil, errors.New("store unavailable")
	}
	return &mockWriter{store: s, key: key, meta: metadata}, nil
}

func (s *mockStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	delete(s.meta, key)
	return nil
}

func (s *mockStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			delete(s.meta, k)
		}
	}
	return nil
}

func (s *mockStore) Stat(_ context.Context, key string) (*Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meta[key]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *mockStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

func (s *mockStore) put(key string, data []byte, meta *Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	s.meta[key] = meta
}

type mockWriter struct {
	store *mockStore
	key   string
	meta  *Metadata
	buf   bytes.Buffer
}

func (w *mockWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *mockWriter) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.data[w.key] = append([]byte(nil), w.buf.Bytes()...)
	w.store.meta[w.key] = w.meta
	w.store.sets++
	return nil
}

// countingFetcher serves body, or err, and counts calls.
type countingFetcher struct {
	mu    sync.Mutex
	body  string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *countingFetcher) set(body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body, f.err = body, err
}

func (f *countingFetcher) Fetch(ctx context.Context, _ *Metadata) (*FetchResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	body, err := f.body, f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &FetchResult{Body: io.NopCloser(bytes.NewBufferString(body))}, nil
}

func newTestCache(t *testing.T, opts ...Option) (*SharedCache, *mockStore) {
	t.Helper()
	hot := newMockStore()
	c, err := New(log.NewNopLogger(), append([]Option{WithHotStore(hot)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c.(*SharedCache), hot
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

// recordEvents subscribes to key and returns the channel events arrive on.
func recordEvents(c Cache, key Key) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	cancel := c.Subscribe(key, func(ev Event) { ch <- ev })
	return ch, cancel
}

var videoKey = NewKey("/videos/v1", nil)

func TestCache_NoKeyNeverTouchesStores(t *testing.T) {
	c, hot := newTestCache(t)
	f := &countingFetcher{body: "x"}
	ctx := context.Background()

	_, _, err := c.Get(ctx, NoKey, f)
	assert.ErrorIs(t, err, ErrNoKey)
	_, _, err = c.Peek(ctx, NoKey)
	assert.ErrorIs(t, err, ErrNoKey)
	_, err = c.Set(ctx, NoKey, nil)
	assert.ErrorIs(t, err, ErrNoKey)
	assert.ErrorIs(t, c.Invalidate(ctx, NoKey), ErrNoKey)
	assert.ErrorIs(t, c.Revalidate(ctx, NoKey, f), ErrNoKey)

	assert.Zero(t, f.calls.Load())
	assert.Zero(t, hot.sets)
}

func TestCache_GetMissFetchesOnceThenHits(t *testing.T) {
	c, hot := newTestCache(t)
	f := &countingFetcher{body: `{"title":"clip"}`}
	ctx := context.Background()

	stream, meta, err := c.Get(ctx, videoKey, f)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"clip"}`, readAll(t, stream))
	assert.Equal(t, ETagOf([]byte(`{"title":"clip"}`)), meta.ETag)
	assert.False(t, meta.CachedAt.IsZero())
	assert.True(t, hot.has(videoKey.String()))

	stream, _, err = c.Get(ctx, videoKey, f)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"clip"}`, readAll(t, stream))
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestCache_ConcurrentGetsShareOneFetch(t *testing.T) {
	c, _ := newTestCache(t)
	f := &countingFetcher{body: "shared", delay: 50 * time.Millisecond}
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, _, err := GetBytes(ctx, c, videoKey, f)
			if assert.NoError(t, err) {
				results[i] = string(data)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestCache_CacheableFailureStaysFailedUntilInvalidated(t *testing.T) {
	c, _ := newTestCache(t)
	f := &countingFetcher{err: ErrCacheableNotFound}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		stream, meta, err := c.Get(ctx, videoKey, f)
		assert.ErrorIs(t, err, ErrCacheableNotFound)
		assert.Nil(t, stream)
		require.NotNil(t, meta)
		assert.True(t, meta.IsNegative)
	}
	assert.Equal(t, int32(1), f.calls.Load())

	_, _, err := c.Peek(ctx, videoKey)
	assert.ErrorIs(t, err, ErrCacheableNotFound)

	f.set("recovered", nil)
	require.NoError(t, c.Invalidate(ctx, videoKey))
	data, _, err := GetBytes(ctx, c, videoKey, f)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(data))
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCache_PlainFetchErrorIsNotRemembered(t *testing.T) {
	c, hot := newTestCache(t)
	boom := errors.New("boom")
	f := &countingFetcher{err: boom}
	ctx := context.Background()

	_, _, err := c.Get(ctx, videoKey, f)
	assert.ErrorIs(t, err, boom)
	_, _, err = c.Get(ctx, videoKey, f)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), f.calls.Load())
	assert.False(t, hot.has(videoKey.String()))
}

func TestCache_ColdHitIsPromoted(t *testing.T) {
	cold := newMockStore()
	cold.put(videoKey.String(), []byte("from-cold"), &Metadata{ETag: "e1"})
	c, hot := newTestCache(t, WithColdStore(cold))
	f := &countingFetcher{body: "from-origin"}

	data, meta, err := GetBytes(context.Background(), c, videoKey, f)
	require.NoError(t, err)
	assert.Equal(t, "from-cold", string(data))
	assert.Equal(t, "e1", meta.ETag)
	assert.Zero(t, f.calls.Load())
	assert.True(t, hot.has(videoKey.String()))
}

func TestCache_CommitWritesBothTiers(t *testing.T) {
	cold := newMockStore()
	c, hot := newTestCache(t, WithColdStore(cold))

	_, _, err := GetBytes(context.Background(), c, videoKey, &countingFetcher{body: "v"})
	require.NoError(t, err)
	assert.True(t, hot.has(videoKey.String()))
	assert.True(t, cold.has(videoKey.String()))
}

func TestCache_StoreWriteFailureStillServesValue(t *testing.T) {
	hot := newMockStore()
	hot.fails = true
	c, err := New(log.NewNopLogger(), WithHotStore(hot))
	require.NoError(t, err)
	defer c.Close()

	data, _, err := GetBytes(context.Background(), c, videoKey, &countingFetcher{body: "v"})
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))
}

func TestCache_PeekNeverFetches(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, _, err := c.Peek(ctx, videoKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, SetBytes(ctx, c, videoKey, []byte("known"), nil))
	stream, _, err := c.Peek(ctx, videoKey)
	require.NoError(t, err)
	assert.Equal(t, "known", readAll(t, stream))
}

func TestCache_SetCommitsOnCloseAndNotifies(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	events, cancel := recordEvents(c, videoKey)
	defer cancel()

	w, err := c.Set(ctx, videoKey, &Metadata{ETag: "custom"})
	require.NoError(t, err)
	_, err = w.Write([]byte("[]"))
	require.NoError(t, err)

	_, _, err = c.Peek(ctx, videoKey)
	assert.ErrorIs(t, err, ErrNotFound, "nothing is visible before Close")

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	_, err = w.Write([]byte("late"))
	assert.Error(t, err)

	ev := <-events
	assert.Equal(t, EventUpdated, ev.Kind)
	assert.Equal(t, videoKey, ev.Key)
	assert.Equal(t, "custom", ev.Metadata.ETag)
	assert.Len(t, events, 0)

	data, _, err := GetBytes(ctx, c, videoKey, &countingFetcher{body: "unused"})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestCache_InvalidateRemovesAndNotifies(t *testing.T) {
	cold := newMockStore()
	c, hot := newTestCache(t, WithColdStore(cold))
	ctx := context.Background()
	f := &countingFetcher{body: "v1"}

	_, _, err := GetBytes(ctx, c, videoKey, f)
	require.NoError(t, err)
	events, cancel := recordEvents(c, videoKey)
	defer cancel()

	require.NoError(t, c.Invalidate(ctx, videoKey))
	ev := <-events
	assert.Equal(t, EventInvalidated, ev.Kind)
	assert.False(t, hot.has(videoKey.String()))
	assert.False(t, cold.has(videoKey.String()))

	f.set("v2", nil)
	data, _, err := GetBytes(ctx, c, videoKey, f)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCache_RevalidateUnchangedIsSilent(t *testing.T) {
	c, hot := newTestCache(t)
	ctx := context.Background()
	f := &countingFetcher{body: "same"}

	_, _, err := GetBytes(ctx, c, videoKey, f)
	require.NoError(t, err)
	events, cancel := recordEvents(c, videoKey)
	defer cancel()

	require.NoError(t, c.Revalidate(ctx, videoKey, f))
	c.Close()

	assert.Equal(t, int32(2), f.calls.Load())
	assert.Len(t, events, 0)
	assert.Equal(t, 1, hot.sets)
}

func TestCache_RevalidateChangedCommitsAndNotifies(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	f := &countingFetcher{body: "old"}

	_, _, err := GetBytes(ctx, c, videoKey, f)
	require.NoError(t, err)
	events, cancel := recordEvents(c, videoKey)
	defer cancel()

	f.set("new", nil)
	require.NoError(t, c.Revalidate(ctx, videoKey, f))

	select {
	case ev := <-events:
		assert.Equal(t, EventUpdated, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no update event after revalidation")
	}
	stream, _, err := c.Peek(ctx, videoKey)
	require.NoError(t, err)
	assert.Equal(t, "new", readAll(t, stream))
}

func TestCache_RevalidateNotModifiedKeepsEntry(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, SetBytes(ctx, c, videoKey, []byte("kept"), nil))
	events, cancel := recordEvents(c, videoKey)
	defer cancel()

	f := &countingFetcher{err: ErrNotModified}
	require.NoError(t, c.Revalidate(ctx, videoKey, f))
	c.Close()

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Len(t, events, 0)
	stream, _, err := c.HotStore.GetStream(ctx, videoKey.String())
	require.NoError(t, err)
	assert.Equal(t, "kept", readAll(t, stream))
}

func TestCache_RevalidateDroppedWhenQueueFull(t *testing.T) {
	c, _ := newTestCache(t, WithWorker("pool", 1, 1, time.Second))
	ctx := context.Background()
	block := make(chan struct{})
	defer close(block)

	slow := FetcherFunc(func(ctx context.Context, _ *Metadata) (*FetchResult, error) {
		<-block
		return nil, ErrNotModified
	})

	var dropped bool
	for i := 0; i < 5 && !dropped; i++ {
		err := c.Revalidate(ctx, NewKey("/videos/slow", url.Values{"i": {string(rune('a' + i))}}), slow)
		dropped = errors.Is(err, ErrRevalidateDropped)
	}
	assert.True(t, dropped)
}

func TestCache_SubscribeCancel(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	var calls atomic.Int32
	cancel := c.Subscribe(videoKey, func(Event) { calls.Add(1) })
	other := c.Subscribe(NewKey("/videos/v2", nil), func(Event) { calls.Add(100) })
	defer other()

	require.NoError(t, SetBytes(ctx, c, videoKey, []byte("a"), nil))
	cancel()
	cancel()
	require.NoError(t, SetBytes(ctx, c, videoKey, []byte("b"), nil))

	assert.Equal(t, int32(1), calls.Load())
	noop := c.Subscribe(NoKey, func(Event) { calls.Add(1) })
	noop()
}

func TestCache_ClosedRejectsEverything(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	w, err := c.Set(ctx, videoKey, nil)
	require.NoError(t, err)

	c.Close()
	c.Close()

	_, _, err = c.Get(ctx, videoKey, &countingFetcher{body: "x"})
	assert.ErrorIs(t, err, ErrCacheClosed)
	_, _, err = c.Peek(ctx, videoKey)
	assert.ErrorIs(t, err, ErrCacheClosed)
	_, err = c.Set(ctx, videoKey, nil)
	assert.ErrorIs(t, err, ErrCacheClosed)
	assert.ErrorIs(t, c.Invalidate(ctx, videoKey), ErrCacheClosed)
	assert.ErrorIs(t, c.Revalidate(ctx, videoKey, &countingFetcher{}), ErrCacheClosed)
	assert.ErrorIs(t, w.Close(), ErrCacheClosed)
}

func TestNew_Options(t *testing.T) {
	var cfgErr *ConfigError

	_, err := New(nil)
	require.ErrorAs(t, err, &cfgErr)

	tests := []struct {
		name string
		opt  Option
	}{
		{"nil hot store", WithHotStore(nil)},
		{"nil locker", WithLocker(nil)},
		{"empty strategy", WithWorker("", 1, 1, time.Second)},
		{"zero pool", WithWorker("pool", 0, 1, time.Second)},
		{"zero job timeout", WithWorker("pool", 1, 1, 0)},
		{"zero default timeout", WithDefaultTimeout(0)},
		{"negative shutdown timeout", WithShutdownTimeout(-time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil, WithHotStore(newMockStore()), tt.opt)
			assert.ErrorAs(t, err, &cfgErr)
		})
	}

	c, err := New(nil, WithHotStore(newMockStore()), WithWorker("all", 2, 0, time.Second), WithDefaultTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.(*SharedCache).DefaultTimeout)
	c.Close()
}

func TestFromBytes_SetsContentETag(t *testing.T) {
	f := FromBytes(func(context.Context) ([]byte, error) { return []byte("payload"), nil })
	res, err := f.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ETagOf([]byte("payload")), res.Metadata.ETag)
	assert.Equal(t, "payload", readAll(t, res.Body))
}

func TestCache_ViewerScopedKeysAreSeparateEntries(t *testing.T) {
	c, hot := newTestCache(t)
	ctx := context.Background()
	history := NewKey("/users/watch-history", nil)

	alice := &countingFetcher{body: "alice"}
	bob := &countingFetcher{body: "bob"}
	data, _, err := GetBytes(ctx, c, history.For("u1"), alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", string(data))

	data, _, err = GetBytes(ctx, c, history.For("u2"), bob)
	require.NoError(t, err)
	assert.Equal(t, "bob", string(data))
	assert.Equal(t, int32(1), bob.calls.Load())

	_, _, err = c.Peek(ctx, history)
	assert.ErrorIs(t, err, ErrNotFound, "the signed-out view is its own entry")
	assert.False(t, hot.has(history.String()))
}

func TestCache_InvalidatePrefix(t *testing.T) {
	cold := newMockStore()
	c, hot := newTestCache(t, WithColdStore(cold))
	ctx := context.Background()

	keys := []Key{
		NewKey("/videos/v1", nil).For("u1"),
		NewKey("/videos/v2", nil).For("u1"),
		NewKey("/videos/v1", nil).For("u2"),
		NewKey("/videos/v1", nil),
		NewKey("/users/alice", nil).For("u1"),
	}
	for _, k := range keys {
		require.NoError(t, SetBytes(ctx, c, k, []byte("x"), nil))
	}
	events, cancel := recordEvents(c, keys[1])
	defer cancel()
	untouched, cancelOther := recordEvents(c, keys[2])
	defer cancelOther()

	require.NoError(t, c.InvalidatePrefix(ctx, NewKey("/videos/", nil).For("u1")))

	for i, k := range keys {
		gone := i < 2
		assert.Equal(t, !gone, hot.has(k.storeKey()), "hot %s@%s", k, k.Viewer())
		assert.Equal(t, !gone, cold.has(k.storeKey()), "cold %s@%s", k, k.Viewer())
	}
	ev := <-events
	assert.Equal(t, EventInvalidated, ev.Kind)
	assert.Equal(t, keys[1], ev.Key)
	assert.Len(t, untouched, 0)

	assert.ErrorIs(t, c.InvalidatePrefix(ctx, NoKey), ErrNoKey)
}

// plainStore hides mockStore's DeletePrefix.
type plainStore struct{ Store }

func TestCache_InvalidatePrefixSkipsStoresWithoutPrefixDelete(t *testing.T) {
	hot := newMockStore()
	c, err := New(log.NewNopLogger(), WithHotStore(plainStore{hot}))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()
	key := NewKey("/videos/v1", nil)

	require.NoError(t, SetBytes(ctx, c, key, []byte("x"), nil))
	require.NoError(t, c.InvalidatePrefix(ctx, NewKey("/videos/", nil)))
	assert.True(t, hot.has(key.String()))
}
