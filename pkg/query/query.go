// Package query is the typed read side of the cache. A Query decodes cached
// JSON into T and reports one of four states, so a view can tell "still
// loading" from "loaded but empty" from "failed".
package query

import (
	"context"
	"errors"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/goccy/go-json"
	"github.com/mrchypark/vidtube"
	"github.com/mrchypark/vidtube/pkg/api"
)

// State is the render state of a keyed read.
type State int

const (
	// StateIdle means the key is not ready and nothing is fetched.
	StateIdle State = iota
	// StatePending means nothing is cached for the key yet.
	StatePending
	// StateReady means Data holds the decoded value.
	StateReady
	// StateFailed means the last fetch failed. It stays failed until the key
	// is invalidated.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is a read outcome. Data is non-nil only in StateReady.
type Result[T any] struct {
	State State
	Data  *T
}

func (r Result[T]) Ready() bool  { return r.State == StateReady }
func (r Result[T]) Failed() bool { return r.State == StateFailed }

// Loading reports whether a view should render its loading state.
func (r Result[T]) Loading() bool { return r.State == StatePending }

// Value returns the data, or the zero T outside StateReady.
func (r Result[T]) Value() T {
	if r.Data == nil {
		var zero T
		return zero
	}
	return *r.Data
}

// FetchFunc loads the value addressed by key. Errors are never surfaced to
// readers; they turn into StateFailed.
type FetchFunc[T any] func(ctx context.Context, key string) (T, error)

// FromAPI fetches key with a GET through c and unwraps the envelope. No
// content yields the zero T.
func FromAPI[T any](c *api.Client) FetchFunc[T] {
	return func(ctx context.Context, key string) (T, error) {
		env, err := api.Get[T](ctx, c, key)
		if err != nil {
			var zero T
			return zero, err
		}
		return env.Value(), nil
	}
}

// Option configures a Query.
type Option func(*options)

type options struct {
	logger log.Logger
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Query reads and writes values of type T through a shared cache.
type Query[T any] struct {
	cache  vidtube.Cache
	fetch  FetchFunc[T]
	logger log.Logger
}

func New[T any](cache vidtube.Cache, fetch FetchFunc[T], opts ...Option) *Query[T] {
	o := options{logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Query[T]{cache: cache, fetch: fetch, logger: o.logger}
}

// Get returns the cached value for key, fetching it on a miss. Concurrent
// Gets of one key share one fetch.
func (q *Query[T]) Get(ctx context.Context, key vidtube.Key) Result[T] {
	if key.IsZero() {
		return Result[T]{State: StateIdle}
	}
	data, _, err := vidtube.GetBytes(ctx, q.cache, key, q.fetcher(key))
	return q.result(key, data, err)
}

// Peek returns what is cached for key without fetching.
func (q *Query[T]) Peek(ctx context.Context, key vidtube.Key) Result[T] {
	if key.IsZero() {
		return Result[T]{State: StateIdle}
	}
	stream, _, err := q.cache.Peek(ctx, key)
	if err != nil {
		if errors.Is(err, vidtube.ErrNotFound) {
			return Result[T]{State: StatePending}
		}
		return q.result(key, nil, err)
	}
	defer stream.Close()

	var v T
	if err := json.NewDecoder(stream).Decode(&v); err != nil {
		level.Warn(q.logger).Log("msg", "cached value does not decode", "key", key, "err", err)
		return Result[T]{State: StateFailed}
	}
	return Result[T]{State: StateReady, Data: &v}
}

// Set stores a value already known to be the server's state, without a
// round trip.
func (q *Query[T]) Set(ctx context.Context, key vidtube.Key, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return vidtube.SetBytes(ctx, q.cache, key, data, nil)
}

// Invalidate drops key so the next read fetches again.
func (q *Query[T]) Invalidate(ctx context.Context, key vidtube.Key) error {
	return q.cache.Invalidate(ctx, key)
}

// Revalidate refetches key in the background. Watchers see the new value
// only if it differs.
func (q *Query[T]) Revalidate(ctx context.Context, key vidtube.Key) error {
	return q.cache.Revalidate(ctx, key, q.fetcher(key))
}

// Watch calls fn with the new result whenever key is updated or invalidated.
// It returns the func that stops watching.
func (q *Query[T]) Watch(key vidtube.Key, fn func(Result[T])) (cancel func()) {
	return q.cache.Subscribe(key, func(ev vidtube.Event) {
		switch ev.Kind {
		case vidtube.EventInvalidated:
			fn(Result[T]{State: StatePending})
		default:
			fn(q.Peek(context.Background(), key))
		}
	})
}

func (q *Query[T]) fetcher(key vidtube.Key) vidtube.Fetcher {
	return vidtube.SimpleFetcher(func(ctx context.Context, _ *vidtube.Metadata) ([]byte, *vidtube.Metadata, error) {
		v, err := q.fetch(ctx, key.String())
		if err != nil {
			level.Debug(q.logger).Log("msg", "fetch failed, caching failure", "key", key, "err", err)
			return nil, nil, vidtube.ErrCacheableNotFound
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, nil, err
		}
		return data, nil, nil
	})
}

func (q *Query[T]) result(key vidtube.Key, data []byte, err error) Result[T] {
	if err != nil {
		if !errors.Is(err, vidtube.ErrCacheableNotFound) {
			level.Warn(q.logger).Log("msg", "read failed", "key", key, "err", err)
		}
		return Result[T]{State: StateFailed}
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		level.Warn(q.logger).Log("msg", "cached value does not decode", "key", key, "err", err)
		return Result[T]{State: StateFailed}
	}
	return Result[T]{State: StateReady, Data: &v}
}
