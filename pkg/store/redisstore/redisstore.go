// Package redisstore is a Redis-backed cold tier. Several client processes
// pointed at one Redis share their cached server state through it.
package redisstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/goccy/go-json"
	"github.com/mrchypark/vidtube"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "vidtube"

// RedisStore keeps each entry as two Redis strings: "<prefix>:meta:<key>"
// with JSON metadata and "<prefix>:data:<key>" with the raw value.
type RedisStore struct {
	client redis.UniversalClient
	logger log.Logger
	prefix string
	ttl    time.Duration
}

var (
	_ vidtube.Store         = (*RedisStore)(nil)
	_ vidtube.PrefixDeleter = (*RedisStore)(nil)
)

// scanCount is the SCAN batch hint used by DeletePrefix.
const scanCount = 256

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(rs *RedisStore) {
		if prefix != "" {
			rs.prefix = prefix
		}
	}
}

// WithTTL expires entries after ttl. Zero keeps them until deleted.
func WithTTL(ttl time.Duration) Option {
	return func(rs *RedisStore) {
		rs.ttl = ttl
	}
}

func New(client redis.UniversalClient, logger log.Logger, opts ...Option) *RedisStore {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	rs := &RedisStore{client: client, logger: logger, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

func (rs *RedisStore) metaKey(key string) string { return rs.prefix + ":meta:" + key }
func (rs *RedisStore) dataKey(key string) string { return rs.prefix + ":data:" + key }

func (rs *RedisStore) GetStream(ctx context.Context, key string) (io.ReadCloser, *vidtube.Metadata, error) {
	pipe := rs.client.Pipeline()
	metaCmd := pipe.Get(ctx, rs.metaKey(key))
	dataCmd := pipe.Get(ctx, rs.dataKey(key))

	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, vidtube.ErrNotFound
		}
		return nil, nil, err
	}

	meta, err := decodeMeta(metaCmd.Val())
	if err != nil {
		level.Warn(rs.logger).Log("msg", "corrupt metadata in redis", "key", key, "err", err)
		return nil, nil, err
	}
	return io.NopCloser(bytes.NewReader([]byte(dataCmd.Val()))), meta, nil
}

func (rs *RedisStore) SetWithWriter(ctx context.Context, key string, metadata *vidtube.Metadata) (io.WriteCloser, error) {
	return &writer{ctx: ctx, rs: rs, key: key, meta: metadata}, nil
}

func (rs *RedisStore) Delete(ctx context.Context, key string) error {
	return rs.client.Del(ctx, rs.metaKey(key), rs.dataKey(key)).Err()
}

// DeletePrefix scans for the meta and data keys of every entry whose key
// starts with prefix and deletes them batch by batch.
func (rs *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	for _, pattern := range []string{rs.metaKey(globEscape(prefix)) + "*", rs.dataKey(globEscape(prefix)) + "*"} {
		var cursor uint64
		for {
			keys, next, err := rs.client.Scan(ctx, cursor, pattern, scanCount).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := rs.client.Del(ctx, keys...).Err(); err != nil {
					return err
				}
				level.Debug(rs.logger).Log("msg", "deleted entries by prefix", "prefix", prefix, "keys", len(keys))
			}
			if next == 0 {
				break
			}
			cursor = next
		}
	}
	return nil
}

// globEscape quotes the characters SCAN MATCH treats as wildcards. Cache keys
// carry query strings, so '?' is common.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (rs *RedisStore) Stat(ctx context.Context, key string) (*vidtube.Metadata, error) {
	raw, err := rs.client.Get(ctx, rs.metaKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, vidtube.ErrNotFound
		}
		return nil, err
	}
	return decodeMeta(raw)
}

func decodeMeta(raw string) (*vidtube.Metadata, error) {
	var meta vidtube.Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

type writer struct {
	ctx  context.Context
	rs   *RedisStore
	key  string
	meta *vidtube.Metadata
	buf  bytes.Buffer
}

func (w *writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// Close writes metadata and value in one pipeline.
func (w *writer) Close() error {
	meta := w.meta
	if meta == nil {
		meta = &vidtube.Metadata{}
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	_, err = w.rs.client.TxPipelined(w.ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(w.ctx, w.rs.metaKey(w.key), metaBytes, w.rs.ttl)
		pipe.Set(w.ctx, w.rs.dataKey(w.key), w.buf.Bytes(), w.rs.ttl)
		return nil
	})
	if err != nil {
		level.Error(w.rs.logger).Log("msg", "failed to write entry to redis", "key", w.key, "err", err)
	}
	return err
}
