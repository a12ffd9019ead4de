package redisstore

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kit/log"
	"github.com/mrchypark/vidtube"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, log.NewNopLogger(), opts...), mr
}

func write(t *testing.T, s *RedisStore, key string, data []byte, meta *vidtube.Metadata) {
	t.Helper()
	w, err := s.SetWithWriter(context.Background(), key, meta)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestRedisStore_SetAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cachedAt := time.Now().UTC().Truncate(time.Second)

	write(t, s, "/videos/v1", []byte(`{"_id":"v1"}`), &vidtube.Metadata{ETag: "abc", CachedAt: cachedAt})

	r, meta, err := s.GetStream(ctx, "/videos/v1")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)

	assert.Equal(t, `{"_id":"v1"}`, string(data))
	assert.Equal(t, "abc", meta.ETag)
	assert.True(t, cachedAt.Equal(meta.CachedAt.UTC()))
	assert.False(t, meta.IsNegative)
}

func TestRedisStore_Stat(t *testing.T) {
	s, _ := newTestStore(t)
	write(t, s, "k", []byte("null"), &vidtube.Metadata{IsNegative: true})

	meta, err := s.Stat(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, meta.IsNegative)
}

func TestRedisStore_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.GetStream(ctx, "missing")
	assert.ErrorIs(t, err, vidtube.ErrNotFound)
	_, err = s.Stat(ctx, "missing")
	assert.ErrorIs(t, err, vidtube.ErrNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	write(t, s, "k", []byte("v"), nil)
	require.True(t, mr.Exists("vidtube:data:k"))

	require.NoError(t, s.Delete(ctx, "k"))
	assert.False(t, mr.Exists("vidtube:data:k"))
	assert.False(t, mr.Exists("vidtube:meta:k"))

	_, _, err := s.GetStream(ctx, "k")
	assert.ErrorIs(t, err, vidtube.ErrNotFound)
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	s, mr := newTestStore(t, WithPrefix("tenant-a"), WithTTL(time.Minute))
	write(t, s, "k", []byte("v"), nil)

	assert.True(t, mr.Exists("tenant-a:data:k"))
	assert.Equal(t, time.Minute, mr.TTL("tenant-a:meta:k"))

	mr.FastForward(2 * time.Minute)
	_, _, err := s.GetStream(context.Background(), "k")
	assert.ErrorIs(t, err, vidtube.ErrNotFound)
}

func TestRedisStore_CorruptMetadata(t *testing.T) {
	s, mr := newTestStore(t)
	require.NoError(t, mr.Set("vidtube:meta:k", "{not json"))
	require.NoError(t, mr.Set("vidtube:data:k", "v"))

	_, _, err := s.GetStream(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, vidtube.ErrNotFound)
}

func TestRedisStore_ServerDown(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	_, _, err := s.GetStream(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, vidtube.ErrNotFound)
}

func TestRedisStore_DeletePrefix(t *testing.T) {
	s, mr := newTestStore(t, WithPrefix("tenant-a"))
	ctx := context.Background()
	write(t, s, "@u1:/videos/v1", []byte("a"), nil)
	write(t, s, "@u1:/videos/v2", []byte("b"), nil)
	write(t, s, "@u10:/videos/v1", []byte("c"), nil)
	write(t, s, "/videos/getvideos?page=1", []byte("d"), nil)
	write(t, s, "/videos/getvideosXpage=1", []byte("e"), nil)

	require.NoError(t, s.DeletePrefix(ctx, "@u1:/videos/"))
	require.NoError(t, s.DeletePrefix(ctx, "/videos/getvideos?"))

	for _, gone := range []string{"@u1:/videos/v1", "@u1:/videos/v2", "/videos/getvideos?page=1"} {
		_, _, err := s.GetStream(ctx, gone)
		assert.ErrorIs(t, err, vidtube.ErrNotFound, gone)
		assert.False(t, mr.Exists("tenant-a:data:"+gone), gone)
	}
	for _, kept := range []string{"@u10:/videos/v1", "/videos/getvideosXpage=1"} {
		r, _, err := s.GetStream(ctx, kept)
		require.NoError(t, err, kept)
		r.Close()
	}
}
