// Package memstore is the in-process hot tier of the vidtube cache.
package memstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/mrchypark/vidtube"
)

type entry struct {
	value    []byte
	metadata vidtube.Metadata
}

// MemStore keeps entries in a map bounded by a byte capacity. When a write
// pushes the total size past capacity, the eviction policy picks victims
// until the store fits again.
//
// Example:
//
//	hot := memstore.New(64<<20, policy.NewLRUPolicy())
type MemStore struct {
	mu          sync.Mutex
	data        map[string]entry
	capacity    int64
	currentSize int64
	policy      vidtube.EvictionPolicy
}

var (
	_ vidtube.Store         = (*MemStore)(nil)
	_ vidtube.PrefixDeleter = (*MemStore)(nil)
)

// New creates a store holding at most capacity bytes of values. A
// non-positive capacity means unbounded; a nil policy never evicts.
func New(capacity int64, policy vidtube.EvictionPolicy) *MemStore {
	if policy == nil {
		policy = vidtube.NewNullEvictionPolicy()
	}
	return &MemStore{
		data:     make(map[string]entry),
		capacity: capacity,
		policy:   policy,
	}
}

// GetStream returns a reader over a copy-free view of the stored bytes.
// Stored slices are never mutated after commit.
func (ms *MemStore) GetStream(_ context.Context, key string) (io.ReadCloser, *vidtube.Metadata, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.data[key]
	if !ok {
		return nil, nil, vidtube.ErrNotFound
	}
	ms.policy.Touch(key)

	meta := e.metadata
	return io.NopCloser(bytes.NewReader(e.value)), &meta, nil
}

// SetWithWriter buffers the value and commits it when the writer is closed.
func (ms *MemStore) SetWithWriter(_ context.Context, key string, metadata *vidtube.Metadata) (io.WriteCloser, error) {
	w := &writer{ms: ms, key: key}
	if metadata != nil {
		w.meta = *metadata
	}
	return w, nil
}

func (ms *MemStore) Delete(_ context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if e, ok := ms.data[key]; ok {
		ms.currentSize -= int64(len(e.value))
		delete(ms.data, key)
		ms.policy.Remove(key)
	}
	return nil
}

// DeletePrefix drops every entry whose key starts with prefix.
func (ms *MemStore) DeletePrefix(_ context.Context, prefix string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for key, e := range ms.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		ms.currentSize -= int64(len(e.value))
		delete(ms.data, key)
		ms.policy.Remove(key)
	}
	return nil
}

func (ms *MemStore) Stat(_ context.Context, key string) (*vidtube.Metadata, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.data[key]
	if !ok {
		return nil, vidtube.ErrNotFound
	}
	meta := e.metadata
	return &meta, nil
}

// Len returns the number of stored entries.
func (ms *MemStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.data)
}

// Size returns the total stored bytes.
func (ms *MemStore) Size() int64 {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.currentSize
}

func (ms *MemStore) commit(key string, value []byte, meta vidtube.Metadata) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if old, ok := ms.data[key]; ok {
		ms.currentSize -= int64(len(old.value))
	}
	ms.data[key] = entry{value: value, metadata: meta}
	ms.currentSize += int64(len(value))
	ms.policy.Add(key, int64(len(value)))

	if ms.capacity <= 0 {
		return
	}
	for ms.currentSize > ms.capacity {
		victims := ms.policy.Evict()
		if len(victims) == 0 {
			return
		}
		for _, v := range victims {
			if e, ok := ms.data[v]; ok {
				ms.currentSize -= int64(len(e.value))
				delete(ms.data, v)
			}
		}
	}
}

type writer struct {
	ms     *MemStore
	key    string
	meta   vidtube.Metadata
	buf    bytes.Buffer
	closed bool
}

func (w *writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	value := make([]byte, w.buf.Len())
	copy(value, w.buf.Bytes())
	w.ms.commit(w.key, value, w.meta)
	return nil
}
