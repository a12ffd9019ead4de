// Package lock orders writes in the shared cache and guards mutations.
//
// StripeLock is the cache's default Locker. A commit of a fetched page, a
// cold-to-hot promotion and an invalidation each hold the key's lock while
// they touch the tiers, so a refetch that lands during an invalidation
// cannot interleave its hot and cold writes with the delete. InFlight keeps a
// second toggle on one entity from being sent while the first is
// outstanding.
package lock

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// StripeLock maps cache keys onto a fixed set of RWMutexes by xxh3 hash.
// Hot reads take the read side and every tier write takes the write side.
// Two keys may share a stripe. A key always maps to the same one, and a
// viewer-scoped key hashes on its scoped form.
type StripeLock struct {
	stripes []sync.RWMutex
	n       uint64
}

// NewStripeLock creates a lock with the given number of stripes. Non-positive
// values fall back to 2048.
func NewStripeLock(stripes int) *StripeLock {
	if stripes <= 0 {
		stripes = 2048
	}
	return &StripeLock{
		stripes: make([]sync.RWMutex, stripes),
		n:       uint64(stripes),
	}
}

func (sl *StripeLock) stripe(key string) *sync.RWMutex {
	return &sl.stripes[xxh3.HashString(key)%sl.n]
}

func (sl *StripeLock) RLock(key string)   { sl.stripe(key).RLock() }
func (sl *StripeLock) RUnlock(key string) { sl.stripe(key).RUnlock() }
func (sl *StripeLock) Lock(key string)    { sl.stripe(key).Lock() }
func (sl *StripeLock) Unlock(key string)  { sl.stripe(key).Unlock() }
