package lock

import "sync"

// InFlight tracks which entities currently have a request outstanding.
//
// A mutation acquires the entity id before issuing its request and releases it
// once the request settles. A second acquire of the same id while the first is
// outstanding fails, so the caller drops the trigger instead of sending a
// duplicate request. Different ids never block each other.
type InFlight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{ids: make(map[string]struct{})}
}

// TryAcquire marks id as busy. ok is false if id was already busy, in which
// case release is a no-op. The returned release is idempotent.
func (f *InFlight) TryAcquire(id string) (release func(), ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ids == nil {
		f.ids = make(map[string]struct{})
	}
	if _, busy := f.ids[id]; busy {
		return func() {}, false
	}
	f.ids[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.ids, id)
			f.mu.Unlock()
		})
	}, true
}

// Busy reports whether id has a request outstanding.
func (f *InFlight) Busy(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.ids[id]
	return busy
}

// Len returns the number of busy ids.
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}
