package policy

import (
	"container/list"

	"github.com/mrchypark/vidtube"
)

type lruEntry struct {
	key  string
	size int64
}

// LRUPolicy is the default eviction order of the in-memory hot tier: when
// memstore runs over capacity, the entry whose page was read longest ago
// goes first. Touch is called on every hot read and Add on every commit, so
// pages that are still on screen stay resident. Front of the list is the
// most recent.
type LRUPolicy struct {
	ll    *list.List
	items map[string]*list.Element
}

// NewLRUPolicy returns an empty LRUPolicy. It is what policy.New gives for
// the "lru" setting or an empty one.
func NewLRUPolicy() vidtube.EvictionPolicy {
	return &LRUPolicy{
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

var _ vidtube.EvictionPolicy = (*LRUPolicy)(nil)

func (p *LRUPolicy) Touch(key string) {
	if e, ok := p.items[key]; ok {
		p.ll.MoveToFront(e)
	}
}

// Add inserts key as most recent, or refreshes its size and recency.
func (p *LRUPolicy) Add(key string, size int64) {
	if e, ok := p.items[key]; ok {
		e.Value.(*lruEntry).size = size
		p.ll.MoveToFront(e)
		return
	}
	p.items[key] = p.ll.PushFront(&lruEntry{key: key, size: size})
}

func (p *LRUPolicy) Remove(key string) {
	if e, ok := p.items[key]; ok {
		p.remove(e)
	}
}

// Evict drops the back of the list. memstore calls it until the tier is
// back under capacity or nothing is left.
func (p *LRUPolicy) Evict() []string {
	e := p.ll.Back()
	if e == nil {
		return nil
	}
	return []string{p.remove(e).key}
}

func (p *LRUPolicy) remove(e *list.Element) *lruEntry {
	p.ll.Remove(e)
	entry := e.Value.(*lruEntry)
	delete(p.items, entry.key)
	return entry
}
