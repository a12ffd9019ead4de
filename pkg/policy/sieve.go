package policy

import (
	"container/list"

	"github.com/mrchypark/vidtube"
)

type sieveEntry struct {
	key     string
	size    int64
	visited bool
}

// SievePolicy implements SIEVE. New keys enter at the front unvisited. The
// hand sweeps from the back toward the front, clearing visited bits, and
// evicts the first unvisited entry it finds.
type SievePolicy struct {
	ll    *list.List
	items map[string]*list.Element
	hand  *list.Element
}

func NewSievePolicy() vidtube.EvictionPolicy {
	return &SievePolicy{
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

var _ vidtube.EvictionPolicy = (*SievePolicy)(nil)

// Add inserts key unvisited. Re-adding an existing key counts as an access.
func (p *SievePolicy) Add(key string, size int64) {
	if e, ok := p.items[key]; ok {
		entry := e.Value.(*sieveEntry)
		entry.size = size
		entry.visited = true
		return
	}
	p.items[key] = p.ll.PushFront(&sieveEntry{key: key, size: size})
}

func (p *SievePolicy) Touch(key string) {
	if e, ok := p.items[key]; ok {
		e.Value.(*sieveEntry).visited = true
	}
}

func (p *SievePolicy) Remove(key string) {
	if e, ok := p.items[key]; ok {
		p.remove(e)
	}
}

func (p *SievePolicy) Evict() []string {
	if p.ll.Len() == 0 {
		return nil
	}

	e := p.hand
	if e == nil {
		e = p.ll.Back()
	}
	for {
		entry := e.Value.(*sieveEntry)
		if !entry.visited {
			break
		}
		entry.visited = false
		if e = e.Prev(); e == nil {
			e = p.ll.Back()
		}
	}

	p.hand = e
	return []string{p.remove(e).key}
}

func (p *SievePolicy) remove(e *list.Element) *sieveEntry {
	if e == p.hand {
		p.hand = e.Prev()
	}
	p.ll.Remove(e)
	entry := e.Value.(*sieveEntry)
	delete(p.items, entry.key)
	return entry
}
