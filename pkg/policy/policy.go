// Package policy decides which cached pages leave the in-memory hot tier when
// it reaches the configured cache.capacity. The cold tier (Redis) expires
// entries by TTL and uses no policy. Policies are not thread-safe; memstore
// serializes calls under its own lock.
package policy

import (
	"fmt"
	"strings"

	"github.com/mrchypark/vidtube"
)

// New returns the policy registered under name ("lru", "sieve" or "none").
func New(name string) (vidtube.EvictionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lru":
		return NewLRUPolicy(), nil
	case "sieve":
		return NewSievePolicy(), nil
	case "none":
		return vidtube.NewNullEvictionPolicy(), nil
	default:
		return nil, fmt.Errorf("policy: unknown eviction policy %q", name)
	}
}
