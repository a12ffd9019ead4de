package vidtube

import (
	"net/url"
	"strings"
)

// Key addresses one logical server resource in the cache.
//
// The zero Key is NoKey: "do not fetch yet", used while a prerequisite value
// (the signed-in user's ID, a parent resource) is still missing. Keys derived
// from the same path and parameters are always equal, whatever order the
// parameters were added in.
//
// A resource whose content depends on who asks (a watch history, the
// isLiked flag of a video) is keyed per viewer with For. The viewer is part
// of the key's identity in every tier but never of the request path.
type Key struct {
	id     string
	viewer string
}

// NoKey is the "do not fetch" key.
var NoKey Key

// NewKey derives the key for path with the given query parameters. Parameters
// are encoded in sorted order, so the derivation is deterministic.
func NewKey(path string, params url.Values) Key {
	if path == "" {
		return NoKey
	}
	if enc := params.Encode(); enc != "" {
		return Key{id: path + "?" + enc}
	}
	return Key{id: path}
}

// KeyOf wraps an already-derived key string. An empty string yields NoKey.
func KeyOf(id string) Key {
	return Key{id: id}
}

// When returns key if ready is true and NoKey otherwise.
func When(ready bool, key Key) Key {
	if !ready {
		return NoKey
	}
	return key
}

// For returns k scoped to viewer. An empty viewer is the signed-out view,
// shared by everyone. NoKey stays NoKey.
func (k Key) For(viewer string) Key {
	if k.IsZero() {
		return NoKey
	}
	k.viewer = viewer
	return k
}

// Viewer returns the viewer k is scoped to, or "".
func (k Key) Viewer() string { return k.viewer }

// IsZero reports whether k is NoKey.
func (k Key) IsZero() bool { return k.id == "" }

// String returns the request path (with query) of the resource k addresses.
func (k Key) String() string { return k.id }

// HasPrefix reports whether k is scoped to the same viewer as prefix and its
// path starts with prefix's path.
func (k Key) HasPrefix(prefix Key) bool {
	return !prefix.IsZero() && strings.HasPrefix(k.storeKey(), prefix.storeKey())
}

// storeKey is the identity of k inside the stores, the singleflight group
// and the subscriber table.
func (k Key) storeKey() string {
	if k.viewer == "" {
		return k.id
	}
	return "@" + k.viewer + ":" + k.id
}
