package config

import (
	"sort"
	"strings"
)

// KeySet is the set of keys affected by a change.
// A KeySet may be unknown, meaning any key may have changed.
type KeySet struct {
	keys map[string]struct{}
	all  bool
}

// AllKeys returns a KeySet that matches every key.
func AllKeys() KeySet {
	return KeySet{all: true}
}

// NewKeySet returns a KeySet holding exactly the given keys.
func NewKeySet(keys ...string) KeySet {
	s := KeySet{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

// Unknown reports whether the set stands for every key.
func (s KeySet) Unknown() bool {
	return s.all
}

// Has reports whether key is in the set. An unknown set has every key.
func (s KeySet) Has(key string) bool {
	if s.all {
		return true
	}
	_, ok := s.keys[key]
	return ok
}

// HasPrefix reports whether any key equals prefix or lies beneath it.
func (s KeySet) HasPrefix(prefix string) bool {
	if s.all {
		return true
	}
	if prefix == "" {
		return len(s.keys) > 0
	}
	for k := range s.keys {
		if k == prefix || strings.HasPrefix(k, prefix+".") {
			return true
		}
	}
	return false
}

// Keys returns the keys in sorted order. Returns nil for an unknown set.
func (s KeySet) Keys() []string {
	if s.all || len(s.keys) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of keys, or -1 for an unknown set.
func (s KeySet) Len() int {
	if s.all {
		return -1
	}
	return len(s.keys)
}

// Empty reports whether the set is known and holds no keys.
func (s KeySet) Empty() bool {
	return !s.all && len(s.keys) == 0
}

// Union returns a set holding the keys of both sets.
func (s KeySet) Union(other KeySet) KeySet {
	if s.all || other.all {
		return AllKeys()
	}
	out := NewKeySet()
	for k := range s.keys {
		out.keys[k] = struct{}{}
	}
	for k := range other.keys {
		out.keys[k] = struct{}{}
	}
	return out
}

// String returns a readable form of the set.
func (s KeySet) String() string {
	if s.all {
		return "[*]"
	}
	return "[" + strings.Join(s.Keys(), " ") + "]"
}
