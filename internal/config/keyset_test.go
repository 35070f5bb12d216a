package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeySet(t *testing.T) {
	s := NewKeySet("b", "a", "db.host")

	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))
	assert.Equal(t, []string{"a", "b", "db.host"}, s.Keys())
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.HasPrefix("db"))
	assert.False(t, s.HasPrefix("d"))
	assert.False(t, s.Unknown())

	all := AllKeys()
	assert.True(t, all.Has("anything"))
	assert.True(t, all.HasPrefix("x"))
	assert.Nil(t, all.Keys())
	assert.Equal(t, -1, all.Len())
	assert.True(t, s.Union(all).Unknown())

	u := s.Union(NewKeySet("z"))
	assert.Equal(t, 4, u.Len())
	assert.True(t, NewKeySet().Empty())
	assert.False(t, all.Empty())
}

func TestDiffKeys(t *testing.T) {
	old := map[string]any{"same": 1, "changed": "a", "gone": true, "list": []string{"x"}}
	next := map[string]any{"same": 1, "changed": "b", "added": 2, "list": []string{"x"}}

	assert.Equal(t, []string{"added", "changed", "gone"}, DiffKeys(old, next))
}

func TestFlattenMap(t *testing.T) {
	got := FlattenMap(map[string]any{
		"server": map[string]any{
			"port": 8080,
			"tls":  map[any]any{"enabled": true},
		},
		"labels": map[string]string{"team": "core"},
		"name":   "svc",
	})

	assert.Equal(t, map[string]any{
		"server.port":        8080,
		"server.tls.enabled": true,
		"labels.team":        "core",
		"name":               "svc",
	}, got)
}
