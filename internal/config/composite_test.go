package config

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposite_FirstLayerWins(t *testing.T) {
	c := NewComposite("root")
	require.NoError(t, c.Add("first", NewMap(map[string]any{"a": "1", "b": "first"})))
	require.NoError(t, c.Add("second", NewMap(map[string]any{"b": "second", "c": "3"})))

	tests := []struct {
		key   string
		want  string
		layer string
	}{
		{"a", "1", "first"},
		{"b", "first", "first"},
		{"c", "3", "second"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := c.GetString(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			layer, ok := c.WhichLayer(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.layer, layer)
		})
	}
}

func TestComposite_AddDuplicate(t *testing.T) {
	c := NewComposite("root")
	require.NoError(t, c.Add("a", Empty()))

	err := c.Add("a", Empty())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateName)

	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Name)
}

func TestComposite_Positions(t *testing.T) {
	c := NewComposite("root")
	require.NoError(t, c.Add("b", Empty()))
	require.NoError(t, c.AddFirst("a", Empty()))
	require.NoError(t, c.Add("d", Empty()))
	require.NoError(t, c.AddAt(2, "c", Empty()))

	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, c.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	assert.ErrorIs(t, c.AddAt(9, "x", Empty()), ErrInvalidLayer)
	assert.ErrorIs(t, c.AddAt(-1, "x", Empty()), ErrInvalidLayer)
	assert.ErrorIs(t, c.Add("nil", nil), ErrInvalidLayer)
	assert.Equal(t, 4, c.Len())
}

func TestComposite_KeyNotFound(t *testing.T) {
	c := NewComposite("root")
	require.NoError(t, c.Add("a", NewMap(map[string]any{"x": 1})))

	_, err := c.GetInt("missing")
	require.ErrorIs(t, err, ErrKeyNotFound)

	var nf *KeyNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Key)

	assert.Equal(t, 7, c.GetIntOr("missing", 7))
	assert.Equal(t, 1, c.GetIntOr("x", 7))
}

func TestComposite_TypeCoercion(t *testing.T) {
	c := NewComposite("root")
	require.NoError(t, c.Add("a", NewMap(map[string]any{"port": "eighty"})))

	_, err := c.GetInt("port")
	require.ErrorIs(t, err, ErrTypeCoercion)

	var ce *TypeCoercionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "port", ce.Key)
	assert.Equal(t, "int", ce.Target)

	assert.Equal(t, 80, c.GetIntOr("port", 80))
}

func TestComposite_RemoveUnrelatedLayer(t *testing.T) {
	c := NewComposite("root")
	require.NoError(t, c.Add("a", NewMap(map[string]any{"k": "a"})))
	require.NoError(t, c.Add("b", NewMap(map[string]any{"other": "b"})))

	node, ok := c.Remove("b")
	require.True(t, ok)
	assert.True(t, node.ContainsKey("other"))
	assert.Equal(t, "a", c.GetStringOr("k", ""))

	node, ok = c.Remove("nonexistent")
	assert.False(t, ok)
	assert.Nil(t, node)
	assert.Equal(t, 1, c.Len())
}

func TestComposite_RemoveFallsThrough(t *testing.T) {
	c := NewComposite("root")
	require.NoError(t, c.Add("a", NewMap(map[string]any{"k": "a"})))
	require.NoError(t, c.Add("b", NewMap(map[string]any{"k": "b"})))

	_, ok := c.Remove("a")
	require.True(t, ok)
	assert.Equal(t, "b", c.GetStringOr("k", ""))
}

func TestComposite_Replace(t *testing.T) {
	c := NewComposite("root")
	require.NoError(t, c.Add("a", NewMap(map[string]any{"x": "1", "y": "2"})))
	require.NoError(t, c.Add("b", Empty()))

	var events []Event
	c.AddListener(ListenerFunc(func(ev Event) { events = append(events, ev) }))

	require.NoError(t, c.Replace("a", NewMap(map[string]any{"x": "1", "y": "3", "z": "4"})))

	assert.Equal(t, []string{"a", "b"}, c.Names())
	assert.Equal(t, "3", c.GetStringOr("y", ""))
	require.Len(t, events, 1)
	assert.Equal(t, EventUpdated, events[0].Kind)
	assert.Equal(t, "a", events[0].Name)
	assert.Equal(t, []string{"y", "z"}, events[0].Keys.Keys())

	// Replace of an absent name appends.
	require.NoError(t, c.Replace("c", NewMap(map[string]any{"w": 1})))
	assert.Equal(t, []string{"a", "b", "c"}, c.Names())
	assert.Equal(t, EventAdded, events[len(events)-1].Kind)
}

func TestComposite_ConcurrentReplaceOfAbsentName(t *testing.T) {
	for range 50 {
		c := NewComposite("root")

		var (
			wg   sync.WaitGroup
			errs atomic.Int64
		)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := c.Replace("fresh", NewMap(map[string]any{"n": i})); err != nil {
					errs.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Zero(t, errs.Load())
		assert.Equal(t, []string{"fresh"}, c.Names())
	}
}

func TestComposite_ReplaceIdenticalIsSilent(t *testing.T) {
	c := NewComposite("root")
	require.NoError(t, c.Add("a", NewMap(map[string]any{"x": "1"})))

	var count int
	c.AddListener(ListenerFunc(func(Event) { count++ }))
	require.NoError(t, c.Replace("a", NewMap(map[string]any{"x": "1"})))
	assert.Zero(t, count)
}

func TestComposite_ReplaceAtomicForReaders(t *testing.T) {
	c := NewComposite("root")
	oldNode := NewMap(map[string]any{"a": "old", "b": "old"})
	newNode := NewMap(map[string]any{"a": "new", "b": "new"})
	require.NoError(t, c.Add("layer", oldNode))

	var (
		wg   sync.WaitGroup
		torn atomic.Int64
		stop atomic.Bool
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				node, _ := c.Node("layer")
				a, _ := node.Raw("a")
				b, _ := node.Raw("b")
				if a != b {
					torn.Add(1)
				}
			}
		}()
	}

	for i := range 200 {
		next := newNode
		if i%2 == 1 {
			next = oldNode
		}
		require.NoError(t, c.Replace("layer", next))
	}
	stop.Store(true)
	wg.Wait()

	assert.Zero(t, torn.Load())
}

func TestComposite_EventsObservePostMutationState(t *testing.T) {
	c := NewComposite("root")
	var seen []string
	c.AddListener(ListenerFunc(func(ev Event) {
		seen = append(seen, fmt.Sprintf("%s:%s:%v", ev.Kind, ev.Name, c.ContainsKey("k")))
	}))

	require.NoError(t, c.Add("a", NewMap(map[string]any{"k": 1})))
	_, _ = c.Remove("a")

	assert.Equal(t, []string{"added:a:true", "removed:a:false"}, seen)
}

func TestComposite_PropagatesSettableChanges(t *testing.T) {
	c := NewComposite("root")
	runtime := NewSettable()
	require.NoError(t, c.Add("runtime", runtime))
	require.NoError(t, c.Add("base", NewMap(map[string]any{"k": "base"})))

	var got []Event
	c.AddListener(ListenerFunc(func(ev Event) { got = append(got, ev) }))

	runtime.SetProperty("k", "override")
	require.Len(t, got, 1)
	assert.Equal(t, EventUpdated, got[0].Kind)
	assert.Equal(t, "runtime", got[0].Name)
	assert.True(t, got[0].Keys.Has("k"))
	assert.Equal(t, "override", c.GetStringOr("k", ""))

	runtime.ClearProperty("k")
	assert.Equal(t, "base", c.GetStringOr("k", ""))
	assert.Len(t, got, 2)

	// Detached layers stop propagating.
	_, _ = c.Remove("runtime")
	before := len(got)
	runtime.SetProperty("k", "ignored")
	assert.Len(t, got, before)
}

func TestComposite_NestedPropagation(t *testing.T) {
	root := NewComposite("root")
	app := NewComposite("application")
	require.NoError(t, root.Add("application", app))

	var got []Event
	root.AddListener(ListenerFunc(func(ev Event) { got = append(got, ev) }))

	require.NoError(t, app.Add("app-prod", NewMap(map[string]any{"db.host": "prod"})))
	require.Len(t, got, 1)
	assert.Equal(t, EventUpdated, got[0].Kind)
	assert.Equal(t, "application", got[0].Name)
	assert.True(t, got[0].Keys.Has("db.host"))
	assert.Equal(t, "prod", root.GetStringOr("db.host", ""))
}

func TestComposite_Keys(t *testing.T) {
	c := NewComposite("root")
	require.NoError(t, c.Add("a", NewMap(map[string]any{"z": 1, "m": 1})))
	require.NoError(t, c.Add("b", NewMap(map[string]any{"a": 1, "m": 2})))

	if diff := cmp.Diff([]string{"m", "z", "a"}, c.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, c.IsEmpty())
	assert.True(t, NewComposite("empty").IsEmpty())
}

func TestComposite_Interpolation(t *testing.T) {
	c := NewComposite("root")
	require.NoError(t, c.Add("top", NewMap(map[string]any{
		"env":  "prod",
		"dup":  "${env}-${env}",
		"url":  "http://${host}:${port}/${env}",
		"host": "localhost",
	})))
	require.NoError(t, c.Add("bottom", NewMap(map[string]any{
		"port":    8080,
		"host":    "shadowed",
		"unknown": "${nope}",
		"a":       "${b}",
		"b":       "${a}",
	})))

	assert.Equal(t, "prod-prod", c.GetStringOr("dup", ""))
	assert.Equal(t, "http://localhost:8080/prod", c.GetStringOr("url", ""))
	assert.Equal(t, "${nope}", c.GetStringOr("unknown", ""))

	_, err := c.GetString("a")
	require.ErrorIs(t, err, ErrInterpolationCycle)
	var cyc *InterpolationCycleError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"a", "b", "a"}, cyc.Chain)
}

type recordingListener struct {
	NopListener
	updates []KeySet
	errs    []error
}

func (r *recordingListener) OnUpdated(_ Node, keys KeySet) { r.updates = append(r.updates, keys) }
func (r *recordingListener) OnError(err error, _ Node) { r.errs = append(r.errs, err) }

func TestComposite_ListenerPanicIsolated(t *testing.T) {
	c := NewComposite("root")
	s := NewSettable()
	require.NoError(t, c.Add("s", s))

	rec := &recordingListener{}
	c.AddListener(ListenerFunc(func(ev Event) {
		if ev.Kind == EventUpdated {
			panic("boom")
		}
	}))
	c.AddListener(rec)

	s.SetProperty("k", "v")

	assert.Equal(t, "v", c.GetStringOr("k", ""))
	require.Len(t, rec.updates, 1)
	require.Len(t, rec.errs, 1)
	var pe *ListenerPanicError
	require.True(t, errors.As(rec.errs[0], &pe))
	assert.Equal(t, "boom", pe.Value)
}
