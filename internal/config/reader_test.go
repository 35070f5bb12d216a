package config

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_TypedGetters(t *testing.T) {
	m := NewMapBuilder().
		Put("s", "hello").
		Put("i", "42").
		Put("i64", int64(1)<<40).
		Put("f", "2.5").
		Put("b", "yes").
		Put("d", "1500ms").
		Put("dms", 250).
		Put("list", "a, b,,c").
		Put("yamlList", []any{"x", 1}).
		Build()

	s, err := m.GetString("s")
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	i, err := m.GetInt("i")
	require.NoError(t, err)
	assert.Equal(t, 42, i)

	i64, err := m.GetInt64("i64")
	require.NoError(t, err)
	assert.Equal(t, int64(1)<<40, i64)

	f, err := m.GetFloat64("f")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, f, 0.0001)

	b, err := m.GetBool("b")
	require.NoError(t, err)
	assert.True(t, b)

	d, err := m.GetDuration("d")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)
	assert.Equal(t, 250*time.Millisecond, m.GetDurationOr("dms", 0))

	list, err := m.GetStringSlice("list")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, list)
	assert.Equal(t, []string{"x", "1"}, m.GetStringSliceOr("yamlList", nil))
}

func TestReader_OrDefaults(t *testing.T) {
	m := NewMap(map[string]any{"bad": "x"})

	assert.Equal(t, "d", m.GetStringOr("missing", "d"))
	assert.Equal(t, 3, m.GetIntOr("bad", 3))
	assert.Equal(t, int64(4), m.GetInt64Or("missing", 4))
	assert.InDelta(t, 1.5, m.GetFloat64Or("bad", 1.5), 0.0001)
	assert.False(t, m.GetBoolOr("bad", false))
	assert.Equal(t, time.Second, m.GetDurationOr("bad", time.Second))
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		fn      func() (any, error)
		want    any
		wantErr bool
	}{
		{"int from float", func() (any, error) { return ToInt(3.0) }, 3, false},
		{"int from fraction", func() (any, error) { return ToInt(3.5) }, 0, true},
		{"int trims", func() (any, error) { return ToInt(" 7 ") }, 7, false},
		{"bool off", func() (any, error) { return ToBool("off") }, false, false},
		{"bool bad", func() (any, error) { return ToBool("maybe") }, false, true},
		{"float from int", func() (any, error) { return ToFloat64(2) }, 2.0, false},
		{"float from uint8", func() (any, error) { return ToFloat64(uint8(4)) }, 4.0, false},
		{"float from int16", func() (any, error) { return ToFloat64(int16(-3)) }, -3.0, false},
		{"float from uint", func() (any, error) { return ToFloat64(uint(9)) }, 9.0, false},
		{"int64 from uint", func() (any, error) { return ToInt64(uint(12)) }, int64(12), false},
		{"int64 from huge uint", func() (any, error) { return ToInt64(^uint(0)) }, int64(0), true},
		{"int64 from 2^63 float", func() (any, error) { return ToInt64(float64(math.MaxInt64)) }, int64(0), true},
		{"string from bool", func() (any, error) { return ToString(true) }, "true", false},
		{"string from map", func() (any, error) { return ToString(map[string]any{}) }, "", true},
		{"duration", func() (any, error) { return ToDuration("2m") }, 2 * time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrTypeCoercion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"name", "id"}, Placeholders("prefix.${name}.${id}.${name}"))
	assert.Nil(t, Placeholders("plain"))
	assert.Nil(t, Placeholders("broken ${open"))
}

func TestInterpolate(t *testing.T) {
	scope := NewMap(map[string]any{"a": "x", "b": "${a}${a}", "self": "${self}"})

	got, err := Interpolate(scope, "${a}-${a}")
	require.NoError(t, err)
	assert.Equal(t, "x-x", got)

	got, err = Interpolate(scope, "[${b}]")
	require.NoError(t, err)
	assert.Equal(t, "[xx]", got)

	_, err = Interpolate(scope, "${self}")
	assert.ErrorIs(t, err, ErrInterpolationCycle)

	_, refs, err := NewReader(scope).Resolve("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a"}, refs)

	resolved, refs, err := NewReader(NewMap(map[string]any{"url": "http://${host}"})).Resolve("url")
	require.NoError(t, err)
	assert.Equal(t, "http://${host}", resolved)
	assert.Equal(t, []string{"host"}, refs)
}
