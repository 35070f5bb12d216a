package property

import (
	"net/netip"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type level string

func TestDecoders(t *testing.T) {
	d := NewDecoders()

	tests := []struct {
		name string
		raw  any
		typ  reflect.Type
		want any
	}{
		{"string", 42, reflect.TypeFor[string](), "42"},
		{"int", "42", reflect.TypeFor[int](), 42},
		{"int32 kind", "7", reflect.TypeFor[int32](), int32(7)},
		{"uint16 kind", 9, reflect.TypeFor[uint16](), uint16(9)},
		{"named string", "debug", reflect.TypeFor[level](), level("debug")},
		{"float32", "1.5", reflect.TypeFor[float32](), float32(1.5)},
		{"duration", "2s", reflect.TypeFor[time.Duration](), 2 * time.Second},
		{"int slice", "1, 2,3", reflect.TypeFor[[]int](), []int{1, 2, 3}},
		{"text unmarshaler", "10.0.0.1", reflect.TypeFor[netip.Addr](), netip.MustParseAddr("10.0.0.1")},
		{"time", "2024-01-02T03:04:05Z", reflect.TypeFor[time.Time](), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Decode(tt.raw, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, d.Has(tt.typ))
		})
	}
}

func TestDecoders_Errors(t *testing.T) {
	d := NewDecoders()

	_, err := d.Decode("300", reflect.TypeFor[uint8]())
	assert.Error(t, err)

	_, err = d.Decode("x", reflect.TypeFor[[]int]())
	assert.Error(t, err)

	_, err = d.Decode("x", reflect.TypeFor[map[string]int]())
	assert.Error(t, err)
	assert.False(t, d.Has(reflect.TypeFor[map[string]int]()))

	_, err = DecodeAs[int](d, "nope")
	assert.Error(t, err)
}

func TestRegister_Overrides(t *testing.T) {
	d := NewDecoders()
	Register(d, func(raw any) (string, error) { return "custom", nil })

	got, err := DecodeAs[string](d, "anything")
	require.NoError(t, err)
	assert.Equal(t, "custom", got)
}
