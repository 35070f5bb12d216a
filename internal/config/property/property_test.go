package property

import (
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/strata/internal/config"
)

type port int

func newRoot(t *testing.T) (*config.Composite, *config.Settable) {
	t.Helper()
	root := config.NewComposite("root")
	runtime := config.NewSettable()
	require.NoError(t, root.Add("runtime", runtime))
	require.NoError(t, root.Add("defaults", config.NewMap(map[string]any{
		"server.port": "8080",
		"server.host": "localhost",
		"server.url":  "http://${server.host}:${server.port}",
	})))
	return root, runtime
}

func countingDecoders(count *atomic.Int32) *Decoders {
	d := NewDecoders()
	Register(d, func(raw any) (port, error) {
		count.Add(1)
		n, err := config.ToInt(raw)
		return port(n), err
	})
	return d
}

func TestProperty_CachesUntilInvalidated(t *testing.T) {
	root, runtime := newRoot(t)
	var decodes atomic.Int32
	f := NewFactory(root, WithDecoders(countingDecoders(&decodes)))
	defer f.Close()

	p := Get[port](f, "server.port", 0)
	assert.Equal(t, port(8080), p.Get())
	assert.Equal(t, port(8080), p.Get())
	assert.Equal(t, int32(1), decodes.Load())

	// Unrelated keys do not invalidate.
	runtime.SetProperty("server.host", "example.com")
	assert.Equal(t, port(8080), p.Get())
	assert.Equal(t, int32(1), decodes.Load())

	// Invalidation is lazy.
	runtime.SetProperty("server.port", "9090")
	assert.Equal(t, int32(1), decodes.Load())
	assert.Equal(t, port(9090), p.Get())
	assert.Equal(t, int32(2), decodes.Load())
}

func TestProperty_SharedCell(t *testing.T) {
	root, _ := newRoot(t)
	var decodes atomic.Int32
	f := NewFactory(root, WithDecoders(countingDecoders(&decodes)))
	defer f.Close()

	a := Get[port](f, "server.port", 1)
	b := Get[port](f, "server.port", 2)
	assert.Equal(t, a.Get(), b.Get())
	assert.Equal(t, int32(1), decodes.Load())

	missingA := Get[port](f, "missing", 1)
	missingB := Get[port](f, "missing", 2)
	assert.Equal(t, port(1), missingA.Get())
	assert.Equal(t, port(2), missingB.Get())
}

func TestProperty_SetThenClearUsesDefault(t *testing.T) {
	root, runtime := newRoot(t)
	f := NewFactory(root)
	defer f.Close()

	p := Get(f, "feature.enabled", false)
	assert.False(t, p.Get())
	assert.False(t, p.IsSet())

	runtime.SetProperty("feature.enabled", "true")
	assert.True(t, p.Get())
	assert.True(t, p.IsSet())

	runtime.ClearProperty("feature.enabled")
	assert.False(t, p.Get())

	_, err := p.Require()
	assert.ErrorIs(t, err, config.ErrKeyNotFound)
}

func TestProperty_DecodeFailureKeepsLastGood(t *testing.T) {
	root, runtime := newRoot(t)
	f := NewFactory(root)
	defer f.Close()

	p := Get(f, "server.port", 0)
	assert.Equal(t, 8080, p.Get())
	require.NoError(t, p.Err())

	runtime.SetProperty("server.port", "not-a-number")
	v, err := p.Value()
	assert.Equal(t, 8080, v)
	require.ErrorIs(t, err, config.ErrDecode)

	var de *config.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "server.port", de.Key)
	assert.Equal(t, "int", de.Type)

	runtime.SetProperty("server.port", "7070")
	v, err = p.Value()
	require.NoError(t, err)
	assert.Equal(t, 7070, v)
}

func TestProperty_InterpolatedReferences(t *testing.T) {
	root, runtime := newRoot(t)
	f := NewFactory(root)
	defer f.Close()

	url := Get(f, "server.url", "")
	assert.Equal(t, "http://localhost:8080", url.Get())

	runtime.SetProperty("server.host", "example.com")
	assert.Equal(t, "http://example.com:8080", url.Get())
}

func TestProperty_ReferenceDefinedLater(t *testing.T) {
	root := config.NewComposite("root")
	runtime := config.NewSettable()
	require.NoError(t, root.Add("runtime", runtime))
	require.NoError(t, root.Add("defaults", config.NewMap(map[string]any{"url": "http://${host}"})))
	f := NewFactory(root)
	defer f.Close()

	url := Get(f, "url", "")
	assert.Equal(t, "http://${host}", url.Get())

	runtime.SetProperty("host", "example.com")
	assert.Equal(t, "http://example.com", url.Get())
	assert.Equal(t, root.GetStringOr("url", ""), url.Get())
}

func TestProperty_OnChange(t *testing.T) {
	root, runtime := newRoot(t)
	f := NewFactory(root)
	defer f.Close()

	p := Get(f, "client.timeout", 5*time.Second)
	var seen []time.Duration
	stop := p.OnChange(func(d time.Duration) { seen = append(seen, d) })

	runtime.SetProperty("client.timeout", "10s")
	runtime.SetProperty("client.timeout", "10000") // same value in milliseconds
	runtime.ClearProperty("client.timeout")
	stop()
	runtime.SetProperty("client.timeout", "1s")

	assert.Equal(t, []time.Duration{10 * time.Second, 5 * time.Second}, seen)
}

func TestProperty_NestedLayerInvalidates(t *testing.T) {
	root, _ := newRoot(t)
	app := config.NewComposite("application")
	require.NoError(t, root.AddFirst("application", app))
	f := NewFactory(root)
	defer f.Close()

	p := Get(f, "server.host", "")
	assert.Equal(t, "localhost", p.Get())

	require.NoError(t, app.Add("app-prod", config.NewMap(map[string]any{"server.host": "prod"})))
	assert.Equal(t, "prod", p.Get())
}

func TestFactory_Close(t *testing.T) {
	root, runtime := newRoot(t)
	f := NewFactory(root)

	p := Get(f, "server.host", "")
	assert.Equal(t, "localhost", p.Get())

	f.Close()
	runtime.SetProperty("server.host", "ignored")
	assert.Equal(t, "localhost", p.Get())
}

type countingObserver struct {
	resolved, hits, failed atomic.Int32
}

func (o *countingObserver) PropertyResolved(string)            { o.resolved.Add(1) }
func (o *countingObserver) PropertyCacheHit(string)            { o.hits.Add(1) }
func (o *countingObserver) PropertyDecodeFailed(string, error) { o.failed.Add(1) }

func TestFactory_Observer(t *testing.T) {
	root, runtime := newRoot(t)
	obs := &countingObserver{}
	f := NewFactory(root, WithObserver(obs))
	defer f.Close()

	p := Get(f, "server.port", 0)
	p.Get()
	p.Get()
	runtime.SetProperty("server.port", "x")
	p.Get()

	assert.Equal(t, int32(2), obs.resolved.Load())
	assert.Equal(t, int32(1), obs.hits.Load())
	assert.Equal(t, int32(1), obs.failed.Load())
}

// serviceConfig shows the handle-bundle form of a typed configuration
// interface: every accessor falls back to its default until set.
type serviceConfig struct {
	Name    *Property[string]
	Workers *Property[int]
	Tags    *Property[[]string]
}

func newServiceConfig(f *Factory) serviceConfig {
	return serviceConfig{
		Name:    Get(f, "service.name", "default"),
		Workers: Get(f, "service.workers", 4),
		Tags:    Get(f, "service.tags", []string{"base"}),
	}
}

func TestProperty_Bundle(t *testing.T) {
	root, runtime := newRoot(t)
	f := NewFactory(root)
	defer f.Close()

	cfg := newServiceConfig(f)
	assert.Equal(t, "default", cfg.Name.Get())
	assert.Equal(t, 4, cfg.Workers.Get())
	assert.Equal(t, []string{"base"}, cfg.Tags.Get())

	runtime.SetProperties(map[string]any{
		"service.name":    "api",
		"service.workers": strconv.Itoa(16),
		"service.tags":    "a,b",
	})
	assert.Equal(t, "api", cfg.Name.Get())
	assert.Equal(t, 16, cfg.Workers.Get())
	assert.Equal(t, []string{"a", "b"}, cfg.Tags.Get())

	runtime.Clear()
	assert.Equal(t, "default", cfg.Name.Get())
}
