// Package metrics exports configuration activity as Prometheus metrics.
//
// A Metrics value is both a config.Listener, counting change events per
// layer, and a property.Observer, counting property resolutions, cache
// hits and decode failures.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/strata/internal/config"
	"github.com/dshills/strata/internal/config/property"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "strata"

// Metrics holds Prometheus metrics for a configuration root.
type Metrics struct {
	config.NopListener

	// Change events
	eventsTotal    *prometheus.CounterVec
	changedKeys    *prometheus.CounterVec
	listenerErrors prometheus.Counter
	unknownChanges prometheus.Counter

	// Properties
	resolutions    *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	decodeFailures *prometheus.CounterVec
}

var (
	_ config.Listener     = (*Metrics)(nil)
	_ config.EventHandler = (*Metrics)(nil)
	_ property.Observer   = (*Metrics)(nil)
)

// New creates the metrics and registers them on reg under namespace.
// An empty namespace uses DefaultNamespace.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if reg == nil {
		return nil, errors.New("metrics: nil registerer")
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "events_total",
			Help:      "Configuration change events by kind and layer",
		}, []string{"kind", "layer"}),
		changedKeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "changed_keys_total",
			Help:      "Keys reported changed by update events, by layer",
		}, []string{"layer"}),
		listenerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "listener_errors_total",
			Help:      "Error events delivered to listeners, including listener panics",
		}),
		unknownChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "unscoped_changes_total",
			Help:      "Update events whose changed keys were unknown",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "property",
			Name:      "resolutions_total",
			Help:      "Property values resolved from configuration, by key",
		}, []string{"key"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "property",
			Name:      "cache_hits_total",
			Help:      "Property reads served from the cached value, by key",
		}, []string{"key"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "property",
			Name:      "decode_failures_total",
			Help:      "Property values that failed to decode, by key",
		}, []string{"key"}),
	}

	for _, c := range []prometheus.Collector{
		m.eventsTotal, m.changedKeys, m.listenerErrors, m.unknownChanges,
		m.resolutions, m.cacheHits, m.decodeFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Attach subscribes m to obs.
func (m *Metrics) Attach(obs config.Observable) *config.Subscription {
	return obs.AddListener(m)
}

// HandleEvent implements config.EventHandler.
func (m *Metrics) HandleEvent(ev config.Event) {
	layer := ev.Name
	if layer == "" {
		layer = "-"
	}
	m.eventsTotal.WithLabelValues(ev.Kind.String(), layer).Inc()

	switch ev.Kind {
	case config.EventError:
		m.listenerErrors.Inc()
	case config.EventUpdated:
		if ev.Keys.Unknown() {
			m.unknownChanges.Inc()
			return
		}
		m.changedKeys.WithLabelValues(layer).Add(float64(ev.Keys.Len()))
	}
}

// PropertyResolved implements property.Observer.
func (m *Metrics) PropertyResolved(key string) {
	m.resolutions.WithLabelValues(key).Inc()
}

// PropertyCacheHit implements property.Observer.
func (m *Metrics) PropertyCacheHit(key string) {
	m.cacheHits.WithLabelValues(key).Inc()
}

// PropertyDecodeFailed implements property.Observer.
func (m *Metrics) PropertyDecodeFailed(key string, _ error) {
	m.decodeFailures.WithLabelValues(key).Inc()
}
