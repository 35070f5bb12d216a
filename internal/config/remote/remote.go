// Package remote mirrors a NATS JetStream key-value bucket into a
// configuration layer.
//
// A KVSource watches every key of a bucket, or the keys beneath a prefix,
// and applies each entry to a config.Settable: puts set the property,
// deletes and purges clear it. Values are stored as strings and coerced on
// read like any other layer.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/dshills/strata/internal/config"
)

// ErrStopped is returned when starting a source that has been stopped.
var ErrStopped = errors.New("kv source stopped")

// Watchable is the part of jetstream.KeyValue a KVSource needs.
type Watchable interface {
	Watch(ctx context.Context, keys string, opts ...jetstream.WatchOpt) (jetstream.KeyWatcher, error)
}

// KVSource mirrors bucket entries into a Settable.
type KVSource struct {
	kv     Watchable
	target *config.Settable
	prefix string
	logger *slog.Logger

	mu      sync.Mutex
	watcher jetstream.KeyWatcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool

	ready     chan struct{}
	readyOnce sync.Once
}

// Option configures a KVSource.
type Option func(*KVSource)

// WithPrefix limits the source to keys beneath prefix. The prefix is
// removed from the configuration keys.
func WithPrefix(prefix string) Option {
	return func(s *KVSource) {
		s.prefix = strings.TrimSuffix(prefix, ".")
	}
}

// WithLogger sets the source logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *KVSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewKVSource returns a source mirroring kv into target.
func NewKVSource(kv Watchable, target *config.Settable, opts ...Option) *KVSource {
	s := &KVSource{
		kv:     kv,
		target: target,
		logger: slog.Default(),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "remote", "prefix", s.prefix)
	return s
}

// Pattern returns the KV subject filter the source watches.
func (s *KVSource) Pattern() string {
	if s.prefix == "" {
		return ">"
	}
	return s.prefix + ".>"
}

// ConfigKey translates a KV key to a configuration key. The prefix is
// removed and '/' separators become '.'. Returns "" for keys outside the
// prefix.
func (s *KVSource) ConfigKey(kvKey string) string {
	key := kvKey
	if s.prefix != "" {
		rest, ok := strings.CutPrefix(kvKey, s.prefix+".")
		if !ok {
			return ""
		}
		key = rest
	}
	return strings.ReplaceAll(key, "/", ".")
}

// Start begins watching. Existing entries are applied as one batch, after
// which Ready is closed; later entries are applied as they arrive.
// Watching ends when ctx is cancelled or Stop is called.
func (s *KVSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	w, err := s.kv.Watch(ctx, s.Pattern())
	if err != nil {
		cancel()
		return fmt.Errorf("watch %s: %w", s.Pattern(), err)
	}
	s.watcher = w
	s.cancel = cancel
	s.started = true

	s.wg.Add(1)
	go s.run(ctx, w)
	return nil
}

// Ready is closed once the initial entries have been applied.
func (s *KVSource) Ready() <-chan struct{} {
	return s.ready
}

// WaitReady blocks until the initial entries are applied or ctx is done.
func (s *KVSource) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends watching and waits for the mirror goroutine to exit. Values
// already applied stay in the target.
func (s *KVSource) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	w, cancel := s.watcher, s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if w != nil {
		if err := w.Stop(); err != nil {
			s.logger.Debug("stopping kv watcher", "error", err)
		}
	}
	s.wg.Wait()
}

func (s *KVSource) run(ctx context.Context, w jetstream.KeyWatcher) {
	defer s.wg.Done()

	initial := make(map[string]any)
	syncing := true
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-w.Updates():
			if !ok {
				return
			}
			if entry == nil {
				// A nil entry marks the end of the initial values.
				if syncing {
					s.applyInitial(initial)
					syncing = false
					initial = nil
				}
				continue
			}
			if syncing {
				s.collect(initial, entry)
				continue
			}
			s.apply(entry)
		}
	}
}

func (s *KVSource) collect(initial map[string]any, entry jetstream.KeyValueEntry) {
	key := s.ConfigKey(entry.Key())
	if key == "" {
		return
	}
	if entry.Operation() == jetstream.KeyValuePut {
		initial[key] = string(entry.Value())
	} else {
		delete(initial, key)
	}
}

// applyInitial replaces the target contents with the initial entries.
func (s *KVSource) applyInitial(initial map[string]any) {
	var stale []string
	for _, key := range s.target.Keys() {
		if _, ok := initial[key]; !ok {
			stale = append(stale, key)
		}
	}
	if len(initial) > 0 {
		s.target.SetProperties(initial)
	}
	for _, key := range stale {
		s.target.ClearProperty(key)
	}
	s.logger.Debug("remote layer synced", "keys", len(initial), "cleared", len(stale))
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *KVSource) apply(entry jetstream.KeyValueEntry) {
	key := s.ConfigKey(entry.Key())
	if key == "" {
		return
	}
	switch entry.Operation() {
	case jetstream.KeyValuePut:
		s.target.SetProperty(key, string(entry.Value()))
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		s.target.ClearProperty(key)
	}
	s.logger.Debug("remote entry applied", "key", key, "op", entry.Operation().String(), "revision", entry.Revision())
}

// Connect dials url and returns the named bucket, creating it when it does
// not exist. The returned function closes the connection.
func Connect(ctx context.Context, url, bucket string, opts ...nats.Option) (jetstream.KeyValue, func(), error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "strata configuration",
			History:     5,
		})
	}
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("bucket %s: %w", bucket, err)
	}
	return kv, nc.Close, nil
}
