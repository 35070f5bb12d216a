package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/strata/internal/config"
)

type fakeEntry struct {
	jetstream.KeyValueEntry
	key string
	val string
	op  jetstream.KeyValueOp
	rev uint64
}

func (e *fakeEntry) Key() string                     { return e.key }
func (e *fakeEntry) Value() []byte                   { return []byte(e.val) }
func (e *fakeEntry) Operation() jetstream.KeyValueOp { return e.op }
func (e *fakeEntry) Revision() uint64                { return e.rev }

type fakeWatcher struct {
	jetstream.KeyWatcher
	updates chan jetstream.KeyValueEntry
	once    sync.Once
}

func (w *fakeWatcher) Updates() <-chan jetstream.KeyValueEntry { return w.updates }

func (w *fakeWatcher) Stop() error {
	w.once.Do(func() { close(w.updates) })
	return nil
}

type fakeKV struct {
	watcher *fakeWatcher
	pattern string
	err     error
}

func (kv *fakeKV) Watch(_ context.Context, keys string, _ ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	kv.pattern = keys
	if kv.err != nil {
		return nil, kv.err
	}
	return kv.watcher, nil
}

func newFakeKV() *fakeKV {
	return &fakeKV{watcher: &fakeWatcher{updates: make(chan jetstream.KeyValueEntry, 16)}}
}

func put(key, val string) *fakeEntry {
	return &fakeEntry{key: key, val: val, op: jetstream.KeyValuePut}
}

func del(key string) *fakeEntry {
	return &fakeEntry{key: key, op: jetstream.KeyValueDelete}
}

func waitReady(t *testing.T, s *KVSource) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitReady(ctx))
}

func TestKVSource_ConfigKey(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"", "db.host", "db.host"},
		{"", "db/host", "db.host"},
		{"app", "app.db.host", "db.host"},
		{"app.", "app.db/port", "db.port"},
		{"app", "other.db.host", ""},
	}
	for _, tt := range tests {
		s := NewKVSource(newFakeKV(), config.NewSettable(), WithPrefix(tt.prefix))
		assert.Equal(t, tt.want, s.ConfigKey(tt.key), "prefix %q key %q", tt.prefix, tt.key)
	}

	assert.Equal(t, ">", NewKVSource(nil, nil).Pattern())
	assert.Equal(t, "app.>", NewKVSource(nil, nil, WithPrefix("app")).Pattern())
}

func TestKVSource_InitialSyncIsOneBatch(t *testing.T) {
	kv := newFakeKV()
	target := config.NewSettable()
	target.SetProperty("stale", "x")

	var events []config.Event
	target.AddListener(config.ListenerFunc(func(ev config.Event) { events = append(events, ev) }))

	s := NewKVSource(kv, target, WithPrefix("app"))
	kv.watcher.updates <- put("app.db.host", "kvhost")
	kv.watcher.updates <- put("app.db.port", "5432")
	kv.watcher.updates <- put("app.gone", "1")
	kv.watcher.updates <- del("app.gone")
	kv.watcher.updates <- put("other.key", "ignored")
	kv.watcher.updates <- nil

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	waitReady(t, s)

	assert.Equal(t, "app.>", kv.pattern)
	assert.Equal(t, map[string]any{"db.host": "kvhost", "db.port": "5432"}, target.Snapshot())
	require.Len(t, events, 2)
	assert.Equal(t, []string{"db.host", "db.port"}, events[0].Keys.Keys())
	assert.Equal(t, []string{"stale"}, events[1].Keys.Keys())
}

func TestKVSource_AppliesUpdates(t *testing.T) {
	kv := newFakeKV()
	target := config.NewSettable()
	root := config.NewComposite("root")
	require.NoError(t, root.Add("remote", target))
	require.NoError(t, root.Add("defaults", config.NewMap(map[string]any{"level": "info"})))

	s := NewKVSource(kv, target)
	kv.watcher.updates <- nil
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	waitReady(t, s)

	kv.watcher.updates <- put("level", "debug")
	require.Eventually(t, func() bool {
		v, _ := root.GetString("level")
		return v == "debug"
	}, time.Second, 5*time.Millisecond)

	kv.watcher.updates <- &fakeEntry{key: "level", op: jetstream.KeyValuePurge}
	require.Eventually(t, func() bool {
		v, _ := root.GetString("level")
		return v == "info"
	}, time.Second, 5*time.Millisecond)
}

func TestKVSource_Lifecycle(t *testing.T) {
	kv := newFakeKV()
	s := NewKVSource(kv, config.NewSettable())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()
	assert.ErrorIs(t, s.Start(context.Background()), ErrStopped)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.WaitReady(ctx), context.Canceled)
}

func TestKVSource_WatchError(t *testing.T) {
	kv := newFakeKV()
	kv.err = errors.New("no bucket")

	s := NewKVSource(kv, config.NewSettable())
	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "no bucket")
}
