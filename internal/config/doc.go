// Package config provides the layered configuration core for strata.
//
// The config package combines named configuration layers into a single
// view, resolves ${key} references between values, coerces raw values to
// typed results, and notifies listeners whenever a layer changes.
//
// # Architecture
//
// A Composite holds layers in precedence order. The first layer that
// defines a key supplies its value:
//
//	┌─────────────────────────────┐
//	│  runtime   (Settable)       │  ← Highest priority
//	├─────────────────────────────┤
//	│  remote    (Settable)       │
//	├─────────────────────────────┤
//	│  environment                │
//	├─────────────────────────────┤
//	│  application (Composite)    │  ← app-prod, app
//	├─────────────────────────────┤
//	│  libraries (Composite)      │
//	├─────────────────────────────┤
//	│  defaults  (Settable)       │  ← Lowest priority
//	└─────────────────────────────┘
//
// The standard arrangement above is built by the layer package; the types
// here impose no particular set of layers.
//
// # Nodes
//
//   - MapConfig: immutable flat map, built with NewMap or NewMapBuilder
//   - Settable: mutable map with immediate change notification
//   - Composite: ordered named layers, itself a Node
//   - PrefixedNode: read-only view of the keys beneath a prefix
//
// # Basic Usage
//
//	root := config.NewComposite("root")
//	overrides := config.NewSettable()
//	_ = root.Add("runtime", overrides)
//	_ = root.Add("app", config.NewMap(map[string]any{
//	    "server": map[string]any{"port": 8080},
//	}))
//
//	port, err := root.GetInt("server.port")
//	overrides.SetProperty("server.port", 9090) // listeners fire before return
//
// # Listening for Changes
//
//	sub := root.AddListener(config.ListenerFunc(func(ev config.Event) {
//	    log.Printf("%s %s %v", ev.Kind, ev.Name, ev.Keys)
//	}))
//	defer sub.Unsubscribe()
//
// Listeners run synchronously on the goroutine that made the change. A
// listener that panics is recovered and reported to the other listeners
// through OnError.
//
// # Thread Safety
//
// Reads never block. Mutations of a Composite or Settable are serialized
// and published as a new snapshot, so readers see either the old or the
// new state and never a partial one.
package config
