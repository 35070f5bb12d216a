package layer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dshills/strata/internal/config"
	"github.com/dshills/strata/internal/config/binder"
	"github.com/dshills/strata/internal/config/cascade"
	"github.com/dshills/strata/internal/config/loader"
	"github.com/dshills/strata/internal/config/property"
	"github.com/dshills/strata/internal/config/registry"
	"github.com/dshills/strata/internal/config/watcher"
)

// ErrClosed is returned by operations on a closed Root.
var ErrClosed = errors.New("root closed")

// Root is the standard layered configuration root.
type Root struct {
	*config.Composite

	opts      Options
	resolver  *cascade.Resolver
	resources *loader.Resources

	runtime     *config.Settable
	remote      *config.Settable
	defaults    *config.Settable
	override    *config.Composite
	application *group
	libraries   *group

	factory *property.Factory
	binder  *binder.Binder

	mu      sync.Mutex
	watcher *watcher.Watcher
	closed  bool

	// Layer mutations waiting to be applied, and whether a goroutine is
	// applying them. Guarded by mu.
	pending  []func() error
	draining bool

	logger *slog.Logger
}

// group is a composite of cascaded resources together with the candidate
// names of every base loaded into it.
type group struct {
	node       *config.Composite
	bases      []string
	candidates map[string][]string
}

func newGroup(name string, logger *slog.Logger) *group {
	return &group{
		node:       config.NewComposite(name, config.WithLogger(logger)),
		candidates: make(map[string][]string),
	}
}

// order returns every known candidate in precedence order: bases in load
// order, and each base's candidates most specific first.
func (g *group) order() []string {
	var out []string
	for _, base := range g.bases {
		for _, c := range g.candidates[base] {
			if !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	return out
}

// owned reports whether any base other than except lists candidate.
func (g *group) owned(candidate, except string) bool {
	for base, cs := range g.candidates {
		if base != except && slices.Contains(cs, candidate) {
			return true
		}
	}
	return false
}

// position returns the index at which candidate belongs among the layers
// currently present.
func (g *group) position(candidate string) int {
	order := g.order()
	rank := slices.Index(order, candidate)
	pos := 0
	for _, name := range g.node.Names() {
		if i := slices.Index(order, name); i >= 0 && i < rank {
			pos++
		}
	}
	return pos
}

// RootOption configures a Root beyond its Options.
type RootOption func(*rootConfig)

type rootConfig struct {
	logger   *slog.Logger
	fs       loader.FileSystem
	formats  []loader.Format
	observer property.Observer
	decoders *property.Decoders
	registry *registry.Registry
}

// WithLogger sets the logger shared by the root's components.
func WithLogger(logger *slog.Logger) RootOption {
	return func(c *rootConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFS sets the file system resources are read from.
func WithFS(fsys loader.FileSystem) RootOption {
	return func(c *rootConfig) { c.fs = fsys }
}

// WithFormats sets the resource formats, in lookup order.
func WithFormats(formats ...loader.Format) RootOption {
	return func(c *rootConfig) { c.formats = formats }
}

// WithObserver sets the property observer, typically metrics.
func WithObserver(o property.Observer) RootOption {
	return func(c *rootConfig) { c.observer = o }
}

// WithDecoders sets the decoders shared by properties and the binder.
func WithDecoders(d *property.Decoders) RootOption {
	return func(c *rootConfig) { c.decoders = d }
}

// WithRegistry sets the registry the binder resolves named fields from.
func WithRegistry(r *registry.Registry) RootOption {
	return func(c *rootConfig) { c.registry = r }
}

// New validates opts and builds a Root. When opts.AppName is set the
// application resource is loaded before New returns.
func New(opts Options, ropts ...RootOption) (*Root, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	cfg := rootConfig{logger: slog.Default()}
	for _, opt := range ropts {
		opt(&cfg)
	}

	resolver, err := opts.resolver()
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	resOpts := []loader.ResourceOption{loader.WithLogger(logger)}
	if cfg.fs != nil {
		resOpts = append(resOpts, loader.WithFS(cfg.fs))
	}
	if len(cfg.formats) > 0 {
		resOpts = append(resOpts, loader.WithFormats(cfg.formats...))
	}

	r := &Root{
		Composite:   config.NewComposite("root", config.WithLogger(logger)),
		opts:        opts,
		resolver:    resolver,
		resources:   loader.NewResources(opts.Dirs, resOpts...),
		runtime:     config.NewSettable(),
		remote:      config.NewSettable(),
		defaults:    config.NewSettable(),
		override:    config.NewComposite(Override, config.WithLogger(logger)),
		application: newGroup(Application, logger),
		libraries:   newGroup(Libraries, logger),
		logger:      logger.With("component", "layer"),
	}

	env, err := loadEnvironment(opts)
	if err != nil {
		return nil, err
	}

	layers := []config.NamedNode{
		{Name: Runtime, Node: r.runtime},
		{Name: Remote, Node: r.remote},
		{Name: Override, Node: r.override},
		{Name: Environment, Node: env},
		{Name: Application, Node: r.application.node},
		{Name: Libraries, Node: r.libraries.node},
		{Name: Defaults, Node: r.defaults},
	}
	for _, l := range layers {
		if err := r.Add(l.Name, l.Node); err != nil {
			return nil, err
		}
	}

	popts := []property.Option{property.WithLogger(logger)}
	if cfg.observer != nil {
		popts = append(popts, property.WithObserver(cfg.observer))
	}
	if cfg.decoders != nil {
		popts = append(popts, property.WithDecoders(cfg.decoders))
	}
	r.factory = property.NewFactory(r.Composite, popts...)
	r.binder = binder.New(r.Composite,
		binder.WithFactory(r.factory),
		binder.WithRegistry(cfg.registry),
		binder.WithLogger(logger),
	)

	if opts.AppName != "" {
		if err := r.LoadApplication(opts.AppName); err != nil {
			r.factory.Close()
			return nil, err
		}
	}
	return r, nil
}

func loadEnvironment(opts Options) (config.Node, error) {
	if opts.EnvPrefix == "" && len(opts.EnvMapping) == 0 {
		return config.Empty(), nil
	}
	values, err := loader.NewEnvWithMapping(opts.EnvPrefix, opts.EnvMapping).Load()
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	if opts.EnvPrefix == "" {
		// Without a prefix only the explicit mappings are read.
		mapped := make(map[string]any, len(opts.EnvMapping))
		for _, key := range opts.EnvMapping {
			if v, ok := values[key]; ok {
				mapped[key] = v
			}
		}
		values = mapped
	}
	return config.NewMap(values), nil
}

// Options returns the options the root was built with, defaults applied.
func (r *Root) Options() Options {
	return r.opts
}

// Resolver returns the cascade resolver.
func (r *Root) Resolver() *cascade.Resolver {
	return r.resolver
}

// Resources returns the resource loader.
func (r *Root) Resources() *loader.Resources {
	return r.resources
}

// Runtime returns the highest precedence layer.
func (r *Root) Runtime() *config.Settable {
	return r.runtime
}

// Remote returns the layer mirrored from a remote store.
func (r *Root) Remote() *config.Settable {
	return r.remote
}

// Overrides returns the composite callers add override layers to.
func (r *Root) Overrides() *config.Composite {
	return r.override
}

// Application returns the composite of loaded application resources.
func (r *Root) Application() *config.Composite {
	return r.application.node
}

// Libraries returns the composite of loaded library resources.
func (r *Root) Libraries() *config.Composite {
	return r.libraries.node
}

// Defaults returns the lowest precedence layer.
func (r *Root) Defaults() *config.Settable {
	return r.defaults
}

// Properties returns the property factory reading the whole root.
func (r *Root) Properties() *property.Factory {
	return r.factory
}

// Binder returns a binder reading the whole root.
func (r *Root) Binder() *binder.Binder {
	return r.binder
}

// Candidates returns the cascade candidates for base under the current
// configuration, most specific first.
func (r *Root) Candidates(base string) []string {
	return r.resolver.Resolve(base, cascade.FromNode(r.Composite))
}

// LoadApplication loads the cascaded resources for name into the
// application layer. Loading a name again refreshes its resources.
func (r *Root) LoadApplication(name string) error {
	return r.loadGroup(r.application, name, true)
}

// LoadLibrary loads the cascaded resources for name into the libraries
// layer. Libraries loaded earlier take precedence over later ones, and a
// library that is already loaded is skipped.
func (r *Root) LoadLibrary(name string) error {
	return r.loadGroup(r.libraries, name, false)
}

// loadGroup plans the layer changes for base under r.mu and applies them
// through drain, so no lock is held while listeners run.
func (r *Root) loadGroup(g *group, base string, refresh bool) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if !refresh && slices.Contains(g.bases, base) {
		r.mu.Unlock()
		r.logger.Debug("library already loaded", "name", base)
		return nil
	}

	ctx := cascade.FromNode(r.Composite)
	candidates := r.resolver.Resolve(base, ctx)
	resources, err := loader.LoadCascaded(r.resources, r.resolver, base, ctx)
	if err != nil {
		r.mu.Unlock()
		return err
	}

	stale := g.candidates[base]
	g.candidates[base] = candidates
	if !slices.Contains(g.bases, base) {
		g.bases = append(g.bases, base)
	}
	// Candidates a changed cascade context no longer selects are dropped.
	for _, name := range stale {
		if !slices.Contains(candidates, name) && !g.owned(name, base) {
			r.enqueue(g.remover(name))
		}
	}
	loaded := make(map[string]bool, len(resources))
	for _, res := range resources {
		loaded[res.Name] = true
		r.enqueue(r.putter(g, res))
	}
	for _, name := range candidates {
		if !loaded[name] && !g.owned(name, base) {
			r.enqueue(g.remover(name))
		}
	}
	r.mu.Unlock()

	r.logger.Debug("resources loaded", "group", g.node.Name(), "base", base,
		"candidates", candidates, "loaded", len(resources))
	return r.drain()
}

// enqueue schedules a layer mutation. r.mu must be held.
func (r *Root) enqueue(op func() error) {
	r.pending = append(r.pending, op)
}

// drain applies pending mutations in order without holding r.mu, so
// listeners may call back into the root. A call made while another
// goroutine, or an enclosing call on this one, is draining returns at once;
// its mutations are applied by that drain before it returns.
func (r *Root) drain() error {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return nil
	}
	r.draining = true

	var errs []error
	for len(r.pending) > 0 {
		op := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()

		if err := op(); err != nil {
			r.logger.Warn("applying layer change failed", "error", err)
			errs = append(errs, err)
		}

		r.mu.Lock()
	}
	r.draining = false
	r.mu.Unlock()
	return errors.Join(errs...)
}

// remover returns a mutation removing the layer name from g.
func (g *group) remover(name string) func() error {
	return func() error {
		g.node.Remove(name)
		return nil
	}
}

// putter returns a mutation adding or replacing the layer for res in g.
func (r *Root) putter(g *group, res loader.Resource) func() error {
	return func() error {
		node := config.NewMap(res.Values)
		if _, ok := g.node.Node(res.Name); ok {
			return g.node.Replace(res.Name, node)
		}
		r.mu.Lock()
		pos := g.position(res.Name)
		r.mu.Unlock()
		return g.node.AddAt(pos, res.Name, node)
	}
}

// Reload re-reads the resource backed by path and swaps its layer. A
// resource whose file no longer exists anywhere in the search directories
// is removed. Paths that name no known candidate are ignored.
func (r *Root) Reload(path string) error {
	name := resourceName(path)
	if name == "" {
		return nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}

	var found bool
	for _, g := range []*group{r.application, r.libraries} {
		if !slices.Contains(g.order(), name) {
			continue
		}
		found = true
		if err := r.reloadName(g, name); err != nil {
			r.mu.Unlock()
			return errors.Join(err, r.drain())
		}
	}
	r.mu.Unlock()

	if !found {
		r.logger.Debug("ignoring change to unknown resource", "path", path)
		return nil
	}
	return r.drain()
}

// reloadName schedules the reload of name in g. r.mu must be held.
func (r *Root) reloadName(g *group, name string) error {
	res, err := r.resources.Load(name)
	if err != nil {
		return fmt.Errorf("reloading %s: %w", name, err)
	}
	if res == nil {
		r.logger.Debug("resource removed", "group", g.node.Name(), "name", name)
		r.enqueue(g.remover(name))
		return nil
	}
	r.logger.Debug("resource reloaded", "group", g.node.Name(), "name", name, "path", res.Path)
	r.enqueue(r.putter(g, *res))
	return nil
}

// resourceName returns the file name of path without its extension.
func resourceName(path string) string {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Watch starts reloading resources when files in the search directories
// change. Watching stops when ctx is cancelled or the root is closed.
// Calling Watch again while watching does nothing.
func (r *Root) Watch(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.watcher != nil {
		return nil
	}

	w := watcher.New(watcher.WithDebounce(r.opts.Debounce), watcher.WithLogger(r.logger))
	for _, dir := range r.opts.Dirs {
		if err := w.WatchDir(dir, ""); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	w.OnChange(func(e watcher.Event) {
		if err := r.Reload(e.Path); err != nil {
			r.logger.Warn("reload failed", "path", e.Path, "op", e.Op.String(), "error", err)
		}
	})
	if err := w.Start(ctx); err != nil {
		return err
	}
	r.watcher = w
	return nil
}

// Close stops watching and detaches the property factory. Layers remain
// readable.
func (r *Root) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	w := r.watcher
	r.watcher = nil
	r.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	r.factory.Close()
}
