package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dshills/strata/internal/config/cascade"
)

// IncludeKey is the top-level key whose value lists files to merge beneath
// the including file.
const IncludeKey = "@include"

// DefaultIncludeDepth limits nested includes.
const DefaultIncludeDepth = 8

// Resource is one loaded configuration resource.
type Resource struct {
	// Name is the logical resource name, such as "app-prod".
	Name string

	// Path is the file the values came from.
	Path string

	// Values holds the parsed contents.
	Values map[string]any
}

// Resources locates and loads named resources in search directories.
type Resources struct {
	fs           FileSystem
	dirs         []string
	formats      []Format
	includeDepth int
	logger       *slog.Logger
}

// ResourceOption configures Resources.
type ResourceOption func(*Resources)

// WithFS sets the file system. The default is the OS file system.
func WithFS(fsys FileSystem) ResourceOption {
	return func(r *Resources) {
		if fsys != nil {
			r.fs = fsys
		}
	}
}

// WithFormats sets the formats tried, in order.
func WithFormats(formats ...Format) ResourceOption {
	return func(r *Resources) {
		if len(formats) > 0 {
			r.formats = formats
		}
	}
}

// WithIncludeDepth sets the include nesting limit.
func WithIncludeDepth(depth int) ResourceOption {
	return func(r *Resources) { r.includeDepth = depth }
}

// WithLogger sets the loader logger.
func WithLogger(logger *slog.Logger) ResourceOption {
	return func(r *Resources) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResources returns a loader searching dirs in order.
func NewResources(dirs []string, opts ...ResourceOption) *Resources {
	r := &Resources{
		fs:           DefaultFS(),
		dirs:         slices.Clone(dirs),
		formats:      DefaultFormats(),
		includeDepth: DefaultIncludeDepth,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "loader")
	return r
}

// Dirs returns the search directories.
func (r *Resources) Dirs() []string {
	return slices.Clone(r.dirs)
}

// FormatFor returns the format handling path's extension.
func (r *Resources) FormatFor(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range r.formats {
		if slices.Contains(f.Extensions(), ext) {
			return f, true
		}
	}
	return nil, false
}

// Locate returns the file that Load would read for name. Directories are
// searched in order, and within a directory formats in order.
func (r *Resources) Locate(name string) (string, bool) {
	for _, dir := range r.dirs {
		for _, f := range r.formats {
			for _, ext := range f.Extensions() {
				path := filepath.Join(dir, name+ext)
				if info, err := r.fs.Stat(path); err == nil && !info.IsDir() {
					return path, true
				}
			}
		}
	}
	return "", false
}

// Load reads the resource called name. Returns nil, nil when no file exists.
func (r *Resources) Load(name string) (*Resource, error) {
	path, ok := r.Locate(name)
	if !ok {
		r.logger.Debug("resource not found", "name", name)
		return nil, nil
	}
	res, err := r.LoadFile(path)
	if err != nil || res == nil {
		return nil, err
	}
	res.Name = name
	return res, nil
}

// LoadFile reads the resource at path. The resource name is the file name
// without its extension. Returns nil, nil when the file does not exist.
func (r *Resources) LoadFile(path string) (*Resource, error) {
	values, err := r.loadWithIncludes(path, r.includeDepth)
	if err != nil {
		return nil, err
	}
	if values == nil {
		return nil, nil
	}
	base := filepath.Base(path)
	return &Resource{
		Name:   strings.TrimSuffix(base, filepath.Ext(base)),
		Path:   path,
		Values: values,
	}, nil
}

func (r *Resources) parseFile(path string) (map[string]any, error) {
	format, ok := r.FormatFor(path)
	if !ok {
		return nil, fmt.Errorf("no format for %s", path)
	}
	data, err := r.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil // File doesn't exist, not an error
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	values, err := format.Parse(data)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	if values == nil {
		values = make(map[string]any)
	}
	return values, nil
}

// loadWithIncludes loads a file and merges the files named by its @include
// key beneath it. maxDepth limits nesting to prevent include loops.
func (r *Resources) loadWithIncludes(path string, maxDepth int) (map[string]any, error) {
	if maxDepth <= 0 {
		return nil, fmt.Errorf("include depth exceeded for %s", path)
	}

	values, err := r.parseFile(path)
	if err != nil || values == nil {
		return nil, err
	}

	includes, hasIncludes := values[IncludeKey]
	if !hasIncludes {
		return values, nil
	}
	delete(values, IncludeKey)

	var includeList []string
	switch v := includes.(type) {
	case string:
		includeList = []string{v}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be string or array of strings", IncludeKey)
			}
			includeList = append(includeList, s)
		}
	case []string:
		includeList = v
	default:
		return nil, fmt.Errorf("%s must be string or array of strings, got %T", IncludeKey, includes)
	}

	// Included files sit beneath the including file.
	baseDir := filepath.Dir(path)
	merged := make(map[string]any)
	for _, inc := range includeList {
		incPath := inc
		if !filepath.IsAbs(inc) {
			incPath = filepath.Join(baseDir, inc)
		}
		incValues, err := r.loadWithIncludes(incPath, maxDepth-1)
		if err != nil {
			return nil, fmt.Errorf("loading include %s: %w", incPath, err)
		}
		merged = DeepMerge(merged, incValues)
	}
	return DeepMerge(merged, values), nil
}

// LoadCascaded expands base through resolver and loads every candidate that
// exists, most specific first.
func LoadCascaded(r *Resources, resolver *cascade.Resolver, base string, ctx cascade.Context) ([]Resource, error) {
	var out []Resource
	for _, name := range resolver.Resolve(base, ctx) {
		res, err := r.Load(name)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		if res == nil {
			continue
		}
		out = append(out, *res)
	}
	return out, nil
}
