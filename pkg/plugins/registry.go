package plugins

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/capload/pkg/capability"
	"github.com/platinummonkey/capload/pkg/loader"
	"github.com/platinummonkey/capload/pkg/observability"
	"github.com/platinummonkey/capload/pkg/typedef"
)

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger. Debug level reports skipped entries and types,
// trace level reports every decoded type.
func WithLogger(log *logrus.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithParallelism processes up to n units at once. The default of 1 loads
// units strictly one after another.
func WithParallelism(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithInstantiator sets how pluggable types are constructed
func WithInstantiator(inst *Instantiator) Option {
	return func(r *Registry) {
		if inst != nil {
			r.instantiator = inst
		}
	}
}

// WithMatcher sets the matcher used by PluggablesMatching
func WithMatcher(m *capability.Matcher) Option {
	return func(r *Registry) {
		if m != nil {
			r.matcher = m
		}
	}
}

// WithMetrics records discovery metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithIndex shares an archive entry index between load cycles and registries
func WithIndex(idx *loader.Index) Option {
	return func(r *Registry) {
		if idx != nil {
			r.index = idx
		}
	}
}

// WithParent makes host types visible to plugin archives. Names the parent
// resolves are never read from archives.
func WithParent(p loader.Resolver) Option {
	return func(r *Registry) { r.parent = p }
}

// Registry discovers plugin archives, loads them through one shared loading
// context and keeps the created instances until the next load or Close.
type Registry struct {
	log          *logrus.Logger
	metrics      *observability.Metrics
	parallelism  int
	instantiator *Instantiator
	matcher      *capability.Matcher
	index        *loader.Index
	parent       loader.Resolver

	mu         sync.RWMutex
	ctx        *loader.Context
	units      []*Unit
	generation string
	loadedAt   time.Time
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		parallelism:  1,
		instantiator: NewInstantiator(),
		matcher:      capability.NewMatcher(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logrus.New()
	}
	if r.index == nil {
		r.index = loader.NewIndex(loader.DefaultIndexSize, loader.DefaultIndexTTL)
	}
	return r
}

// LoadPlugins discovers archives under paths and loads them. Directories are
// expanded recursively in name order; symbolic links to directories are not
// followed. Calling it without paths is a no-op that keeps the current state.
//
// Failures of single archives, entries or types are logged and never fail the
// load. The returned error is ErrNoFilter, or the context error if ctx ends
// before every unit was processed.
func (r *Registry) LoadPlugins(ctx context.Context, filter Filter, paths ...string) (err error) {
	if filter == nil {
		return ErrNoFilter
	}
	if len(paths) == 0 {
		return nil
	}

	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "capload.LoadPlugins", "paths", strconv.Itoa(len(paths)))
	defer func() { observability.EndSpan(span, err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeLocked()

	generation := uuid.NewString()
	log := r.log.WithField("generation", generation)

	units := r.discover(log, filter, paths)
	archives := make([]string, len(units))
	for i, u := range units {
		archives[i] = u.Path()
	}

	opts := []loader.Option{loader.WithLogger(r.log), loader.WithIndex(r.index)}
	if r.parent != nil {
		opts = append(opts, loader.WithParent(r.parent))
	}
	if ts, ok := filter.(TypeSuffixer); ok {
		opts = append(opts, loader.WithTypeSuffix(ts.TypeSuffix()))
	}

	r.ctx = loader.New(archives, opts...)
	r.units = units
	r.generation = generation
	r.loadedAt = time.Now()

	err = r.process(ctx, filter)

	pluggables := 0
	for _, u := range units {
		pluggables += len(u.instances)
	}
	r.metrics.LoadFinished(time.Since(start), pluggables)

	log.WithFields(logrus.Fields{
		"units":      len(units),
		"pluggables": pluggables,
		"duration":   time.Since(start),
	}).Info("Loaded plugins")

	return err
}

// discover expands paths into one unit per accepted archive, in discovery
// order and without duplicates
func (r *Registry) discover(log *logrus.Entry, filter Filter, paths []string) []*Unit {
	units := make([]*Unit, 0)
	seen := make(map[string]bool)

	accept := func(path string) {
		key := cleanPath(path)
		if seen[key] {
			return
		}
		seen[key] = true

		if !filter.AcceptPlugin(path) {
			r.metrics.UnitSeen(false)
			log.WithField("path", path).Debug("Rejected plugin file")
			return
		}
		r.metrics.UnitSeen(true)

		u := NewUnit(path, r.log)
		u.metrics = r.metrics
		units = append(units, u)
	}

	for _, root := range paths {
		err := filepath.WalkDir(walkRoot(root), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.WithField("path", path).WithError(err).Warn("Failed to read plugin path")
				return nil
			}
			if !d.IsDir() {
				accept(path)
			}
			return nil
		})
		if err != nil {
			log.WithField("path", root).WithError(err).Warn("Failed to expand plugin path")
		}
	}

	return units
}

// walkRoot makes WalkDir descend into a root that is a symbolic link to a
// directory. Links below the root are still not followed.
func walkRoot(root string) string {
	info, err := os.Lstat(root)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return root
	}
	if target, err := os.Stat(root); err == nil && target.IsDir() {
		return root + string(filepath.Separator)
	}
	return root
}

func (r *Registry) process(ctx context.Context, filter Filter) error {
	if r.parallelism <= 1 {
		for _, u := range r.units {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("plugin load interrupted: %w", err)
			}
			r.processUnit(ctx, u, filter)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, u := range r.units {
		u := u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.processUnit(gctx, u, filter)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("plugin load interrupted: %w", err)
	}
	return nil
}

// processUnit drives one unit through bind, load and instantiate. It only
// writes to u.
func (r *Registry) processUnit(ctx context.Context, u *Unit, filter Filter) {
	_, span := observability.StartSpan(ctx, "capload.Unit", "path", u.Path())

	u.Bind(r.ctx)
	err := u.LoadTypes(filter)
	if err != nil {
		u.log.WithError(err).Warn("Failed to load plugin unit")
	}
	u.Instantiate(r.instantiator)

	span.SetAttributes(
		attribute.Int("types", len(u.Types())),
		attribute.Int("pluggables", len(u.Pluggables())),
	)
	observability.EndSpan(span, err)
}

// Pluggables returns the values of every plugged unit, in unit order
func (r *Registry) Pluggables() []any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]any, 0)
	for _, u := range r.units {
		out = append(out, u.Pluggables()...)
	}
	return out
}

// PluggablesMatching returns the values whose type declares an interface
// structurally matching c, in unit order
func (r *Registry) PluggablesMatching(c *typedef.Type) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]any, 0)
	for _, u := range r.units {
		out = append(out, u.PluggablesMatching(c, r.matcher)...)
	}
	return out
}

// Units returns the units of the current load cycle in discovery order
func (r *Registry) Units() []*Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Unit(nil), r.units...)
}

// IsLoaded reports whether a load cycle has produced a unit list and a
// shared loading context. A load that found no archives is still loaded.
func (r *Registry) IsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.units != nil && r.ctx != nil
}

// Generation returns the ID of the current load cycle, or "" before the first
func (r *Registry) Generation() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// LoadedAt returns when the current load cycle started
func (r *Registry) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}

// Context returns the shared loading context of the current cycle
func (r *Registry) Context() *loader.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ctx
}

// Unload always fails with ErrUnloadUnsupported. Use Close to release the
// shared loading context.
func (r *Registry) Unload() error {
	return ErrUnloadUnsupported
}

// Close releases the shared loading context and forgets every unit. The
// registry can be loaded again afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Registry) closeLocked() error {
	var err error
	if r.ctx != nil {
		if err = r.ctx.Close(); err != nil {
			r.log.WithError(err).Warn("Failed to close loading context")
		}
	}
	r.ctx = nil
	r.units = nil
	r.generation = ""
	r.loadedAt = time.Time{}
	return err
}

func cleanPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
