package loader

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/capload/pkg/archive"
	"github.com/platinummonkey/capload/pkg/typedef"
)

// DefaultTypeSuffix is the entry suffix of type descriptors
const DefaultTypeSuffix = ".type.yaml"

var (
	// ErrTypeNotFound is returned when no archive (and no parent) defines a name
	ErrTypeNotFound = errors.New("type not found")
	// ErrWrongName is returned when an entry defines a different type than requested
	ErrWrongName = errors.New("descriptor defines a different type")
	// ErrCircular is returned for interface declarations that refer back to themselves
	ErrCircular = errors.New("circular interface declaration")
	// ErrClosed is returned by a context that has been closed
	ErrClosed = errors.New("loading context closed")
)

// Resolver supplies types from outside the context, such as the host universe
type Resolver interface {
	Lookup(name string) (*typedef.Type, bool)
}

// Option configures a Context
type Option func(*Context)

// WithParent delegates lookups to r before searching the archives
func WithParent(r Resolver) Option {
	return func(c *Context) { c.parent = r }
}

// WithIndex shares an entry index cache between contexts
func WithIndex(idx *Index) Option {
	return func(c *Context) { c.index = idx }
}

// WithTypeSuffix changes the entry suffix used to resolve type names
func WithTypeSuffix(suffix string) Option {
	return func(c *Context) {
		if suffix != "" {
			c.suffix = suffix
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *logrus.Logger) Option {
	return func(c *Context) {
		if log != nil {
			c.log = log
		}
	}
}

type location struct {
	archive string
	entry   string
}

// Context is an isolated loading context spanning an ordered list of archives.
// It owns every type handle it creates for its whole lifetime. Loading is safe
// for concurrent use; each name is decoded at most once per context.
type Context struct {
	id       string
	archives []string
	parent   Resolver
	index    *Index
	suffix   string
	log      *logrus.Logger

	mu        sync.Mutex
	closed    bool
	types     map[string]*typedef.Type
	order     []*typedef.Type
	locations map[string]location
	readers   map[string]*archive.Reader
	loading   map[string]bool
}

// New creates a loading context over archives. Earlier archives shadow later
// ones when two define the same entry.
func New(archives []string, opts ...Option) *Context {
	c := &Context{
		id:       uuid.NewString(),
		archives: append([]string(nil), archives...),
		suffix:   DefaultTypeSuffix,
		types:    make(map[string]*typedef.Type),
		readers:  make(map[string]*archive.Reader),
		loading:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.New()
	}
	if c.index == nil {
		c.index = NewIndex(DefaultIndexSize, DefaultIndexTTL)
	}
	return c
}

// ID implements typedef.Owner
func (c *Context) ID() string { return c.id }

// Archives returns the archive search path
func (c *Context) Archives() []string {
	return append([]string(nil), c.archives...)
}

// EntryName maps a fully-qualified type name to the entry that defines it
func (c *Context) EntryName(name string) string {
	return strings.ReplaceAll(name, ".", "/") + c.suffix
}

// Load returns the handle for name, decoding it and its declared interfaces on
// first use
func (c *Context) Load(name string) (*typedef.Type, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	return c.loadLocked(name)
}

func (c *Context) loadLocked(name string) (*typedef.Type, error) {
	if t, ok := c.types[name]; ok {
		return t, nil
	}
	if c.parent != nil {
		if t, ok := c.parent.Lookup(name); ok {
			return t, nil
		}
	}
	if c.loading[name] {
		return nil, fmt.Errorf("%w: %s", ErrCircular, name)
	}

	c.buildLocationsLocked()
	loc, ok := c.locations[c.EntryName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotFound, name)
	}

	c.loading[name] = true
	defer delete(c.loading, name)

	data, err := c.readLocked(loc)
	if err != nil {
		return nil, err
	}

	def, err := typedef.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s from %s: %w", name, loc.archive, err)
	}
	if def.Name != name {
		return nil, fmt.Errorf("%w: entry %s in %s defines %s", ErrWrongName, loc.entry, loc.archive, def.Name)
	}

	interfaces := make([]*typedef.Type, 0, len(def.Interfaces))
	for _, ifaceName := range def.Interfaces {
		iface, err := c.loadLocked(ifaceName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve interface %s of %s: %w", ifaceName, name, err)
		}
		interfaces = append(interfaces, iface)
	}

	t, err := typedef.NewType(def, c, loc.archive+"!"+loc.entry, interfaces)
	if err != nil {
		return nil, err
	}

	c.types[name] = t
	c.order = append(c.order, t)
	c.log.Tracef("Context %s loaded %s from %s", c.id, name, loc.archive)
	return t, nil
}

func (c *Context) buildLocationsLocked() {
	if c.locations != nil {
		return
	}
	c.locations = make(map[string]location)
	for _, path := range c.archives {
		names, err := c.index.Entries(path)
		if err != nil {
			c.log.Debugf("Context %s cannot index archive %s: %v", c.id, path, err)
			continue
		}
		for _, entry := range names {
			key := c.normalizeEntry(entry)
			if _, exists := c.locations[key]; !exists {
				c.locations[key] = location{archive: path, entry: entry}
			}
		}
	}
}

// normalizeEntry folds the case of the type suffix so that entries written
// as Name.TYPE.YAML resolve like Name.type.yaml
func (c *Context) normalizeEntry(entry string) string {
	n := len(c.suffix)
	if len(entry) >= n && strings.EqualFold(entry[len(entry)-n:], c.suffix) {
		return entry[:len(entry)-n] + c.suffix
	}
	return entry
}

func (c *Context) readLocked(loc location) ([]byte, error) {
	r, ok := c.readers[loc.archive]
	if !ok {
		var err error
		r, err = archive.Open(loc.archive)
		if err != nil {
			return nil, err
		}
		c.readers[loc.archive] = r
	}

	entry, ok := r.Lookup(loc.entry)
	if !ok {
		return nil, fmt.Errorf("%w: entry %s vanished from %s", ErrTypeNotFound, loc.entry, loc.archive)
	}
	return entry.ReadAll()
}

// Loaded returns every handle created by the context in load order
func (c *Context) Loaded() []*typedef.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*typedef.Type(nil), c.order...)
}

// Close releases the archive readers. Handles already returned stay usable;
// further loads fail with ErrClosed. Close is idempotent.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for path, r := range c.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", path, err))
		}
	}
	c.readers = nil
	c.locations = nil
	return errors.Join(errs...)
}
