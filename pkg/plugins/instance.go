package plugins

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/platinummonkey/capload/pkg/capability"
	"github.com/platinummonkey/capload/pkg/typedef"
)

// Factory creates a native value for a loaded type. Hosts register factories
// for the fully-qualified names they know how to build.
type Factory func(t *typedef.Type) (any, error)

// Instance pairs a created value with the type it was created from
type Instance struct {
	Type  *typedef.Type
	Value any
}

// Instantiator performs zero-argument construction of loaded types. It is
// safe for concurrent use.
type Instantiator struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewInstantiator creates an instantiator without native factories. Every
// constructible type then becomes a dynamic *Object.
func NewInstantiator() *Instantiator {
	return &Instantiator{
		factories: make(map[string]Factory),
	}
}

// Register installs a native factory for a fully-qualified type name,
// replacing any previous one
func (i *Instantiator) Register(name string, f Factory) *Instantiator {
	i.mu.Lock()
	defer i.mu.Unlock()
	if f == nil {
		delete(i.factories, name)
	} else {
		i.factories[name] = f
	}
	return i
}

// New constructs a value for t. Interface and abstract types, types without
// a zero-argument constructor and types whose constructor is private fail
// with ErrNotInstantiable, ErrNoConstructor and ErrInaccessible. A panicking
// factory is reported as an error.
func (i *Instantiator) New(t *typedef.Type) (v any, err error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrNotInstantiable)
	}

	switch t.Kind() {
	case typedef.KindInterface, typedef.KindAbstract:
		return nil, fmt.Errorf("%w: %s is %s", ErrNotInstantiable, t.Name(), t.Kind())
	}

	switch t.Constructor() {
	case typedef.AccessPublic:
	case typedef.AccessPrivate:
		return nil, fmt.Errorf("%w: %s", ErrInaccessible, t.Name())
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoConstructor, t.Name())
	}

	i.mu.RLock()
	factory, ok := i.factories[t.Name()]
	i.mu.RUnlock()

	if !ok {
		return NewObject(t), nil
	}

	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = fmt.Errorf("factory for %s panicked: %v", t.Name(), r)
		}
	}()

	v, err = factory(t)
	if err != nil {
		return nil, fmt.Errorf("factory for %s failed: %w", t.Name(), err)
	}
	if v == nil {
		return nil, fmt.Errorf("factory for %s returned nil", t.Name())
	}
	return v, nil
}

// failureReason maps an instantiation error to a metrics label
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNotInstantiable):
		return "not_instantiable"
	case errors.Is(err, ErrNoConstructor):
		return "no_constructor"
	case errors.Is(err, ErrInaccessible):
		return "inaccessible"
	default:
		return "factory"
	}
}

// Object is the dynamic instance created for types without a native factory.
// Its state starts as the properties of the type descriptor.
type Object struct {
	id  string
	typ *typedef.Type

	mu    sync.RWMutex
	props map[string]string
}

// NewObject creates a dynamic instance of t
func NewObject(t *typedef.Type) *Object {
	props := t.Properties()
	if props == nil {
		props = make(map[string]string)
	}
	return &Object{
		id:    uuid.NewString(),
		typ:   t,
		props: props,
	}
}

// ID returns the unique instance ID
func (o *Object) ID() string { return o.id }

// Type returns the type the object was created from
func (o *Object) Type() *typedef.Type { return o.typ }

// Get returns a property value
func (o *Object) Get(key string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.props[key]
	return v, ok
}

// Set updates a property value
func (o *Object) Set(key, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.props[key] = value
}

// Properties returns a copy of the current state
func (o *Object) Properties() map[string]string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]string, len(o.props))
	for k, v := range o.props {
		out[k] = v
	}
	return out
}

// Implements reports whether the object's type declares an interface that
// structurally matches c
func (o *Object) Implements(c *typedef.Type, m *capability.Matcher) bool {
	if m == nil {
		m = capability.NewMatcher()
	}
	return len(m.Satisfies(o.typ, []*typedef.Type{c})) == 1
}

func (o *Object) String() string {
	return fmt.Sprintf("%s#%s", o.typ.Name(), o.id[:8])
}
