package plugins

import "errors"

var (
	// ErrNoFilter is returned when a load is requested without a filter
	ErrNoFilter = errors.New("no capability filter supplied")
	// ErrUnbound is returned when a unit is loaded before it was bound to a context
	ErrUnbound = errors.New("unit is not bound to a loading context")
	// ErrUnloadUnsupported is returned by every Unload call. Loaded types stay
	// owned by their context until the registry is closed.
	ErrUnloadUnsupported = errors.New("unloading plugins is not supported")

	// ErrNotInstantiable is returned for interface and abstract types
	ErrNotInstantiable = errors.New("type is not instantiable")
	// ErrNoConstructor is returned for types without a zero-argument constructor
	ErrNoConstructor = errors.New("type has no zero-argument constructor")
	// ErrInaccessible is returned for types whose zero-argument constructor is private
	ErrInaccessible = errors.New("zero-argument constructor is not accessible")
)
