package typedef

import (
	"fmt"
	"strings"
)

// Owner is the loading context a type handle belongs to
type Owner interface {
	ID() string
}

// Type is a loaded type handle. Handles are immutable and owned by the context
// that created them; two handles for textually identical definitions loaded by
// different owners are distinct values and never compare equal with ==.
type Type struct {
	def        *Definition
	owner      Owner
	source     string
	interfaces []*Type
}

// NewType creates a handle for def owned by owner. interfaces must be the
// resolved handles of def.Interfaces, in the same order.
func NewType(def *Definition, owner Owner, source string, interfaces []*Type) (*Type, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrInvalid)
	}
	if len(interfaces) != len(def.Interfaces) {
		return nil, fmt.Errorf("%w: %s declares %d interfaces, %d resolved",
			ErrInvalid, def.Name, len(def.Interfaces), len(interfaces))
	}
	for i, iface := range interfaces {
		if iface == nil || iface.Name() != def.Interfaces[i] {
			return nil, fmt.Errorf("%w: %s interface #%d not resolved", ErrInvalid, def.Name, i)
		}
	}

	return &Type{
		def:        def.Clone(),
		owner:      owner,
		source:     source,
		interfaces: append([]*Type(nil), interfaces...),
	}, nil
}

// Name returns the fully-qualified name
func (t *Type) Name() string { return t.def.Name }

// SimpleName returns the unqualified name
func (t *Type) SimpleName() string { return SimpleName(t.def.Name) }

// Package returns the namespace part of the name
func (t *Type) Package() string { return PackageName(t.def.Name) }

// Kind returns the shape category
func (t *Type) Kind() Kind { return t.def.Kind }

// IsInterface reports whether the type is interface-shaped
func (t *Type) IsInterface() bool { return t.def.Kind == KindInterface }

// Constructor returns the zero-argument constructor access
func (t *Type) Constructor() Access { return t.def.Constructor }

// Owner returns the loading context that owns the handle
func (t *Type) Owner() Owner { return t.owner }

// Source describes where the definition was read from
func (t *Type) Source() string { return t.source }

// Annotations returns a copy of the type-level annotations
func (t *Type) Annotations() []Annotation { return cloneAnnotations(t.def.Annotations) }

// Methods returns a copy of the methods in declaration order
func (t *Type) Methods() []Method { return t.def.Clone().Methods }

// NumMethod returns the number of declared methods
func (t *Type) NumMethod() int { return len(t.def.Methods) }

// Interfaces returns the declared interfaces in declaration order
func (t *Type) Interfaces() []*Type { return append([]*Type(nil), t.interfaces...) }

// Properties returns a copy of the initial instance properties
func (t *Type) Properties() map[string]string { return cloneStrings(t.def.Properties) }

// Definition returns a copy of the underlying definition
func (t *Type) Definition() *Definition { return t.def.Clone() }

func (t *Type) String() string {
	owner := "<none>"
	if t.owner != nil {
		owner = t.owner.ID()
	}
	return fmt.Sprintf("%s %s@%s", t.def.Kind, t.def.Name, owner)
}

// Signature renders a method as name(paramTypes) returns
func (m Method) Signature() string {
	types := make([]string, len(m.Params))
	for i, p := range m.Params {
		types[i] = p.Type
	}
	sig := m.Name + "(" + strings.Join(types, ", ") + ")"
	if m.Returns != "" {
		sig += " " + m.Returns
	}
	return sig
}
