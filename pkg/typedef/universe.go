package typedef

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// HostID is the owner ID of the host universe
const HostID = "host"

// Universe is the host's own type space. Capability descriptors the host wants
// matched live here, separate from any plugin loading context.
type Universe struct {
	mu    sync.RWMutex
	types map[string]*Type
	order []*Type
}

// NewUniverse creates an empty host universe
func NewUniverse() *Universe {
	return &Universe{types: make(map[string]*Type)}
}

// ID implements Owner
func (u *Universe) ID() string { return HostID }

// Define registers a definition. Declared interfaces must already be defined.
// Redefining an existing name with the same definition returns the existing
// handle; a different definition under that name is ErrInvalid.
func (u *Universe) Define(def *Definition) (*Type, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrInvalid)
	}
	def = def.Clone()
	def.applyDefaults()
	if err := def.Validate(); err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if existing, ok := u.types[def.Name]; ok {
		if !sameDefinition(existing.def, def) {
			return nil, fmt.Errorf("%w: %s is already defined with a different shape", ErrInvalid, def.Name)
		}
		return existing, nil
	}

	interfaces := make([]*Type, 0, len(def.Interfaces))
	for _, name := range def.Interfaces {
		iface, ok := u.types[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s declares undefined interface %s", ErrInvalid, def.Name, name)
		}
		interfaces = append(interfaces, iface)
	}

	t, err := NewType(def, u, HostID, interfaces)
	if err != nil {
		return nil, err
	}
	u.types[def.Name] = t
	u.order = append(u.order, t)
	return t, nil
}

// sameDefinition compares the encoded forms, so nil and empty lists are equal
func sameDefinition(a, b *Definition) bool {
	ea, err := Encode(a)
	if err != nil {
		return false
	}
	eb, err := Encode(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

// DefineFile decodes a descriptor file and defines it
func (u *Universe) DefineFile(path string) (*Type, error) {
	def, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return u.Define(def)
}

// Lookup finds a type by fully-qualified name
func (u *Universe) Lookup(name string) (*Type, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	t, ok := u.types[name]
	return t, ok
}

// Types returns all defined types in definition order
func (u *Universe) Types() []*Type {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]*Type(nil), u.order...)
}

// DefineInterface defines the Go interface T in the universe
func DefineInterface[T any](u *Universe) (*Type, error) {
	def, err := FromInterface[T]()
	if err != nil {
		return nil, err
	}
	return u.Define(def)
}

// FromInterface describes the Go interface T as a definition. The name is the
// import path with separators mapped to dots followed by the interface name.
// Methods appear in the order reflection reports them, which is sorted by name.
func FromInterface[T any]() (*Definition, error) {
	return fromReflect(reflect.TypeOf((*T)(nil)).Elem())
}

func fromReflect(rt reflect.Type) (*Definition, error) {
	if rt == nil || rt.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: %v is not an interface type", ErrInvalid, rt)
	}
	if rt.Name() == "" {
		return nil, fmt.Errorf("%w: anonymous interface types cannot be described", ErrInvalid)
	}

	name := rt.Name()
	if pkg := goPackageName(rt.PkgPath()); pkg != "" {
		name = pkg + "." + name
	}

	def := &Definition{
		Name:        name,
		Kind:        KindInterface,
		Constructor: AccessNone,
	}
	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		method := Method{Name: m.Name}
		for j := 0; j < m.Type.NumIn(); j++ {
			method.Params = append(method.Params, Param{Type: m.Type.In(j).String()})
		}
		switch m.Type.NumOut() {
		case 0:
		case 1:
			method.Returns = m.Type.Out(0).String()
		default:
			outs := make([]string, m.Type.NumOut())
			for j := range outs {
				outs[j] = m.Type.Out(j).String()
			}
			method.Returns = "(" + strings.Join(outs, ", ") + ")"
		}
		def.Methods = append(def.Methods, method)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func goPackageName(pkgPath string) string {
	if pkgPath == "" {
		return ""
	}
	segments := strings.FieldsFunc(pkgPath, func(r rune) bool { return r == '/' || r == '.' })
	for i, seg := range segments {
		segments[i] = sanitizeIdentifier(seg)
	}
	return strings.Join(segments, ".")
}

func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for i, c := range s {
		ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9')
		if ok {
			b.WriteRune(c)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
