package typedef

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for descriptors that fail validation
var ErrInvalid = errors.New("invalid type descriptor")

// Kind is the shape category of a type
type Kind string

const (
	KindInterface Kind = "interface"
	KindClass     Kind = "class"
	KindAbstract  Kind = "abstract"
)

// Access describes the zero-argument constructor of a type
type Access string

const (
	AccessPublic  Access = "public"
	AccessPrivate Access = "private"
	AccessNone    Access = "none"
)

// Annotation is a named metadata entry attached to a type, method or parameter
type Annotation struct {
	Name   string            `yaml:"name"`
	Values map[string]string `yaml:"values,omitempty"`
}

// Equal reports whether two annotations carry the same name and values
func (a Annotation) Equal(other Annotation) bool {
	if a.Name != other.Name || len(a.Values) != len(other.Values) {
		return false
	}
	for k, v := range a.Values {
		if ov, ok := other.Values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Param is a method parameter
type Param struct {
	Name        string       `yaml:"name,omitempty"`
	Type        string       `yaml:"type"`
	Annotations []Annotation `yaml:"annotations,omitempty"`
}

// Method is a method signature in declaration order
type Method struct {
	Name        string       `yaml:"name"`
	Returns     string       `yaml:"returns,omitempty"`
	Params      []Param      `yaml:"params,omitempty"`
	Annotations []Annotation `yaml:"annotations,omitempty"`
}

// Definition is the serialized form of a type as stored in an archive entry
type Definition struct {
	Name        string            `yaml:"name"`
	Kind        Kind              `yaml:"kind"`
	Annotations []Annotation      `yaml:"annotations,omitempty"`
	Interfaces  []string          `yaml:"interfaces,omitempty"`
	Methods     []Method          `yaml:"methods,omitempty"`
	Constructor Access            `yaml:"constructor,omitempty"`
	Properties  map[string]string `yaml:"properties,omitempty"`
}

// Decode parses and validates a YAML type descriptor
func Decode(data []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("%w: failed to parse descriptor: %v", ErrInvalid, err)
	}

	def.applyDefaults()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// DecodeFile reads a descriptor from disk
func DecodeFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	def, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Encode serializes a definition to YAML
func Encode(def *Definition) ([]byte, error) {
	data, err := yaml.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal descriptor: %w", err)
	}
	return data, nil
}

func (d *Definition) applyDefaults() {
	if d.Constructor != "" {
		return
	}
	switch d.Kind {
	case KindClass:
		d.Constructor = AccessPublic
	default:
		d.Constructor = AccessNone
	}
}

// Validate checks the structural rules every descriptor must satisfy
func (d *Definition) Validate() error {
	if !ValidName(d.Name) {
		return fmt.Errorf("%w: bad type name %q", ErrInvalid, d.Name)
	}

	switch d.Kind {
	case KindInterface, KindClass, KindAbstract:
	default:
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalid, d.Name, d.Kind)
	}

	switch d.Constructor {
	case "", AccessPublic, AccessPrivate, AccessNone:
	default:
		return fmt.Errorf("%w: %s has unknown constructor access %q", ErrInvalid, d.Name, d.Constructor)
	}
	if d.Kind == KindInterface && d.Constructor == AccessPublic {
		return fmt.Errorf("%w: interface %s cannot declare a public constructor", ErrInvalid, d.Name)
	}

	for _, iface := range d.Interfaces {
		if !ValidName(iface) {
			return fmt.Errorf("%w: %s declares bad interface name %q", ErrInvalid, d.Name, iface)
		}
	}

	for i, m := range d.Methods {
		if m.Name == "" {
			return fmt.Errorf("%w: %s method #%d has no name", ErrInvalid, d.Name, i)
		}
		for j, p := range m.Params {
			if p.Type == "" {
				return fmt.Errorf("%w: %s.%s parameter #%d has no type", ErrInvalid, d.Name, m.Name, j)
			}
		}
	}

	return nil
}

// Clone returns a deep copy of the definition
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	out := *d
	out.Annotations = cloneAnnotations(d.Annotations)
	out.Interfaces = append([]string(nil), d.Interfaces...)
	if d.Methods != nil {
		out.Methods = make([]Method, len(d.Methods))
		for i, m := range d.Methods {
			out.Methods[i] = cloneMethod(m)
		}
	}
	out.Properties = cloneStrings(d.Properties)
	return &out
}

func cloneMethod(m Method) Method {
	out := m
	out.Annotations = cloneAnnotations(m.Annotations)
	if m.Params != nil {
		out.Params = make([]Param, len(m.Params))
		for i, p := range m.Params {
			out.Params[i] = Param{Name: p.Name, Type: p.Type, Annotations: cloneAnnotations(p.Annotations)}
		}
	}
	return out
}

func cloneAnnotations(in []Annotation) []Annotation {
	if in == nil {
		return nil
	}
	out := make([]Annotation, len(in))
	for i, a := range in {
		out[i] = Annotation{Name: a.Name, Values: cloneStrings(a.Values)}
	}
	return out
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
