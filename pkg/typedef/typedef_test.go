package typedef

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greeterDescriptor = `
name: com.example.Greeter
kind: interface
annotations:
  - name: Capability
    values: {version: "1"}
methods:
  - name: Greet
    returns: string
    params:
      - {name: who, type: string}
`

func TestDecode(t *testing.T) {
	def, err := Decode([]byte(greeterDescriptor))
	require.NoError(t, err)

	assert.Equal(t, "com.example.Greeter", def.Name)
	assert.Equal(t, KindInterface, def.Kind)
	assert.Equal(t, AccessNone, def.Constructor)
	require.Len(t, def.Methods, 1)
	assert.Equal(t, "Greet(string) string", def.Methods[0].Signature())
	assert.Equal(t, []Annotation{{Name: "Capability", Values: map[string]string{"version": "1"}}}, def.Annotations)
}

func TestDecode_ClassDefaultsToPublicConstructor(t *testing.T) {
	def, err := Decode([]byte("name: com.example.Impl\nkind: class\n"))
	require.NoError(t, err)
	assert.Equal(t, AccessPublic, def.Constructor)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "empty name", yaml: "kind: class\n"},
		{name: "bad name segment", yaml: "name: META-INF.Foo\nkind: class\n"},
		{name: "unknown kind", yaml: "name: a.B\nkind: struct\n"},
		{name: "unknown access", yaml: "name: a.B\nkind: class\nconstructor: protected\n"},
		{name: "public interface constructor", yaml: "name: a.B\nkind: interface\nconstructor: public\n"},
		{name: "bad interface name", yaml: "name: a.B\nkind: class\ninterfaces: [\"1bad\"]\n"},
		{name: "unnamed method", yaml: "name: a.B\nkind: interface\nmethods: [{returns: string}]\n"},
		{name: "untyped param", yaml: "name: a.B\nkind: interface\nmethods: [{name: Do, params: [{name: x}]}]\n"},
		{name: "unknown field", yaml: "name: a.B\nkind: class\nsuperclass: a.C\n"},
		{name: "not yaml", yaml: "::::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestEncodeDecodeKeepsMethodOrder(t *testing.T) {
	def := &Definition{
		Name: "com.example.Ordered",
		Kind: KindInterface,
		Methods: []Method{
			{Name: "Zeta"},
			{Name: "Alpha", Returns: "int"},
		},
	}
	data, err := Encode(def)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, decoded.Methods, 2)
	assert.Equal(t, "Zeta", decoded.Methods[0].Name)
	assert.Equal(t, "Alpha", decoded.Methods[1].Name)
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Greeter.type.yaml")
	require.NoError(t, os.WriteFile(path, []byte(greeterDescriptor), 0644))

	def, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "com.example.Greeter", def.Name)

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.type.yaml"))
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "Greeter", SimpleName("com.example.Greeter"))
	assert.Equal(t, "Greeter", SimpleName("Greeter"))
	assert.Equal(t, "com.example", PackageName("com.example.Greeter"))
	assert.Equal(t, "", PackageName("Greeter"))

	assert.True(t, ValidName("com.example.Greeter"))
	assert.True(t, ValidName("Outer$Inner"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName("com..Greeter"))
	assert.False(t, ValidName("com.9lives.Cat"))
	assert.False(t, ValidName("META-INF.MANIFEST"))
}

func TestAnnotationEqual(t *testing.T) {
	a := Annotation{Name: "Tag", Values: map[string]string{"k": "v"}}
	assert.True(t, a.Equal(Annotation{Name: "Tag", Values: map[string]string{"k": "v"}}))
	assert.False(t, a.Equal(Annotation{Name: "Tag"}))
	assert.False(t, a.Equal(Annotation{Name: "Other", Values: map[string]string{"k": "v"}}))
	assert.False(t, a.Equal(Annotation{Name: "Tag", Values: map[string]string{"k": "w"}}))
	assert.True(t, Annotation{Name: "Tag"}.Equal(Annotation{Name: "Tag", Values: map[string]string{}}))
}

func TestNewType_RequiresResolvedInterfaces(t *testing.T) {
	def := &Definition{Name: "a.Impl", Kind: KindClass, Interfaces: []string{"a.Iface"}}

	_, err := NewType(def, nil, "test", nil)
	assert.ErrorIs(t, err, ErrInvalid)

	other, err := NewType(&Definition{Name: "a.Other", Kind: KindInterface}, nil, "test", nil)
	require.NoError(t, err)
	_, err = NewType(def, nil, "test", []*Type{other})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestType_AccessorsReturnCopies(t *testing.T) {
	def, err := Decode([]byte(greeterDescriptor))
	require.NoError(t, err)
	typ, err := NewType(def, NewUniverse(), "test", nil)
	require.NoError(t, err)

	methods := typ.Methods()
	methods[0].Name = "Mutated"
	annotations := typ.Annotations()
	annotations[0].Values["version"] = "2"

	assert.Equal(t, "Greet", typ.Methods()[0].Name)
	assert.Equal(t, "1", typ.Annotations()[0].Values["version"])
	assert.Equal(t, "Greeter", typ.SimpleName())
	assert.Equal(t, "com.example", typ.Package())
	assert.True(t, typ.IsInterface())
	assert.Equal(t, "interface com.example.Greeter@host", typ.String())
}

func TestUniverse_Define(t *testing.T) {
	u := NewUniverse()

	base, err := u.Define(&Definition{Name: "com.example.Named", Kind: KindInterface})
	require.NoError(t, err)

	derived, err := u.Define(&Definition{
		Name:       "com.example.Greeter",
		Kind:       KindInterface,
		Interfaces: []string{"com.example.Named"},
	})
	require.NoError(t, err)
	assert.Same(t, base, derived.Interfaces()[0])

	again, err := u.Define(&Definition{Name: "com.example.Named", Kind: KindInterface})
	require.NoError(t, err)
	assert.Same(t, base, again)

	_, err = u.Define(&Definition{
		Name:    "com.example.Named",
		Kind:    KindInterface,
		Methods: []Method{{Name: "Name", Returns: "string"}},
	})
	assert.ErrorIs(t, err, ErrInvalid, "same name, different shape")
	assert.Empty(t, base.Methods())

	_, err = u.Define(&Definition{Name: "com.example.Orphan", Kind: KindInterface, Interfaces: []string{"com.example.Missing"}})
	assert.ErrorIs(t, err, ErrInvalid)

	found, ok := u.Lookup("com.example.Greeter")
	assert.True(t, ok)
	assert.Same(t, derived, found)
	assert.Len(t, u.Types(), 2)
}

type Speaker interface {
	Speak(ctx context.Context, words []string) (string, error)
	Volume() int
	Mute()
}

func TestFromInterface(t *testing.T) {
	def, err := FromInterface[Speaker]()
	require.NoError(t, err)

	assert.Equal(t, "Speaker", SimpleName(def.Name))
	assert.Equal(t, "github.com.platinummonkey.capload.pkg.typedef.Speaker", def.Name)
	assert.Equal(t, KindInterface, def.Kind)
	require.Len(t, def.Methods, 3)

	// reflection orders interface methods by name
	assert.Equal(t, "Mute()", def.Methods[0].Signature())
	assert.Equal(t, "Speak(context.Context, []string) (string, error)", def.Methods[1].Signature())
	assert.Equal(t, "Volume() int", def.Methods[2].Signature())
}

func TestFromInterface_RejectsConcreteTypes(t *testing.T) {
	_, err := FromInterface[struct{ Name string }]()
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = FromInterface[int]()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDefineInterface(t *testing.T) {
	u := NewUniverse()
	typ, err := DefineInterface[Speaker](u)
	require.NoError(t, err)
	assert.Equal(t, "Speaker", typ.SimpleName())
	assert.Equal(t, HostID, typ.Owner().ID())
}
