package plugins

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/capload/pkg/archive"
	"github.com/platinummonkey/capload/pkg/observability"
	"github.com/platinummonkey/capload/pkg/typedef"
)

const (
	apiGreeterYAML = `
name: com.plugin.api.Greeter
kind: interface
methods:
  - name: Greet
    returns: string
`
	otherGreeterYAML = `
name: com.plugin.other.Greeter
kind: interface
methods:
  - name: Greet
    returns: string
  - name: Reset
`
	helloYAML = `
name: com.plugin.Hello
kind: class
interfaces: [com.plugin.api.Greeter]
properties: {greeting: hello}
`
	holaYAML = `
name: com.plugin.Hola
kind: class
interfaces: [com.plugin.api.Greeter]
properties: {greeting: hola}
`
	brokenYAML = `
name: com.plugin.Broken
kind: class
interfaces: [com.plugin.other.Greeter]
`
)

func entry(name, data string) archive.File {
	return archive.File{Name: name, Data: []byte(data)}
}

func writeArchive(t *testing.T, dir, name string, files ...archive.File) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, archive.WriteFile(path, files...))
	return path
}

// greetersArchive holds two types implementing the single-method Greeter and
// one implementing a Greeter with an extra method
func greetersArchive(t *testing.T, dir string) string {
	return writeArchive(t, dir, "greeters.zip",
		entry("META-INF/MANIFEST.type.yaml", "name: nope\nkind: class\n"),
		entry("com/plugin/api/Greeter.type.yaml", apiGreeterYAML),
		entry("com/plugin/other/Greeter.type.yaml", otherGreeterYAML),
		entry("com/plugin/Hello.type.yaml", helloYAML),
		entry("com/plugin/Broken.type.yaml", brokenYAML),
		entry("com/plugin/Hola.type.yaml", holaYAML),
		entry("README.md", "# greeters"),
	)
}

func hostGreeter(t *testing.T) (*typedef.Universe, *typedef.Type) {
	t.Helper()
	u := typedef.NewUniverse()
	greeter, err := u.Define(&typedef.Definition{
		Name:    "com.host.Greeter",
		Kind:    typedef.KindInterface,
		Methods: []typedef.Method{{Name: "Greet", Returns: "string"}},
	})
	require.NoError(t, err)
	return u, greeter
}

func quietRegistry(opts ...Option) *Registry {
	return NewRegistry(append([]Option{WithLogger(observability.Discard())}, opts...)...)
}

func typeNames(types []*typedef.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.Name()
	}
	return out
}

func objectNames(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if o, ok := v.(*Object); ok {
			out = append(out, o.Type().Name())
		}
	}
	return out
}
