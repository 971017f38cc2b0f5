package plugins

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/capload/pkg/loader"
	"github.com/platinummonkey/capload/pkg/observability"
	"github.com/platinummonkey/capload/pkg/typedef"
)

func boundUnit(t *testing.T, path string, archives ...string) *Unit {
	t.Helper()
	if len(archives) == 0 {
		archives = []string{path}
	}
	ctx := loader.New(archives, loader.WithLogger(observability.Discard()))
	t.Cleanup(func() { ctx.Close() })
	return NewUnit(path, observability.Discard()).Bind(ctx)
}

func TestUnit_LoadTypesAndInstantiate(t *testing.T) {
	_, greeter := hostGreeter(t)
	path := greetersArchive(t, t.TempDir())

	u := boundUnit(t, path)
	assert.True(t, u.IsBound())
	assert.False(t, u.IsLoaded())
	assert.Empty(t, u.Pluggables(), "not plugged yet")

	require.NoError(t, u.LoadTypes(NewStandardFilter(greeter)))
	assert.True(t, u.IsLoaded())
	assert.False(t, u.IsPlugged())
	assert.Equal(t, []string{"com.plugin.Hello", "com.plugin.Hola"}, typeNames(u.Types()))

	u.Instantiate(nil)
	assert.True(t, u.IsPlugged())
	assert.Equal(t, []string{"com.plugin.Hello", "com.plugin.Hola"}, objectNames(u.Pluggables()))
	assert.Len(t, u.Instances(), 2)
	assert.LessOrEqual(t, len(u.Instances()), len(u.Types()))
}

func TestUnit_Decisions(t *testing.T) {
	_, greeter := hostGreeter(t)
	path := greetersArchive(t, t.TempDir())

	u := boundUnit(t, path)
	require.NoError(t, u.LoadTypes(NewStandardFilter(greeter)))

	outcomes := make(map[string]Outcome)
	for _, d := range u.Decisions() {
		outcomes[d.Entry] = d.Outcome
	}
	assert.Equal(t, map[string]Outcome{
		"META-INF/MANIFEST.type.yaml":        OutcomeBadName,
		"com/plugin/api/Greeter.type.yaml":   OutcomeNotPluggable,
		"com/plugin/other/Greeter.type.yaml": OutcomeNotPluggable,
		"com/plugin/Hello.type.yaml":         OutcomePluggable,
		"com/plugin/Broken.type.yaml":        OutcomeNotPluggable,
		"com/plugin/Hola.type.yaml":          OutcomePluggable,
		"README.md":                          OutcomeRejected,
	}, outcomes)
}

func TestUnit_ReloadDoesNotAccumulate(t *testing.T) {
	_, greeter := hostGreeter(t)
	path := greetersArchive(t, t.TempDir())
	filter := NewStandardFilter(greeter)

	u := boundUnit(t, path)
	require.NoError(t, u.LoadTypes(filter))
	u.Instantiate(nil)

	require.NoError(t, u.LoadTypes(filter))
	assert.Len(t, u.Types(), 2)
	assert.False(t, u.IsPlugged(), "reloading drops instances")

	u.Instantiate(nil).Instantiate(nil)
	assert.Len(t, u.Pluggables(), 2)
}

func TestUnit_ZeroQualifyingEntries(t *testing.T) {
	_, greeter := hostGreeter(t)
	path := writeArchive(t, t.TempDir(), "empty.zip", entry("README.md", "nothing here"))

	u := boundUnit(t, path)
	require.NoError(t, u.LoadTypes(NewStandardFilter(greeter)))
	assert.True(t, u.IsLoaded())
	assert.Empty(t, u.Types())

	u.Instantiate(nil)
	assert.True(t, u.IsPlugged())
	assert.Empty(t, u.Pluggables())
}

func TestUnit_ConfigurationErrors(t *testing.T) {
	_, greeter := hostGreeter(t)
	path := greetersArchive(t, t.TempDir())

	unbound := NewUnit(path, observability.Discard())
	err := unbound.LoadTypes(NewStandardFilter(greeter))
	assert.ErrorIs(t, err, ErrUnbound)
	assert.False(t, unbound.IsLoaded())
	unbound.Instantiate(nil)
	assert.False(t, unbound.IsPlugged(), "instantiate needs a loaded unit")

	u := boundUnit(t, path)
	assert.ErrorIs(t, u.LoadTypes(nil), ErrNoFilter)
	assert.True(t, u.IsLoaded())
	assert.Empty(t, u.Types())
}

func TestUnit_UnreadableArchive(t *testing.T) {
	_, greeter := hostGreeter(t)
	missing := filepath.Join(t.TempDir(), "missing.zip")

	u := boundUnit(t, missing)
	err := u.LoadTypes(NewStandardFilter(greeter))
	assert.Error(t, err)
	assert.True(t, u.IsLoaded())
	assert.Empty(t, u.Types())
}

func TestUnit_MissingDependencyIsSkipped(t *testing.T) {
	_, greeter := hostGreeter(t)
	path := writeArchive(t, t.TempDir(), "impl.zip",
		entry("com/plugin/Hello.type.yaml", helloYAML),
		entry("com/plugin/Garbage.type.yaml", "kind: ["),
	)

	u := boundUnit(t, path)
	require.NoError(t, u.LoadTypes(NewStandardFilter(greeter)))
	assert.Empty(t, u.Types())

	for _, d := range u.Decisions() {
		assert.Equal(t, OutcomeLoadError, d.Outcome)
		assert.Error(t, d.Err)
	}
}

func TestUnit_ResolvesInterfacesFromOtherArchives(t *testing.T) {
	_, greeter := hostGreeter(t)
	dir := t.TempDir()
	api := writeArchive(t, dir, "api.zip", entry("com/plugin/api/Greeter.type.yaml", apiGreeterYAML))
	impl := writeArchive(t, dir, "impl.zip", entry("com/plugin/Hello.type.yaml", helloYAML))

	u := boundUnit(t, impl, api, impl)
	require.NoError(t, u.LoadTypes(NewStandardFilter(greeter)))
	assert.Equal(t, []string{"com.plugin.Hello"}, typeNames(u.Types()))
}

func TestUnit_BindDropsState(t *testing.T) {
	_, greeter := hostGreeter(t)
	path := greetersArchive(t, t.TempDir())

	u := boundUnit(t, path)
	require.NoError(t, u.LoadTypes(NewStandardFilter(greeter)))
	u.Instantiate(nil)

	other := loader.New([]string{path})
	defer other.Close()
	u.Bind(other)
	assert.Same(t, other, u.Context())
	assert.False(t, u.IsLoaded())
	assert.False(t, u.IsPlugged())
	assert.Empty(t, u.Decisions())
}

func TestUnit_PluggablesFiltering(t *testing.T) {
	_, greeter := hostGreeter(t)
	path := greetersArchive(t, t.TempDir())

	u := boundUnit(t, path)
	require.NoError(t, u.LoadTypes(NewStandardFilter(greeter)))
	u.Instantiate(NewInstantiator().Register("com.plugin.Hola", func(t *typedef.Type) (any, error) {
		return hello{greeting: t.Properties()["greeting"]}, nil
	}))

	greeters := PluggablesOf[goGreeter](u)
	require.Len(t, greeters, 1)
	assert.Equal(t, "hola", greeters[0].Greet())

	assert.Len(t, PluggablesOf[*Object](u), 1)
	assert.Len(t, u.PluggablesMatching(greeter, nil), 2)
}

func TestUnit_Unload(t *testing.T) {
	u := NewUnit("a.zip", nil)
	assert.ErrorIs(t, u.Unload(), ErrUnloadUnsupported)
	assert.Equal(t, "a.zip", u.Path())
}
