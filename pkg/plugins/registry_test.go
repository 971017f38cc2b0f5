package plugins

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/capload/pkg/observability"
	"github.com/platinummonkey/capload/pkg/typedef"
)

func TestRegistry_EndToEnd(t *testing.T) {
	_, greeter := hostGreeter(t)
	path := greetersArchive(t, t.TempDir())

	r := quietRegistry()
	defer r.Close()

	require.NoError(t, r.LoadPlugins(context.Background(), NewStandardFilter(greeter), path))
	assert.True(t, r.IsLoaded())
	assert.NotEmpty(t, r.Generation())
	assert.False(t, r.LoadedAt().IsZero())

	pluggables := r.Pluggables()
	require.Len(t, pluggables, 2)
	assert.Equal(t, []string{"com.plugin.Hello", "com.plugin.Hola"}, objectNames(pluggables))

	hello := pluggables[0].(*Object)
	greeting, _ := hello.Get("greeting")
	assert.Equal(t, "hello", greeting)
}

func TestRegistry_NoFilter(t *testing.T) {
	r := quietRegistry()
	assert.ErrorIs(t, r.LoadPlugins(context.Background(), nil, "x"), ErrNoFilter)
	assert.False(t, r.IsLoaded())
}

func TestRegistry_ZeroPathsIsIdempotent(t *testing.T) {
	r := quietRegistry()
	filter := NewStandardFilter()

	require.NoError(t, r.LoadPlugins(context.Background(), filter))
	first := r.Pluggables()
	require.NoError(t, r.LoadPlugins(context.Background(), filter))

	assert.Equal(t, first, r.Pluggables())
	assert.Empty(t, r.Pluggables())
	assert.Empty(t, r.Units())
}

func TestRegistry_EmptyDiscoveryIsLoaded(t *testing.T) {
	r := quietRegistry()
	require.NoError(t, r.LoadPlugins(context.Background(), NewStandardFilter(), t.TempDir(), "/does/not/exist"))

	assert.True(t, r.IsLoaded())
	assert.NotNil(t, r.Units())
	assert.Empty(t, r.Units())
	assert.Empty(t, r.Pluggables())
}

func TestRegistry_DirectoryExpansion(t *testing.T) {
	_, greeter := hostGreeter(t)
	dir := t.TempDir()
	nested := filepath.Join(dir, "b", "nested")
	require.NoError(t, os.MkdirAll(nested, 0755))

	writeArchive(t, dir, "a.zip", entry("com/plugin/api/Greeter.type.yaml", apiGreeterYAML))
	writeArchive(t, dir, "excluded.zip", entry("com/plugin/Hola.type.yaml", holaYAML))
	writeArchive(t, nested, "c.ZIP", entry("com/plugin/Hello.type.yaml", helloYAML))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	r := quietRegistry()
	filter := NewStandardFilter(greeter).AddNames("excluded.zip")
	require.NoError(t, r.LoadPlugins(context.Background(), filter, dir, filepath.Join(dir, "a.zip")))

	var paths []string
	for _, u := range r.Units() {
		paths = append(paths, filepath.ToSlash(u.Path()[len(dir):]))
	}
	assert.Equal(t, []string{"/a.zip", "/b/nested/c.ZIP"}, paths, "sorted, recursive, deduplicated")

	// Hello in c.ZIP resolves its interface from a.zip through the shared context
	assert.Equal(t, []string{"com.plugin.Hello"}, objectNames(r.Pluggables()))
}

func TestRegistry_SymlinkedRootDirectory(t *testing.T) {
	_, greeter := hostGreeter(t)
	base := t.TempDir()
	target := filepath.Join(base, "real")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "sub"), 0755))
	greetersArchive(t, target)

	// below the root, links to directories are not followed
	require.NoError(t, os.Symlink(target, filepath.Join(target, "sub", "loop")))

	link := filepath.Join(base, "plugins")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	r := quietRegistry()
	defer r.Close()
	require.NoError(t, r.LoadPlugins(context.Background(), NewStandardFilter(greeter), link))

	require.Len(t, r.Units(), 1)
	assert.Equal(t, filepath.Join(link, "greeters.zip"), r.Units()[0].Path())
	assert.Equal(t, []string{"com.plugin.Hello", "com.plugin.Hola"}, objectNames(r.Pluggables()))
}

func TestRegistry_ReloadReplacesState(t *testing.T) {
	_, greeter := hostGreeter(t)
	dir := t.TempDir()
	path := greetersArchive(t, dir)

	r := quietRegistry()
	defer r.Close()
	filter := NewStandardFilter(greeter)

	require.NoError(t, r.LoadPlugins(context.Background(), filter, path))
	firstGen := r.Generation()
	firstCtx := r.Context()

	require.NoError(t, r.LoadPlugins(context.Background(), filter, path))
	assert.NotEqual(t, firstGen, r.Generation())
	assert.NotSame(t, firstCtx, r.Context())
	assert.Len(t, r.Pluggables(), 2)

	_, err := firstCtx.Load("com.plugin.Hello")
	assert.Error(t, err, "the previous context is closed")
}

func TestRegistry_ParallelMatchesSequential(t *testing.T) {
	_, greeter := hostGreeter(t)
	dir := t.TempDir()
	writeArchive(t, dir, "0-api.zip", entry("com/plugin/api/Greeter.type.yaml", apiGreeterYAML))
	for _, name := range []string{"1.zip", "2.zip", "3.zip", "4.zip", "5.zip"} {
		sub := filepath.Join(dir, name[:1])
		require.NoError(t, os.Mkdir(sub, 0755))
		writeArchive(t, sub, name,
			entry("com/plugin/p"+name[:1]+"/Hello.type.yaml",
				"name: com.plugin.p"+name[:1]+".Hello\nkind: class\ninterfaces: [com.plugin.api.Greeter]\n"),
		)
	}
	filter := NewStandardFilter(greeter)

	sequential := quietRegistry()
	defer sequential.Close()
	require.NoError(t, sequential.LoadPlugins(context.Background(), filter, dir))

	parallel := quietRegistry(WithParallelism(4))
	defer parallel.Close()
	require.NoError(t, parallel.LoadPlugins(context.Background(), filter, dir))

	assert.Len(t, sequential.Pluggables(), 5)
	assert.Equal(t, objectNames(sequential.Pluggables()), objectNames(parallel.Pluggables()))
}

func TestRegistry_CancelledContext(t *testing.T) {
	_, greeter := hostGreeter(t)
	path := greetersArchive(t, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, n := range []int{1, 4} {
		r := quietRegistry(WithParallelism(n))
		err := r.LoadPlugins(ctx, NewStandardFilter(greeter), path)
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, r.IsLoaded())
		assert.Empty(t, r.Pluggables())
		r.Close()
	}
}

func TestRegistry_HostParentAndFactories(t *testing.T) {
	host, greeter := hostGreeter(t)
	_, err := host.Define(&typedef.Definition{
		Name:    "com.plugin.api.Greeter",
		Kind:    typedef.KindInterface,
		Methods: []typedef.Method{{Name: "Greet", Returns: "string"}},
	})
	require.NoError(t, err)

	// the archive carries only the implementation; its interface comes from the host
	path := writeArchive(t, t.TempDir(), "impl.zip", entry("com/plugin/Hello.type.yaml", helloYAML))

	inst := NewInstantiator().Register("com.plugin.Hello", func(t *typedef.Type) (any, error) {
		return hello{greeting: t.Properties()["greeting"]}, nil
	})
	r := quietRegistry(WithParent(host), WithInstantiator(inst))
	defer r.Close()

	require.NoError(t, r.LoadPlugins(context.Background(), NewStandardFilter(greeter), path))

	greeters := PluggablesOf[goGreeter](r)
	require.Len(t, greeters, 1)
	assert.Equal(t, "hello", greeters[0].Greet())
	assert.Len(t, r.PluggablesMatching(greeter), 1)
}

func TestRegistry_Metrics(t *testing.T) {
	_, greeter := hostGreeter(t)
	dir := t.TempDir()
	greetersArchive(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	r := quietRegistry(WithMetrics(metrics))
	defer r.Close()

	require.NoError(t, r.LoadPlugins(context.Background(), NewStandardFilter(greeter), dir))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UnitsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UnitsTotal.WithLabelValues("rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.TypesDiscovered))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.InstancesCreated))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.EntriesSkipped.WithLabelValues("not_pluggable")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PluggablesCurrent))
}

func TestRegistry_UnloadAndClose(t *testing.T) {
	_, greeter := hostGreeter(t)
	path := greetersArchive(t, t.TempDir())

	r := quietRegistry()
	require.NoError(t, r.LoadPlugins(context.Background(), NewStandardFilter(greeter), path))

	assert.ErrorIs(t, r.Unload(), ErrUnloadUnsupported)
	assert.True(t, r.IsLoaded(), "unload releases nothing")
	assert.Len(t, r.Pluggables(), 2)

	require.NoError(t, r.Close())
	assert.False(t, r.IsLoaded())
	assert.Empty(t, r.Pluggables())
	assert.Empty(t, r.Generation())
	require.NoError(t, r.Close())
}
