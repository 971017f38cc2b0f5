// Package plugins discovers plugin archives, loads the types they describe
// and instantiates the ones that implement host capabilities.
//
// # Overview
//
// A plugin is a zip archive of type descriptors. The Registry expands the
// given paths, asks a Filter which files are plugins, and loads all accepted
// archives through one shared loader.Context, so a type in one archive may
// implement an interface described in another. Each archive becomes a Unit
// that moves through three states:
//
//	unbound --Bind--> bound --LoadTypes--> loaded --Instantiate--> plugged
//
// # Capabilities
//
// Types from plugin archives never share identity with host types. A type is
// pluggable when one of the interfaces it declares structurally matches a
// requested capability (see package capability):
//
//	host := typedef.NewUniverse()
//	greeter, _ := typedef.DefineInterface[Greeter](host)
//
//	reg := plugins.NewRegistry(plugins.WithLogger(logger))
//	defer reg.Close()
//
//	err := reg.LoadPlugins(ctx, plugins.NewStandardFilter(greeter), "/opt/plugins")
//	for _, g := range plugins.PluggablesOf[Greeter](reg) {
//		fmt.Println(g.Greet())
//	}
//
// # Instances
//
// Without a registered Factory every pluggable class becomes an *Object whose
// state starts as the descriptor's properties. Hosts that know how to build a
// type natively register a Factory for its fully-qualified name with
// Instantiator.Register.
//
// # Errors
//
// Per-entry and per-type failures are logged at debug level and skipped. A
// load with no usable plugins still succeeds. Unload is not supported and
// always returns ErrUnloadUnsupported; Close releases the shared context.
package plugins
