// Package typedef defines the type model shared by plugin archives and the host.
//
// # Overview
//
// Plugin types are shipped as YAML descriptors inside archives. A descriptor
// names the type, its kind (interface, class or abstract), its annotations,
// its declared interfaces and its methods in declaration order:
//
//	name: com.example.HelloGreeter
//	kind: class
//	interfaces: [com.example.Greeter]
//	methods:
//	  - name: Greet
//	    returns: string
//	    params:
//	      - {name: who, type: string}
//	properties: {greeting: hello}
//
// Decoding yields a Definition. A loading context turns definitions into Type
// handles which it owns for its whole lifetime.
//
// # Host Types
//
// The host describes the capabilities it wants in a Universe, either from
// descriptor files or straight from a Go interface:
//
//	host := typedef.NewUniverse()
//	greeter, err := typedef.DefineInterface[Greeter](host)
//
// Handles from the Universe and from a plugin context are never identical,
// even for textually identical definitions. Use pkg/capability to compare them.
package typedef
