// Package capability decides whether types loaded from plugin archives
// implement capability interfaces known to the host.
//
// Types coming from different loading contexts are never identical, so the
// comparison is structural. Two interfaces match when they share the simple
// name, the annotation multiset and the same list of methods:
//
//	m := capability.NewMatcher()
//	if mm := m.Explain(candidate, greeter); mm != nil {
//		log.Printf("not a greeter: %v", mm)
//	}
//
// Methods are paired by declaration index unless WithMethodOrder(OrderByName)
// is given. A Policy decides whether a type has to implement any or all of a
// set of requested capabilities.
package capability
