// Package loader implements isolated loading contexts for plugin types.
//
// A Context searches an ordered list of archives for type descriptors, the way
// a class path is searched: the type com.example.Greeter is defined by the
// entry com/example/Greeter.type.yaml of the first archive that has it.
// Declared interfaces are resolved through the same context, so a type in one
// archive may implement an interface shipped in another.
//
//	ctx := loader.New([]string{"a.zip", "b.zip"}, loader.WithLogger(log))
//	defer ctx.Close()
//
//	t, err := ctx.Load("com.example.HelloGreeter")
//	if errors.Is(err, loader.ErrTypeNotFound) {
//		// missing type or missing dependency
//	}
//
// Every handle is owned by the context that loaded it. Two contexts over the
// same archives hand out different handles for the same name.
package loader
