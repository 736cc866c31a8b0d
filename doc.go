// Package ampoule is an inversion-of-control container built around opaque
// tokens: a registry mapping tokens to construction strategies (constants,
// factories, constructors with declared dependency tokens) and a resolver
// that builds object graphs on demand while enforcing lifetime and
// uniqueness guarantees.
//
// Basic usage:
//
//	logToken := ampoule.NewToken("logger")
//	svcToken := ampoule.NewToken("service")
//
//	c := ampoule.NewContainer()
//	ampoule.BindValue(c, logToken, logger)
//	ampoule.BindConstructor(c, svcToken, NewService, []*ampoule.Token{logToken}, ampoule.Singleton)
//
//	svc, err := ampoule.ResolveAs[*Service](c, svcToken)
//
// Lifetimes are Singleton (one instance per container), PerRequest (one
// instance per top-level resolve call tree) and Transient (a new instance
// every time). Child containers created with CreateChildContainer inherit
// bindings from their parent, shadow them on conflict and cache singletons
// independently.
//
// Registration conflict policy (defaults, conditionals, named and keyed
// entries, multi-registration for ResolveAll) lives in the Registrar; the
// container itself only ever sees plain bind calls.
//
// Containers are meant for single-threaded, or externally serialized, use.
// The exception is ResolveAsync, which fans a constructor's dependency
// resolution out across goroutines within one call tree.
package ampoule
