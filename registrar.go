package ampoule

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Registrar batches registrations, applies the conflict policy between them
// and materializes the survivors as plain Bind* calls on a container. It
// never reads container internals beyond the registration surface.
//
// Four policies compose, per registration:
//
//   - AsDefault: only takes effect when no non-default registration claims
//     the same token, in the batch or already on the container; otherwise
//     the default entry is dropped entirely, not just shadowed.
//   - IfNotRegistered: skipped when any earlier registration, default or
//     not, already claimed the token.
//   - Named / Keyed: the entry binds a freshly minted private token recorded
//     in the container's name or key index; the public token is untouched.
//   - plain repeats: the first plain registration for a token binds the
//     public token, later ones bind private tokens; all of them are recorded
//     in order for ResolveAll.
type Registrar struct {
	entries []*Registration
}

func NewRegistrar() *Registrar {
	return &Registrar{}
}

// Registration is one pending entry in a Registrar batch. Its modifier
// methods return the same entry for chaining and must be called before
// Apply.
type Registration struct {
	token *Token

	kind         bindingKind
	value        any
	factory      Factory
	asyncFactory AsyncFactory
	ctor         any
	dependencies []*Token
	lifetime     Lifetime

	isDefault   bool
	conditional bool
	name        string
	hasName     bool
	key         any
	hasKey      bool
}

// Value adds a constant registration. Constants are always Singleton.
func (r *Registrar) Value(token *Token, value any) *Registration {
	return r.add(&Registration{token: token, kind: bindingConstant, value: value, lifetime: Singleton})
}

// Factory adds a factory registration, Transient unless WithLifetime says
// otherwise.
func (r *Registrar) Factory(token *Token, factory Factory) *Registration {
	return r.add(&Registration{token: token, kind: bindingFactory, factory: factory, lifetime: Transient})
}

// AsyncFactory adds an asynchronous factory registration, Transient unless
// WithLifetime says otherwise.
func (r *Registrar) AsyncFactory(token *Token, factory AsyncFactory) *Registration {
	return r.add(&Registration{token: token, kind: bindingAsyncFactory, asyncFactory: factory, lifetime: Transient})
}

// Constructor adds a constructor registration with its dependency tokens in
// parameter order, Transient unless WithLifetime says otherwise.
func (r *Registrar) Constructor(token *Token, ctorFunction any, dependencies ...*Token) *Registration {
	return r.add(&Registration{token: token, kind: bindingConstructor, ctor: ctorFunction, dependencies: dependencies, lifetime: Transient})
}

func (r *Registrar) add(reg *Registration) *Registration {
	if reg.token == nil {
		panic("token must not be nil")
	}
	r.entries = append(r.entries, reg)
	return reg
}

// AsDefault marks the entry as a fallback registration.
func (reg *Registration) AsDefault() *Registration {
	reg.isDefault = true
	return reg
}

// IfNotRegistered skips the entry when the token is already claimed.
func (reg *Registration) IfNotRegistered() *Registration {
	reg.conditional = true
	return reg
}

// Named binds the entry under a private token looked up via ResolveNamed.
func (reg *Registration) Named(name string) *Registration {
	reg.name = name
	reg.hasName = true
	return reg
}

// Keyed binds the entry under a private token looked up via ResolveKeyed.
func (reg *Registration) Keyed(key any) *Registration {
	reg.key = key
	reg.hasKey = true
	return reg
}

// WithLifetime overrides the entry's lifetime. Constants stay Singleton.
func (reg *Registration) WithLifetime(lifetime Lifetime) *Registration {
	if reg.kind == bindingConstant {
		return reg
	}
	reg.lifetime = lifetime
	return reg
}

// Apply materializes the batch onto c in declaration order. It fails on
// conflicting names or keys inside the batch; invalid constructors panic the
// same way the direct Bind* calls do.
func (r *Registrar) Apply(c *Container) error {
	// A default registration is dropped when any non-default entry in the
	// batch claims its token, no matter their relative order. Named and
	// keyed entries bind private tokens, so they are not claims on the
	// public token.
	nonDefault := map[*Token]bool{}
	for _, reg := range r.entries {
		if !reg.isDefault && !reg.hasName && !reg.hasKey {
			nonDefault[reg.token] = true
		}
	}

	claimed := map[*Token]bool{}
	names := map[string]bool{}
	keys := map[any]bool{}

	for _, reg := range r.entries {
		if reg.isDefault && (nonDefault[reg.token] || c.hasBinding(reg.token)) {
			c.logger.Debug("dropping default registration",
				zap.Stringer("token", reg.token))
			continue
		}
		if reg.conditional && (claimed[reg.token] || c.hasBinding(reg.token)) {
			continue
		}

		switch {
		case reg.hasName:
			if names[reg.name] {
				return errors.Errorf("name %q registered twice in one batch", reg.name)
			}
			names[reg.name] = true
			private := NewToken(subTokenDescription(reg.token, fmt.Sprintf("[name=%s]", reg.name)))
			reg.bind(c, private)
			c.registerName(reg.name, private)

		case reg.hasKey:
			if keys[reg.key] {
				return errors.Errorf("key %v registered twice in one batch", reg.key)
			}
			keys[reg.key] = true
			private := NewToken(subTokenDescription(reg.token, fmt.Sprintf("[key=%v]", reg.key)))
			reg.bind(c, private)
			c.registerKey(reg.key, private)

		default:
			target := reg.token
			if claimed[reg.token] {
				index := len(c.multi[reg.token])
				target = NewToken(subTokenDescription(reg.token, fmt.Sprintf("[%d]", index)))
			}
			reg.bind(c, target)
			c.appendMulti(reg.token, target)
			claimed[reg.token] = true
		}
	}
	return nil
}

func (reg *Registration) bind(c *Container, target *Token) {
	switch reg.kind {
	case bindingConstant:
		BindValue(c, target, reg.value)
	case bindingFactory:
		BindFactory(c, target, reg.factory, reg.lifetime)
	case bindingAsyncFactory:
		BindAsyncFactory(c, target, reg.asyncFactory, reg.lifetime)
	case bindingConstructor:
		BindConstructor(c, target, reg.ctor, reg.dependencies, reg.lifetime)
	default:
		panic(fmt.Sprintf("unknown registration kind %v", reg.kind))
	}
}

func subTokenDescription(public *Token, qualifier string) string {
	base := public.description
	if base == "" {
		base = fmt.Sprintf("#%d", public.id)
	}
	return base + qualifier
}
