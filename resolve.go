package ampoule

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// Resolve builds the value bound to token, honoring the binding's lifetime.
//
// Repeated resolutions are served from a tier of caches: promoted singleton
// instances first, the general singleton cache next, then the precompiled
// zero-dependency Transient shortcuts. Only on a miss does resolution pay
// for context bookkeeping and cycle detection.
//
// When called from inside a factory or constructor that is itself being
// resolved, the enclosing resolution context is reused, so per-request
// instances and cycle detection span the whole call tree.
func Resolve(c *Container, token *Token) (any, error) {
	if instance, found := c.fastSingletons.Load(token); found {
		return instance, nil
	}
	if instance, found := c.singletons.Load(token); found {
		c.fastSingletons.Store(token, instance)
		return instance, nil
	}
	if construct, found := c.fastTransients[token]; found {
		// Zero-dependency transients cannot participate in cycles, so no
		// context is needed.
		instance, err := construct()
		if err != nil {
			return nil, wrapConstruction(err, token, nil)
		}
		return instance, nil
	}

	rc, topLevel := c.currentContext()
	if topLevel {
		defer c.releaseContext(rc)
	}
	return c.resolveWithContext(rc, token)
}

// ResolveAs resolves token and asserts the result to T.
func ResolveAs[T any](c *Container, token *Token) (T, error) {
	var zero T
	instance, err := Resolve(c, token)
	if err != nil {
		return zero, err
	}
	if instance == nil {
		return zero, nil
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, errors.Errorf("%v resolved to %T, which is not assignable to %v", token, instance, reflect.TypeOf((*T)(nil)).Elem())
	}
	return typed, nil
}

// ResolveAll resolves every instance recorded in the multi-registration
// index for token, in registration order. A token with no multi
// registrations yields an empty slice, not an error.
func ResolveAll(c *Container, token *Token) ([]any, error) {
	tokens := c.multiTokens(token)
	instances := make([]any, 0, len(tokens))
	for _, t := range tokens {
		instance, err := Resolve(c, t)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// ResolveNamed resolves the private token registered under name.
func ResolveNamed(c *Container, name string) (any, error) {
	for ancestor := c; ancestor != nil; ancestor = ancestor.parent {
		if token, found := ancestor.names[name]; found {
			return Resolve(c, token)
		}
	}
	return nil, errors.Errorf("no binding registered under name %q", name)
}

// ResolveKeyed resolves the private token registered under key.
func ResolveKeyed(c *Container, key any) (any, error) {
	for ancestor := c; ancestor != nil; ancestor = ancestor.parent {
		if token, found := ancestor.keys[key]; found {
			return Resolve(c, token)
		}
	}
	return nil, errors.Errorf("no binding registered under key %v", key)
}

func (c *Container) resolveWithContext(rc *resolutionContext, token *Token) (any, error) {
	if rc.isResolving(token) {
		return nil, &CircularDependencyError{Path: append(rc.path(), token)}
	}

	b, found := c.lookupBinding(token)
	if !found {
		return nil, &NotFoundError{Token: token, Path: rc.path()}
	}

	if b.lifetime == PerRequest {
		if instance, cached := rc.perRequestInstance(token); cached {
			return instance, nil
		}
	}
	if b.lifetime == Singleton {
		// Parent singleton caches are never consulted: singleton scope is
		// per container, so a child builds its own instance of an inherited
		// binding. Constants short-circuit this in construct.
		if instance, cached := c.singletons.Load(token); cached {
			return instance, nil
		}
	}

	rc.enterResolve(token)
	// Deferred so a panicking constructor or factory cannot leave the token
	// in the active set for the rest of the call tree.
	defer rc.exitResolve(token)

	instance, err := c.construct(rc, token, b)
	if err != nil {
		return nil, err
	}

	switch b.lifetime {
	case Singleton:
		instance = c.storeSingleton(token, instance)
	case PerRequest:
		instance = rc.cachePerRequest(token, instance)
	}
	return instance, nil
}

func (c *Container) construct(rc *resolutionContext, token *Token, b *binding) (any, error) {
	switch b.kind {
	case bindingConstant:
		return b.value, nil

	case bindingFactory:
		instance, err := b.factory(c)
		if err != nil {
			return nil, wrapConstruction(err, token, rc.path())
		}
		return instance, nil

	case bindingAsyncFactory:
		return nil, errors.Wrapf(ErrAsyncBinding, "cannot synchronously resolve %v", token)

	case bindingConstructor:
		if b.fastConstruct != nil {
			instance, err := b.fastConstruct()
			if err != nil {
				return nil, wrapConstruction(err, token, rc.path())
			}
			return instance, nil
		}

		// Dependencies resolve depth-first, left to right, on the same
		// context, so their side effects are strictly ordered.
		arguments := make([]reflect.Value, len(b.dependencies))
		for i, dependency := range b.dependencies {
			instance, err := Resolve(c, dependency)
			if err != nil {
				if argument, handled := c.lenientZero(b, i, dependency, err); handled {
					arguments[i] = argument
					continue
				}
				return nil, err
			}
			argument, err := b.argumentValue(i, instance)
			if err != nil {
				return nil, wrapConstruction(err, token, rc.path())
			}
			arguments[i] = argument
		}

		instance, err := b.call(arguments)
		if err != nil {
			return nil, wrapConstruction(err, token, rc.path())
		}
		return instance, nil
	}

	panic(fmt.Sprintf("unknown binding kind %v", b.kind))
}

// lenientZero reports whether a failed dependency resolution should be
// absorbed as a zero-valued argument under WithLenientDependencies. Only a
// missing binding for the dependency token itself qualifies; deeper failures
// always propagate.
func (c *Container) lenientZero(b *binding, index int, dependency *Token, err error) (reflect.Value, bool) {
	if !c.lenientDependencies {
		return reflect.Value{}, false
	}
	var notFound *NotFoundError
	if !errors.As(err, &notFound) || notFound.Token != dependency {
		return reflect.Value{}, false
	}
	return reflect.Zero(b.ctorType.In(index)), true
}

// storeSingleton caches instance for token and records construction order
// for disposal. When another instance won the race it is returned instead.
func (c *Container) storeSingleton(token *Token, instance any) any {
	if existing, loaded := c.singletons.LoadOrStore(token, instance); loaded {
		return existing
	}
	c.fastSingletons.Store(token, instance)
	c.orderMu.Lock()
	c.singletonOrder = append(c.singletonOrder, token)
	c.orderMu.Unlock()
	return instance
}
