package ampoule

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"golang.org/x/sync/errgroup"
)

// ResolveAsync follows the same state machine as Resolve but additionally
// supports bindings backed by an AsyncFactory, and resolves a constructor's
// dependencies concurrently. The constructor itself is only invoked after
// every dependency has settled.
//
// The fan-out means side effects of sibling dependency construction are not
// ordered relative to each other; that is a documented relaxation of the
// synchronous path's strict left-to-right ordering, not a bug. If two
// branches race to construct the same Singleton or PerRequest token, one
// instance wins the cache and is the one handed to every caller.
//
// Cancelling ctx stops the fan-out from starting further dependency
// branches, but does not interrupt a factory already running.
//
// The active branch path travels on ctx across AsyncFactory boundaries: a
// factory that resolves further tokens must pass along the ctx it was
// handed, or cycle detection is severed at the factory boundary.
func ResolveAsync(ctx context.Context, c *Container, token *Token) (any, error) {
	if instance, found := c.fastSingletons.Load(token); found {
		return instance, nil
	}
	if instance, found := c.singletons.Load(token); found {
		c.fastSingletons.Store(token, instance)
		return instance, nil
	}
	if construct, found := c.fastTransients[token]; found {
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
	return c.resolveAsync(ctx, rc, branchPathFrom(ctx), token)
}

// branchPathKey carries the active branch path across asynchronous factory
// boundaries, so that a nested ResolveAsync call made from inside a factory
// inherits its ancestors for cycle detection.
type branchPathKey struct{}

func branchPathFrom(ctx context.Context) []*Token {
	if path, ok := ctx.Value(branchPathKey{}).([]*Token); ok {
		return path
	}
	return nil
}

// resolveAsync mirrors resolveWithContext, except the active path travels as
// an explicit per-branch value: concurrent sibling branches each extend
// their own copy, so one branch constructing a token is never mistaken for a
// cycle by another.
func (c *Container) resolveAsync(ctx context.Context, rc *resolutionContext, path []*Token, token *Token) (any, error) {
	if instance, found := c.fastSingletons.Load(token); found {
		return instance, nil
	}

	if slices.Contains(path, token) {
		return nil, &CircularDependencyError{Path: append(slices.Clone(path), token)}
	}

	b, found := c.lookupBinding(token)
	if !found {
		return nil, &NotFoundError{Token: token, Path: slices.Clone(path)}
	}

	if b.lifetime == PerRequest {
		if instance, cached := rc.perRequestInstance(token); cached {
			return instance, nil
		}
	}
	if b.lifetime == Singleton {
		if instance, cached := c.singletons.Load(token); cached {
			return instance, nil
		}
	}

	branchPath := append(slices.Clone(path), token)

	// The shared context records async constructions too, so a synchronous
	// Resolve made from inside a factory sees its async ancestors and
	// reports cycles with the full path.
	rc.enterResolve(token)
	defer rc.exitResolve(token)

	instance, err := c.constructAsync(ctx, rc, branchPath, token, b)
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

func (c *Container) constructAsync(ctx context.Context, rc *resolutionContext, path []*Token, token *Token, b *binding) (any, error) {
	switch b.kind {
	case bindingConstant:
		return b.value, nil

	case bindingFactory:
		instance, err := b.factory(c)
		if err != nil {
			return nil, wrapConstruction(err, token, path)
		}
		return instance, nil

	case bindingAsyncFactory:
		instance, err := b.asyncFactory(context.WithValue(ctx, branchPathKey{}, path), c)
		if err != nil {
			return nil, wrapConstruction(err, token, path)
		}
		return instance, nil

	case bindingConstructor:
		if b.fastConstruct != nil {
			instance, err := b.fastConstruct()
			if err != nil {
				return nil, wrapConstruction(err, token, path)
			}
			return instance, nil
		}

		arguments := make([]reflect.Value, len(b.dependencies))
		group, groupCtx := errgroup.WithContext(ctx)
		for i, dependency := range b.dependencies {
			i, dependency := i, dependency
			group.Go(func() error {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				instance, err := c.resolveAsync(groupCtx, rc, path, dependency)
				if err != nil {
					if argument, handled := c.lenientZero(b, i, dependency, err); handled {
						arguments[i] = argument
						return nil
					}
					return err
				}
				argument, err := b.argumentValue(i, instance)
				if err != nil {
					return wrapConstruction(err, token, path)
				}
				arguments[i] = argument
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}

		instance, err := b.call(arguments)
		if err != nil {
			return nil, wrapConstruction(err, token, path)
		}
		return instance, nil
	}

	panic(fmt.Sprintf("unknown binding kind %v", b.kind))
}
