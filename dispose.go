package ampoule

import (
	"io"
	"slices"

	"go.uber.org/zap"

	"github.com/ampoule-di/ampoule/internal"
)

// Disposable is implemented by instances that need teardown when the
// container that constructed them is disposed.
type Disposable interface {
	Dispose() error
}

// disposeHook is a type-erased OnDispose callback. It reports whether the
// instance matched the hook's type.
type disposeHook func(instance any) (bool, error)

// OnDispose registers a hook invoked during Dispose for every cached
// singleton assignable to T. When at least one hook matches an instance,
// the hooks take over teardown and the Disposable / io.Closer fallback is
// skipped for it.
func OnDispose[T any](c *Container, hook func(instance T) error) {
	c.disposeHooks = append(c.disposeHooks, func(instance any) (bool, error) {
		typed, ok := instance.(T)
		if !ok {
			return false, nil
		}
		return true, hook(typed)
	})
}

// Dispose tears down every singleton this container constructed, in reverse
// construction order, then clears the singleton caches. A failing or
// panicking hook is logged and swallowed so the remaining instances still
// get their turn. Parent and child containers are not touched.
//
// The container stays usable afterwards: singleton bindings simply construct
// fresh instances on the next resolution.
func Dispose(c *Container) {
	c.orderMu.Lock()
	order := slices.Clone(c.singletonOrder)
	c.singletonOrder = nil
	c.orderMu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		token := order[i]
		instance, found := c.singletons.Load(token)
		if !found {
			continue
		}
		c.disposeInstance(token, instance)
	}

	c.singletons = internal.NewSyncMap[*Token, any]()
	c.fastSingletons = internal.NewSyncMap[*Token, any]()
}

func (c *Container) disposeInstance(token *Token, instance any) {
	defer func() {
		if recovered := recover(); recovered != nil {
			c.logger.Error("panic while disposing instance",
				zap.Stringer("token", token),
				zap.Any("panic", recovered))
		}
	}()

	matched := false
	for _, hook := range c.disposeHooks {
		hookMatched, err := hook(instance)
		if err != nil {
			c.logger.Error("dispose hook failed",
				zap.Stringer("token", token),
				zap.Error(err))
		}
		matched = matched || hookMatched
	}
	if matched {
		return
	}

	switch d := instance.(type) {
	case Disposable:
		if err := d.Dispose(); err != nil {
			c.logger.Error("instance disposal failed",
				zap.Stringer("token", token),
				zap.Error(err))
		}
	case io.Closer:
		if err := d.Close(); err != nil {
			c.logger.Error("instance close failed",
				zap.Stringer("token", token),
				zap.Error(err))
		}
	}
}
