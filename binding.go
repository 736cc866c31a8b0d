package ampoule

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/pkg/errors"
)

// Lifetime controls how long a resolved instance is reused.
type Lifetime int

const (
	// Transient bindings produce a new instance on every resolution.
	Transient Lifetime = iota + 1
	// PerRequest bindings produce one instance per top-level resolve call
	// tree, shared by every nested resolution within it.
	PerRequest
	// Singleton bindings produce one instance per container.
	Singleton
)

func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "Transient"
	case PerRequest:
		return "PerRequest"
	case Singleton:
		return "Singleton"
	default:
		return "Unknown"
	}
}

// Factory produces a value on demand. The container argument is the one the
// resolution started on, so nested Resolve calls made from inside a factory
// see child bindings and share the enclosing resolution context.
type Factory func(c *Container) (any, error)

// AsyncFactory is a factory that may block on asynchronous work. Bindings
// backed by an AsyncFactory can only be resolved through ResolveAsync; a
// synchronous Resolve reaching one fails with ErrAsyncBinding.
type AsyncFactory func(ctx context.Context, c *Container) (any, error)

type bindingKind int

const (
	bindingConstant bindingKind = iota + 1
	bindingFactory
	bindingAsyncFactory
	bindingConstructor
)

func (k bindingKind) String() string {
	switch k {
	case bindingConstant:
		return "constant"
	case bindingFactory:
		return "factory"
	case bindingAsyncFactory:
		return "async factory"
	case bindingConstructor:
		return "constructor"
	default:
		return "unknown"
	}
}

// binding is the tagged variant behind a token: exactly one of value,
// factory, asyncFactory or ctor is meaningful, selected by kind. Bindings
// are immutable once inserted into a container; re-registration replaces the
// whole entry.
type binding struct {
	kind     bindingKind
	lifetime Lifetime

	value        any
	factory      Factory
	asyncFactory AsyncFactory

	ctor         reflect.Value
	ctorType     reflect.Type
	returnsError bool
	dependencies []*Token

	// fastConstruct is precompiled at registration time for zero-dependency
	// Transient constructors. Purely an optimization: such bindings cannot
	// participate in cycles, so they skip context bookkeeping entirely.
	fastConstruct func() (any, error)
}

func newConstructorBinding(ctorFunction any, dependencies []*Token, lifetime Lifetime) *binding {
	ctor := reflect.ValueOf(ctorFunction)
	ctorType := ctor.Type()

	if ctorType.Kind() != reflect.Func || ctorType.NumOut() < 1 || ctorType.NumOut() > 2 {
		panic("constructor must be a function returning exactly one value, or a value and an error")
	}
	returnsError := false
	if ctorType.NumOut() == 2 {
		if !ctorType.Out(1).AssignableTo(reflect.TypeOf((*error)(nil)).Elem()) {
			panic("constructor must be a function returning exactly one value, or a value and an error")
		}
		returnsError = true
	}
	if ctorType.IsVariadic() {
		panic("variadic constructors are not supported")
	}
	if ctorType.NumIn() != len(dependencies) {
		panic(fmt.Sprintf("constructor takes %d arguments, but %d dependency tokens were declared", ctorType.NumIn(), len(dependencies)))
	}
	for i, dependency := range dependencies {
		if dependency == nil {
			panic(fmt.Sprintf("dependency token %d is nil", i))
		}
	}

	b := &binding{
		kind:         bindingConstructor,
		lifetime:     lifetime,
		ctor:         ctor,
		ctorType:     ctorType,
		returnsError: returnsError,
		dependencies: slices.Clone(dependencies),
	}
	if lifetime == Transient && len(dependencies) == 0 {
		b.fastConstruct = func() (any, error) {
			return b.call(nil)
		}
	}
	return b
}

// call invokes the constructor with already-resolved dependency values.
func (b *binding) call(arguments []reflect.Value) (any, error) {
	results := b.ctor.Call(arguments)
	if b.returnsError {
		if err := results[1].Interface(); err != nil {
			return nil, err.(error)
		}
	}
	return results[0].Interface(), nil
}

// argumentValue adapts a resolved dependency to the constructor's parameter
// type, mapping untyped nils to the parameter's zero value where that is
// representable.
func (b *binding) argumentValue(index int, instance any) (reflect.Value, error) {
	paramType := b.ctorType.In(index)
	if instance == nil {
		switch paramType.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(paramType), nil
		default:
			return reflect.Value{}, errors.Errorf("dependency %v resolved to nil, which is not assignable to parameter %d (%v)", b.dependencies[index], index, paramType)
		}
	}
	value := reflect.ValueOf(instance)
	if !value.Type().AssignableTo(paramType) {
		return reflect.Value{}, errors.Errorf("dependency %v resolved to %T, which is not assignable to parameter %d (%v)", b.dependencies[index], instance, index, paramType)
	}
	return value, nil
}
