package ampoule

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ampoule-di/ampoule/internal"
)

// ContainerToken resolves to the container a resolution was started on, so
// factories and constructors can take the container itself as a dependency.
// Every container, including children, binds itself under this token.
var ContainerToken = NewToken("ampoule.Container")

// Container maps tokens to bindings and builds object graphs on demand.
//
// Most of the API is exposed as package-level functions instead of methods
// because Go does not allow methods with generic type parameters.
//
// A Container is not safe for concurrent registration, and two resolution
// call trees racing on the same container is a contract violation. The
// instance caches are still synchronized internally so that ResolveAsync can
// fan out dependency resolution inside a single call tree.
type Container struct {
	// bindings is this container's own token -> binding map. It is mutated
	// only by Bind* calls, never by resolution.
	bindings map[*Token]*binding

	// version increments on every registration. Summed up the ancestor
	// chain it acts as a staleness stamp for the flattened lookup cache.
	version uint64

	// singletons caches instances constructed with the Singleton lifetime.
	// Singleton scope is per container: a child builds its own instance for
	// a constructor or factory binding it inherited from the parent.
	singletons *internal.SyncMap[*Token, any]

	// singletonOrder records construction order so Dispose can run hooks in
	// reverse.
	orderMu        sync.Mutex
	singletonOrder []*Token

	// fastSingletons is the promoted micro cache, checked before anything
	// else on the resolve path.
	fastSingletons *internal.SyncMap[*Token, any]

	// fastTransients holds the precompiled shortcuts for zero-dependency
	// Transient constructors bound on this container.
	fastTransients map[*Token]func() (any, error)

	// flat is the read-through cache flattening this container's bindings
	// with every ancestor's, child winning on conflict. flatVersion is the
	// chain version the cache was built against.
	flatMu      sync.Mutex
	flat        map[*Token]*binding
	flatVersion uint64

	// Side indexes populated by the Registrar.
	names map[string]*Token
	keys  map[any]*Token
	multi map[*Token][]*Token

	disposeHooks []disposeHook

	// activeContext is set while a top-level resolution is running so that
	// nested resolve calls made from factories reuse the same context.
	activeContext atomic.Pointer[resolutionContext]

	// parent is a non-owning reference: the parent must outlive the child,
	// and disposal never cascades in either direction.
	parent *Container

	logger              *zap.Logger
	lenientDependencies bool
}

// ContainerOption configures a container at construction time.
type ContainerOption func(c *Container)

// WithLogger sets the logger used for swallowed failures, such as disposal
// hooks that error out. The default is a no-op logger.
func WithLogger(logger *zap.Logger) ContainerOption {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithLenientDependencies makes a constructor dependency whose token has no
// binding inject the parameter's zero value instead of failing the whole
// resolution. Top-level Resolve calls on an unbound token still fail with
// NotFoundError. The default is strict.
func WithLenientDependencies() ContainerOption {
	return func(c *Container) {
		c.lenientDependencies = true
	}
}

// NewContainer instantiates a new root container.
func NewContainer(opts ...ContainerOption) *Container {
	c := &Container{
		bindings:       map[*Token]*binding{},
		singletons:     internal.NewSyncMap[*Token, any](),
		fastSingletons: internal.NewSyncMap[*Token, any](),
		fastTransients: map[*Token]func() (any, error){},
		flat:           map[*Token]*binding{},
		names:          map[string]*Token{},
		keys:           map[any]*Token{},
		multi:          map[*Token][]*Token{},
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	BindValue(c, ContainerToken, c)
	return c
}

// CreateChildContainer returns a container that inherits bindings from c.
// The child starts with an empty binding map; resolution falls through to
// the parent chain, with the child shadowing the parent on conflict. The
// child holds a non-owning reference to c, so c must outlive it.
func CreateChildContainer(c *Container) *Container {
	child := NewContainer()
	child.parent = c
	child.logger = c.logger
	child.lenientDependencies = c.lenientDependencies
	return child
}

// BindValue registers a precomputed constant for token. Constants are
// effectively Singleton: the same value is returned on every resolution,
// including resolutions on child containers.
func BindValue(c *Container, token *Token, value any) {
	c.insert(token, &binding{kind: bindingConstant, lifetime: Singleton, value: value})
}

// BindFactory registers a factory for token with the given lifetime.
func BindFactory(c *Container, token *Token, factory Factory, lifetime Lifetime) {
	if factory == nil {
		panic("factory must not be nil")
	}
	c.insert(token, &binding{kind: bindingFactory, lifetime: lifetime, factory: factory})
}

// BindAsyncFactory registers an asynchronous factory for token. The binding
// can only be resolved through ResolveAsync.
func BindAsyncFactory(c *Container, token *Token, factory AsyncFactory, lifetime Lifetime) {
	if factory == nil {
		panic("factory must not be nil")
	}
	c.insert(token, &binding{kind: bindingAsyncFactory, lifetime: lifetime, asyncFactory: factory})
}

// BindConstructor registers a constructor function for token together with
// the tokens of its dependencies, declared in parameter order.
//
// ctorFunction must be a function taking exactly len(dependencies) arguments
// and returning one value or a (value, error) tuple. Dependencies are
// resolved depth-first, left to right, and passed positionally.
func BindConstructor(c *Container, token *Token, ctorFunction any, dependencies []*Token, lifetime Lifetime) {
	c.insert(token, newConstructorBinding(ctorFunction, dependencies, lifetime))
}

func (c *Container) insert(token *Token, b *binding) {
	if token == nil {
		panic("token must not be nil")
	}
	if b.lifetime < Transient || b.lifetime > Singleton {
		panic(fmt.Sprintf("invalid lifetime %d for %v", int(b.lifetime), token))
	}

	c.bindings[token] = b
	c.version++

	// Re-registering drops the promoted micro cache entry and the zero-dep
	// shortcut; the general singleton cache keeps any already-constructed
	// instance until Dispose.
	c.fastSingletons.Delete(token)
	delete(c.fastTransients, token)
	if b.fastConstruct != nil {
		c.fastTransients[token] = b.fastConstruct
	}

	c.flatMu.Lock()
	c.flat = map[*Token]*binding{}
	c.flatVersion = c.chainVersion()
	c.flatMu.Unlock()
}

func (c *Container) hasBinding(token *Token) bool {
	_, found := c.bindings[token]
	return found
}

func (c *Container) chainVersion() uint64 {
	v := c.version
	if c.parent != nil {
		v += c.parent.chainVersion()
	}
	return v
}

// lookupBinding finds the binding for token by walking this container and
// then its ancestors, through the flattened read-through cache. A stale
// cache (any registration anywhere in the chain since it was built) is
// discarded wholesale.
func (c *Container) lookupBinding(token *Token) (*binding, bool) {
	c.flatMu.Lock()
	defer c.flatMu.Unlock()

	if v := c.chainVersion(); v != c.flatVersion {
		c.flat = map[*Token]*binding{}
		c.flatVersion = v
	}
	if b, found := c.flat[token]; found {
		return b, true
	}
	for ancestor := c; ancestor != nil; ancestor = ancestor.parent {
		if b, found := ancestor.bindings[token]; found {
			c.flat[token] = b
			return b, true
		}
	}
	return nil, false
}

// currentContext returns the context of the enclosing resolution when one is
// active, or acquires a fresh one from the pool. The boolean reports whether
// the caller became the top-level resolution and must release the context.
func (c *Container) currentContext() (*resolutionContext, bool) {
	if rc := c.activeContext.Load(); rc != nil {
		return rc, false
	}
	rc := contexts.acquire()
	c.activeContext.Store(rc)
	return rc, true
}

func (c *Container) releaseContext(rc *resolutionContext) {
	c.activeContext.Store(nil)
	contexts.release(rc)
}

// registerName, registerKey and appendMulti maintain the side indexes the
// Registrar resolves names, keys and multi-registrations through.

func (c *Container) registerName(name string, token *Token) {
	c.names[name] = token
}

func (c *Container) registerKey(key any, token *Token) {
	c.keys[key] = token
}

func (c *Container) appendMulti(public *Token, entry *Token) {
	c.multi[public] = append(c.multi[public], entry)
}

// multiTokens returns the ordered multi-registration index for token from
// the nearest container in the chain that has one.
func (c *Container) multiTokens(token *Token) []*Token {
	for ancestor := c; ancestor != nil; ancestor = ancestor.parent {
		if tokens, found := ancestor.multi[token]; found {
			return tokens
		}
	}
	return nil
}
