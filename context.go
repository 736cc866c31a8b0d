package ampoule

import (
	"slices"
	"sync"
)

// resolutionContext tracks one top-level resolve call tree: the tokens
// currently under construction (for cycle detection) and the per-request
// instance cache. A context is owned exclusively by the call tree that
// acquired it until release.
//
// The mutex exists for ResolveAsync, which fans dependency resolution out
// across goroutines sharing one context. The synchronous path takes the same
// locks; they are uncontended there.
type resolutionContext struct {
	mu sync.Mutex
	// active counts in-flight constructions per token. It is a multiset
	// rather than a set because concurrent ResolveAsync branches may hold
	// the same Transient token in flight at once.
	active     map[*Token]int
	stack      []*Token
	perRequest map[*Token]any
}

func newResolutionContext() *resolutionContext {
	return &resolutionContext{
		active:     map[*Token]int{},
		perRequest: map[*Token]any{},
	}
}

func (rc *resolutionContext) isResolving(token *Token) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.active[token] > 0
}

func (rc *resolutionContext) enterResolve(token *Token) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.active[token]++
	rc.stack = append(rc.stack, token)
}

// exitResolve must run on every exit path, success or failure, so a failed
// branch does not poison future sibling resolutions.
func (rc *resolutionContext) exitResolve(token *Token) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.active[token] > 1 {
		rc.active[token]--
	} else {
		delete(rc.active, token)
	}
	for i := len(rc.stack) - 1; i >= 0; i-- {
		if rc.stack[i] == token {
			rc.stack = slices.Delete(rc.stack, i, i+1)
			break
		}
	}
}

// path returns a snapshot of the active resolution path, outermost first.
func (rc *resolutionContext) path() []*Token {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return slices.Clone(rc.stack)
}

// cachePerRequest stores instance for token unless another instance is
// already cached, and returns the instance actually kept.
func (rc *resolutionContext) cachePerRequest(token *Token, instance any) any {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if existing, found := rc.perRequest[token]; found {
		return existing
	}
	rc.perRequest[token] = instance
	return instance
}

func (rc *resolutionContext) perRequestInstance(token *Token) (any, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	instance, found := rc.perRequest[token]
	return instance, found
}

func (rc *resolutionContext) reset() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.stack = rc.stack[:0]
	clear(rc.active)
	clear(rc.perRequest)
}

const defaultContextPoolSize = 10

// contexts is the process-wide pool of resolution contexts. Pooling is
// purely an optimization: resolution must behave identically with a fresh
// context every time.
var contexts = newContextPool(defaultContextPoolSize)

// contextPool is a bounded free list of resolution contexts.
type contextPool struct {
	mu       sync.Mutex
	free     []*resolutionContext
	capacity int
}

func newContextPool(capacity int) *contextPool {
	return &contextPool{capacity: capacity}
}

// acquire returns a reset, ready-to-use context, reusing a released one when
// available.
func (p *contextPool) acquire() *resolutionContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		rc := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		return rc
	}
	return newResolutionContext()
}

// release resets the context and returns it to the pool, discarding it when
// the pool is full.
func (p *contextPool) release(rc *resolutionContext) {
	rc.reset()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) < p.capacity {
		p.free = append(p.free, rc)
	}
}
