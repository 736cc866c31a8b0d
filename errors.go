package ampoule

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ampoule-di/ampoule/internal"
)

// ErrAsyncBinding reports a synchronous Resolve reaching a binding backed by
// an AsyncFactory. Use ResolveAsync for those tokens instead.
var ErrAsyncBinding = errors.New("binding requires ResolveAsync")

// NotFoundError is returned when no binding exists for a token anywhere in
// the container's ancestor chain. Path holds the tokens that were being
// resolved when the lookup failed, outermost first.
type NotFoundError struct {
	Token *Token
	Path  []*Token
}

func (e *NotFoundError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("no binding registered for %v", e.Token)
	}
	return fmt.Sprintf("no binding registered for %v (resolution path: %s)", e.Token, pathString(e.Path))
}

// CircularDependencyError is returned when a token is requested again while
// it is still being constructed. Path holds the full active resolution path
// with the repeated token appended at the end.
type CircularDependencyError struct {
	Path []*Token
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", pathString(e.Path))
}

func pathString(path []*Token) string {
	rendered := internal.Map(path, func(t *Token) string { return t.String() })
	return strings.Join(rendered, " -> ")
}

// wrapConstruction attaches the failing token and the active resolution path
// to an error coming out of a factory or constructor. Resolution errors from
// nested dependencies already carry that context and pass through untouched.
func wrapConstruction(err error, token *Token, path []*Token) error {
	var circular *CircularDependencyError
	var notFound *NotFoundError
	if errors.As(err, &circular) || errors.As(err, &notFound) {
		return err
	}
	if len(path) == 0 {
		return errors.Wrapf(err, "failed to construct %v", token)
	}
	return errors.Wrapf(err, "failed to construct %v (resolution path: %s)", token, pathString(path))
}
