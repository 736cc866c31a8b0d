package ampoule

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// requestGraph wires a diamond: the handler depends on the repository both
// directly and through an intermediate service, so one top-level resolve
// touches the per-request token twice.
type requestHandler struct {
	repository IRepository
	service    *ServiceWithRepository
}

func newRequestHandler(repository IRepository, service *ServiceWithRepository) *requestHandler {
	return &requestHandler{repository: repository, service: service}
}

func TestPerRequest(t *testing.T) {
	t.Parallel()

	newDiamond := func() (*Container, *Token) {
		c := NewContainer()
		repositoryToken := NewToken("repository")
		serviceToken := NewToken("service")
		handlerToken := NewToken("handler")

		BindConstructor(c, repositoryToken, NewRepository, nil, PerRequest)
		BindConstructor(c, serviceToken, NewServiceWithRepository, []*Token{repositoryToken}, Transient)
		BindConstructor(c, handlerToken, newRequestHandler, []*Token{repositoryToken, serviceToken}, Transient)

		return c, handlerToken
	}

	t.Run("should share one instance inside a single call tree", func(t *testing.T) {
		t.Parallel()

		c, handlerToken := newDiamond()

		handler, err := ResolveAs[*requestHandler](c, handlerToken)
		require.NoError(t, err)

		require.Same(t, handler.repository, handler.service.repository)
	})

	t.Run("should produce distinct instances across call trees", func(t *testing.T) {
		t.Parallel()

		c, handlerToken := newDiamond()

		first, err := ResolveAs[*requestHandler](c, handlerToken)
		require.NoError(t, err)
		second, err := ResolveAs[*requestHandler](c, handlerToken)
		require.NoError(t, err)

		require.NotSame(t, first.repository, second.repository)
	})

	t.Run("should behave identically when contexts are recycled through the pool", func(t *testing.T) {
		t.Parallel()

		c, handlerToken := newDiamond()

		seen := map[IRepository]bool{}
		for n := 0; n < defaultContextPoolSize*3; n++ {
			handler, err := ResolveAs[*requestHandler](c, handlerToken)
			require.NoError(t, err)
			require.Same(t, handler.repository, handler.service.repository)
			require.False(t, seen[handler.repository], "per-request instance leaked across call trees")
			seen[handler.repository] = true
		}
	})
}
