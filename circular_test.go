package ampoule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingService struct {
	pong *pongService
}

type pongService struct {
	ping *pingService
}

func newPingService(pong *pongService) *pingService {
	return &pingService{pong: pong}
}

func newPongService(ping *pingService) *pongService {
	return &pongService{ping: ping}
}

func TestCircularDependency(t *testing.T) {
	t.Parallel()

	t.Run("should report the full path for a two-token cycle", func(t *testing.T) {
		t.Parallel()

		c := NewContainer()
		pingToken := NewToken("ping")
		pongToken := NewToken("pong")

		BindConstructor(c, pingToken, newPingService, []*Token{pongToken}, Transient)
		BindConstructor(c, pongToken, newPongService, []*Token{pingToken}, Transient)

		_, err := Resolve(c, pingToken)
		require.Error(t, err)

		var circular *CircularDependencyError
		require.ErrorAs(t, err, &circular)
		assert.Contains(t, circular.Path, pingToken)
		assert.Contains(t, circular.Path, pongToken)
		assert.Contains(t, err.Error(), "Token<ping>")
		assert.Contains(t, err.Error(), "Token<pong>")
	})

	t.Run("should fail on a self-referential token", func(t *testing.T) {
		t.Parallel()

		c := NewContainer()
		selfToken := NewToken("self")
		BindFactory(c, selfToken, func(c *Container) (any, error) {
			return Resolve(c, selfToken)
		}, Transient)

		_, err := Resolve(c, selfToken)

		var circular *CircularDependencyError
		require.ErrorAs(t, err, &circular)
	})

	t.Run("should leave the container usable after the failure", func(t *testing.T) {
		t.Parallel()

		c := NewContainer()
		pingToken := NewToken("ping")
		pongToken := NewToken("pong")
		serviceToken := NewToken("service")

		BindConstructor(c, pingToken, newPingService, []*Token{pongToken}, Transient)
		BindConstructor(c, pongToken, newPongService, []*Token{pingToken}, Transient)
		BindConstructor(c, serviceToken, NewService, nil, Singleton)

		_, err := Resolve(c, pingToken)
		require.Error(t, err)

		// A failed branch must not poison later resolutions, not even of
		// the tokens that were part of the cycle.
		service, err := Resolve(c, serviceToken)
		require.NoError(t, err)
		assert.Equal(t, 12, service.(IService).GetValue())

		_, err = Resolve(c, pingToken)
		var circular *CircularDependencyError
		require.ErrorAs(t, err, &circular)
	})
}
