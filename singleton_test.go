package ampoule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleton(t *testing.T) {
	t.Parallel()

	t.Run("should resolve the correct type", func(t *testing.T) {
		t.Parallel()

		c := NewContainer()
		serviceToken := NewToken("service")
		BindConstructor(c, serviceToken, NewService, nil, Singleton)

		service, err := ResolveAs[IService](c, serviceToken)
		require.NoError(t, err)

		assert.IsType(t, &Service{}, service)
		assert.Equal(t, 12, service.GetValue())
	})

	t.Run("should resolve the same instance on every call", func(t *testing.T) {
		t.Parallel()

		c := NewContainer()
		serviceToken := NewToken("service")
		BindConstructor(c, serviceToken, NewService, nil, Singleton)

		first, err := Resolve(c, serviceToken)
		require.NoError(t, err)
		second, err := Resolve(c, serviceToken)
		require.NoError(t, err)

		require.Same(t, first.(IService), second.(IService))
	})

	t.Run("should call the constructor only once", func(t *testing.T) {
		t.Parallel()

		c := NewContainer()
		serviceToken := NewToken("service")

		constructorCallCount := 0
		BindFactory(c, serviceToken, func(c *Container) (any, error) {
			constructorCallCount++
			return NewService(), nil
		}, Singleton)

		for n := 0; n < 5; n++ {
			_, err := Resolve(c, serviceToken)
			require.NoError(t, err)
		}

		assert.Equal(t, 1, constructorCallCount)
	})

	t.Run("should share the singleton dependency with direct resolution", func(t *testing.T) {
		t.Parallel()

		// The captured dependency of a cached singleton must be the same
		// object a direct resolve of the dependency token returns.
		c := NewContainer()
		logToken := NewToken("event log")
		emitterToken := NewToken("emitter")

		BindValue(c, logToken, &EventLog{})
		BindConstructor(c, emitterToken, NewEmitter, []*Token{logToken}, Singleton)

		first, err := ResolveAs[*Emitter](c, emitterToken)
		require.NoError(t, err)
		second, err := ResolveAs[*Emitter](c, emitterToken)
		require.NoError(t, err)
		log, err := ResolveAs[*EventLog](c, logToken)
		require.NoError(t, err)

		require.Same(t, first, second)
		require.Same(t, log, first.Log)
	})

	t.Run("should keep the old instance when the token is re-registered", func(t *testing.T) {
		t.Parallel()

		// Re-registration replaces the binding but leaves an already
		// constructed singleton in the cache until Dispose.
		c := NewContainer()
		serviceToken := NewToken("service")
		BindConstructor(c, serviceToken, NewService, nil, Singleton)

		before, err := Resolve(c, serviceToken)
		require.NoError(t, err)

		BindConstructor(c, serviceToken, NewRepository, nil, Singleton)

		after, err := Resolve(c, serviceToken)
		require.NoError(t, err)
		require.Same(t, before.(IService), after.(IService))

		Dispose(c)

		fresh, err := Resolve(c, serviceToken)
		require.NoError(t, err)
		assert.IsType(t, &Repository{}, fresh)
	})
}
