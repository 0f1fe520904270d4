package health_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/doclinks/internal/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	err error
}

func (m *mockChecker) Ping(_ context.Context) error {
	return m.err
}

func TestHandler_Check(t *testing.T) {
	t.Run("returns ok when every dependency is healthy", func(t *testing.T) {
		handler := health.NewHandler(map[string]health.Checker{
			"redis":    &mockChecker{},
			"postgres": &mockChecker{},
		})

		resp, err := handler.Check(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Body.Status)
		assert.Equal(t, map[string]string{"redis": "healthy", "postgres": "healthy"}, resp.Body.Dependencies)
	})

	t.Run("returns degraded when a dependency is unhealthy", func(t *testing.T) {
		handler := health.NewHandler(map[string]health.Checker{
			"redis":    &mockChecker{err: errors.New("connection refused")},
			"postgres": &mockChecker{},
		})

		resp, err := handler.Check(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, "degraded", resp.Body.Status)
		assert.Equal(t, "unhealthy", resp.Body.Dependencies["redis"])
		assert.Equal(t, "healthy", resp.Body.Dependencies["postgres"])
	})

	t.Run("returns ok with no dependencies", func(t *testing.T) {
		resp, err := health.NewHandler(nil).Check(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Body.Status)
		assert.Empty(t, resp.Body.Dependencies)
	})
}

func TestRegisterRoutes(t *testing.T) {
	_, api := humatest.New(t)
	health.RegisterRoutes(api, health.NewHandler(map[string]health.Checker{"redis": &mockChecker{}}))

	resp := api.Get("/health")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"ok"`)
}

func TestRedisChecker(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	checker := health.NewRedisChecker(client)

	t.Run("Ping returns nil when redis is available", func(t *testing.T) {
		assert.NoError(t, checker.Ping(context.Background()))
	})

	t.Run("Ping fails once redis is gone", func(t *testing.T) {
		mr.Close()

		assert.Error(t, checker.Ping(context.Background()))
	})
}
