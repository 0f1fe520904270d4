package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/doclinks/internal/middleware"
	"github.com/serroba/doclinks/internal/ratelimit"
	"github.com/serroba/doclinks/internal/store"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type brokenStore struct{}

func (brokenStore) Record(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func newLimitedAPI(s ratelimit.Store, policy *ratelimit.Policy) *chi.Mux {
	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
	api.UseMiddleware(middleware.PolicyRateLimiter(api, ratelimit.NewPolicyLimiter(s, policy), zap.NewNop()))

	ok := func(context.Context, *struct{}) (*testOutput, error) { return &testOutput{Body: "ok"}, nil }

	huma.Get(api, "/read", ok)
	huma.Post(api, "/write", ok)
	huma.Register(api, huma.Operation{
		Method: http.MethodGet,
		Path:   "/free",
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, ok)
	huma.Register(api, huma.Operation{
		Method: http.MethodGet,
		Path:   "/custom",
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{{Window: time.Minute, Max: 1}},
			},
		},
	}, ok)

	return router
}

func do(router http.Handler, method, path string) int {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("User-Agent", "TestAgent/1.0")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w.Code
}

func strictPolicy() *ratelimit.Policy {
	return &ratelimit.Policy{
		Limits: map[ratelimit.Scope][]ratelimit.LimitConfig{
			ratelimit.ScopeRead:  {{Window: time.Minute, Max: 2}},
			ratelimit.ScopeWrite: {{Window: time.Minute, Max: 1}},
		},
	}
}

func TestPolicyRateLimiter(t *testing.T) {
	t.Run("allows requests under the limit and rejects the rest", func(t *testing.T) {
		router := newLimitedAPI(store.NewRateLimitMemoryStore(), strictPolicy())

		assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/read"))
		assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/read"))
		assert.Equal(t, http.StatusTooManyRequests, do(router, http.MethodGet, "/read"))
	})

	t.Run("applies different limits per scope", func(t *testing.T) {
		router := newLimitedAPI(store.NewRateLimitMemoryStore(), strictPolicy())

		assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/write"))
		assert.Equal(t, http.StatusTooManyRequests, do(router, http.MethodPost, "/write"))
		assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/read"))
	})

	t.Run("disabled endpoints are never limited", func(t *testing.T) {
		router := newLimitedAPI(brokenStore{}, strictPolicy())

		for range 5 {
			assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/free"))
		}
	})

	t.Run("custom limits replace the policy", func(t *testing.T) {
		router := newLimitedAPI(store.NewRateLimitMemoryStore(), strictPolicy())

		assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/custom"))
		assert.Equal(t, http.StatusTooManyRequests, do(router, http.MethodGet, "/custom"))
	})

	t.Run("store errors are 500", func(t *testing.T) {
		router := newLimitedAPI(brokenStore{}, strictPolicy())

		assert.Equal(t, http.StatusInternalServerError, do(router, http.MethodGet, "/read"))
	})
}
