package container

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/doclinks/internal/audit"
	"github.com/serroba/doclinks/internal/blob"
	"github.com/serroba/doclinks/internal/handlers"
	"github.com/serroba/doclinks/internal/health"
	"github.com/serroba/doclinks/internal/link"
	"github.com/serroba/doclinks/internal/messaging"
	"github.com/serroba/doclinks/internal/middleware"
	"github.com/serroba/doclinks/internal/ratelimit"
	"github.com/serroba/doclinks/internal/store"
	"go.uber.org/zap"
)

// RateLimitPackage provides the policy limiter backed by Redis counters.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		client := do.MustInvoke[*redis.Client](i)

		return ratelimit.NewPolicyLimiter(store.NewRateLimitRedisStore(client), ratelimit.DefaultPolicy()), nil
	})
}

// PublisherGroupPackage provides the Redis stream publisher for audit events.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*redis.Client](i)
		logger := do.MustInvoke[*zap.Logger](i)

		pub, err := messaging.NewRedisStreamPublisher(client, logger)
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(pub), nil
	})
}

// HTTPPackage provides the router and the API with every route registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)

		if opts.BlobBackend == "local" {
			router.Mount("/blobs", do.MustInvoke[*blob.LocalStore](i).Handler())
		}

		api := humachi.New(router, huma.DefaultConfig("Document Links", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api))

		if opts.RateLimit {
			limiter := do.MustInvoke[*ratelimit.PolicyLimiter](i)
			api.UseMiddleware(middleware.PolicyRateLimiter(api, limiter, logger.Named("ratelimit")))
		}

		group := do.MustInvoke[*messaging.PublisherGroup](i)
		linkHandler := handlers.NewLinkHandler(
			do.MustInvoke[*link.Service](i),
			messaging.NewPublishFunc[audit.LinkIssuedEvent](group.Publisher(), audit.TopicLinkIssued),
			logger.Named("http"),
		)
		handlers.RegisterRoutes(api, linkHandler)

		health.RegisterRoutes(api, health.NewHandler(map[string]health.Checker{
			"redis":    health.NewRedisChecker(do.MustInvoke[*redis.Client](i)),
			"postgres": health.NewPostgresChecker(do.MustInvoke[*pgxpool.Pool](i)),
		}))

		return api, nil
	})
}
