package middleware

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/doclinks/internal/ratelimit"
	"go.uber.org/zap"
)

// PolicyRateLimiter returns a Huma middleware that applies policy-based rate limiting.
//
// Operations may carry a ratelimit.EndpointConfig under ratelimit.MetadataKey to
// disable limiting, override the scope, or replace the policy with custom limits.
func PolicyRateLimiter(
	api huma.API,
	limiter *ratelimit.PolicyLimiter,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		cfg := ratelimit.EndpointConfigFrom(op)

		if cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		var (
			exceeded *ratelimit.LimitExceeded
			err      error
			route    string
		)

		if op != nil {
			route = op.Path
		}

		key := clientKey(ctx)

		if cfg != nil && len(cfg.Limits) > 0 {
			exceeded, err = limiter.AllowCustom(ctx.Context(), key, route, cfg.Limits)
		} else {
			exceeded, err = limiter.Allow(ctx.Context(), key, ratelimit.ResolveScopes(ctx.Method(), cfg))
		}

		if err != nil {
			logger.Error("rate limit check failed", zap.String("path", route), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return
		}

		if exceeded != nil {
			logger.Warn("rate limit exceeded",
				zap.String("path", route),
				zap.String("method", ctx.Method()),
				zap.String("scope", string(exceeded.Scope)),
				zap.Int64("count", exceeded.Count),
				zap.Int64("max", exceeded.Config.Max),
				zap.Duration("window", exceeded.Config.Window),
				zap.String("client_ip", clientIP(ctx)),
			)
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, exceeded.String())

			return
		}

		next(ctx)
	}
}
