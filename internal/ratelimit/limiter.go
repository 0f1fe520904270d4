package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store defines the interface for rate limit data storage.
type Store interface {
	// Record records a request and returns the count of requests in the
	// current window, pruning expired entries.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}

// LimitExceeded contains information about which limit was exceeded.
type LimitExceeded struct {
	Scope  Scope
	Config LimitConfig
	Count  int64
}

func (e *LimitExceeded) String() string {
	if e.Scope == "" {
		return fmt.Sprintf("rate limit exceeded: %d/%d requests in %s", e.Count, e.Config.Max, e.Config.Window)
	}

	return fmt.Sprintf("rate limit exceeded: %s scope, %d/%d requests in %s",
		e.Scope, e.Count, e.Config.Max, e.Config.Window)
}

// PolicyLimiter enforces rate limits based on a policy and resolved scopes.
type PolicyLimiter struct {
	store  Store
	policy *Policy
}

// NewPolicyLimiter creates a new policy-based rate limiter.
func NewPolicyLimiter(store Store, policy *Policy) *PolicyLimiter {
	return &PolicyLimiter{
		store:  store,
		policy: policy,
	}
}

// Allow records the request against every limit of the given scopes.
// The returned LimitExceeded is nil when the request is allowed.
func (l *PolicyLimiter) Allow(ctx context.Context, clientKey string, scopes []Scope) (*LimitExceeded, error) {
	for _, scope := range scopes {
		for _, limit := range l.policy.Limits[scope] {
			key := fmt.Sprintf("%s:%s:%d", clientKey, scope, limit.Window.Milliseconds())

			exceeded, err := l.record(ctx, key, limit)
			if err != nil || exceeded != nil {
				if exceeded != nil {
					exceeded.Scope = scope
				}

				return exceeded, err
			}
		}
	}

	return nil, nil
}

// AllowCustom applies endpoint-specific limits keyed by route template.
func (l *PolicyLimiter) AllowCustom(
	ctx context.Context, clientKey, route string, limits []LimitConfig,
) (*LimitExceeded, error) {
	for _, limit := range limits {
		key := fmt.Sprintf("%s:custom:%s:%d", clientKey, route, limit.Window.Milliseconds())

		exceeded, err := l.record(ctx, key, limit)
		if err != nil || exceeded != nil {
			return exceeded, err
		}
	}

	return nil, nil
}

func (l *PolicyLimiter) record(ctx context.Context, key string, limit LimitConfig) (*LimitExceeded, error) {
	count, err := l.store.Record(ctx, key, limit.Window)
	if err != nil {
		return nil, err
	}

	if count > limit.Max {
		return &LimitExceeded{Config: limit, Count: count}, nil
	}

	return nil, nil
}
