package ratelimit

import "time"

// LimitConfig allows at most Max requests per client within Window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// Policy maps scopes to the limits enforced for them.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// DefaultPolicy returns the limits applied to the public API.
func DefaultPolicy() *Policy {
	return &Policy{
		Limits: map[Scope][]LimitConfig{
			ScopeGlobal: {
				{Window: time.Minute, Max: 1200},
			},
			ScopeRead: {
				{Window: time.Minute, Max: 600},
			},
			ScopeWrite: {
				{Window: time.Minute, Max: 30},
				{Window: time.Hour, Max: 500},
			},
		},
	}
}
