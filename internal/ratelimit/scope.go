package ratelimit

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Scope categorizes a request for rate limiting purposes.
type Scope string

const (
	// ScopeGlobal applies to all requests regardless of type.
	ScopeGlobal Scope = "global"
	// ScopeRead applies to read operations (GET, HEAD, OPTIONS).
	ScopeRead Scope = "read"
	// ScopeWrite applies to write operations (POST, PUT, PATCH, DELETE).
	ScopeWrite Scope = "write"
)

// MetadataKey is the key used to store rate limit config in operation metadata.
const MetadataKey = "rateLimit"

// EndpointConfig defines per-endpoint rate limit configuration,
// attached to huma operations via Metadata[MetadataKey].
type EndpointConfig struct {
	// Scope overrides method-based scope detection.
	Scope Scope
	// Limits replaces the policy limits for this endpoint. Counters are kept
	// per route template, not per concrete path.
	Limits []LimitConfig
	// Disabled skips rate limiting entirely.
	Disabled bool
}

// EndpointConfigFrom extracts the EndpointConfig from operation metadata, if present.
func EndpointConfigFrom(op *huma.Operation) *EndpointConfig {
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}

// ResolveScopes returns the scopes that apply to a request. The global scope
// always applies; the second scope comes from cfg or else from the method.
func ResolveScopes(method string, cfg *EndpointConfig) []Scope {
	if cfg != nil && cfg.Scope != "" {
		return []Scope{ScopeGlobal, cfg.Scope}
	}

	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return []Scope{ScopeGlobal, ScopeRead}
	default:
		return []Scope{ScopeGlobal, ScopeWrite}
	}
}
