package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/doclinks/internal/ratelimit"
)

// issueLimits are stricter than the policy's write scope: every issuance signs a credential.
var issueLimits = ratelimit.EndpointConfig{
	Limits: []ratelimit.LimitConfig{
		{Window: time.Minute, Max: 10},
		{Window: time.Hour, Max: 100},
		{Window: 24 * time.Hour, Max: 500},
	},
}

// RegisterRoutes registers the link routes with per-endpoint rate limit configuration.
func RegisterRoutes(api huma.API, h *LinkHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "issue-link",
		Method:        http.MethodPost,
		Path:          "/links",
		Summary:       "Issue link",
		Description:   "Issues a time-limited, shareable read link to a document.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusCreated,
		Metadata:      map[string]any{ratelimit.MetadataKey: issueLimits},
	}, h.IssueLink)

	huma.Register(api, huma.Operation{
		OperationID:   "issue-document-link",
		Method:        http.MethodPost,
		Path:          "/documents/{documentId}/link",
		Summary:       "Issue link for document",
		Description:   "Same as POST /links with the document taken from the path.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusCreated,
		Metadata:      map[string]any{ratelimit.MetadataKey: issueLimits},
	}, h.IssueDocumentLink)

	huma.Register(api, huma.Operation{
		OperationID: "get-link",
		Method:      http.MethodGet,
		Path:        "/links/{linkId}",
		Summary:     "Get link",
		Description: "Returns an active link. Expired links yield 400, unknown or reclaimed links 404.",
		Tags:        []string{"Links"},
	}, h.GetLink)
}
