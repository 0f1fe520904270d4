package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/doclinks/internal/audit"
	"github.com/serroba/doclinks/internal/link"
	"github.com/serroba/doclinks/internal/messaging"
	"go.uber.org/zap"
)

// LinkService is the link lifecycle the handlers expose.
type LinkService interface {
	Issue(ctx context.Context, documentID string, ttl time.Duration) (*link.Record, error)
	Resolve(ctx context.Context, linkID string) (*link.Record, error)
}

// LinkHandler handles link issuance and lookup.
type LinkHandler struct {
	links             LinkService
	publishLinkIssued messaging.Publish[audit.LinkIssuedEvent]
	logger            *zap.Logger
}

// NewLinkHandler creates a new link handler.
func NewLinkHandler(
	links LinkService,
	publishLinkIssued messaging.Publish[audit.LinkIssuedEvent],
	logger *zap.Logger,
) *LinkHandler {
	return &LinkHandler{
		links:             links,
		publishLinkIssued: publishLinkIssued,
		logger:            logger,
	}
}

func (h *LinkHandler) IssueLink(ctx context.Context, req *IssueLinkRequest) (*IssueLinkResponse, error) {
	return h.issue(ctx, req.Body.DocumentID, req.Body.TTLHours)
}

func (h *LinkHandler) IssueDocumentLink(ctx context.Context, req *IssueDocumentLinkRequest) (*IssueLinkResponse, error) {
	return h.issue(ctx, req.DocumentID, req.Body.ExpiryHours)
}

// maxTTLHours is the largest hour count a time.Duration can hold.
const maxTTLHours = math.MaxInt64 / int64(time.Hour)

// hoursToTTL converts a requested hour count, rejecting values that would
// overflow into a different duration.
func hoursToTTL(hours int) (time.Duration, error) {
	if hours <= 0 || int64(hours) > maxTTLHours {
		return 0, fmt.Errorf("%w: %d hours is out of range", link.ErrInvalidTTL, hours)
	}

	return time.Duration(hours) * time.Hour, nil
}

func (h *LinkHandler) issue(ctx context.Context, documentID string, hours int) (*IssueLinkResponse, error) {
	ttl, err := hoursToTTL(hours)
	if err != nil {
		return nil, h.toHTTPError(err, "")
	}

	rec, err := h.links.Issue(ctx, documentID, ttl)
	if err != nil {
		return nil, h.toHTTPError(err, "")
	}

	meta := RequestMetaFromContext(ctx)
	event := &audit.LinkIssuedEvent{
		LinkID:     rec.ID,
		DocumentID: rec.DocumentID,
		CreatedAt:  rec.CreatedAt,
		ExpiresAt:  rec.ExpiresAt,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
	}

	if err := h.publishLinkIssued(event); err != nil {
		h.logger.Error("failed to publish audit event",
			zap.String("link_id", rec.ID),
			zap.Error(err),
		)
	}

	resp := &IssueLinkResponse{}
	resp.Headers.Location = "/links/" + rec.ID
	resp.Body.LinkID = rec.ID
	resp.Body.URL = rec.AccessURL
	resp.Body.ExpiresAt = rec.ExpiresAt

	return resp, nil
}

func (h *LinkHandler) GetLink(ctx context.Context, req *GetLinkRequest) (*GetLinkResponse, error) {
	rec, err := h.links.Resolve(ctx, req.LinkID)
	if err != nil {
		return nil, h.toHTTPError(err, req.LinkID)
	}

	resp := &GetLinkResponse{}
	resp.Body.LinkID = rec.ID
	resp.Body.DocumentID = rec.DocumentID
	resp.Body.URL = rec.AccessURL
	resp.Body.ExpiresAt = rec.ExpiresAt

	return resp, nil
}

// toHTTPError maps the link error taxonomy onto huma errors with the status
// from link.HTTPStatus. Expired links carry an "expired" detail so clients can
// tell them from absent ones.
func (h *LinkHandler) toHTTPError(err error, linkID string) error {
	status := link.HTTPStatus(err)

	switch link.KindOf(err) {
	case link.KindInvalidInput:
		return huma.NewError(status, err.Error())
	case link.KindExpired:
		return huma.NewError(status, "link has expired", &huma.ErrorDetail{
			Location: "path.linkId",
			Message:  "expired",
			Value:    linkID,
		})
	case link.KindNotFound:
		switch {
		case errors.Is(err, link.ErrDocumentNotFound):
			return huma.NewError(status, "document not found")
		case errors.Is(err, link.ErrInvalidTarget):
			return huma.NewError(status, "document content not found")
		default:
			return huma.NewError(status, "link not found")
		}
	case link.KindUnavailable:
		h.logger.Warn("upstream unavailable", zap.Error(err))

		return huma.NewError(status, "upstream unavailable, retry later")
	default:
		h.logger.Error("unexpected link error", zap.String("link_id", linkID), zap.Error(err))

		return huma.NewError(status, "internal server error")
	}
}
