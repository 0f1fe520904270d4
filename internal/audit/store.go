package audit

import "context"

// Store defines the interface for persisting audit events.
type Store interface {
	SaveLinkIssued(ctx context.Context, event *LinkIssuedEvent) error
	SaveLinksReclaimed(ctx context.Context, event *LinksReclaimedEvent) error
}
