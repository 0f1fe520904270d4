package store

import (
	"context"

	"github.com/serroba/doclinks/internal/audit"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of audit.Store that logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op audit store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveLinkIssued(_ context.Context, event *audit.LinkIssuedEvent) error {
	n.logger.Info("link issued event received",
		zap.String("linkId", event.LinkID),
		zap.String("documentId", event.DocumentID),
		zap.Time("expiresAt", event.ExpiresAt),
		zap.String("clientIp", event.ClientIP),
	)

	return nil
}

func (n *Noop) SaveLinksReclaimed(_ context.Context, event *audit.LinksReclaimedEvent) error {
	n.logger.Info("links reclaimed event received",
		zap.String("runId", event.RunID),
		zap.Int("deleted", event.Deleted),
		zap.Int("failed", event.Failed),
		zap.Int("chunks", event.Chunks),
		zap.String("error", event.Error),
	)

	return nil
}

var _ audit.Store = (*Noop)(nil)
