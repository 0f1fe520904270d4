package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// IDGenerator returns a new high-entropy link id.
type IDGenerator func() string

// ServiceConfig holds the explicit settings of a Service.
type ServiceConfig struct {
	// PublicEndpoint replaces the blob store host in access URLs, e.g. a CDN.
	PublicEndpoint string
	// MaxTTL bounds the requested ttl. Zero means unbounded.
	MaxTTL time.Duration
}

// Service issues and resolves links.
type Service struct {
	documents DocumentStore
	issuer    *Issuer
	links     Repository
	newID     IDGenerator
	now       func() time.Time
	cfg       ServiceConfig
	logger    *zap.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the service time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a link service.
func NewService(
	documents DocumentStore,
	issuer *Issuer,
	links Repository,
	newID IDGenerator,
	cfg ServiceConfig,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		documents: documents,
		issuer:    issuer,
		links:     links,
		newID:     newID,
		now:       func() time.Time { return time.Now().UTC() },
		cfg:       cfg,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Issue creates a link to documentID valid for ttl.
// It writes exactly one record on success and nothing on failure.
func (s *Service) Issue(ctx context.Context, documentID string, ttl time.Duration) (*Record, error) {
	if err := s.validateTTL(ttl); err != nil {
		return nil, err
	}

	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}

	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document %q: %w", documentID, err)
	}

	now := s.now()

	cred, err := s.issuer.Mint(ctx, doc.BlobPath, now, ttl)
	if err != nil {
		return nil, err
	}

	accessURL, err := ComposeAccessURL(cred.ObjectURL, s.cfg.PublicEndpoint, cred.Token)
	if err != nil {
		return nil, err
	}

	record := &Record{
		ID:         s.newID(),
		DocumentID: doc.ID,
		Credential: cred.Token,
		AccessURL:  accessURL,
		CreatedAt:  now,
		ExpiresAt:  cred.ExpiresAt,
	}

	// Abandoned requests persist nothing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.links.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save link: %w", err)
	}

	s.logger.Info("link issued",
		zap.String("link_id", record.ID),
		zap.String("document_id", record.DocumentID),
		zap.Time("expires_at", record.ExpiresAt),
		zap.Duration("ttl", record.TTL()),
	)

	return record, nil
}

// Resolve returns the active record for linkID. It returns ErrExpired when
// the record exists but its validity has passed, and ErrNotFound when it
// does not exist. Resolve never deletes anything.
func (s *Service) Resolve(ctx context.Context, linkID string) (*Record, error) {
	if strings.TrimSpace(linkID) == "" {
		return nil, ErrNotFound
	}

	record, err := s.links.Get(ctx, linkID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("get link %q: %w", linkID, err)
	}

	if record.StateAt(s.now()) == StateExpired {
		return nil, ErrExpired
	}

	return record, nil
}

func (s *Service) validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	if s.cfg.MaxTTL > 0 && ttl > s.cfg.MaxTTL {
		return fmt.Errorf("%w: %s exceeds %s", ErrInvalidTTL, ttl, s.cfg.MaxTTL)
	}

	return nil
}
