package link

import (
	"context"
	"time"
)

// Repository persists link records.
type Repository interface {
	// Save stores a new record keyed by its own id.
	Save(ctx context.Context, record *Record) error

	// Get returns ErrNotFound when no record has the id.
	Get(ctx context.Context, id string) (*Record, error)

	// QueryExpired returns at most limit records whose ExpiresAt is before the cutoff.
	QueryExpired(ctx context.Context, before time.Time, limit int) ([]*Record, error)

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, id string) error
}

// BatchDeleter is implemented by repositories that can delete several records
// in one call. A backend may stop early on a resource limit; accepted is the
// length of the prefix of ids that was processed.
type BatchDeleter interface {
	DeleteBatch(ctx context.Context, ids []string) (accepted int, err error)
}

// DocumentStore resolves document metadata.
type DocumentStore interface {
	// Get returns ErrDocumentNotFound when the document does not exist.
	Get(ctx context.Context, id string) (*Document, error)
}

// BlobStore is the object storage behind documents.
type BlobStore interface {
	Exists(ctx context.Context, path string) (bool, error)

	// SignReadURL returns a URL granting read-only access to exactly one
	// object until expiresAt. The signature lives in the query string.
	SignReadURL(ctx context.Context, path string, expiresAt time.Time) (string, error)
}
