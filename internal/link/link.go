package link

import "time"

// Document is the slice of document metadata the link subsystem needs.
type Document struct {
	ID       string
	BlobPath string
}

// Record is a persisted, time-limited access link to a document's blob.
// Records are immutable once saved; the only permitted mutation is deletion.
type Record struct {
	ID         string
	DocumentID string
	Credential string // signed query string, never logged
	AccessURL  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// State is the observed lifecycle position of a record.
type State string

const (
	StateActive    State = "active"
	StateExpired   State = "expired"
	StateReclaimed State = "reclaimed"
)

// StateAt reports whether the record is active or expired at now.
// A nil record has been reclaimed (or never existed).
func (r *Record) StateAt(now time.Time) State {
	if r == nil {
		return StateReclaimed
	}

	if now.Before(r.ExpiresAt) {
		return StateActive
	}

	return StateExpired
}

// TTL returns the validity window the record was issued with.
func (r *Record) TTL() time.Duration {
	return r.ExpiresAt.Sub(r.CreatedAt)
}
