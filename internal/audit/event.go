package audit

import "time"

const (
	TopicLinkIssued     = "link.issued"
	TopicLinksReclaimed = "links.reclaimed"
)

// LinkIssuedEvent is emitted after a link record is persisted.
// It never carries the credential.
type LinkIssuedEvent struct {
	LinkID     string    `json:"linkId"`
	DocumentID string    `json:"documentId"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	ClientIP   string    `json:"clientIp"`
	UserAgent  string    `json:"userAgent"`
}

// LinksReclaimedEvent summarizes one reclamation run.
type LinksReclaimedEvent struct {
	RunID        string    `json:"runId"`
	Deleted      int       `json:"deleted"`
	Failed       int       `json:"failed"`
	Chunks       int       `json:"chunks"`
	Continuation bool      `json:"continuation"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}
