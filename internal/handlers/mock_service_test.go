package handlers_test

import (
	"context"
	"errors"
	"time"

	"github.com/serroba/doclinks/internal/link"
	"github.com/serroba/doclinks/internal/messaging"
)

var errMock = errors.New("mock error")

// mockService is a test double for LinkService.
type mockService struct {
	record     *link.Record
	issueErr   error
	resolveErr error

	issuedDocumentID string
	issuedTTL        time.Duration
}

func (m *mockService) Issue(_ context.Context, documentID string, ttl time.Duration) (*link.Record, error) {
	m.issuedDocumentID = documentID
	m.issuedTTL = ttl

	if m.issueErr != nil {
		return nil, m.issueErr
	}

	return m.record, nil
}

func (m *mockService) Resolve(_ context.Context, _ string) (*link.Record, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}

	return m.record, nil
}

// recordingPublish captures published events.
func recordingPublish[T any](events *[]*T) messaging.Publish[T] {
	return func(event *T) error {
		*events = append(*events, event)

		return nil
	}
}

// errorPublish returns a publish function that always fails.
func errorPublish[T any](err error) messaging.Publish[T] {
	return func(_ *T) error { return err }
}
