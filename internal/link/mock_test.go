package link_test

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/serroba/doclinks/internal/link"
)

// fakeBlobStore signs URLs on a fixed storage host without real cryptography.
type fakeBlobStore struct {
	objects   map[string]bool
	existsErr error
}

func newFakeBlobStore(paths ...string) *fakeBlobStore {
	objects := make(map[string]bool, len(paths))
	for _, p := range paths {
		objects[p] = true
	}

	return &fakeBlobStore{objects: objects}
}

func (f *fakeBlobStore) Exists(_ context.Context, path string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}

	return f.objects[path], nil
}

func (f *fakeBlobStore) SignReadURL(_ context.Context, path string, expiresAt time.Time) (string, error) {
	q := url.Values{
		"se":  {strconv.FormatInt(expiresAt.Unix(), 10)},
		"sp":  {"r"},
		"sig": {"fake-" + path},
	}

	return "https://account.blob.example.net/documents/" + path + "?" + q.Encode(), nil
}

// recordingRepository counts writes and can fail on demand.
type recordingRepository struct {
	mu      sync.Mutex
	records map[string]link.Record
	saves   int
	saveErr error
	getErr  error
}

func newRecordingRepository() *recordingRepository {
	return &recordingRepository{records: make(map[string]link.Record)}
}

func (r *recordingRepository) Save(_ context.Context, record *link.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return r.saveErr
	}

	r.saves++
	r.records[record.ID] = *record

	return nil
}

func (r *recordingRepository) Get(_ context.Context, id string) (*link.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}

	rec, ok := r.records[id]
	if !ok {
		return nil, link.ErrNotFound
	}

	return &rec, nil
}

func (r *recordingRepository) QueryExpired(_ context.Context, before time.Time, limit int) ([]*link.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*link.Record

	for _, rec := range r.records {
		if rec.ExpiresAt.Before(before) && len(out) < limit {
			rec := rec
			out = append(out, &rec)
		}
	}

	return out, nil
}

func (r *recordingRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, id)

	return nil
}

type staticDocuments map[string]string

func (d staticDocuments) Get(_ context.Context, id string) (*link.Document, error) {
	p, ok := d[id]
	if !ok {
		return nil, link.ErrDocumentNotFound
	}

	return &link.Document{ID: id, BlobPath: p}, nil
}

var errBoom = errors.New("boom")
