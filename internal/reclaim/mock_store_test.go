package reclaim_test

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/doclinks/internal/link"
	"github.com/serroba/doclinks/internal/store"
)

// flakyStore wraps a MemoryStore with scripted failures.
type flakyStore struct {
	*store.MemoryStore

	mu         sync.Mutex
	queryErrs  []error
	batchErrs  []error
	deleteErrs map[string]error
	onBatch    func(n int)
	batches    int
	deletes    map[string]int
}

func newFlakyStore(inner *store.MemoryStore) *flakyStore {
	return &flakyStore{
		MemoryStore: inner,
		deleteErrs:  make(map[string]error),
		deletes:     make(map[string]int),
	}
}

func (f *flakyStore) QueryExpired(ctx context.Context, before time.Time, limit int) ([]*link.Record, error) {
	f.mu.Lock()
	if len(f.queryErrs) > 0 {
		err := f.queryErrs[0]
		f.queryErrs = f.queryErrs[1:]
		f.mu.Unlock()

		return nil, err
	}
	f.mu.Unlock()

	return f.MemoryStore.QueryExpired(ctx, before, limit)
}

func (f *flakyStore) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	f.batches++
	n := f.batches

	if len(f.batchErrs) > 0 {
		err := f.batchErrs[0]
		f.batchErrs = f.batchErrs[1:]
		f.mu.Unlock()

		return 0, err
	}
	f.mu.Unlock()

	accepted, err := f.MemoryStore.DeleteBatch(ctx, ids)

	f.mu.Lock()
	for _, id := range ids[:accepted] {
		f.deletes[id]++
	}
	f.mu.Unlock()

	if f.onBatch != nil {
		f.onBatch(n)
	}

	return accepted, err
}

func (f *flakyStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	if err, ok := f.deleteErrs[id]; ok {
		f.mu.Unlock()

		return err
	}
	f.deletes[id]++
	f.mu.Unlock()

	return f.MemoryStore.Delete(ctx, id)
}

// singleDeleter hides DeleteBatch so the reclaimer deletes one record at a time.
type singleDeleter struct {
	link.Repository
}
