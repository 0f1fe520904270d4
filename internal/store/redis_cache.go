package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/doclinks/internal/link"
)

// RedisCacheRepository wraps a link.Repository with Redis caching for reads.
// Cached entries never outlive the link they describe.
type RedisCacheRepository struct {
	store  link.Repository
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCacheRepository creates a new Redis-cached repository decorator.
// ttl caps how long an entry stays cached; zero means until the link expires.
func NewRedisCacheRepository(
	store link.Repository, client *redis.Client, ttl time.Duration,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		store:  store,
		client: client,
		prefix: "link_cache:",
		ttl:    ttl,
	}
}

// Save stores a link in the underlying store and updates the cache.
func (r *RedisCacheRepository) Save(ctx context.Context, record *link.Record) error {
	if err := r.store.Save(ctx, record); err != nil {
		return err
	}

	// Write-through: update cache after successful save
	r.cacheRecord(ctx, record)

	return nil
}

// Get retrieves a link by id, checking the cache first.
func (r *RedisCacheRepository) Get(ctx context.Context, id string) (*link.Record, error) {
	if rec, err := r.getFromCache(ctx, id); err == nil {
		return rec, nil
	}

	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheRecord(ctx, rec)

	return rec, nil
}

// QueryExpired always reads the underlying store.
func (r *RedisCacheRepository) QueryExpired(ctx context.Context, before time.Time, limit int) ([]*link.Record, error) {
	return r.store.QueryExpired(ctx, before, limit)
}

// Delete removes the link from the underlying store and evicts it.
func (r *RedisCacheRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}

	r.evict(ctx, id)

	return nil
}

// DeleteBatch delegates to the underlying store when it deletes in batches,
// otherwise deletes one id at a time. Accepted ids are evicted.
func (r *RedisCacheRepository) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	if batch, ok := r.store.(link.BatchDeleter); ok {
		accepted, err := batch.DeleteBatch(ctx, ids)
		if accepted > 0 {
			r.evict(ctx, ids[:accepted]...)
		}

		return accepted, err
	}

	for i, id := range ids {
		if err := r.store.Delete(ctx, id); err != nil {
			r.evict(ctx, ids[:i]...)

			return i, err
		}
	}

	r.evict(ctx, ids...)

	return len(ids), nil
}

func (r *RedisCacheRepository) getFromCache(ctx context.Context, id string) (*link.Record, error) {
	result, err := r.client.HGetAll(ctx, r.prefix+id).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, errors.New("cache miss")
	}

	return recordFromHash(result)
}

func (r *RedisCacheRepository) cacheRecord(ctx context.Context, rec *link.Record) {
	deadline := rec.ExpiresAt
	if r.ttl > 0 {
		if capped := time.Now().Add(r.ttl); capped.Before(deadline) {
			deadline = capped
		}
	}

	if !time.Now().Before(deadline) {
		return
	}

	key := r.prefix + rec.ID
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, recordFields(rec))
	pipe.ExpireAt(ctx, key, deadline)

	_, _ = pipe.Exec(ctx)
}

func (r *RedisCacheRepository) evict(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefix + id
	}

	_ = r.client.Del(ctx, keys...).Err()
}

// Shutdown is a no-op for RedisCacheRepository (client managed externally).
func (r *RedisCacheRepository) Shutdown() error {
	return nil
}

// Compile-time check.
var (
	_ link.Repository   = (*RedisCacheRepository)(nil)
	_ link.BatchDeleter = (*RedisCacheRepository)(nil)
)
