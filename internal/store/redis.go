package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/doclinks/internal/link"
)

const defaultRedisMaxBatch = 100

// RedisStore is a Redis implementation of link.Repository.
// Each link is a hash under "link:<id>"; a sorted set scored by expiry
// in microseconds serves QueryExpired.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	expiryKey string
	maxBatch  int
}

// NewRedisStore creates a new Redis-backed link store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:    client,
		prefix:    "link:",
		expiryKey: "links:by_expiry",
		maxBatch:  defaultRedisMaxBatch,
	}
}

// WithMaxBatch caps how many ids a single DeleteBatch transaction covers.
func (r *RedisStore) WithMaxBatch(n int) *RedisStore {
	if n > 0 {
		r.maxBatch = n
	}

	return r
}

func (r *RedisStore) Save(ctx context.Context, record *link.Record) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.prefix+record.ID, recordFields(record))
		pipe.ZAdd(ctx, r.expiryKey, redis.Z{
			Score:  expiryScore(record.ExpiresAt),
			Member: record.ID,
		})

		return nil
	})

	return classifyRedis(err)
}

func (r *RedisStore) Get(ctx context.Context, id string) (*link.Record, error) {
	result, err := r.client.HGetAll(ctx, r.prefix+id).Result()
	if err != nil {
		return nil, classifyRedis(err)
	}

	if len(result) == 0 {
		return nil, link.ErrNotFound
	}

	return recordFromHash(result)
}

func (r *RedisStore) QueryExpired(ctx context.Context, before time.Time, limit int) ([]*link.Record, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.expiryKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatFloat(expiryScore(before), 'f', -1, 64),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, classifyRedis(err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))

	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.prefix+id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, classifyRedis(err)
	}

	records := make([]*link.Record, 0, len(ids))

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Index entry without a hash: report it so the caller's delete clears the index.
			records = append(records, &link.Record{ID: ids[i]})

			continue
		}

		rec, err := recordFromHash(fields)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.prefix+id)
		pipe.ZRem(ctx, r.expiryKey, id)

		return nil
	})

	return classifyRedis(err)
}

// DeleteBatch removes at most maxBatch ids in one transaction and reports how many it covered.
func (r *RedisStore) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	if len(ids) > r.maxBatch {
		ids = ids[:r.maxBatch]
	}

	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))

	for i, id := range ids {
		keys[i] = r.prefix + id
		members[i] = id
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, r.expiryKey, members...)

		return nil
	})
	if err != nil {
		return 0, classifyRedis(err)
	}

	return len(ids), nil
}

func expiryScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func recordFields(r *link.Record) map[string]any {
	return map[string]any{
		"id":          r.ID,
		"document_id": r.DocumentID,
		"credential":  r.Credential,
		"access_url":  r.AccessURL,
		"created_at":  r.CreatedAt.UnixNano(),
		"expires_at":  r.ExpiresAt.UnixNano(),
	}
}

func recordFromHash(fields map[string]string) (*link.Record, error) {
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode created_at for link %q: %w", fields["id"], err)
	}

	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode expires_at for link %q: %w", fields["id"], err)
	}

	return &link.Record{
		ID:         fields["id"],
		DocumentID: fields["document_id"],
		Credential: fields["credential"],
		AccessURL:  fields["access_url"],
		CreatedAt:  time.Unix(0, createdAt).UTC(),
		ExpiresAt:  time.Unix(0, expiresAt).UTC(),
	}, nil
}

// classifyRedis wraps network, timeout and busy-server failures with link.ErrUnavailable.
func classifyRedis(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, redis.ErrClosed) ||
		redis.HasErrorPrefix(err, "LOADING") ||
		redis.HasErrorPrefix(err, "BUSY") ||
		redis.HasErrorPrefix(err, "TRYAGAIN") {
		return fmt.Errorf("%w: %w", link.ErrUnavailable, err)
	}

	return err
}

var (
	_ link.Repository   = (*RedisStore)(nil)
	_ link.BatchDeleter = (*RedisStore)(nil)
)
