package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/doclinks/internal/link"
)

const defaultPostgresMaxBatch = 500

// PostgresStore is a PostgreSQL implementation of link.Repository.
type PostgresStore struct {
	pool     *pgxpool.Pool
	maxBatch int
}

// NewPostgresStore creates a new PostgreSQL-backed link store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, maxBatch: defaultPostgresMaxBatch}
}

// WithMaxBatch caps how many ids a single DeleteBatch statement covers.
func (p *PostgresStore) WithMaxBatch(n int) *PostgresStore {
	if n > 0 {
		p.maxBatch = n
	}

	return p
}

func (p *PostgresStore) Save(ctx context.Context, record *link.Record) error {
	query := `
		INSERT INTO document_links (id, document_id, credential, access_url, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := p.pool.Exec(ctx, query,
		record.ID,
		record.DocumentID,
		record.Credential,
		record.AccessURL,
		record.CreatedAt,
		record.ExpiresAt,
	)

	return classifyPostgres(err)
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*link.Record, error) {
	query := `
		SELECT id, document_id, credential, access_url, created_at, expires_at
		FROM document_links
		WHERE id = $1
	`

	var r link.Record

	err := p.pool.QueryRow(ctx, query, id).Scan(
		&r.ID,
		&r.DocumentID,
		&r.Credential,
		&r.AccessURL,
		&r.CreatedAt,
		&r.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, link.ErrNotFound
		}

		return nil, classifyPostgres(err)
	}

	return &r, nil
}

func (p *PostgresStore) QueryExpired(ctx context.Context, before time.Time, limit int) ([]*link.Record, error) {
	query := `
		SELECT id, document_id, credential, access_url, created_at, expires_at
		FROM document_links
		WHERE expires_at < $1
		ORDER BY expires_at, id
		LIMIT $2
	`

	rows, err := p.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, classifyPostgres(err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*link.Record, error) {
		var r link.Record

		err := row.Scan(&r.ID, &r.DocumentID, &r.Credential, &r.AccessURL, &r.CreatedAt, &r.ExpiresAt)

		return &r, err
	})
	if err != nil {
		return nil, classifyPostgres(err)
	}

	return records, nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM document_links WHERE id = $1`, id)

	return classifyPostgres(err)
}

// DeleteBatch deletes at most maxBatch ids per call and reports how many it covered.
func (p *PostgresStore) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	if len(ids) > p.maxBatch {
		ids = ids[:p.maxBatch]
	}

	if _, err := p.pool.Exec(ctx, `DELETE FROM document_links WHERE id = ANY($1)`, ids); err != nil {
		return 0, classifyPostgres(err)
	}

	return len(ids), nil
}

// PostgresDocumentStore reads document metadata from PostgreSQL.
type PostgresDocumentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresDocumentStore creates a new PostgreSQL-backed document store.
func NewPostgresDocumentStore(pool *pgxpool.Pool) *PostgresDocumentStore {
	return &PostgresDocumentStore{pool: pool}
}

func (p *PostgresDocumentStore) Get(ctx context.Context, id string) (*link.Document, error) {
	var doc link.Document

	err := p.pool.QueryRow(ctx, `SELECT id, blob_path FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.BlobPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, link.ErrDocumentNotFound
		}

		return nil, classifyPostgres(err)
	}

	return &doc, nil
}

// classifyPostgres wraps throttling, timeout and connection failures with link.ErrUnavailable.
func classifyPostgres(err error) error {
	if err == nil {
		return nil
	}

	if pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", link.ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if isTransientSQLState(pgErr.Code) {
			return fmt.Errorf("%w: %w", link.ErrUnavailable, err)
		}

		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", link.ErrUnavailable, err)
	}

	return err
}

func isTransientSQLState(code string) bool {
	switch code {
	case "57014", // query_canceled (statement_timeout)
		"57P01", // admin_shutdown
		"40001", // serialization_failure
		"40P01": // deadlock_detected
		return true
	}

	// 08: connection exception, 53: insufficient resources.
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "53")
}

var (
	_ link.Repository    = (*PostgresStore)(nil)
	_ link.BatchDeleter  = (*PostgresStore)(nil)
	_ link.DocumentStore = (*PostgresDocumentStore)(nil)
)
