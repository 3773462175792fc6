package postgres

import (
	"context"
	"errors"
	"fmt"

	"classroom-service/internal/domain"
	"classroom-service/internal/remote"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// tables maps collection names to their tables; anything else is rejected.
var tables = map[string]string{
	remote.CollectionParticipation: "participation",
	remote.CollectionActivities:    "activities",
}

// DocumentStore is the remote document store on Postgres JSONB tables.
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

// Dial implements remote.Dialer.
func Dial(ctx context.Context, cfg remote.Config) (remote.DocumentStore, error) {
	pool, err := pgxpool.Connect(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect remote store: %w", mapError(err))
	}
	return NewDocumentStore(pool), nil
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	// touching the table surfaces missing grants, not just connectivity
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE key = ''`).Scan(&n)
	return mapError(err)
}

func (s *DocumentStore) GetDocument(ctx context.Context, key string) ([]byte, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM documents WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load document %s: %w", key, mapError(err))
	}
	return raw, true, nil
}

func (s *DocumentStore) SetDocument(ctx context.Context, key string, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (key, data, updated_at) VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		key, string(data))
	if err != nil {
		return fmt.Errorf("save document %s: %w", key, mapError(err))
	}
	return nil
}

// UpsertBatch writes one batch; callers keep batches within remote.MaxBatchSize.
func (s *DocumentStore) UpsertBatch(ctx context.Context, collection string, docs []remote.Document) error {
	table, err := tableFor(collection)
	if err != nil {
		return err
	}
	if len(docs) > remote.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds limit %d", len(docs), remote.MaxBatchSize)
	}

	query := `INSERT INTO ` + table + ` (id, data, updated_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
	batch := &pgx.Batch{}
	for _, d := range docs {
		batch.Queue(query, d.ID, string(d.Data))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert %s: %w", collection, mapError(err))
		}
	}
	return nil
}

func (s *DocumentStore) DeleteBatch(ctx context.Context, collection string, ids []string) error {
	table, err := tableFor(collection)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete %s: %w", collection, mapError(err))
	}
	return nil
}

// List returns every document of a collection, used by the offline tooling.
func (s *DocumentStore) List(ctx context.Context, collection string) ([]remote.Document, error) {
	table, err := tableFor(collection)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT id, data FROM `+table+` ORDER BY updated_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, mapError(err))
	}
	defer rows.Close()

	var docs []remote.Document
	for rows.Next() {
		var d remote.Document
		var raw []byte
		if err := rows.Scan(&d.ID, &raw); err != nil {
			return nil, err
		}
		d.Data = raw
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *DocumentStore) Close() {
	s.pool.Close()
}

func tableFor(collection string) (string, error) {
	table, ok := tables[collection]
	if !ok {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	return table, nil
}

// mapError turns access-rule failures into domain.ErrRemotePermission.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501", "28000", "28P01":
			return fmt.Errorf("%w: %s", domain.ErrRemotePermission, pgErr.Message)
		}
	}
	return err
}
