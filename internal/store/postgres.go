package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/statejobs/internal/model"
)

// PostgresStore persists job records in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ model.JobStore = (*PostgresStore)(nil)

// NewPostgresStore connects to databaseURL, verifies the connection and
// creates the jobs table when it does not exist.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableSQL(dialectPostgres)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating jobs table: %w", err)
	}
	for _, stmt := range indexSQL {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating index: %w", err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

// ListSummaryHashes returns every stored id with its summary hash.
func (s *PostgresStore) ListSummaryHashes(ctx context.Context) ([]model.SummaryHash, error) {
	rows, err := s.pool.Query(ctx, summaryHashSQL)
	if err != nil {
		return nil, fmt.Errorf("listing summary hashes: %w", err)
	}
	defer rows.Close()

	var out []model.SummaryHash
	for rows.Next() {
		var h model.SummaryHash
		if err := rows.Scan(&h.ID, &h.Hash); err != nil {
			return nil, fmt.Errorf("scanning summary hash: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Get returns the record with the given id, or model.ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, id int64) (model.JobRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, rebind(dialectPostgres, getSQL), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.JobRecord{}, fmt.Errorf("job %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.JobRecord{}, fmt.Errorf("getting job %d: %w", id, err)
	}
	return rec, nil
}

// Upsert replaces the stored row for rec.ID in a single statement.
func (s *PostgresStore) Upsert(ctx context.Context, rec model.JobRecord) error {
	row, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, rebind(dialectPostgres, upsertSQL), row.args()...); err != nil {
		return fmt.Errorf("upserting job %d: %w", rec.ID, err)
	}
	return nil
}

// Delete removes the row for id.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, rebind(dialectPostgres, deleteSQL), id); err != nil {
		return fmt.Errorf("deleting job %d: %w", id, err)
	}
	return nil
}

// ListMissing returns the records whose given tier has not been populated.
func (s *PostgresStore) ListMissing(ctx context.Context, tier model.Tier) ([]model.JobRecord, error) {
	query, ok := missingTierSQL[tier]
	if !ok {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
	return s.query(ctx, query)
}

// ListRecent returns up to limit records, newest publish date first.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int, enrichedOnly bool) ([]model.JobRecord, error) {
	query := recentSQL
	if enrichedOnly {
		query = recentEnrichedSQL
	}
	return s.query(ctx, query, limit)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]model.JobRecord, error) {
	rows, err := s.pool.Query(ctx, rebind(dialectPostgres, query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	if err := checkColumns(names); err != nil {
		return nil, err
	}

	var out []model.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
