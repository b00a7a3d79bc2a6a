package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/statejobs/internal/model"
)

// schemaVersion is written to PRAGMA user_version once the schema is applied.
const schemaVersion = 1

// SQLiteStore persists job records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ model.JobStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and migrates
// the jobs table.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One writer keeps upserts from racing on the file lock.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version >= schemaVersion {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, createTableSQL(dialectSQLite)); err != nil {
		return fmt.Errorf("creating jobs table: %w", err)
	}
	for _, stmt := range indexSQL {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("writing schema version: %w", err)
	}
	return tx.Commit()
}

// ListSummaryHashes returns every stored id with its summary hash.
func (s *SQLiteStore) ListSummaryHashes(ctx context.Context) ([]model.SummaryHash, error) {
	rows, err := s.db.QueryContext(ctx, summaryHashSQL)
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
func (s *SQLiteStore) Get(ctx context.Context, id int64) (model.JobRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, getSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.JobRecord{}, fmt.Errorf("job %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.JobRecord{}, fmt.Errorf("getting job %d: %w", id, err)
	}
	return rec, nil
}

// Upsert replaces the stored row for rec.ID in a single statement.
func (s *SQLiteStore) Upsert(ctx context.Context, rec model.JobRecord) error {
	row, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertSQL, row.args()...); err != nil {
		return fmt.Errorf("upserting job %d: %w", rec.ID, err)
	}
	return nil
}

// Delete removes the row for id. Deleting a missing id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, deleteSQL, id); err != nil {
		return fmt.Errorf("deleting job %d: %w", id, err)
	}
	return nil
}

// ListMissing returns the records whose given tier has not been populated.
func (s *SQLiteStore) ListMissing(ctx context.Context, tier model.Tier) ([]model.JobRecord, error) {
	query, ok := missingTierSQL[tier]
	if !ok {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
	return s.query(ctx, query)
}

// ListRecent returns up to limit records, newest publish date first.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int, enrichedOnly bool) ([]model.JobRecord, error) {
	query := recentSQL
	if enrichedOnly {
		query = recentEnrichedSQL
	}
	return s.query(ctx, query, limit)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]model.JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
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

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
