package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/pkg/logger"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps a snapshot in a SQLite database. Each Save replaces the
// stored state inside one transaction.
type SQLiteStore struct {
	db  *sql.DB
	log logger.Logger
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps writers serialized
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, log: o.logger.With(logger.String("path", path))}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		high_water_mark INTEGER NOT NULL,
		last_update TEXT
	);

	CREATE TABLE IF NOT EXISTS records (
		position INTEGER PRIMARY KEY,
		idx INTEGER NOT NULL UNIQUE,
		name TEXT NOT NULL,
		parent TEXT,
		test TEXT NOT NULL,
		train TEXT NOT NULL,
		score REAL,
		fetched_at TEXT
	);

	CREATE TABLE IF NOT EXISTS skipped (
		idx INTEGER PRIMARY KEY
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load reads the snapshot. An empty database is the empty snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (snap model.Snapshot, err error) {
	defer func(start time.Time) { observe(BackendSQLite, "load", start, err) }(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lastUpdate sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT high_water_mark, last_update FROM snapshot WHERE id = 1`).
		Scan(&snap.HighWaterMark, &lastUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, nil
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	if snap.LastUpdate, err = parseTime(lastUpdate); err != nil {
		return model.Snapshot{}, err
	}

	if snap.Records, err = loadRecords(ctx, tx); err != nil {
		return model.Snapshot{}, err
	}
	if snap.Skipped, err = loadSkipped(ctx, tx); err != nil {
		return model.Snapshot{}, err
	}
	if err := snap.Validate(); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %w", ErrSnapshotCorrupt, err)
	}
	return snap, nil
}

func loadRecords(ctx context.Context, tx *sql.Tx) ([]model.RawRecord, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT idx, name, parent, test, train, score, fetched_at FROM records ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	defer rows.Close()

	var out []model.RawRecord
	for rows.Next() {
		var (
			r         model.RawRecord
			parent    sql.NullString
			score     sql.NullFloat64
			fetchedAt sql.NullString
		)
		if err := rows.Scan(&r.Index, &r.Name, &parent, &r.Test, &r.Train, &score, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if parent.Valid {
			p := parent.String
			r.Parent = &p
		}
		if score.Valid {
			f := score.Float64
			r.Score = &f
		}
		if r.FetchedAt, err = parseTime(fetchedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func loadSkipped(ctx context.Context, tx *sql.Tx) ([]int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT idx FROM skipped ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("read skipped: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("scan skipped: %w", err)
		}
		out = append(out, idx)
	}
	return out, rows.Err()
}

// Save replaces the stored snapshot with snap in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap model.Snapshot) (err error) {
	defer func(start time.Time) { observe(BackendSQLite, "save", start, err) }(time.Now())
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{`DELETE FROM records`, `DELETE FROM skipped`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot (id, high_water_mark, last_update) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET high_water_mark = excluded.high_water_mark, last_update = excluded.last_update`,
		snap.HighWaterMark, formatTime(snap.LastUpdate)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	insRecord, err := tx.PrepareContext(ctx,
		`INSERT INTO records (position, idx, name, parent, test, train, score, fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare records: %w", err)
	}
	defer insRecord.Close()
	for i, r := range snap.Records {
		if _, err := insRecord.ExecContext(ctx, i, r.Index, r.Name, r.Parent, r.Test, r.Train, r.Score, formatTime(r.FetchedAt)); err != nil {
			return fmt.Errorf("write record %d: %w", r.Index, err)
		}
	}

	insSkipped, err := tx.PrepareContext(ctx, `INSERT INTO skipped (idx) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare skipped: %w", err)
	}
	defer insSkipped.Close()
	for _, idx := range snap.Skipped {
		if _, err := insSkipped.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("write skipped %d: %w", idx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Debug(ctx, "snapshot saved",
		logger.Int("high_water_mark", snap.HighWaterMark),
		logger.Int("records", len(snap.Records)))
	return nil
}

// Reset deletes the stored snapshot.
func (s *SQLiteStore) Reset(ctx context.Context) (err error) {
	defer func(start time.Time) { observe(BackendSQLite, "reset", start, err) }(time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range []string{`DELETE FROM records`, `DELETE FROM skipped`, `DELETE FROM snapshot`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(ts model.Timestamp) any {
	if ts.IsZero() {
		return nil
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func parseTime(v sql.NullString) (model.Timestamp, error) {
	if !v.Valid || v.String == "" {
		return model.Timestamp{}, nil
	}
	ts, err := model.ParseTimestamp(v.String)
	if err != nil {
		return model.Timestamp{}, fmt.Errorf("%w: %w", ErrSnapshotCorrupt, err)
	}
	return ts, nil
}
