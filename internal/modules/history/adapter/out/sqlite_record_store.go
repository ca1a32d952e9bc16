package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"stepcounter/internal/modules/history/domain"
	apperrors "stepcounter/internal/platform/errors"

	_ "modernc.org/sqlite"
)

type SQLiteRecordStore struct {
	db *sql.DB
}

func NewSQLiteRecordStore(dbPath string) (*SQLiteRecordStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; the saver and CLI queries share this handle.
	db.SetMaxOpenConns(1)
	store := &SQLiteRecordStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteRecordStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS step_counts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp INTEGER NOT NULL,
  count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_step_counts_timestamp ON step_counts(timestamp, id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create step_counts table: %w", err)
	}
	return nil
}

func (s *SQLiteRecordStore) Insert(ctx context.Context, record domain.Record) (domain.Record, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO step_counts (timestamp, count) VALUES (?, ?);`, record.Timestamp, record.Count)
	if err != nil {
		return domain.Record{}, fmt.Errorf("insert step count: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Record{}, fmt.Errorf("read inserted id: %w", err)
	}
	record.ID = id
	return record, nil
}

func (s *SQLiteRecordStore) Latest(ctx context.Context) (domain.Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, timestamp, count
FROM step_counts
ORDER BY timestamp DESC, id DESC
LIMIT 1;
`)
	record := domain.Record{}
	if err := row.Scan(&record.ID, &record.Timestamp, &record.Count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, apperrors.ErrNotFound
		}
		return domain.Record{}, fmt.Errorf("query latest step count: %w", err)
	}
	return record, nil
}

func (s *SQLiteRecordStore) Recent(ctx context.Context, limit int) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, timestamp, count
FROM step_counts
ORDER BY timestamp DESC, id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list step counts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Record, 0, max(limit, 0))
	for rows.Next() {
		record := domain.Record{}
		if err := rows.Scan(&record.ID, &record.Timestamp, &record.Count); err != nil {
			return nil, fmt.Errorf("scan step count: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step counts: %w", err)
	}
	return out, nil
}

func (s *SQLiteRecordStore) Close() error {
	return s.db.Close()
}
