// Package store persists sentences in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kotosync/kotosync/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store owns the sentences table. Schema creation is a no-op when the table
// already exists, so prior data survives across runs.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Reset drops the sentences table and recreates it empty. All previously
// synced rows are lost; callers must warn before invoking this.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS sentences"); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	return s.ensureSchema()
}

// InsertBatch inserts sentences in one transaction and returns how many
// rows were newly inserted. Rows whose uuid already exists are skipped
// silently and not counted. On any other failure the whole batch rolls
// back.
func (s *Store) InsertBatch(ctx context.Context, sentences []model.Sentence) (int64, error) {
	if len(sentences) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO sentences (uuid, text, category, from_source, from_who, length)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, sentence := range sentences {
		res, err := stmt.ExecContext(ctx,
			sentence.UUID,
			sentence.Text,
			sentence.Category,
			sentence.From,
			sentence.FromWho,
			sentence.Length,
		)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", sentence.UUID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return inserted, nil
}

// Count returns the total number of stored sentences.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sentences").Scan(&count); err != nil {
		return 0, fmt.Errorf("count sentences: %w", err)
	}
	return count, nil
}
