package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "tweetgram/internal/errors"
	"tweetgram/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_messages (
    message_id TEXT PRIMARY KEY,
    first_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_first_seen ON processed_messages(first_seen);
`

// Store is the sqlite-backed record of already-forwarded inbound message
// identifiers. Writes are transactional, so a crash mid-mutation never
// corrupts the record set.
type Store struct {
	db         *sql.DB
	path       string
	maxAgeDays int
	hasher     *idHasher
}

// New opens (or creates) the store at dbPath and drops records older than
// maxAgeDays. The upstream platform does not redeliver messages older than
// its retention window, so keeping their records is pure waste.
func New(dbPath string, maxAgeDays int) (*Store, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	hasher, err := newIDHasher()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize hasher: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize hasher: %w", err)
	}

	s := &Store{db: db, path: dbPath, maxAgeDays: maxAgeDays, hasher: hasher}

	if err := s.Cleanup(context.Background()); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to purge old records: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to purge old records: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// IsProcessed reports whether the message identifier was already forwarded
func (s *Store) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_messages WHERE message_id = ?`,
		s.hasher.Hash(messageID),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query processed message: %w", err)
	}
	return true, nil
}

// MarkProcessed records the identifier as forwarded. Marking twice is
// harmless; the first first_seen timestamp wins.
func (s *Store) MarkProcessed(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_messages (message_id, first_seen) VALUES (?, ?)`,
		s.hasher.Hash(messageID), time.Now().UTC(),
	)
	if err != nil {
		return apperrors.NewStoreError("mark", err)
	}
	return nil
}

// Count returns the number of live records
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count processed messages: %w", err)
	}
	return count, nil
}

// Cleanup drops every record older than the configured retention window
func (s *Store) Cleanup(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.maxAgeDays)
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_messages WHERE first_seen < ?`, cutoff,
	)
	if err != nil {
		return apperrors.NewStoreError("cleanup", err)
	}
	return nil
}

// Stats returns a health snapshot of the store
func (s *Store) Stats(ctx context.Context) models.DedupStats {
	count, err := s.Count(ctx)
	if err != nil {
		count = -1
	}
	return models.DedupStats{
		TotalProcessed: count,
		Backend:        "sqlite",
		Path:           s.path,
		MaxAgeDays:     s.maxAgeDays,
	}
}
