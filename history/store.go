package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Status values stored in sr_jobs.status.
const (
	StatusSuccess        = "success"
	StatusReadError      = "read_error"
	StatusInferenceError = "inference_error"
	StatusWriteError     = "write_error"
)

// Mode values stored in sr_jobs.mode.
const (
	ModeSR  = "sr"  // Super-resolution of a source image
	ModeT2I = "t2i" // Generated from the prompt; SourcePath holds the image label
)

// Entry is one processed source image or generated image.
type Entry struct {
	ID           int64
	BatchID      string
	Mode         string // ModeSR when empty
	SourcePath   string
	OutputPath   string // Empty unless Status is StatusSuccess
	Status       string
	Backend      string
	TargetSize   int
	TileSize     int
	Seed         uint64
	Duration     time.Duration
	ErrorMessage string
	CreatedAt    time.Time
}

// Store persists Entries. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open creates the database directory, applies migrations and returns a Store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history: database path is required")
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("history: create directory %s: %w", dir, err)
		}
	}

	if err := MigrateUp(path); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	db, err := NewSQLiteConnection(DefaultConnectionConfig(path))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record inserts e and returns its row ID. A zero CreatedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Mode == "" {
		e.Mode = ModeSR
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO sr_jobs (
			batch_id, mode, source_path, output_path, status, backend,
			target_size, tile_size, seed, duration_ms, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.BatchID,
		e.Mode,
		e.SourcePath,
		nullString(e.OutputPath),
		e.Status,
		e.Backend,
		e.TargetSize,
		e.TileSize,
		int64(e.Seed),
		e.Duration.Milliseconds(),
		nullString(e.ErrorMessage),
		e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("history: insert entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: last insert id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, batch_id, mode, source_path, output_path, status, backend,
		       target_size, tile_size, seed, duration_ms, error_message, created_at
		FROM sr_jobs
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
}

// ByBatch returns every entry of one batch in insertion order.
func (s *Store) ByBatch(ctx context.Context, batchID string) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, batch_id, mode, source_path, output_path, status, backend,
		       target_size, tile_size, seed, duration_ms, error_message, created_at
		FROM sr_jobs
		WHERE batch_id = ?
		ORDER BY id ASC`, batchID)
}

// CountByStatus returns the number of entries per status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sr_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("history: count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("history: scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			outputPath sql.NullString
			errMsg     sql.NullString
			seed       int64
			durationMS int64
			createdAt  int64
		)
		if err := rows.Scan(
			&e.ID, &e.BatchID, &e.Mode, &e.SourcePath, &outputPath, &e.Status, &e.Backend,
			&e.TargetSize, &e.TileSize, &seed, &durationMS, &errMsg, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("history: scan entry: %w", err)
		}
		e.OutputPath = outputPath.String
		e.ErrorMessage = errMsg.String
		e.Seed = uint64(seed)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.CreatedAt = time.UnixMilli(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
