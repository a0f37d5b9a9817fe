package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tailored-agentic-units/concierge/core/protocol"
)

// SQLiteStore persists history and summaries in a SQLite database. The pool
// is limited to one connection, which serializes writes and keeps
// ":memory:" databases coherent.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and runs
// migrations. The parent directory is created unless path is ":memory:".
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);

	CREATE TABLE IF NOT EXISTS summaries (
		session_id TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, sessionID string, turns ...protocol.Turn) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSaveFailed, sessionID, err)
	}
	defer tx.Rollback()

	for _, t := range turns {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			sessionID, string(t.Role), t.Content, t.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSaveFailed, sessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSaveFailed, sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) Turns(ctx context.Context, sessionID string) ([]protocol.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM turns WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, sessionID, err)
	}
	return scanTurns(rows, sessionID)
}

func (s *SQLiteStore) Recent(ctx context.Context, sessionID string, n int) ([]protocol.Turn, error) {
	if n <= 0 {
		return []protocol.Turn{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at FROM turns
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, sessionID, err)
	}
	return scanTurns(rows, sessionID)
}

func scanTurns(rows *sql.Rows, sessionID string) ([]protocol.Turn, error) {
	defer rows.Close()

	turns := []protocol.Turn{}
	for rows.Next() {
		var (
			role, content, created string
		)
		if err := rows.Scan(&role, &content, &created); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, sessionID, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: %s: %v", ErrLoadFailed, ErrCorrupt, sessionID, err)
		}
		turns = append(turns, protocol.Turn{Role: protocol.Role(role), Content: content, Timestamp: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, sessionID, err)
	}
	return turns, nil
}

func (s *SQLiteStore) LoadSummary(ctx context.Context, sessionID string) (Summary, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM summaries WHERE session_id = ?`, sessionID,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Summary{}, nil
		}
		return Summary{}, fmt.Errorf("%w: %s: %w", ErrLoadFailed, sessionID, err)
	}

	var summary Summary
	if err := json.Unmarshal([]byte(body), &summary); err != nil {
		return Summary{}, fmt.Errorf("%w: %w: %s: %v", ErrLoadFailed, ErrCorrupt, sessionID, err)
	}
	return summary, nil
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, sessionID string, summary Summary) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO summaries (session_id, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		sessionID, string(body), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSaveFailed, sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
