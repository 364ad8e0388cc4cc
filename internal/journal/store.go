package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nisalabs/nisa-core/internal/config"
	"github.com/nisalabs/nisa-core/internal/conversation"
)

// Entry is one journaled turn.
type Entry struct {
	ID        int64
	SessionID string
	Speaker   string
	Text      string
	Emotion   string
	CreatedAt time.Time
}

// Store journals appended turns to SQLite. In the default "ephemeral"
// retention mode it opens no database and every call is a no-op, so the
// conversation leaves no trace past the process. "session" mode keeps turns
// on disk, bounded by MaxTurns per session.
type Store struct {
	db        *sql.DB
	cfg       config.JournalConfig
	sessionID string
	log       *slog.Logger
	clock     func() time.Time
}

// Open initializes the journal according to config.
func Open(ctx context.Context, cfg config.JournalConfig, sessionID string, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, sessionID: sessionID, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, sessionID: sessionID, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    speaker TEXT NOT NULL,
    text TEXT NOT NULL,
    emotion TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session_created ON turns(session_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record journals one turn. Satisfies the orchestrator's TurnRecorder.
func (s *Store) Record(ctx context.Context, turn conversation.Turn) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	created := turn.CreatedAt
	if created.IsZero() {
		created = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns(session_id, speaker, text, emotion, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		s.sessionID, string(turn.Speaker), turn.Text, string(turn.Emotion), created)
	if err != nil {
		return err
	}
	return s.pruneSession(ctx)
}

// ListTurns retrieves up to limit journaled turns for a session ordered
// ascending by time.
func (s *Store) ListTurns(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, speaker, text, emotion, created_at
		 FROM turns WHERE session_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Speaker, &e.Text, &e.Emotion, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// pruneSession enforces the per-session turn cap, dropping the oldest rows.
func (s *Store) pruneSession(ctx context.Context) error {
	if s.cfg.MaxTurns <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM turns WHERE session_id = ? AND id IN (
			SELECT id FROM turns WHERE session_id = ? ORDER BY id DESC LIMIT -1 OFFSET ?
		)`, s.sessionID, s.sessionID, s.cfg.MaxTurns)
	return err
}
