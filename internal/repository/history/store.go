// Package history persists chat messages and the analysis log in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_messages (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	language TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_session ON chat_messages(session_id, seq);

CREATE TABLE IF NOT EXISTS chat_sessions (
	session_id TEXT PRIMARY KEY,
	epoch INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS analysis_log (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	query_id TEXT NOT NULL,
	input TEXT NOT NULL,
	output TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_kind ON analysis_log(kind, seq);
`

// Analysis is one logged analysis run.
type Analysis struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	QueryID   string    `json:"query_id"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a SQLite-backed history store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if needed) the database at path and migrates it.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck,gosec // migration error takes precedence
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

// AppendTurn stores the user and assistant messages of one exchange in a
// single transaction. Missing ids and timestamps are filled in.
func (s *Store) AppendTurn(ctx context.Context, msgs ...chat.Message) ([]chat.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = s.now().UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (id, session_id, role, content, language, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.SessionID, string(m.Role), m.Content, m.Language, m.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
		out[i] = m
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// Messages returns the last limit messages of a session, oldest first.
// limit <= 0 returns all of them.
func (s *Store) Messages(ctx context.Context, sessionID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, language, created_at FROM (
			SELECT seq, id, session_id, role, content, language, created_at
			FROM chat_messages WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		 ) ORDER BY seq ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]chat.Message, 0)
	for rows.Next() {
		var (
			m       chat.Message
			role    string
			created string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.Language, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = chat.Role(role)
		if m.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Position returns how often a session was cleared (its epoch) and how many
// messages it holds now. Together they identify a point in a conversation
// that is never repeated after a clear.
func (s *Store) Position(ctx context.Context, sessionID string) (epoch, turn int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT epoch FROM chat_sessions WHERE session_id = ?), 0),
		        (SELECT COUNT(*) FROM chat_messages WHERE session_id = ?)`,
		sessionID, sessionID,
	).Scan(&epoch, &turn)
	if err != nil {
		return 0, 0, fmt.Errorf("session position: %w", err)
	}
	return epoch, turn, nil
}

// ClearSession deletes every message of a session, bumps its epoch and
// returns how many messages were removed.
func (s *Store) ClearSession(ctx context.Context, sessionID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear session: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_sessions (session_id, epoch) VALUES (?, 1)
		 ON CONFLICT(session_id) DO UPDATE SET epoch = epoch + 1`,
		sessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("bump session epoch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// LogAnalysis appends to the analysis log.
func (s *Store) LogAnalysis(ctx context.Context, a Analysis) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_log (id, kind, query_id, input, output, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Kind, a.QueryID, a.Input, a.Output, a.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log analysis: %w", err)
	}
	return nil
}
