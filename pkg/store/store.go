// Package store persists session transcripts and analyses in SQLite so
// a restart does not lose the conversation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hagglekit/hagglekit/pkg/analysis"
	"github.com/hagglekit/hagglekit/pkg/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	author TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	has_attachment INTEGER NOT NULL DEFAULT 0,
	is_voice INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);

CREATE TABLE IF NOT EXISTS analyses (
	session_id TEXT PRIMARY KEY,
	result TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveMessage appends one message. Messages are never updated or
// deleted; the table mirrors the append-only in-memory log.
func (s *Store) SaveMessage(sessionID string, msg chat.Message) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, session_id, author, text, created_at, has_attachment, is_voice)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, sessionID, string(msg.Author), msg.Text, msg.CreatedAt,
		boolToInt(msg.HasAttachment), boolToInt(msg.IsVoice),
	)
	return err
}

// LoadMessages returns the session transcript in insertion order.
func (s *Store) LoadMessages(sessionID string) ([]chat.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, author, text, created_at, has_attachment, is_voice
		 FROM messages WHERE session_id = ? ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		var author string
		var hasAttachment, isVoice int
		if err := rows.Scan(&m.ID, &author, &m.Text, &m.CreatedAt, &hasAttachment, &isVoice); err != nil {
			return nil, err
		}
		m.Author = chat.Author(author)
		m.HasAttachment = hasAttachment != 0
		m.IsVoice = isVoice != 0
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SaveAnalysis replaces the session's analysis wholesale.
func (s *Store) SaveAnalysis(sessionID string, res *analysis.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO analyses (session_id, result, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET result = excluded.result, updated_at = excluded.updated_at`,
		sessionID, string(data), time.Now().UTC(),
	)
	return err
}

// LoadAnalysis returns the stored analysis for a session, or nil when
// none exists.
func (s *Store) LoadAnalysis(sessionID string) (*analysis.Result, error) {
	var data string
	err := s.db.QueryRow(`SELECT result FROM analyses WHERE session_id = ?`, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res analysis.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
