package chat

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SessionKey is the key the transcript blob is stored under.
const SessionKey = "qfc-chat-state"

// SessionStore keeps opaque blobs per key for the lifetime of a session.
// Load returns nil, nil for a missing key.
type SessionStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemorySessionStore is a SessionStore that forgets everything on exit.
type MemorySessionStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{blobs: map[string][]byte{}}
}

func (m *MemorySessionStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), blob...), nil
}

func (m *MemorySessionStore) Save(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *MemorySessionStore) Close() error { return nil }

// SQLiteSessionStore keeps session blobs in a SQLite file so a restarted
// widget picks up where it left off.
type SQLiteSessionStore struct {
	db *sql.DB
}

// SQLiteDSN builds the connection string for a session database file
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
}

// NewSQLiteSessionStore opens (and creates) the database at path.
func NewSQLiteSessionStore(path string) (*SQLiteSessionStore, error) {
	if path == "" {
		return nil, errors.New("session db path is empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create session db directory")
		}
	}
	db, err := sql.Open("sqlite3", SQLiteDSN(path))
	if err != nil {
		return nil, errors.Wrap(err, "open session db")
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteSessionStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSessionStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS session_blobs (
  key TEXT PRIMARY KEY,
  value BLOB NOT NULL,
  updated_at INTEGER NOT NULL
);
`)
	if err != nil {
		return errors.Wrap(err, "migrate session db")
	}
	return nil
}

func (s *SQLiteSessionStore) Load(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM session_blobs WHERE key = ?`, key)
	var blob []byte
	switch err := row.Scan(&blob); err {
	case nil:
		return blob, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, errors.Wrapf(err, "load session %s", key)
	}
}

func (s *SQLiteSessionStore) Save(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO session_blobs (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, key, blob, time.Now().UnixMilli())
	return errors.Wrapf(err, "save session %s", key)
}

func (s *SQLiteSessionStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_blobs WHERE key = ?`, key)
	return errors.Wrapf(err, "delete session %s", key)
}

func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}
