package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentwire/agentwire/core"
)

// SQLiteStore implements core.MemoryStore on a SQLite database. Content and
// metadata are stored as JSON text; entity_id is lifted into its own column
// so history lookups stay indexed.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory store: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_entries (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			agent_id   TEXT NOT NULL,
			kind       TEXT NOT NULL,
			entity_id  TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL DEFAULT '{}',
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_memory_agent_kind ON memory_entries(agent_id, kind);
		CREATE INDEX IF NOT EXISTS idx_memory_entity ON memory_entries(agent_id, entity_id);
	`)
	if err != nil {
		return fmt.Errorf("memory store: migrate: %w", err)
	}
	return nil
}

// Remember stores a fact and returns its id.
func (s *SQLiteStore) Remember(agentID, kind string, content, metadata map[string]any) (string, error) {
	id := core.NewID()
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("memory store: encode content: %w", err)
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("memory store: encode metadata: %w", err)
	}
	entityID, _ := metadata[core.EntityIDKey].(string)

	_, err = s.db.Exec(`
		INSERT INTO memory_entries (id, agent_id, kind, entity_id, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, agentID, kind, entityID, string(contentJSON), string(metadataJSON),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("memory store: remember: %w", err)
	}
	return id, nil
}

// Recall returns up to limit entries of a kind, newest first. An empty kind
// matches every entry; limit <= 0 means no limit.
func (s *SQLiteStore) Recall(agentID, kind string, limit int) ([]core.Entry, error) {
	query := `SELECT id, agent_id, kind, content, metadata, created_at FROM memory_entries WHERE agent_id = ?`
	args := []any{agentID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY seq DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.query(query, args...)
}

// EntityHistory returns up to limit entries whose metadata entity_id matches,
// newest first, optionally filtered by kind.
func (s *SQLiteStore) EntityHistory(agentID, entityID, kind string, limit int) ([]core.Entry, error) {
	query := `SELECT id, agent_id, kind, content, metadata, created_at FROM memory_entries
		WHERE agent_id = ? AND entity_id = ? COLLATE NOCASE`
	args := []any{agentID, entityID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY seq DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.query(query, args...)
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(query string, args ...any) ([]core.Entry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory store: query: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var e core.Entry
		var contentJSON, metadataJSON, createdAt string
		if err := rows.Scan(&e.ID, &e.AgentID, &e.Kind, &contentJSON, &metadataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("memory store: scan: %w", err)
		}
		json.Unmarshal([]byte(contentJSON), &e.Content)
		json.Unmarshal([]byte(metadataJSON), &e.Metadata)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
