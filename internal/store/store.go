// Package store provides SQLite-based persistence for the assistant:
// conversation history, prompt suggestions, settings, and the model
// availability registry. All timestamps are stored as fixed-width UTC
// strings so lexicographic and chronological ordering coincide.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/sdwebui/ollama-assistant/internal/logger"
)

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000Z"

// schemaVersion records the persisted layout generation in the settings
// table. There is no migration machinery; the value only identifies the
// layout a file was written with.
const schemaVersion = "1"

// Store owns a single long-lived database handle for its lifetime.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS conversations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp TEXT NOT NULL,
        user_message TEXT NOT NULL,
        model_response TEXT NOT NULL,
        model_name TEXT NOT NULL,
        session_id TEXT,
        metadata TEXT
    );

    CREATE TABLE IF NOT EXISTS prompts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        prompt_text TEXT NOT NULL UNIQUE,
        category TEXT,
        usage_count INTEGER DEFAULT 0,
        last_used TEXT,
        created_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS settings (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS models (
        name TEXT PRIMARY KEY,
        description TEXT,
        size TEXT,
        last_used TEXT,
        is_available BOOLEAN DEFAULT 1
    );
    `
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
		"schema_version", schemaVersion, now(),
	)
	return err
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

// SaveConversation persists a completed exchange and returns its id.
// Ids strictly increase with insertion order.
func (s *Store) SaveConversation(userMessage, modelResponse, modelName, sessionID string, metadata map[string]any) (int64, error) {
	var metadataJSON sql.NullString
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.Exec(`
        INSERT INTO conversations (timestamp, user_message, model_response, model_name, session_id, metadata)
        VALUES (?, ?, ?, ?, ?, ?)`,
		now(), userMessage, modelResponse, modelName, nullable(sessionID), metadataJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read conversation id: %w", err)
	}
	return id, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ConversationHistory returns up to limit records, newest first, with an
// optional model name filter.
func (s *Store) ConversationHistory(limit int, modelName string) ([]Conversation, error) {
	query := `
        SELECT id, timestamp, user_message, model_response, model_name, session_id
        FROM conversations`
	args := []any{}
	if modelName != "" {
		query += ` WHERE model_name = ?`
		args = append(args, modelName)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		var sessionID sql.NullString
		if err := rows.Scan(&conv.ID, &conv.Timestamp, &conv.UserMessage, &conv.ModelResponse, &conv.ModelName, &sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		conv.SessionID = sessionID.String
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// SavePrompt upserts a prompt keyed on its exact text. The first save
// inserts the row with a usage count of one; every repeat increments the
// count and refreshes last_used. A duplicate never creates a second row.
func (s *Store) SavePrompt(text, category string) error {
	ts := now()
	_, err := s.db.Exec(`
        INSERT INTO prompts (prompt_text, category, usage_count, last_used, created_at)
        VALUES (?, ?, 1, ?, ?)
        ON CONFLICT(prompt_text) DO UPDATE SET
            usage_count = usage_count + 1,
            last_used = excluded.last_used`,
		text, nullable(category), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to save prompt: %w", err)
	}
	return nil
}

// PromptSuggestions returns stored prompt texts containing partial
// (case-insensitive), ranked by usage count then recency, bounded by
// limit.
func (s *Store) PromptSuggestions(partial string, limit int) ([]string, error) {
	rows, err := s.db.Query(`
        SELECT prompt_text
        FROM prompts
        WHERE prompt_text LIKE ?
        ORDER BY usage_count DESC, last_used DESC
        LIMIT ?`,
		"%"+partial+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query prompts: %w", err)
	}
	defer rows.Close()

	var suggestions []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("failed to scan prompt row: %w", err)
		}
		suggestions = append(suggestions, text)
	}
	return suggestions, rows.Err()
}

// Setting returns the stored value for key, or fallback when the key is
// absent or the lookup fails (logged).
func (s *Store) Setting(key, fallback string) string {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback
	}
	if err != nil {
		logger.L.Warn("failed to read setting", "key", key, "error", err)
		return fallback
	}
	return value
}

// SetSetting stores value under key, overwriting any previous value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
        INSERT OR REPLACE INTO settings (key, value, updated_at)
        VALUES (?, ?, ?)`,
		key, value, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// UpdateModelInfo upserts a model registry entry and refreshes its
// last_used timestamp. No historical versions are kept.
func (s *Store) UpdateModelInfo(name, description, size string, available bool) error {
	_, err := s.db.Exec(`
        INSERT OR REPLACE INTO models (name, description, size, last_used, is_available)
        VALUES (?, ?, ?, ?, ?)`,
		name, nullable(description), nullable(size), now(), available,
	)
	if err != nil {
		return fmt.Errorf("failed to update model info: %w", err)
	}
	return nil
}

// AvailableModels returns the registry entries currently marked
// available, most recently used first.
func (s *Store) AvailableModels() ([]ModelEntry, error) {
	rows, err := s.db.Query(`
        SELECT name, description, size, last_used
        FROM models
        WHERE is_available = 1
        ORDER BY last_used DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	var models []ModelEntry
	for rows.Next() {
		var entry ModelEntry
		var description, size, lastUsed sql.NullString
		if err := rows.Scan(&entry.Name, &description, &size, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan model row: %w", err)
		}
		entry.Description = description.String
		entry.Size = size.String
		entry.LastUsed = lastUsed.String
		models = append(models, entry)
	}
	return models, rows.Err()
}

// CleanupOldData deletes conversations older than daysToKeep days,
// computed by duration subtraction from the current time, and returns
// the number of rows removed.
func (s *Store) CleanupOldData(daysToKeep int) (int64, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(daysToKeep) * 24 * time.Hour).Format(timeLayout)
	res, err := s.db.Exec(`DELETE FROM conversations WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up conversations: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	logger.L.Info("cleaned up old conversations", "deleted", deleted, "days_kept", daysToKeep)
	return deleted, nil
}
