package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Process lifecycle event types.
const (
	EventProcessStarted = "process.started"
	EventProcessStopped = "process.stopped"
)

// Conversation and completion event types.
const (
	EventConversationCreated     = "conversation.created"
	EventConversationCleared     = "conversation.cleared"
	EventMessageReceived         = "message.received"
	EventContentRejected         = "content.rejected"
	EventCompletionAttemptFailed = "completion.attempt_failed"
	EventCompletionExhausted     = "completion.exhausted"
	EventCompletionSucceeded     = "completion.succeeded"
	EventReplySent               = "reply.sent"
)

// EventLog is an append-only audit log backed by SQLite. It records what the
// bot did, never conversation history: history lives in memory only.
type EventLog struct {
	db *sql.DB
}

// Open opens (or creates) the event log at the given path, ensuring that the
// parent directory exists.
func Open(path string) (*EventLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create event log directory %s: %w", dir, err)
		}
	}

	database, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open event log at %s: %w", path, err)
	}

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping event log at %s: %w", path, err)
	}

	if _, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY,
			timestamp INTEGER NOT NULL DEFAULT (unixepoch()),
			parent_id INTEGER,
			event_type TEXT NOT NULL,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_parent_id ON events(parent_id);
		CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);
	`); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to init event log schema: %w", err)
	}

	return &EventLog{db: database}, nil
}

// Close closes the underlying database.
func (l *EventLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Log inserts an event and returns its auto-generated id. parentID may be
// nil for root events. payload is serialized to JSON; nil payload stores NULL.
func (l *EventLog) Log(parentID *int64, eventType string, payload map[string]any) (int64, error) {
	var payloadJSON any
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal event payload: %w", err)
		}
		payloadJSON = string(data)
	}

	res, err := l.db.Exec(
		`INSERT INTO events (parent_id, event_type, payload) VALUES (?, ?, ?)`,
		parentID, eventType, payloadJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event %s: %w", eventType, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get event id: %w", err)
	}
	return id, nil
}

// Record is the best-effort variant of Log used on hot paths: a broken audit
// log must never fail a user-facing exchange. Safe on a nil receiver.
func (l *EventLog) Record(eventType string, payload map[string]any) {
	if l == nil || l.db == nil {
		return
	}
	_, _ = l.Log(nil, eventType, payload)
}

// CountByType returns how many events of the given type were recorded.
func (l *EventLog) CountByType(eventType string) (int, error) {
	var count int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE event_type = ?`, eventType,
	).Scan(&count)
	return count, err
}
