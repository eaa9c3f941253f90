// Package translog persists finalized conversation messages to sqlite.
// The orchestrator hands messages off and moves on; durability is never
// on a turn's critical path.
package translog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parleyhq/parley/pkg/convo"
	"github.com/parleyhq/parley/pkg/logger"
)

// Log is the durable append-only transcript store.
type Log struct {
	db      *sql.DB
	pending chan convo.Message
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// Open creates (or reopens) the transcript database at dbPath and starts
// the background writer.
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript db: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		speaker TEXT NOT NULL,
		text TEXT NOT NULL,
		audio_ref TEXT,
		created_at DATETIME NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init transcript schema: %w", err)
	}
	db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at)`)

	l := &Log{
		db:      db,
		pending: make(chan convo.Message, 512),
		done:    make(chan struct{}),
	}
	go l.writeLoop()
	return l, nil
}

// Append queues a message for persistence. A full queue drops the
// message with a warning rather than stalling the caller; appends
// racing Close during shutdown are dropped silently.
func (l *Log) Append(msg convo.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.pending <- msg:
	default:
		logger.Warn("translog", "Transcript queue full, message dropped", map[string]any{
			"conversation": msg.ConversationID,
			"message_id":   msg.ID,
		})
	}
}

func (l *Log) writeLoop() {
	defer close(l.done)
	for msg := range l.pending {
		_, err := l.db.Exec(
			"INSERT OR IGNORE INTO messages (id, conversation_id, speaker, text, audio_ref, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			msg.ID, msg.ConversationID, msg.Speaker, msg.Text, msg.AudioRef, msg.Timestamp,
		)
		if err != nil {
			logger.Error("translog", "Failed to persist message", map[string]any{
				"message_id": msg.ID,
				"error":      err.Error(),
			})
		}
	}
}

// History returns a conversation's persisted messages in append order.
func (l *Log) History(ctx context.Context, conversationID string) ([]convo.Message, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT id, conversation_id, speaker, text, COALESCE(audio_ref, ''), created_at FROM messages WHERE conversation_id = ? ORDER BY created_at, id",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var out []convo.Message
	for rows.Next() {
		var m convo.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Speaker, &m.Text, &m.AudioRef, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close drains pending writes and shuts the database. Waits up to a
// short grace period for the writer to finish.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.pending)
	l.mu.Unlock()
	select {
	case <-l.done:
	case <-time.After(5 * time.Second):
		logger.Warn("translog", "Writer did not drain before close", nil)
	}
	return l.db.Close()
}
