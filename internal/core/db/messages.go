package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/neilberkman/ccjournal/internal/core/journalerr"
	"github.com/neilberkman/ccjournal/internal/core/models"
)

// Message is a stored message row
type Message struct {
	ID             int64
	ConversationID int64
	Speaker        models.Speaker
	Content        string
	Timestamp      time.Time
	Sequence       int
	Metadata       models.Metadata
}

// AppendMessage stores a single message under conversationID
func (db *DB) AppendMessage(conversationID int64, msg models.Message) (*Message, error) {
	const op = "append_message"
	key := strconv.FormatInt(conversationID, 10)

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, journalerr.Persistence(op, key, err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := appendMessages(tx, op, key, conversationID, []models.Message{msg})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, journalerr.Persistence(op, key, err)
	}
	return &stored[0], nil
}

// AppendMessages stores msgs under the conversation for sessionID in one
// transaction: either every message is stored or none is.
func (db *DB) AppendMessages(sessionID string, msgs []models.Message) ([]Message, error) {
	const op = "append_messages"

	if len(msgs) == 0 {
		return nil, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, journalerr.Persistence(op, sessionID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var conversationID int64
	err = tx.QueryRow(`SELECT id FROM conversations WHERE session_id = ?`, sessionID).Scan(&conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, journalerr.New(op, sessionID, journalerr.ErrUnknownConversation)
	}
	if err != nil {
		return nil, journalerr.Persistence(op, sessionID, err)
	}

	stored, err := appendMessages(tx, op, sessionID, conversationID, msgs)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, journalerr.Persistence(op, sessionID, err)
	}
	return stored, nil
}

// AppendInteraction stores a user/assistant pair atomically
func (db *DB) AppendInteraction(sessionID string, user, assistant models.Message) ([]Message, error) {
	return db.AppendMessages(sessionID, []models.Message{user, assistant})
}

func appendMessages(tx *sql.Tx, op, key string, conversationID int64, msgs []models.Message) ([]Message, error) {
	var exists bool
	if err := tx.QueryRow(`SELECT COUNT(*) > 0 FROM conversations WHERE id = ?`, conversationID).Scan(&exists); err != nil {
		return nil, journalerr.Persistence(op, key, err)
	}
	if !exists {
		return nil, journalerr.New(op, key, journalerr.ErrUnknownConversation)
	}

	var lastTimestamp sql.NullString
	var lastSequence int
	err := tx.QueryRow(`
		SELECT MAX(timestamp), COALESCE(MAX(sequence), 0)
		FROM messages WHERE conversation_id = ?
	`, conversationID).Scan(&lastTimestamp, &lastSequence)
	if err != nil {
		return nil, journalerr.Persistence(op, key, err)
	}
	var floor time.Time
	if lastTimestamp.Valid {
		floor = parseTime(lastTimestamp.String)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (conversation_id, speaker, content, timestamp, sequence, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, journalerr.Persistence(op, key, err)
	}
	defer func() { _ = stmt.Close() }()

	stored := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if err := msg.Validate(); err != nil {
			return nil, journalerr.New(op, key, err)
		}
		encoded, err := msg.Metadata.Encode()
		if err != nil {
			return nil, journalerr.Newf(op, key, journalerr.ErrInvalidInput, "encode metadata: %v", err)
		}

		ts := msg.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		// Keep timestamps non-decreasing within a conversation
		if ts.Before(floor) {
			ts = floor
		}
		floor = ts
		lastSequence++

		res, err := stmt.Exec(conversationID, string(msg.Speaker), msg.Content, formatTime(ts), lastSequence, encoded)
		if err != nil {
			return nil, journalerr.Persistence(op, key, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, journalerr.Persistence(op, key, err)
		}

		stored = append(stored, Message{
			ID:             id,
			ConversationID: conversationID,
			Speaker:        msg.Speaker,
			Content:        msg.Content,
			Timestamp:      ts.UTC(),
			Sequence:       lastSequence,
			Metadata:       msg.Metadata.Clone(),
		})
	}

	if _, err := tx.Exec(`UPDATE conversations SET updated_at = MAX(updated_at, ?, ?) WHERE id = ?`,
		formatTime(time.Now()), formatTime(floor), conversationID); err != nil {
		return nil, journalerr.Persistence(op, key, err)
	}

	return stored, nil
}

// ListMessages returns a conversation's messages in timestamp order, ties in insertion order
func (db *DB) ListMessages(conversationID int64) ([]Message, error) {
	rows, err := db.conn.Query(`
		SELECT id, conversation_id, speaker, content, timestamp, sequence, COALESCE(metadata, '{}')
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, journalerr.Persistence("list_messages", strconv.FormatInt(conversationID, 10), err)
	}
	defer func() { _ = rows.Close() }()

	var messages []Message
	for rows.Next() {
		var m Message
		var speaker, ts, metadata string
		if err := rows.Scan(&m.ID, &m.ConversationID, &speaker, &m.Content, &ts, &m.Sequence, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Speaker = models.Speaker(speaker)
		m.Timestamp = parseTime(ts)
		if m.Metadata, err = models.DecodeMetadata(metadata); err != nil {
			return nil, fmt.Errorf("failed to decode message metadata: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
