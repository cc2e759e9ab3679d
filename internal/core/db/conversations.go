package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neilberkman/ccjournal/internal/core/journalerr"
	"github.com/neilberkman/ccjournal/internal/core/models"
)

// Conversation is one journaling session as stored
type Conversation struct {
	ID           int64
	SessionID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Metadata     models.Metadata
	MessageCount int
}

// CreateConversation inserts a new conversation row for sessionID
func (db *DB) CreateConversation(sessionID string, metadata models.Metadata) (*Conversation, error) {
	const op = "create_conversation"

	if sessionID == "" {
		return nil, journalerr.Newf(op, sessionID, journalerr.ErrInvalidInput, "session id cannot be empty")
	}
	if err := models.ValidateMetadata(metadata); err != nil {
		return nil, journalerr.New(op, sessionID, err)
	}
	encoded, err := metadata.Encode()
	if err != nil {
		return nil, journalerr.Newf(op, sessionID, journalerr.ErrInvalidInput, "encode metadata: %v", err)
	}

	now := time.Now()
	res, err := db.conn.Exec(`
		INSERT INTO conversations (session_id, created_at, updated_at, metadata)
		VALUES (?, ?, ?, ?)
	`, sessionID, formatTime(now), formatTime(now), encoded)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, journalerr.New(op, sessionID, journalerr.ErrDuplicateSession)
		}
		return nil, journalerr.Persistence(op, sessionID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, journalerr.Persistence(op, sessionID, err)
	}

	if metadata == nil {
		metadata = models.Metadata{}
	}
	return &Conversation{
		ID:        id,
		SessionID: sessionID,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
		Metadata:  metadata.Clone(),
	}, nil
}

const conversationColumns = `
	c.id, c.session_id, c.created_at, c.updated_at, COALESCE(c.metadata, '{}'),
	(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	var createdAt, updatedAt, metadata string
	if err := row.Scan(&c.ID, &c.SessionID, &createdAt, &updatedAt, &metadata, &c.MessageCount); err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)

	md, err := models.DecodeMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", c.SessionID, err)
	}
	c.Metadata = md
	return &c, nil
}

// GetConversation loads a conversation by session id
func (db *DB) GetConversation(sessionID string) (*Conversation, error) {
	const op = "get_conversation"

	row := db.conn.QueryRow(`SELECT `+conversationColumns+` FROM conversations c WHERE c.session_id = ?`, sessionID)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, journalerr.New(op, sessionID, journalerr.ErrUnknownConversation)
	}
	if err != nil {
		return nil, journalerr.Persistence(op, sessionID, err)
	}
	return c, nil
}

// ListRecentConversations returns up to limit conversations, most recently active first
func (db *DB) ListRecentConversations(limit int) ([]Conversation, error) {
	const op = "list_recent_conversations"

	if limit <= 0 {
		return nil, journalerr.Newf(op, "", journalerr.ErrInvalidLimit, "got %d", limit)
	}

	rows, err := db.conn.Query(`
		SELECT `+conversationColumns+`
		FROM conversations c
		ORDER BY c.updated_at DESC, c.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, journalerr.Persistence(op, "", err)
	}
	defer func() { _ = rows.Close() }()

	var conversations []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, journalerr.Persistence(op, "", err)
		}
		conversations = append(conversations, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, journalerr.Persistence(op, "", err)
	}
	return conversations, nil
}

// UpdateConversationMetadata shallow-merges patch into the stored metadata
func (db *DB) UpdateConversationMetadata(sessionID string, patch models.Metadata) error {
	const op = "update_conversation_metadata"

	tx, err := db.conn.Begin()
	if err != nil {
		return journalerr.Persistence(op, sessionID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRow(`SELECT COALESCE(metadata, '{}') FROM conversations WHERE session_id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return journalerr.New(op, sessionID, journalerr.ErrUnknownConversation)
	}
	if err != nil {
		return journalerr.Persistence(op, sessionID, err)
	}

	current, err := models.DecodeMetadata(raw)
	if err != nil {
		return journalerr.Persistence(op, sessionID, fmt.Errorf("decode metadata: %w", err))
	}
	for k, v := range patch {
		current[k] = v
	}
	if err := models.ValidateMetadata(current); err != nil {
		return journalerr.New(op, sessionID, err)
	}
	encoded, err := current.Encode()
	if err != nil {
		return journalerr.Newf(op, sessionID, journalerr.ErrInvalidInput, "encode metadata: %v", err)
	}

	if _, err := tx.Exec(`UPDATE conversations SET metadata = ?, updated_at = MAX(updated_at, ?) WHERE session_id = ?`,
		encoded, formatTime(time.Now()), sessionID); err != nil {
		return journalerr.Persistence(op, sessionID, err)
	}
	if err := tx.Commit(); err != nil {
		return journalerr.Persistence(op, sessionID, err)
	}
	return nil
}
