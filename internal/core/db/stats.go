package db

import (
	"database/sql"
	"time"

	"github.com/neilberkman/ccjournal/internal/core/journalerr"
)

// Stats aggregates the stored conversations and messages
type Stats struct {
	ConversationCount      int
	MessageCount           int
	UserMessageCount       int
	AssistantMessageCount  int
	AvgMessagesPerConvo    float64
	FirstConversationAt    time.Time
	LastActivityAt         time.Time
	ConversationsWithEntry int
}

// AggregateStatistics returns counts and averages across all conversations
func (db *DB) AggregateStatistics() (*Stats, error) {
	const op = "aggregate_statistics"
	var s Stats

	err := db.conn.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM messages),
			(SELECT COUNT(*) FROM messages WHERE speaker = 'user'),
			(SELECT COUNT(*) FROM messages WHERE speaker = 'assistant'),
			(SELECT COUNT(*) FROM conversations WHERE CASE WHEN json_valid(metadata) THEN json_extract(metadata, '$.entry_path') END IS NOT NULL)
	`).Scan(&s.ConversationCount, &s.MessageCount, &s.UserMessageCount, &s.AssistantMessageCount, &s.ConversationsWithEntry)
	if err != nil {
		return nil, journalerr.Persistence(op, "", err)
	}

	var first, last sql.NullString
	err = db.conn.QueryRow(`SELECT MIN(created_at), MAX(updated_at) FROM conversations`).Scan(&first, &last)
	if err != nil {
		return nil, journalerr.Persistence(op, "", err)
	}
	if first.Valid {
		s.FirstConversationAt = parseTime(first.String)
	}
	if last.Valid {
		s.LastActivityAt = parseTime(last.String)
	}

	if s.ConversationCount > 0 {
		s.AvgMessagesPerConvo = float64(s.MessageCount) / float64(s.ConversationCount)
	}

	return &s, nil
}
