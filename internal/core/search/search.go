package search

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/neilberkman/ccjournal/internal/core/db"
)

// Match is a single matching message
type Match struct {
	MessageID int64
	Speaker   string
	Snippet   string
	Timestamp string
}

// ConversationResult groups matches by conversation
type ConversationResult struct {
	SessionID string
	EntryPath string
	UpdatedAt string
	Matches   []Match
}

// Default sort order for search results (most recent first)
const defaultOrderBy = "m.timestamp DESC, m.id DESC"

const defaultLimit = 200

// Search runs a full-text search over recorded messages
func Search(database *db.DB, query string) ([]ConversationResult, error) {
	return SearchWithFilters(database, Filters{Query: query})
}

// SearchWithFilters searches messages and groups the hits by conversation,
// conversations ordered by their most recent match
func SearchWithFilters(database *db.DB, filters Filters) ([]ConversationResult, error) {
	query := strings.TrimSpace(filters.Query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var where []string
	var args []interface{}

	// FTS5 chokes on punctuation-heavy queries; fall back to substring match
	hasSpecialChars := strings.ContainsAny(query, "-_@#$%&/:.")

	var from, snippet string
	if hasSpecialChars {
		from = "messages m JOIN conversations c ON c.id = m.conversation_id"
		snippet = "m.content"
		where = append(where, "m.content LIKE '%' || ? || '%'")
	} else {
		from = `messages_fts
			JOIN messages m ON messages_fts.rowid = m.id
			JOIN conversations c ON c.id = m.conversation_id`
		snippet = "snippet(messages_fts, -1, '', '', '...', 64)"
		where = append(where, "messages_fts MATCH ?")
	}
	args = append(args, query)

	if filters.Speaker != "" {
		where = append(where, "m.speaker = ?")
		args = append(args, filters.Speaker)
	}
	if filters.HasAfter {
		where = append(where, "m.timestamp >= ?")
		args = append(args, filters.AfterDate.UTC().Format(db.TimeLayout))
	}
	if filters.HasBefore {
		where = append(where, "m.timestamp < ?")
		args = append(args, filters.BeforeDate.UTC().Format(db.TimeLayout))
	}
	args = append(args, limit)

	rows, err := database.Query(fmt.Sprintf(`
		SELECT
			m.id,
			c.session_id,
			CASE WHEN json_valid(c.metadata) THEN COALESCE(json_extract(c.metadata, '$.entry_path'), '') ELSE '' END,
			c.updated_at,
			m.speaker,
			%s,
			m.timestamp
		FROM %s
		WHERE %s
		ORDER BY %s
		LIMIT ?
	`, snippet, from, strings.Join(where, " AND "), defaultOrderBy), args...)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []ConversationResult
	index := make(map[string]int)
	for rows.Next() {
		var m Match
		var sessionID, updatedAt string
		var entryPath sql.NullString
		if err := rows.Scan(&m.MessageID, &sessionID, &entryPath, &updatedAt, &m.Speaker, &m.Snippet, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		i, ok := index[sessionID]
		if !ok {
			i = len(results)
			index[sessionID] = i
			results = append(results, ConversationResult{
				SessionID: sessionID,
				EntryPath: entryPath.String,
				UpdatedAt: updatedAt,
			})
		}
		results[i].Matches = append(results[i].Matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}
