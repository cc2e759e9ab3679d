package db

import (
	"database/sql"
	"fmt"
	"time"
)

// runMigrations applies database migrations for existing databases
func (db *DB) runMigrations() error {
	migrations := []struct {
		version int
		apply   func(tx *sql.Tx) error
	}{
		// Databases written by the earlier journaling server store the
		// message body in a "message" column and have no sequence.
		{1, migration001LegacyMessages},
		// Normalize CURRENT_TIMESTAMP values to the fixed-width layout
		{2, migration002NormalizeTimestamps},
	}

	for _, m := range migrations {
		var applied bool
		err := db.conn.QueryRow(`SELECT COUNT(*) > 0 FROM schema_migrations WHERE version = ?`, m.version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %03d: %w", m.version, err)
		}
		if applied {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %03d: %w", m.version, err)
		}
		if err := m.apply(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %03d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			m.version, formatTime(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %03d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %03d: %w", m.version, err)
		}
	}

	// Rebuilt tables lose their triggers; recreating is a no-op otherwise.
	return db.initSchema()
}

func hasColumn(tx *sql.Tx, table, column string) (bool, error) {
	var count int
	err := tx.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&count)
	return count > 0, err
}

// migration001LegacyMessages rebuilds a legacy messages table into the current shape
func migration001LegacyMessages(tx *sql.Tx) error {
	hasLegacy, err := hasColumn(tx, "messages", "message")
	if err != nil {
		return err
	}
	hasContent, err := hasColumn(tx, "messages", "content")
	if err != nil {
		return err
	}
	if !hasLegacy || hasContent {
		return nil
	}

	statements := []string{
		`CREATE TABLE messages_new (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			speaker TEXT NOT NULL CHECK (speaker IN ('user', 'assistant')),
			content TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			sequence INTEGER NOT NULL DEFAULT 0,
			metadata TEXT NOT NULL DEFAULT '{}',
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)`,
		`INSERT INTO messages_new (id, conversation_id, speaker, content, timestamp, sequence, metadata)
		SELECT
			id,
			conversation_id,
			speaker,
			message,
			COALESCE(timestamp, CURRENT_TIMESTAMP),
			ROW_NUMBER() OVER (PARTITION BY conversation_id ORDER BY timestamp, id),
			COALESCE(metadata, '{}')
		FROM messages`,
		`DROP TABLE messages`,
		`ALTER TABLE messages_new RENAME TO messages`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp)`,
		`INSERT INTO messages_fts(messages_fts) VALUES ('rebuild')`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migration002NormalizeTimestamps rewrites "YYYY-MM-DD HH:MM:SS" values
func migration002NormalizeTimestamps(tx *sql.Tx) error {
	const normalized = `strftime('%%Y-%%m-%%dT%%H:%%M:%%S', %s) || '.000000000Z'`
	statements := []string{
		fmt.Sprintf(`UPDATE conversations SET created_at = `+normalized+` WHERE created_at IS NOT NULL AND created_at NOT LIKE '%%Z'`, "created_at"),
		fmt.Sprintf(`UPDATE conversations SET updated_at = `+normalized+` WHERE updated_at IS NOT NULL AND updated_at NOT LIKE '%%Z'`, "updated_at"),
		`UPDATE conversations SET metadata = '{}' WHERE metadata IS NULL`,
		fmt.Sprintf(`UPDATE messages SET timestamp = `+normalized+` WHERE timestamp NOT LIKE '%%Z'`, "timestamp"),
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
