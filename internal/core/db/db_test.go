package db

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/neilberkman/ccjournal/internal/core/journalerr"
	"github.com/neilberkman/ccjournal/internal/core/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(tmpfile.Name()) })
	_ = tmpfile.Close()

	database, err := New(tmpfile.Name())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func userMsg(content string) models.Message {
	return models.Message{Speaker: models.SpeakerUser, Content: content}
}

func assistantMsg(content string) models.Message {
	return models.Message{Speaker: models.SpeakerAssistant, Content: content}
}

func TestNew(t *testing.T) {
	database := newTestDB(t)

	// Verify schema initialized
	for _, table := range []string{"conversations", "messages", "messages_fts", "schema_migrations"} {
		var count int
		err := database.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = ?", table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to query schema: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected table %s to exist", table)
		}
	}
}

func TestNew_WALMode(t *testing.T) {
	database := newTestDB(t)

	var journalMode string
	if err := database.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected WAL mode, got %s", journalMode)
	}
}

func TestNew_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.db")

	first, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := first.CreateConversation("s1", nil); err != nil {
		t.Fatal(err)
	}
	_ = first.Close()

	second, err := New(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = second.Close() }()

	if _, err := second.GetConversation("s1"); err != nil {
		t.Errorf("conversation lost across reopen: %v", err)
	}
}

func TestCreateConversation_Duplicate(t *testing.T) {
	database := newTestDB(t)

	c, err := database.CreateConversation("session-1", models.Metadata{"source": "test"})
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if c.ID == 0 || c.SessionID != "session-1" {
		t.Errorf("unexpected conversation: %+v", c)
	}

	_, err = database.CreateConversation("session-1", nil)
	if !errors.Is(err, journalerr.ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}
	if journalerr.KindOf(err) != journalerr.KindState {
		t.Errorf("expected state kind, got %s", journalerr.KindOf(err))
	}
}

func TestAppendMessage_UnknownConversation(t *testing.T) {
	database := newTestDB(t)

	_, err := database.AppendMessage(9999, userMsg("hello"))
	if !errors.Is(err, journalerr.ErrUnknownConversation) {
		t.Fatalf("expected ErrUnknownConversation, got %v", err)
	}

	_, err = database.AppendInteraction("missing", userMsg("hi"), assistantMsg("hello"))
	if !errors.Is(err, journalerr.ErrUnknownConversation) {
		t.Fatalf("expected ErrUnknownConversation, got %v", err)
	}

	var count int
	_ = database.conn.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count)
	if count != 0 {
		t.Errorf("expected no orphan rows, got %d", count)
	}
}

func TestAppendMessage_ForeignKeyEnforced(t *testing.T) {
	database := newTestDB(t)

	_, err := database.conn.Exec(`INSERT INTO messages (conversation_id, speaker, content, timestamp) VALUES (42, 'user', 'x', ?)`,
		formatTime(time.Now()))
	if err == nil {
		t.Fatal("expected foreign key violation for orphan insert")
	}
}

func TestAppendMessage_UpdatesConversation(t *testing.T) {
	database := newTestDB(t)

	c, err := database.CreateConversation("s1", nil)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(2 * time.Millisecond)
	m, err := database.AppendMessage(c.ID, userMsg("first"))
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if m.Sequence != 1 {
		t.Errorf("Sequence = %d, want 1", m.Sequence)
	}

	got, err := database.GetConversation("s1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.UpdatedAt.After(c.UpdatedAt) {
		t.Errorf("updated_at did not advance: %v -> %v", c.UpdatedAt, got.UpdatedAt)
	}
	if got.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", got.MessageCount)
	}
}

func TestAppendMessages_Atomic(t *testing.T) {
	database := newTestDB(t)
	if _, err := database.CreateConversation("s1", nil); err != nil {
		t.Fatal(err)
	}

	// Second message is invalid, so neither may be stored
	_, err := database.AppendInteraction("s1", userMsg("valid"), assistantMsg("   "))
	if !errors.Is(err, journalerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	c, _ := database.GetConversation("s1")
	if c.MessageCount != 0 {
		t.Errorf("expected rollback, got %d messages", c.MessageCount)
	}
}

func TestListMessages_Ordering(t *testing.T) {
	database := newTestDB(t)
	c, err := database.CreateConversation("s1", nil)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		{Speaker: models.SpeakerUser, Content: "one", Timestamp: base},
		{Speaker: models.SpeakerAssistant, Content: "two", Timestamp: base},
		// Earlier than its predecessor: clamped, still ordered after it
		{Speaker: models.SpeakerUser, Content: "three", Timestamp: base.Add(-time.Hour)},
		{Speaker: models.SpeakerAssistant, Content: "four", Timestamp: base.Add(time.Minute)},
	}
	if _, err := database.AppendMessages("s1", msgs); err != nil {
		t.Fatalf("AppendMessages() error = %v", err)
	}

	got, err := database.ListMessages(c.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	want := []string{"one", "two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.Content != want[i] {
			t.Errorf("message %d = %q, want %q", i, m.Content, want[i])
		}
		if i > 0 && m.Timestamp.Before(got[i-1].Timestamp) {
			t.Errorf("message %d timestamp went backwards", i)
		}
		if m.Sequence != i+1 {
			t.Errorf("message %d sequence = %d", i, m.Sequence)
		}
	}
	if !got[2].Timestamp.Equal(base) {
		t.Errorf("expected clamped timestamp %v, got %v", base, got[2].Timestamp)
	}
}

func TestDeleteConversation_Cascades(t *testing.T) {
	database := newTestDB(t)
	c, _ := database.CreateConversation("s1", nil)
	if _, err := database.AppendInteraction("s1", userMsg("a"), assistantMsg("b")); err != nil {
		t.Fatal(err)
	}

	if _, err := database.conn.Exec("DELETE FROM conversations WHERE id = ?", c.ID); err != nil {
		t.Fatal(err)
	}

	var count int
	_ = database.conn.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count)
	if count != 0 {
		t.Errorf("expected cascade delete, %d messages remain", count)
	}
}

func TestListRecentConversations(t *testing.T) {
	database := newTestDB(t)

	for _, id := range []string{"a", "b", "c"} {
		if _, err := database.CreateConversation(id, nil); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	// Activity on "a" moves it to the front
	if _, err := database.AppendInteraction("a", userMsg("hi"), assistantMsg("hello")); err != nil {
		t.Fatal(err)
	}

	got, err := database.ListRecentConversations(2)
	if err != nil {
		t.Fatalf("ListRecentConversations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d conversations, want 2", len(got))
	}
	if got[0].SessionID != "a" || got[1].SessionID != "c" {
		t.Errorf("order = [%s %s], want [a c]", got[0].SessionID, got[1].SessionID)
	}
	if got[0].MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", got[0].MessageCount)
	}

	for _, limit := range []int{0, -1} {
		if _, err := database.ListRecentConversations(limit); !errors.Is(err, journalerr.ErrInvalidLimit) {
			t.Errorf("limit %d: expected ErrInvalidLimit, got %v", limit, err)
		}
	}
}

func TestUpdateConversationMetadata(t *testing.T) {
	database := newTestDB(t)
	if _, err := database.CreateConversation("s1", models.Metadata{"mood": "calm"}); err != nil {
		t.Fatal(err)
	}

	if err := database.UpdateConversationMetadata("s1", models.Metadata{"entry_path": "/tmp/x.md"}); err != nil {
		t.Fatalf("UpdateConversationMetadata() error = %v", err)
	}

	c, _ := database.GetConversation("s1")
	if c.Metadata["mood"] != "calm" || c.Metadata["entry_path"] != "/tmp/x.md" {
		t.Errorf("metadata = %v", c.Metadata)
	}

	err := database.UpdateConversationMetadata("missing", models.Metadata{"a": 1})
	if !errors.Is(err, journalerr.ErrUnknownConversation) {
		t.Errorf("expected ErrUnknownConversation, got %v", err)
	}
}

func TestAggregateStatistics(t *testing.T) {
	database := newTestDB(t)

	stats, err := database.AggregateStatistics()
	if err != nil {
		t.Fatalf("AggregateStatistics() error = %v", err)
	}
	if stats.ConversationCount != 0 || stats.AvgMessagesPerConvo != 0 {
		t.Errorf("empty stats = %+v", stats)
	}

	_, _ = database.CreateConversation("s1", nil)
	_, _ = database.CreateConversation("s2", nil)
	if _, err := database.AppendInteraction("s1", userMsg("a"), assistantMsg("b")); err != nil {
		t.Fatal(err)
	}
	if _, err := database.AppendMessages("s2", []models.Message{userMsg("c")}); err != nil {
		t.Fatal(err)
	}
	_ = database.UpdateConversationMetadata("s1", models.Metadata{"entry_path": "x.md"})

	stats, err = database.AggregateStatistics()
	if err != nil {
		t.Fatal(err)
	}
	if stats.ConversationCount != 2 {
		t.Errorf("ConversationCount = %d, want 2", stats.ConversationCount)
	}
	if stats.MessageCount != 3 || stats.UserMessageCount != 2 || stats.AssistantMessageCount != 1 {
		t.Errorf("message counts = %+v", stats)
	}
	if stats.AvgMessagesPerConvo != 1.5 {
		t.Errorf("AvgMessagesPerConvo = %v, want 1.5", stats.AvgMessagesPerConvo)
	}
	if stats.ConversationsWithEntry != 1 {
		t.Errorf("ConversationsWithEntry = %d, want 1", stats.ConversationsWithEntry)
	}
	if stats.LastActivityAt.IsZero() || stats.FirstConversationAt.IsZero() {
		t.Error("expected activity timestamps")
	}
}

func TestMigrations_LegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = legacy.Exec(`
		CREATE TABLE conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT UNIQUE NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			metadata TEXT
		);
		CREATE TABLE messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			speaker TEXT NOT NULL CHECK (speaker IN ('user', 'assistant')),
			message TEXT NOT NULL,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			metadata TEXT,
			FOREIGN KEY (conversation_id) REFERENCES conversations (id) ON DELETE CASCADE
		);
		INSERT INTO conversations (session_id, created_at, updated_at) VALUES ('old', '2024-05-01 09:00:00', '2024-05-01 09:05:00');
		INSERT INTO messages (conversation_id, speaker, message, timestamp) VALUES (1, 'user', 'morning pages', '2024-05-01 09:01:00');
		INSERT INTO messages (conversation_id, speaker, message, timestamp) VALUES (1, 'assistant', 'go on', '2024-05-01 09:02:00');
	`)
	if err != nil {
		t.Fatalf("seed legacy schema: %v", err)
	}
	_ = legacy.Close()

	database, err := New(path)
	if err != nil {
		t.Fatalf("New() on legacy database error = %v", err)
	}
	defer func() { _ = database.Close() }()

	c, err := database.GetConversation("old")
	if err != nil {
		t.Fatal(err)
	}
	if c.CreatedAt.IsZero() || len(c.Metadata) != 0 {
		t.Errorf("unexpected migrated conversation: %+v", c)
	}

	msgs, err := database.ListMessages(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "morning pages" || msgs[1].Sequence != 2 {
		t.Fatalf("unexpected migrated messages: %+v", msgs)
	}

	// New rows land after legacy ones and remain searchable
	if _, err := database.AppendInteraction("old", userMsg("evening"), assistantMsg("noted")); err != nil {
		t.Fatalf("append after migration: %v", err)
	}
	var hits int
	if err := database.conn.QueryRow(`SELECT COUNT(*) FROM messages_fts WHERE messages_fts MATCH 'morning OR evening'`).Scan(&hits); err != nil {
		t.Fatal(err)
	}
	if hits != 2 {
		t.Errorf("fts hits = %d, want 2", hits)
	}
}
