package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/neilberkman/ccjournal/internal/core/config"
	"github.com/neilberkman/ccjournal/internal/core/journaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *journaling.Service {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.JournalDir = filepath.Join(dir, "journal")
	cfg.BackupDir = filepath.Join(cfg.JournalDir, "backups")
	cfg.DatabasePath = filepath.Join(dir, "conversations.db")

	svc, err := journaling.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func call(t *testing.T, handler handlerFunc, args map[string]interface{}) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text, result.IsError
}

func decode(t *testing.T, text string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &out), text)
	return out
}

func TestToolFlow(t *testing.T) {
	svc := newTestService(t)

	text, isErr := call(t, makeRecordInteractionHandler(svc), map[string]interface{}{
		"user_message":      "hi",
		"assistant_message": "hello",
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "state error")

	text, isErr = call(t, makeStartSessionHandler(svc), nil)
	require.False(t, isErr, text)
	sessionID := decode(t, text)["session_id"].(string)
	assert.NotEmpty(t, sessionID)

	text, isErr = call(t, makeRecordInteractionHandler(svc), map[string]interface{}{
		"user_message":      "How was my day?",
		"assistant_message": "Tell me more.",
		"metadata":          map[string]interface{}{"channel": "test"},
	})
	require.False(t, isErr, text)
	rec := decode(t, text)
	assert.Equal(t, true, rec["recorded"])
	assert.Equal(t, float64(2), rec["message_count"])
	assert.NotContains(t, rec, "warning")

	text, isErr = call(t, makeGenerateSummaryHandler(svc), map[string]interface{}{
		"summary":            "Short chat.",
		"emotional_analysis": "Calm.",
		"reflections":        "More tomorrow.",
		"tags":               []interface{}{"work", "reflection"},
		"mood_rating":        7,
	})
	require.False(t, isErr, text)
	gen := decode(t, text)
	path := gen["filepath"].(string)
	assert.FileExists(t, path)

	text, isErr = call(t, makeAddTagsHandler(svc), map[string]interface{}{
		"filepath": filepath.Base(path),
		"tags":     []interface{}{"evening"},
	})
	require.False(t, isErr, text)
	assert.Equal(t, []interface{}{"work", "reflection", "evening"}, decode(t, text)["tags_after"])

	text, isErr = call(t, makeStatisticsHandler(svc), nil)
	require.False(t, isErr, text)
	st := decode(t, text)
	assert.Equal(t, float64(1), st["total_entries"])
	assert.Equal(t, float64(2), st["total_messages"])

	text, isErr = call(t, makeListRecentConversationsHandler(svc), map[string]interface{}{"limit": 5})
	require.False(t, isErr, text)
	convs := decode(t, text)["conversations"].([]interface{})
	require.Len(t, convs, 1)
	conv := convs[0].(map[string]interface{})
	assert.Equal(t, sessionID, conv["session_id"])
	assert.Equal(t, path, conv["entry_path"])

	text, isErr = call(t, makeSearchConversationsHandler(svc), map[string]interface{}{"query": "day"})
	require.False(t, isErr, text)
	found := decode(t, text)["conversations"].([]interface{})
	require.Len(t, found, 1)
	assert.Equal(t, path, found[0].(map[string]interface{})["entry_path"])
}

func TestGenerateSummary_Errors(t *testing.T) {
	svc := newTestService(t)

	_, isErr := call(t, makeStartSessionHandler(svc), nil)
	require.False(t, isErr)
	_, isErr = call(t, makeRecordInteractionHandler(svc), map[string]interface{}{
		"user_message":      "a",
		"assistant_message": "b",
	})
	require.False(t, isErr)

	args := map[string]interface{}{
		"summary":            "s",
		"emotional_analysis": "e",
		"reflections":        "r",
		"mood_rating":        42,
	}
	text, isErr := call(t, makeGenerateSummaryHandler(svc), args)
	assert.True(t, isErr)
	assert.Contains(t, text, "validation error")
	assert.Contains(t, text, "mood rating")

	delete(args, "mood_rating")
	text, isErr = call(t, makeGenerateSummaryHandler(svc), args)
	assert.True(t, isErr)
	assert.Contains(t, text, "mood_rating is required")
}

func TestAddTags_Traversal(t *testing.T) {
	svc := newTestService(t)

	text, isErr := call(t, makeAddTagsHandler(svc), map[string]interface{}{
		"filepath": "../../etc/passwd.md",
		"tags":     []interface{}{"x"},
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "security error")
}

func TestRecordInteraction_BlankMessage(t *testing.T) {
	svc := newTestService(t)
	_, isErr := call(t, makeStartSessionHandler(svc), nil)
	require.False(t, isErr)

	text, isErr := call(t, makeRecordInteractionHandler(svc), map[string]interface{}{
		"user_message":      "   ",
		"assistant_message": "reply",
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "validation error")
}
