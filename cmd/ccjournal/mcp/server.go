package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/neilberkman/ccjournal/internal/core/journalerr"
	"github.com/neilberkman/ccjournal/internal/core/journaling"
	"github.com/neilberkman/ccjournal/internal/core/models"
	"github.com/neilberkman/ccjournal/internal/core/search"
)

// RecordInteractionArgs defines arguments for the record_interaction tool
type RecordInteractionArgs struct {
	UserMessage      string                 `json:"user_message" jsonschema:"description=What the user said,required"`
	AssistantMessage string                 `json:"assistant_message" jsonschema:"description=What the assistant replied,required"`
	Metadata         map[string]interface{} `json:"metadata,omitempty" jsonschema:"description=Optional metadata stored with both messages"`
}

// GenerateSummaryArgs defines arguments for the generate_session_summary tool
type GenerateSummaryArgs struct {
	Summary           string   `json:"summary" jsonschema:"description=Summary of the conversation,required"`
	EmotionalAnalysis string   `json:"emotional_analysis" jsonschema:"description=Analysis of the emotions expressed,required"`
	Reflections       string   `json:"reflections" jsonschema:"description=Reflections and insights,required"`
	Tags              []string `json:"tags,omitempty" jsonschema:"description=Tags for the entry"`
	MoodRating        *int     `json:"mood_rating" jsonschema:"description=Mood rating on the configured scale,required"`
	Title             string   `json:"title,omitempty" jsonschema:"description=Optional entry title"`
}

// AddTagsArgs defines arguments for the add_journal_tags tool
type AddTagsArgs struct {
	Filepath string   `json:"filepath" jsonschema:"description=Entry file name or path inside the journal directory,required"`
	Tags     []string `json:"tags" jsonschema:"description=Tags to add,required"`
}

// ListRecentConversationsArgs defines arguments for the list_recent_conversations tool
type ListRecentConversationsArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Max conversations to return (default: 10)"`
}

// SearchConversationsArgs defines arguments for the search_conversations tool
type SearchConversationsArgs struct {
	Query      string `json:"query" jsonschema:"description=Search term to match against message content,required"`
	Speaker    string `json:"speaker,omitempty" jsonschema:"description=Only messages from user or assistant"`
	AfterDate  string `json:"after_date,omitempty" jsonschema:"description=Only messages after this date"`
	BeforeDate string `json:"before_date,omitempty" jsonschema:"description=Only messages before this date"`
	Limit      int    `json:"limit,omitempty" jsonschema:"description=Max conversations to return (default: 10)"`
}

// ConversationSummary represents a conversation in the list view
type ConversationSummary struct {
	SessionID    string `json:"session_id"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count"`
	EntryPath    string `json:"entry_path,omitempty"`
}

// ConversationMatch represents a conversation search result
type ConversationMatch struct {
	SessionID  string         `json:"session_id"`
	EntryPath  string         `json:"entry_path,omitempty"`
	UpdatedAt  string         `json:"updated_at"`
	MatchCount int            `json:"match_count"`
	Matches    []MatchSnippet `json:"matches"`
}

// MatchSnippet represents a message match within a conversation
type MatchSnippet struct {
	Speaker   string `json:"speaker"`
	Snippet   string `json:"snippet"`
	Timestamp string `json:"timestamp"`
}

const timeFormat = "2006-01-02 15:04:05"

type handlerFunc = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// NewServer registers the journaling tools, resources and prompt
func NewServer(svc *journaling.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"ccjournal",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)

	s.AddTool(mcp.NewTool("start_new_session",
		mcp.WithDescription("Start a new journaling session. Any unsaved conversation in the current session is discarded."),
	), makeStartSessionHandler(svc))

	s.AddTool(mcp.NewTool("record_interaction",
		mcp.WithDescription("Record one exchange of the journaling conversation: the user's message and the assistant's reply."),
		mcp.WithString("user_message",
			mcp.Required(),
			mcp.Description("What the user said")),
		mcp.WithString("assistant_message",
			mcp.Required(),
			mcp.Description("What the assistant replied")),
		mcp.WithObject("metadata",
			mcp.Description("Optional metadata stored with both messages")),
	), makeRecordInteractionHandler(svc))

	s.AddTool(mcp.NewTool("generate_session_summary",
		mcp.WithDescription("Write the current session to a journal entry with a summary, emotional analysis, reflections, tags and a mood rating."),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Summary of the conversation")),
		mcp.WithString("emotional_analysis",
			mcp.Required(),
			mcp.Description("Analysis of the emotions expressed")),
		mcp.WithString("reflections",
			mcp.Required(),
			mcp.Description("Reflections and insights")),
		mcp.WithArray("tags",
			mcp.Description("Tags for the entry"),
			mcp.Items(map[string]interface{}{"type": "string"})),
		mcp.WithNumber("mood_rating",
			mcp.Required(),
			mcp.Description("Mood rating, 1-10 unless configured otherwise")),
		mcp.WithString("title",
			mcp.Description("Optional entry title")),
	), makeGenerateSummaryHandler(svc))

	s.AddTool(mcp.NewTool("get_journal_statistics",
		mcp.WithDescription("Statistics about journal entries and recorded conversations"),
	), makeStatisticsHandler(svc))

	s.AddTool(mcp.NewTool("add_journal_tags",
		mcp.WithDescription("Add tags to an existing journal entry. A backup of the entry is made first."),
		mcp.WithString("filepath",
			mcp.Required(),
			mcp.Description("Entry file name or path inside the journal directory")),
		mcp.WithArray("tags",
			mcp.Required(),
			mcp.Description("Tags to add"),
			mcp.Items(map[string]interface{}{"type": "string"})),
	), makeAddTagsHandler(svc))

	s.AddTool(mcp.NewTool("list_recent_conversations",
		mcp.WithDescription("List recorded conversations, most recently active first"),
		mcp.WithNumber("limit",
			mcp.Description("Max conversations to return (default: 10)")),
	), makeListRecentConversationsHandler(svc))

	s.AddTool(mcp.NewTool("search_conversations",
		mcp.WithDescription("Full-text search over recorded conversation messages"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term to match against message content")),
		mcp.WithString("speaker",
			mcp.Description("Only messages from 'user' or 'assistant'")),
		mcp.WithString("after_date",
			mcp.Description("Only messages after this date (e.g. '2025-01-01' or 'last week')")),
		mcp.WithString("before_date",
			mcp.Description("Only messages before this date")),
		mcp.WithNumber("limit",
			mcp.Description("Max conversations to return (default: 10)")),
	), makeSearchConversationsHandler(svc))

	registerResources(s, svc)

	s.AddPrompt(mcp.NewPrompt("start_journaling",
		mcp.WithPromptDescription("Begin a journaling conversation informed by recent entries"),
	), func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		text, err := svc.StartPrompt()
		if err != nil {
			return nil, err
		}
		return mcp.NewGetPromptResult("Start a journaling session", []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		}), nil
	})

	return s
}

// StartServer serves the journaling tools over stdio until stdin closes
func StartServer(svc *journaling.Service, version string, log *bolt.Logger) error {
	if log != nil {
		log.Info().Str("version", version).Msg("starting MCP server on stdio")
	}
	return server.ServeStdio(NewServer(svc, version))
}

func registerResources(s *server.MCPServer, svc *journaling.Service) {
	s.AddResource(mcp.NewResource("journals://recent", "Recent journal entries",
		mcp.WithResourceDescription("Contents of the most recent journal entries"),
		mcp.WithMIMEType("text/markdown"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		content, err := svc.RecentContent(0)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/markdown",
			Text:     content,
		}}, nil
	})

	s.AddResource(mcp.NewResource("journals://statistics", "Journal statistics",
		mcp.WithResourceDescription("Entry and conversation statistics as JSON"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		st, err := svc.JournalStatistics()
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal statistics: %w", err)
		}
		return []mcp.ResourceContents{mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}}, nil
	})

	s.AddResource(mcp.NewResource("journals://entries", "Journal entry listing",
		mcp.WithResourceDescription("Recent entries with title, date, tags and mood as JSON"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries, err := svc.RecentEntries(0)
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(map[string]interface{}{"entries": entries}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entries: %w", err)
		}
		return []mcp.ResourceContents{mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}}, nil
	})
}

// toolError reports a failure with its kind so the caller can tell a bad
// argument from a retryable persistence problem
func toolError(err error) *mcp.CallToolResult {
	var je *journalerr.Error
	if errors.As(err, &je) {
		return mcp.NewToolResultError(fmt.Sprintf("%s error in %s: %v", journalerr.KindOf(err), je.Op, je.Err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s error: %v", journalerr.KindOf(err), err))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	resultJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func bindArgs(request mcp.CallToolRequest, args interface{}) error {
	argsBytes, _ := json.Marshal(request.Params.Arguments)
	return json.Unmarshal(argsBytes, args)
}

func makeStartSessionHandler(svc *journaling.Service) handlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := svc.StartNewSession()
		result := map[string]interface{}{
			"session_id": sessionID,
			"message":    "Started new journaling session",
		}
		if err != nil {
			if sessionID == "" {
				return toolError(err), nil
			}
			// The session is live in memory; the row is created on the next record
			result["warning"] = err.Error()
		}
		return jsonResult(result)
	}
}

func makeRecordInteractionHandler(svc *journaling.Service) handlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args RecordInteractionArgs
		if err := bindArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		rec, err := svc.RecordInteraction(args.UserMessage, args.AssistantMessage, models.Metadata(args.Metadata))
		if rec == nil {
			return toolError(err), nil
		}

		result := map[string]interface{}{
			"recorded":           rec.Recorded,
			"session_id":         rec.SessionID,
			"timestamp":          rec.Timestamp.Format(timeFormat),
			"message_count":      rec.MessageCount,
			"user_messages":      rec.Session.UserMessages,
			"assistant_messages": rec.Session.AssistantMessages,
		}
		if err != nil {
			result["warning"] = fmt.Sprintf("recorded in memory but not saved to the database: %v", err)
		}
		return jsonResult(result)
	}
}

func makeGenerateSummaryHandler(svc *journaling.Service) handlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GenerateSummaryArgs
		if err := bindArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if args.MoodRating == nil {
			return toolError(journalerr.Newf("generate_session_summary", "", journalerr.ErrInvalidMoodRating, "mood_rating is required")), nil
		}

		result, err := svc.GenerateSessionSummary(journaling.GenerateRequest{
			Title:             args.Title,
			Summary:           args.Summary,
			EmotionalAnalysis: args.EmotionalAnalysis,
			Reflections:       args.Reflections,
			Tags:              args.Tags,
			Mood:              *args.MoodRating,
		})
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(result)
	}
}

func makeStatisticsHandler(svc *journaling.Service) handlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := svc.JournalStatistics()
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(st)
	}
}

func makeAddTagsHandler(svc *journaling.Service) handlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args AddTagsArgs
		if err := bindArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := svc.AddJournalTags(args.Filepath, args.Tags)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(result)
	}
}

func makeListRecentConversationsHandler(svc *journaling.Service) handlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListRecentConversationsArgs
		if err := bindArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		limit := args.Limit
		if limit == 0 {
			limit = 10
		}

		convs, err := svc.RecentConversations(limit)
		if err != nil {
			return toolError(err), nil
		}

		conversations := []ConversationSummary{}
		for _, c := range convs {
			summary := ConversationSummary{
				SessionID:    c.SessionID,
				CreatedAt:    c.CreatedAt.Format(timeFormat),
				UpdatedAt:    c.UpdatedAt.Format(timeFormat),
				MessageCount: c.MessageCount,
			}
			if path, ok := c.Metadata[journaling.EntryPathKey].(string); ok {
				summary.EntryPath = path
			}
			conversations = append(conversations, summary)
		}

		return jsonResult(map[string]interface{}{
			"conversations": conversations,
		})
	}
}

func makeSearchConversationsHandler(svc *journaling.Service) handlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args SearchConversationsArgs
		if err := bindArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if svc.Store() == nil {
			return toolError(journalerr.Newf("search_conversations", "", journalerr.ErrInvalidInput, "database is disabled")), nil
		}

		limit := args.Limit
		if limit == 0 {
			limit = 10
		}

		filters := search.Filters{Query: args.Query, Speaker: args.Speaker}
		if args.AfterDate != "" {
			t := search.ParseDate(args.AfterDate)
			if t == nil {
				return toolError(journalerr.Newf("search_conversations", args.AfterDate, journalerr.ErrInvalidInput, "unrecognized date")), nil
			}
			filters.AfterDate, filters.HasAfter = *t, true
		}
		if args.BeforeDate != "" {
			t := search.ParseDate(args.BeforeDate)
			if t == nil {
				return toolError(journalerr.Newf("search_conversations", args.BeforeDate, journalerr.ErrInvalidInput, "unrecognized date")), nil
			}
			filters.BeforeDate, filters.HasBefore = *t, true
		}

		results, err := search.SearchWithFilters(svc.Store(), filters)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		conversations := []ConversationMatch{}
		for _, r := range results {
			match := ConversationMatch{
				SessionID: r.SessionID,
				EntryPath: r.EntryPath,
				UpdatedAt: r.UpdatedAt,
				Matches:   []MatchSnippet{},
			}

			// Limit to 3 matches per conversation for display
			for i, m := range r.Matches {
				if i == 3 {
					break
				}
				match.Matches = append(match.Matches, MatchSnippet{
					Speaker:   m.Speaker,
					Snippet:   m.Snippet,
					Timestamp: m.Timestamp,
				})
			}
			match.MatchCount = len(r.Matches)
			conversations = append(conversations, match)

			if len(conversations) >= limit {
				break
			}
		}

		return jsonResult(map[string]interface{}{
			"conversations": conversations,
		})
	}
}
