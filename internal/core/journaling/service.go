// Package journaling wires the accumulator, composer, persister, store and
// statistics into the operations exposed over MCP and the CLI.
package journaling

import (
	"errors"
	"fmt"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/felixgeelhaar/bolt/v3"
	"github.com/neilberkman/ccjournal/internal/core/config"
	"github.com/neilberkman/ccjournal/internal/core/db"
	"github.com/neilberkman/ccjournal/internal/core/journal"
	"github.com/neilberkman/ccjournal/internal/core/journalerr"
	"github.com/neilberkman/ccjournal/internal/core/models"
	"github.com/neilberkman/ccjournal/internal/core/pathguard"
	"github.com/neilberkman/ccjournal/internal/core/session"
	"github.com/neilberkman/ccjournal/internal/core/stats"
)

// EntryPathKey is the conversation metadata key holding the generated entry
const EntryPathKey = "entry_path"

// Service is the single owner of the journaling state
type Service struct {
	cfg       *config.Config
	store     *db.DB // nil when the database is disabled
	acc       *session.Accumulator
	persister *journal.Persister
	stats     *stats.Service
	scale     journal.MoodScale
	log       *bolt.Logger
	now       func() time.Time
}

// Option configures a Service
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock overrides time.Now for the service and its accumulator
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides session id allocation
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// New validates cfg, prepares the journal directories and opens the
// database when enabled. Invalid configuration fails here, before any
// operation can run.
func New(cfg *config.Config, log *bolt.Logger, opts ...Option) (*Service, error) {
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	guard, err := pathguard.New(cfg.JournalDir, cfg.FileExtension, log)
	if err != nil {
		return nil, err
	}

	pc := journal.PersisterConfig{Guard: guard, Prefix: cfg.FilenamePrefix, Log: log}
	if cfg.EnableBackup {
		pc.BackupDir = cfg.BackupDir
	}
	persister, err := journal.NewPersister(pc)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		persister: persister,
		scale:     journal.MoodScale{Min: cfg.MoodMin, Max: cfg.MoodMax},
		log:       log,
		now:       o.now,
	}

	accOpts := []session.Option{session.WithClock(o.now)}
	if o.newID != nil {
		accOpts = append(accOpts, session.WithIDGenerator(o.newID))
	}

	if cfg.EnableDatabase {
		store, err := db.New(cfg.DatabasePath)
		if err != nil {
			return nil, journalerr.Persistence("open_database", cfg.DatabasePath, err)
		}
		s.store = store
		s.acc = session.New(store, log, accOpts...)
	} else {
		s.acc = session.New(nil, log, accOpts...)
	}

	s.stats = stats.New(persister, s.store, cfg.FilenamePrefix, cfg.MaxRecentEntries, log)

	if log != nil {
		log.Info().
			Str("journal_dir", guard.Root()).
			Str("database", cfg.DatabasePath).
			Str("database_enabled", fmt.Sprintf("%t", cfg.EnableDatabase)).
			Msg("journaling service ready")
	}
	return s, nil
}

// Close releases the database
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// Store returns the database, or nil when disabled
func (s *Service) Store() *db.DB {
	return s.store
}

// Config returns the configuration the service was built with
func (s *Service) Config() *config.Config {
	return s.cfg
}

// StartNewSession discards any current session and begins a new one. The
// session is usable even when the conversation row could not be created;
// that error is returned alongside the id.
func (s *Service) StartNewSession() (string, error) {
	return s.acc.Start(models.Metadata{"source": "ccjournal"})
}

// RecordResult confirms a recorded interaction
type RecordResult struct {
	Recorded     bool            `json:"recorded"`
	SessionID    string          `json:"session_id"`
	Timestamp    time.Time       `json:"timestamp"`
	MessageCount int             `json:"message_count"`
	Session      session.Summary `json:"-"`
}

// RecordInteraction appends a user/assistant pair to the current session.
// When the database write fails the turn is still kept in memory: the
// result is returned together with the error and the next record or
// generate call retries the write.
func (s *Service) RecordInteraction(user, assistant string, metadata models.Metadata) (*RecordResult, error) {
	receipt, err := s.acc.Record(user, assistant, metadata)
	if receipt == nil {
		return nil, err
	}
	return &RecordResult{
		Recorded:     true,
		SessionID:    receipt.SessionID,
		Timestamp:    receipt.Timestamp,
		MessageCount: receipt.MessageCount,
		Session:      s.acc.Summary(),
	}, err
}

// GenerateRequest carries the caller-written parts of an entry
type GenerateRequest struct {
	Title             string
	Summary           string
	EmotionalAnalysis string
	Reflections       string
	Tags              []string
	Mood              int
}

// GenerateResult describes a written entry
type GenerateResult struct {
	Path      string        `json:"filepath"`
	SessionID string        `json:"session_id"`
	Tags      []string      `json:"tags"`
	Stats     journal.Stats `json:"stats"`
}

// GenerateSessionSummary turns the current session into a journal entry.
// Any unpersisted turns are written to the database first, in the same step
// that copies the session; if that or the file write fails, no entry exists
// afterwards and the call can be retried. The session stays active.
func (s *Service) GenerateSessionSummary(req GenerateRequest) (*GenerateResult, error) {
	const op = "generate_session_summary"

	snap, err := s.acc.FlushSnapshot()
	if err != nil {
		return nil, err
	}

	doc, err := journal.Compose(journal.ComposeInput{
		SessionID:         snap.SessionID,
		Title:             req.Title,
		Messages:          snap.Messages,
		Summary:           req.Summary,
		EmotionalAnalysis: req.EmotionalAnalysis,
		Reflections:       req.Reflections,
		Tags:              req.Tags,
		Mood:              req.Mood,
		Scale:             s.scale,
	}, s.now())
	if err != nil {
		return nil, err
	}

	entry, err := s.persister.Create(doc)
	if err != nil {
		if s.log != nil {
			s.log.Error().Str("session_id", snap.SessionID).Err(err).Msg("failed to write journal entry")
		}
		return nil, err
	}

	if s.store != nil {
		patch := models.Metadata{
			EntryPathKey:         entry.Path,
			"entry_generated_at": doc.Stats.GeneratedAt.UTC().Format(time.RFC3339),
		}
		if err := s.store.UpdateConversationMetadata(snap.SessionID, patch); err != nil {
			if rmErr := s.persister.Remove(entry.Path); rmErr != nil {
				err = errors.Join(err, rmErr)
			}
			if s.log != nil {
				s.log.Error().Str("session_id", snap.SessionID).Str("path", entry.Path).Err(err).Msg("failed to link entry to conversation")
			}
			return nil, journalerr.New(op, snap.SessionID, err)
		}
	}

	return &GenerateResult{
		Path:      entry.Path,
		SessionID: snap.SessionID,
		Tags:      entry.Header.Tags,
		Stats:     entry.Stats,
	}, nil
}

// JournalStatistics reports on entries and stored conversations
func (s *Service) JournalStatistics() (*stats.Statistics, error) {
	return s.stats.JournalStatistics()
}

// AddJournalTags merges tags into an existing entry
func (s *Service) AddJournalTags(path string, tags []string) (*journal.TagResult, error) {
	return s.stats.AddTags(path, tags)
}

// RecentEntries lists up to limit entries, newest first; 0 uses the default
func (s *Service) RecentEntries(limit int) ([]stats.EntryInfo, error) {
	return s.stats.RecentEntries(limit)
}

// RecentContent renders recent entries for the journals://recent resource
func (s *Service) RecentContent(limit int) (string, error) {
	return s.stats.RecentContent(limit)
}

// ReadEntry returns the resolved path and content of an entry
func (s *Service) ReadEntry(path string) (string, string, error) {
	return s.persister.Read(path)
}

// RecentConversations lists stored conversations, most recently updated first
func (s *Service) RecentConversations(limit int) ([]db.Conversation, error) {
	if s.store == nil {
		return nil, journalerr.Newf("list_recent_conversations", "", journalerr.ErrInvalidInput, "database is disabled")
	}
	return s.store.ListRecentConversations(limit)
}

// Conversation loads a stored conversation and its messages
func (s *Service) Conversation(sessionID string) (*db.Conversation, []db.Message, error) {
	if s.store == nil {
		return nil, nil, journalerr.Newf("get_conversation", sessionID, journalerr.ErrInvalidInput, "database is disabled")
	}
	conv, err := s.store.GetConversation(sessionID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.store.ListMessages(conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

// StartPrompt renders the start_journaling prompt template with the
// journal directory and the newest entry
func (s *Service) StartPrompt() (string, error) {
	st, err := s.stats.JournalStatistics()
	if err != nil {
		return "", err
	}

	templateData := map[string]interface{}{
		"has_entries":  st.TotalEntries > 0,
		"entry_count":  st.TotalEntries,
		"journal_dir":  st.JournalDir,
		"latest_entry": "",
	}
	if !st.NewestEntry.IsZero() {
		templateData["latest_entry"] = st.NewestEntry.Format("January 2, 2006")
	}

	prompt, err := mustache.Render(s.cfg.StartPromptTemplate, templateData)
	if err != nil {
		return "", fmt.Errorf("failed to render start prompt: %w", err)
	}
	return prompt, nil
}

// SessionSummary describes the current session
func (s *Service) SessionSummary() session.Summary {
	return s.acc.Summary()
}
