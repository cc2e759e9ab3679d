// Package stats reports on the journal collection and edits tags on
// existing entries.
package stats

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/felixgeelhaar/bolt/v3"
	"github.com/neilberkman/ccjournal/internal/core/db"
	"github.com/neilberkman/ccjournal/internal/core/journal"
	"github.com/neilberkman/ccjournal/internal/core/journalerr"
)

// Statistics summarizes entries on disk and, when enabled, the database
type Statistics struct {
	TotalEntries        int       `json:"total_entries"`
	TotalWords          int       `json:"total_words"`
	TotalBytes          int64     `json:"total_size_bytes"`
	AverageWords        int       `json:"average_words_per_entry"`
	OldestEntry         time.Time `json:"oldest_entry"`
	NewestEntry         time.Time `json:"newest_entry"`
	JournalDir          string    `json:"journal_directory"`
	BackupEnabled       bool      `json:"backup_enabled"`
	DatabaseEnabled     bool      `json:"database_enabled"`
	Conversations       int       `json:"total_conversations"`
	Messages            int       `json:"total_messages"`
	UserMessages        int       `json:"user_messages"`
	AssistantMessages   int       `json:"assistant_messages"`
	AvgMessagesPerConvo float64   `json:"avg_messages_per_conversation"`
	LastActivity        time.Time `json:"last_activity"`
	MostRecent          time.Time `json:"most_recent"`
}

// MarshalJSON leaves out timestamps that are unknown, such as the oldest
// entry of an empty journal. The short count keys mirror the long ones.
func (st Statistics) MarshalJSON() ([]byte, error) {
	type plain Statistics
	return json.Marshal(struct {
		plain
		OldestEntry       *time.Time `json:"oldest_entry,omitempty"`
		NewestEntry       *time.Time `json:"newest_entry,omitempty"`
		LastActivity      *time.Time `json:"last_activity,omitempty"`
		MostRecent        *time.Time `json:"most_recent,omitempty"`
		EntryCount        int        `json:"entry_count"`
		ConversationCount int        `json:"conversation_count"`
		MessageCount      int        `json:"message_count"`
		MostRecentStamp   *time.Time `json:"most_recent_timestamp,omitempty"`
	}{
		plain:             plain(st),
		OldestEntry:       knownTime(st.OldestEntry),
		NewestEntry:       knownTime(st.NewestEntry),
		LastActivity:      knownTime(st.LastActivity),
		MostRecent:        knownTime(st.MostRecent),
		EntryCount:        st.TotalEntries,
		ConversationCount: st.Conversations,
		MessageCount:      st.Messages,
		MostRecentStamp:   knownTime(st.MostRecent),
	})
}

func knownTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// EntryInfo describes one entry file
type EntryInfo struct {
	Path      string    `json:"filepath"`
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	Tags      []string  `json:"tags"`
	Mood      int       `json:"mood,omitempty"`
	WordCount int       `json:"word_count"`
	Size      int64     `json:"size_bytes"`
	ModTime   time.Time `json:"modified"`
	Content   string    `json:"-"`
}

// Service answers read-only questions about the journal and forwards tag
// edits to the persister
type Service struct {
	persister  *journal.Persister
	store      *db.DB // nil when the database is disabled
	prefix     string
	defaultMax int
	log        *bolt.Logger
}

// New creates a Service. store may be nil.
func New(persister *journal.Persister, store *db.DB, prefix string, defaultMax int, log *bolt.Logger) *Service {
	if defaultMax <= 0 {
		defaultMax = 5
	}
	return &Service{
		persister:  persister,
		store:      store,
		prefix:     prefix,
		defaultMax: defaultMax,
		log:        log,
	}
}

// pattern matches entry files directly inside the root
func (s *Service) pattern() string {
	return s.prefix + "_*" + s.persister.Guard().Extension()
}

type entryFile struct {
	path string
	info fs.FileInfo
}

// entryFiles lists entry files, newest first by modification time with the
// name as tie-break
func (s *Service) entryFiles() ([]entryFile, error) {
	root := s.persister.Root()
	matches, err := doublestar.Glob(os.DirFS(root), s.pattern(), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	files := make([]entryFile, 0, len(matches))
	for _, m := range matches {
		path := filepath.Join(root, filepath.FromSlash(m))
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, entryFile{path: path, info: info})
	}

	sort.Slice(files, func(i, j int) bool {
		a, b := files[i].info.ModTime(), files[j].info.ModTime()
		if !a.Equal(b) {
			return a.After(b)
		}
		return files[i].path > files[j].path
	})
	return files, nil
}

// JournalStatistics scans the entry files and adds the database aggregates
func (s *Service) JournalStatistics() (*Statistics, error) {
	const op = "journal_statistics"

	files, err := s.entryFiles()
	if err != nil {
		return nil, journalerr.Persistence(op, s.persister.Root(), err)
	}

	st := &Statistics{
		TotalEntries:    len(files),
		JournalDir:      s.persister.Root(),
		BackupEnabled:   s.persister.BackupsEnabled(),
		DatabaseEnabled: s.store != nil,
	}

	for _, f := range files {
		st.TotalBytes += f.info.Size()
		mod := f.info.ModTime()
		if st.OldestEntry.IsZero() || mod.Before(st.OldestEntry) {
			st.OldestEntry = mod
		}
		if mod.After(st.NewestEntry) {
			st.NewestEntry = mod
		}

		data, err := os.ReadFile(f.path)
		if err != nil {
			if s.log != nil {
				s.log.Warn().Str("path", f.path).Err(err).Msg("skipping unreadable entry")
			}
			continue
		}
		st.TotalWords += len(strings.Fields(string(data)))
	}
	if st.TotalEntries > 0 {
		st.AverageWords = st.TotalWords / st.TotalEntries
	}
	st.MostRecent = st.NewestEntry

	if s.store != nil {
		agg, err := s.store.AggregateStatistics()
		if err != nil {
			return nil, err
		}
		st.Conversations = agg.ConversationCount
		st.Messages = agg.MessageCount
		st.UserMessages = agg.UserMessageCount
		st.AssistantMessages = agg.AssistantMessageCount
		st.AvgMessagesPerConvo = agg.AvgMessagesPerConvo
		st.LastActivity = agg.LastActivityAt
		if agg.LastActivityAt.After(st.MostRecent) {
			st.MostRecent = agg.LastActivityAt
		}
	}

	return st, nil
}

// RecentEntries returns up to limit entries, newest first. A zero limit
// uses the configured default.
func (s *Service) RecentEntries(limit int) ([]EntryInfo, error) {
	const op = "recent_entries"

	if limit < 0 {
		return nil, journalerr.Newf(op, "", journalerr.ErrInvalidLimit, "got %d", limit)
	}
	if limit == 0 {
		limit = s.defaultMax
	}

	files, err := s.entryFiles()
	if err != nil {
		return nil, journalerr.Persistence(op, s.persister.Root(), err)
	}
	if len(files) > limit {
		files = files[:limit]
	}

	entries := make([]EntryInfo, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			if s.log != nil {
				s.log.Warn().Str("path", f.path).Err(err).Msg("skipping unreadable entry")
			}
			continue
		}
		content := string(data)

		info := EntryInfo{
			Path:      f.path,
			Name:      filepath.Base(f.path),
			Title:     "Untitled Entry",
			Date:      f.info.ModTime().Format("2006-01-02"),
			Tags:      []string{},
			WordCount: len(strings.Fields(content)),
			Size:      f.info.Size(),
			ModTime:   f.info.ModTime(),
			Content:   content,
		}
		if h, err := journal.ParseHeader(content); err == nil {
			if h.Title != "" {
				info.Title = h.Title
			}
			if h.Date != "" {
				info.Date = h.Date
			}
			info.Tags = h.Tags
			info.Mood = h.Mood
		}
		entries = append(entries, info)
	}
	return entries, nil
}

// RecentContent renders recent entries as one document, each introduced by
// "# Journal from {date}" and separated by "---"
func (s *Service) RecentContent(limit int) (string, error) {
	entries, err := s.RecentEntries(limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No journal entries found in %s", s.persister.Root()), nil
	}

	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		stem := strings.TrimSuffix(e.Name, filepath.Ext(e.Name))
		date := strings.TrimPrefix(stem, s.prefix+"_")
		parts = append(parts, fmt.Sprintf("# Journal from %s\n\n%s", date, strings.TrimRight(e.Content, "\n")))
	}
	return strings.Join(parts, "\n\n---\n\n") + "\n", nil
}

// AddTags merges tags into an existing entry
func (s *Service) AddTags(path string, tags []string) (*journal.TagResult, error) {
	return s.persister.AddTags(path, tags)
}
