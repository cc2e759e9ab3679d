// Package session holds the in-progress journaling conversation.
//
// An Accumulator tracks exactly one session at a time and moves through
// Idle -> Active. Starting a session is legal in any state and discards
// the previous in-memory log; recording is only legal while Active.
// Generating an entry does not end the session.
package session

import (
	"sync"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/google/uuid"
	"github.com/neilberkman/ccjournal/internal/core/db"
	"github.com/neilberkman/ccjournal/internal/core/journalerr"
	"github.com/neilberkman/ccjournal/internal/core/models"
)

// State of the accumulator
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Mirror persists recorded turns. *db.DB satisfies it.
type Mirror interface {
	CreateConversation(sessionID string, metadata models.Metadata) (*db.Conversation, error)
	AppendMessages(sessionID string, msgs []models.Message) ([]db.Message, error)
}

// Receipt confirms a recorded interaction
type Receipt struct {
	SessionID    string
	Timestamp    time.Time
	MessageCount int
}

// Snapshot is a copy of the session taken for entry generation
type Snapshot struct {
	SessionID string
	StartedAt time.Time
	Metadata  models.Metadata
	Messages  []models.Message
}

// Summary describes the current session without copying the log
type Summary struct {
	SessionID         string
	State             State
	StartedAt         time.Time
	TotalMessages     int
	UserMessages      int
	AssistantMessages int
	FirstMessageAt    time.Time
	LastMessageAt     time.Time
	Unmirrored        int
}

// Accumulator is the lock-guarded owner of the current conversation
type Accumulator struct {
	mu sync.Mutex

	state     State
	sessionID string
	startedAt time.Time
	metadata  models.Metadata
	messages  []models.Message

	mirror       Mirror // nil when the database is disabled
	conversation bool   // conversation row exists for sessionID
	mirrored     int    // messages[:mirrored] are persisted

	log   *bolt.Logger
	now   func() time.Time
	newID func() string
}

// Option configures an Accumulator
type Option func(*Accumulator)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(a *Accumulator) { a.now = now }
}

// WithIDGenerator overrides session id allocation
func WithIDGenerator(newID func() string) Option {
	return func(a *Accumulator) { a.newID = newID }
}

// New creates an idle accumulator. mirror may be nil.
func New(mirror Mirror, log *bolt.Logger, opts ...Option) *Accumulator {
	a := &Accumulator{
		mirror: mirror,
		log:    log,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start begins a fresh session and returns its id. When the mirror cannot
// create the conversation row the session is still active and the error is
// returned; the row is created again on the next record.
func (a *Accumulator) Start(metadata models.Metadata) (string, error) {
	const op = "start_new_session"

	if err := models.ValidateMetadata(metadata); err != nil {
		return "", journalerr.New(op, "", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.state = Active
	a.sessionID = a.newID()
	a.startedAt = a.now()
	a.metadata = metadata.Clone()
	a.messages = nil
	a.conversation = false
	a.mirrored = 0

	if a.log != nil {
		a.log.Info().Str("session_id", a.sessionID).Msg("journaling session started")
	}

	if err := a.ensureConversationLocked(op); err != nil {
		return a.sessionID, err
	}
	return a.sessionID, nil
}

// Record appends a user/assistant pair. Both messages are validated before
// either is added. A mirror failure is returned together with the receipt:
// the in-memory log keeps the turn either way.
func (a *Accumulator) Record(userMessage, assistantMessage string, metadata models.Metadata) (*Receipt, error) {
	const op = "record_interaction"

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != Active {
		return nil, journalerr.New(op, "", journalerr.ErrNoActiveSession)
	}

	ts := a.now()
	if n := len(a.messages); n > 0 && ts.Before(a.messages[n-1].Timestamp) {
		ts = a.messages[n-1].Timestamp
	}

	pair := []models.Message{
		{Speaker: models.SpeakerUser, Content: userMessage, Timestamp: ts, Metadata: metadata.Clone()},
		{Speaker: models.SpeakerAssistant, Content: assistantMessage, Timestamp: ts, Metadata: metadata.Clone()},
	}
	for i := range pair {
		if err := pair[i].Validate(); err != nil {
			return nil, journalerr.New(op, a.sessionID, err)
		}
	}

	a.messages = append(a.messages, pair...)
	receipt := &Receipt{
		SessionID:    a.sessionID,
		Timestamp:    ts,
		MessageCount: len(a.messages),
	}

	if a.log != nil {
		a.log.Debug().Str("session_id", a.sessionID).Int("messages", len(a.messages)).Msg("interaction recorded")
	}

	if err := a.flushLocked(op); err != nil {
		return receipt, err
	}
	return receipt, nil
}

// Flush persists any turns the mirror has not stored yet
func (a *Accumulator) Flush() error {
	const op = "flush_session"

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != Active {
		return journalerr.New(op, "", journalerr.ErrNoActiveSession)
	}
	return a.flushLocked(op)
}

func (a *Accumulator) ensureConversationLocked(op string) error {
	if a.mirror == nil || a.conversation {
		return nil
	}
	_, err := a.mirror.CreateConversation(a.sessionID, a.metadata)
	if err != nil {
		if a.log != nil {
			a.log.Error().Str("session_id", a.sessionID).Err(err).Msg("failed to mirror conversation")
		}
		return journalerr.New(op, a.sessionID, err)
	}
	a.conversation = true
	return nil
}

func (a *Accumulator) flushLocked(op string) error {
	if a.mirror == nil {
		return nil
	}
	if err := a.ensureConversationLocked(op); err != nil {
		return err
	}

	pending := a.messages[a.mirrored:]
	if len(pending) == 0 {
		return nil
	}
	if _, err := a.mirror.AppendMessages(a.sessionID, pending); err != nil {
		if a.log != nil {
			a.log.Error().Str("session_id", a.sessionID).Int("pending", len(pending)).Err(err).Msg("failed to mirror messages")
		}
		return journalerr.New(op, a.sessionID, err)
	}
	a.mirrored = len(a.messages)
	return nil
}

// Snapshot copies the active session
func (a *Accumulator) Snapshot() (*Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != Active {
		return nil, journalerr.New("snapshot_session", "", journalerr.ErrNoActiveSession)
	}
	return a.snapshotLocked(), nil
}

// FlushSnapshot persists pending turns and copies the session under one
// lock, so the copy matches what the mirror holds even if a new session is
// started concurrently.
func (a *Accumulator) FlushSnapshot() (*Snapshot, error) {
	const op = "flush_session"

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != Active {
		return nil, journalerr.New(op, "", journalerr.ErrNoActiveSession)
	}
	if err := a.flushLocked(op); err != nil {
		return nil, err
	}
	return a.snapshotLocked(), nil
}

func (a *Accumulator) snapshotLocked() *Snapshot {
	messages := make([]models.Message, len(a.messages))
	for i, m := range a.messages {
		m.Metadata = m.Metadata.Clone()
		messages[i] = m
	}
	return &Snapshot{
		SessionID: a.sessionID,
		StartedAt: a.startedAt,
		Metadata:  a.metadata.Clone(),
		Messages:  messages,
	}
}

// Summary reports counts for the current session. It works in any state.
func (a *Accumulator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Summary{
		SessionID:     a.sessionID,
		State:         a.state,
		StartedAt:     a.startedAt,
		TotalMessages: len(a.messages),
		Unmirrored:    len(a.messages) - a.mirrored,
	}
	if a.mirror == nil {
		s.Unmirrored = 0
	}
	for _, m := range a.messages {
		if m.Speaker == models.SpeakerUser {
			s.UserMessages++
		} else {
			s.AssistantMessages++
		}
	}
	if n := len(a.messages); n > 0 {
		s.FirstMessageAt = a.messages[0].Timestamp
		s.LastMessageAt = a.messages[n-1].Timestamp
	}
	return s
}

// State returns the current state
func (a *Accumulator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
