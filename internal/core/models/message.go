package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/neilberkman/ccjournal/internal/core/journalerr"
)

// Speaker identifies who produced a message
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Valid reports whether s is one of the known speakers
func (s Speaker) Valid() bool {
	return s == SpeakerUser || s == SpeakerAssistant
}

// Label is the display name used in rendered transcripts
func (s Speaker) Label() string {
	if s == SpeakerUser {
		return "You"
	}
	return "Assistant"
}

// Metadata is an open JSON-serializable mapping attached to conversations and messages
type Metadata map[string]interface{}

const (
	MaxMetadataDepth = 8
	MaxMetadataBytes = 64 * 1024
)

// Message is a single recorded turn half
type Message struct {
	Speaker   Speaker
	Content   string
	Timestamp time.Time
	Metadata  Metadata
}

// Validate checks that the message can be recorded
func (m *Message) Validate() error {
	if !m.Speaker.Valid() {
		return fmt.Errorf("%w: unknown speaker %q", journalerr.ErrInvalidInput, m.Speaker)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: %s message cannot be empty", journalerr.ErrInvalidInput, m.Speaker)
	}
	return ValidateMetadata(m.Metadata)
}

// ValidateMetadata bounds nesting depth and encoded size so a caller cannot
// grow rows without limit.
func ValidateMetadata(md Metadata) error {
	if len(md) == 0 {
		return nil
	}
	if d := depth(map[string]interface{}(md)); d > MaxMetadataDepth {
		return fmt.Errorf("%w: metadata nested %d levels deep (max %d)", journalerr.ErrInvalidInput, d, MaxMetadataDepth)
	}
	encoded, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("%w: metadata is not JSON-serializable: %v", journalerr.ErrInvalidInput, err)
	}
	if len(encoded) > MaxMetadataBytes {
		return fmt.Errorf("%w: metadata is %d bytes (max %d)", journalerr.ErrInvalidInput, len(encoded), MaxMetadataBytes)
	}
	return nil
}

func depth(v interface{}) int {
	switch t := v.(type) {
	case map[string]interface{}:
		deepest := 0
		for _, child := range t {
			if d := depth(child); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	case Metadata:
		return depth(map[string]interface{}(t))
	case []interface{}:
		deepest := 0
		for _, child := range t {
			if d := depth(child); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	default:
		return 0
	}
}

// Clone returns a shallow copy so callers cannot mutate recorded state
func (md Metadata) Clone() Metadata {
	if md == nil {
		return nil
	}
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// Encode serializes metadata for storage. Nil encodes as "{}".
func (md Metadata) Encode() (string, error) {
	if md == nil {
		return "{}", nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeMetadata parses a stored metadata column
func DecodeMetadata(raw string) (Metadata, error) {
	if strings.TrimSpace(raw) == "" {
		return Metadata{}, nil
	}
	var md Metadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return nil, err
	}
	if md == nil {
		md = Metadata{}
	}
	return md, nil
}
