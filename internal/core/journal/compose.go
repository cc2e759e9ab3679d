package journal

import (
	"strings"
	"time"

	"github.com/neilberkman/ccjournal/internal/core/journalerr"
	"github.com/neilberkman/ccjournal/internal/core/models"
)

// MoodScale bounds mood ratings, inclusive
type MoodScale struct {
	Min int
	Max int
}

// DefaultMoodScale is 1-10
var DefaultMoodScale = MoodScale{Min: 1, Max: 10}

// Contains reports whether rating lies on the scale
func (s MoodScale) Contains(rating int) bool {
	return rating >= s.Min && rating <= s.Max
}

// ComposeInput is everything an entry is built from
type ComposeInput struct {
	SessionID         string
	Title             string // optional; defaults to "Journal Entry - <date>"
	Messages          []models.Message
	Summary           string
	EmotionalAnalysis string
	Reflections       string
	Tags              []string
	Mood              int
	Scale             MoodScale // zero value means DefaultMoodScale
}

// Compose validates in and renders the entry. It has no side effects: the
// same input and generatedAt always produce the same document.
func Compose(in ComposeInput, generatedAt time.Time) (*Document, error) {
	const op = "compose_entry"

	if len(in.Messages) == 0 {
		return nil, journalerr.New(op, in.SessionID, journalerr.ErrEmptySession)
	}
	for _, field := range []struct{ name, value string }{
		{"summary", in.Summary},
		{"emotional_analysis", in.EmotionalAnalysis},
		{"reflections", in.Reflections},
	} {
		if strings.TrimSpace(field.value) == "" {
			return nil, journalerr.Newf(op, in.SessionID, journalerr.ErrInvalidInput, "%s cannot be empty", field.name)
		}
	}

	if err := ValidateTags(in.Tags); err != nil {
		return nil, journalerr.New(op, in.SessionID, err)
	}

	scale := in.Scale
	if scale == (MoodScale{}) {
		scale = DefaultMoodScale
	}
	if !scale.Contains(in.Mood) {
		return nil, journalerr.Newf(op, in.SessionID, journalerr.ErrInvalidMoodRating,
			"mood rating must be between %d and %d, got %d", scale.Min, scale.Max, in.Mood)
	}

	title := strings.Join(strings.Fields(in.Title), " ")
	if title == "" {
		title = "Journal Entry - " + generatedAt.Format(displayDateLayout)
	}

	transcript := make([]models.Message, len(in.Messages))
	copy(transcript, in.Messages)

	doc := &Document{
		Header: Header{
			Title:     title,
			Date:      generatedAt.Format(dateLayout),
			SessionID: in.SessionID,
			Tags:      NormalizeTags(in.Tags),
			Mood:      in.Mood,
			MoodMax:   scale.Max,
		},
		Transcript:        transcript,
		Summary:           strings.TrimSpace(in.Summary),
		EmotionalAnalysis: strings.TrimSpace(in.EmotionalAnalysis),
		Reflections:       strings.TrimSpace(in.Reflections),
		Stats: Stats{
			WordCount:    WordCount(transcript, in.Summary, in.EmotionalAnalysis, in.Reflections),
			MessageCount: len(transcript),
			GeneratedAt:  generatedAt,
		},
	}

	content, err := Render(doc)
	if err != nil {
		return nil, journalerr.Newf(op, in.SessionID, journalerr.ErrInvalidInput, "%v", err)
	}
	doc.Content = content
	return doc, nil
}

// WordCount counts whitespace-separated words in the transcript and sections
func WordCount(messages []models.Message, sections ...string) int {
	n := 0
	for _, m := range messages {
		n += len(strings.Fields(m.Content))
	}
	for _, s := range sections {
		n += len(strings.Fields(s))
	}
	return n
}
