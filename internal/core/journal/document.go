// Package journal turns a recorded session into a markdown journal entry
// and manages entries on disk.
//
// An entry starts with a YAML front matter block followed by the visible
// header lines. Everything before the first "## " line is the header region;
// tag edits touch nothing after it.
package journal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/neilberkman/ccjournal/internal/core/journalerr"
	"github.com/neilberkman/ccjournal/internal/core/models"
	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

const (
	dateLayout        = "2006-01-02"
	displayDateLayout = "January 02, 2006"
	clockLayout       = "15:04"
	generatedLayout   = "2006-01-02 15:04:05"
)

// Header is the machine-readable part of an entry
type Header struct {
	Title     string   `yaml:"title"`
	Date      string   `yaml:"date"`
	SessionID string   `yaml:"session_id,omitempty"`
	Tags      []string `yaml:"tags"`
	Mood      int      `yaml:"mood,omitempty"`
	MoodMax   int      `yaml:"mood_max,omitempty"`
}

// Stats are derived when an entry is composed
type Stats struct {
	WordCount    int       `json:"word_count"`
	MessageCount int       `json:"message_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Document is a composed entry that has not been written yet
type Document struct {
	Header            Header
	Transcript        []models.Message
	Summary           string
	EmotionalAnalysis string
	Reflections       string
	Stats             Stats
	Content           string
}

// Render builds the markdown text for doc
func Render(doc *Document) (string, error) {
	header, err := renderHeader(doc.Header)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(header)

	sb.WriteString("## Conversation\n\n")
	for _, m := range doc.Transcript {
		fmt.Fprintf(&sb, "**%s (%s)**: %s\n\n", m.Speaker.Label(), m.Timestamp.Format(clockLayout), m.Content)
	}

	writeSection(&sb, "Summary", doc.Summary)
	writeSection(&sb, "Emotional Analysis", doc.EmotionalAnalysis)
	writeSection(&sb, "Reflections", doc.Reflections)

	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "*Word count: %d | Messages: %d | Generated: %s*\n",
		doc.Stats.WordCount, doc.Stats.MessageCount, doc.Stats.GeneratedAt.Format(generatedLayout))

	return sb.String(), nil
}

func writeSection(sb *strings.Builder, title, body string) {
	sb.WriteString("## " + title + "\n")
	sb.WriteString(strings.TrimSpace(body))
	sb.WriteString("\n\n")
}

// renderHeader returns the header region: front matter, visible header
// lines and the blank line that precedes the first section.
func renderHeader(h Header) (string, error) {
	frontMatter, err := renderFrontMatter(h)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(frontMatter)
	sb.WriteString("\n# " + h.Title + "\n")
	sb.WriteString("**Date:** " + displayDate(h.Date) + "\n")
	if len(h.Tags) > 0 {
		sb.WriteString(tagsLine(h.Tags) + "\n")
	}
	if h.Mood != 0 {
		sb.WriteString(moodLine(h.Mood, h.MoodMax) + "\n")
	}
	sb.WriteString("\n")
	return sb.String(), nil
}

func renderFrontMatter(h Header) (string, error) {
	if h.Tags == nil {
		h.Tags = []string{}
	}
	yamlBytes, err := yaml.Marshal(&h)
	if err != nil {
		return "", fmt.Errorf("failed to encode front matter: %w", err)
	}
	return frontMatterDelimiter + "\n" + string(yamlBytes) + frontMatterDelimiter + "\n", nil
}

func tagsLine(tags []string) string {
	return "**Tags:** " + strings.Join(tags, ", ")
}

func moodLine(mood, outOf int) string {
	if outOf == 0 {
		outOf = DefaultMoodScale.Max
	}
	return fmt.Sprintf("**Mood:** %d/%d", mood, outOf)
}

func displayDate(date string) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return t.Format(displayDateLayout)
}

// SplitHeader separates the header region from the body. The body starts
// at the first line beginning with "## " and is empty if there is none.
func SplitHeader(content string) (header, body string) {
	if strings.HasPrefix(content, "## ") {
		return "", content
	}
	idx := strings.Index(content, "\n## ")
	if idx == -1 {
		return content, ""
	}
	return content[:idx+1], content[idx+1:]
}

// splitFrontMatter returns the YAML block and the remainder of the header
// region. ok is false when the header has no front matter.
func splitFrontMatter(header string) (yamlBlock, rest string, ok bool) {
	if !strings.HasPrefix(header, frontMatterDelimiter+"\n") {
		return "", header, false
	}
	after := header[len(frontMatterDelimiter)+1:]
	idx := strings.Index(after, "\n"+frontMatterDelimiter+"\n")
	if idx == -1 {
		return "", header, false
	}
	return after[:idx+1], after[idx+len(frontMatterDelimiter)+2:], true
}

// StripFrontMatter returns content without its leading YAML block
func StripFrontMatter(content string) string {
	header, body := SplitHeader(content)
	if _, rest, ok := splitFrontMatter(header); ok {
		return strings.TrimLeft(rest, "\n") + body
	}
	return content
}

// ParseHeader reads title, date, tags and mood from an entry. Entries with
// front matter are read from it; older entries without it fall back to the
// visible header lines.
func ParseHeader(content string) (*Header, error) {
	header, _ := SplitHeader(content)

	if yamlBlock, _, ok := splitFrontMatter(header); ok {
		var h Header
		if err := yaml.Unmarshal([]byte(yamlBlock), &h); err != nil {
			return nil, fmt.Errorf("front matter parse error: %w", err)
		}
		if h.Tags == nil {
			h.Tags = []string{}
		}
		return &h, nil
	}

	return parseVisibleHeader(header), nil
}

func parseVisibleHeader(header string) *Header {
	h := &Header{Tags: []string{}}
	for _, line := range strings.Split(header, "\n") {
		switch {
		case strings.HasPrefix(line, "# ") && h.Title == "":
			h.Title = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "**Date:**"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "**Date:**"))
			if t, err := time.Parse(displayDateLayout, raw); err == nil {
				h.Date = t.Format(dateLayout)
			} else {
				h.Date = raw
			}
		case strings.HasPrefix(line, "**Tags:**"):
			h.Tags = NormalizeTags(strings.Split(strings.TrimPrefix(line, "**Tags:**"), ","))
		case strings.HasPrefix(line, "**Mood:**"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "**Mood:**"))
			mood, outOf, _ := strings.Cut(raw, "/")
			h.Mood, _ = strconv.Atoi(strings.TrimSpace(mood))
			h.MoodMax, _ = strconv.Atoi(strings.TrimSpace(outOf))
		}
	}
	return h
}

// ValidateTags rejects tags containing a comma, since the visible
// "**Tags:**" line is comma separated and could not round-trip them
func ValidateTags(tags []string) error {
	for _, tag := range tags {
		if strings.Contains(tag, ",") {
			return fmt.Errorf("%w: tag %q contains a comma", journalerr.ErrInvalidInput, tag)
		}
	}
	return nil
}

// NormalizeTags trims tags, collapses inner whitespace, drops blanks and
// removes duplicates keeping the first occurrence
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(tag), " ")
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// MergeTags appends the tags in add that existing lacks
func MergeTags(existing, add []string) []string {
	return NormalizeTags(append(append([]string{}, existing...), add...))
}
