package search

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Filters narrows a search
type Filters struct {
	Query      string    // The actual search text
	Speaker    string    // "user" or "assistant"
	AfterDate  time.Time // Only messages at or after this time
	BeforeDate time.Time // Only messages before this time
	HasAfter   bool
	HasBefore  bool
	Limit      int
}

// ParseQuery extracts filters from a search string
// Supports:
//   - speaker:user, speaker:assistant (also from:)
//   - after:yesterday, before:2024-11-01
//   - date:yesterday - same as after:
func ParseQuery(query string) Filters {
	filters := Filters{}

	w := newDateParser()

	var queryParts []string
	for _, token := range strings.Fields(query) {
		key, value, found := strings.Cut(token, ":")
		if !found || value == "" {
			queryParts = append(queryParts, token)
			continue
		}

		switch key {
		case "speaker", "from":
			filters.Speaker = value
		case "date", "after":
			if parsed := parseDate(w, value); parsed != nil {
				filters.AfterDate = *parsed
				filters.HasAfter = true
			}
		case "before":
			if parsed := parseDate(w, value); parsed != nil {
				filters.BeforeDate = *parsed
				filters.HasBefore = true
			}
		default:
			queryParts = append(queryParts, token)
		}
	}

	filters.Query = strings.Join(queryParts, " ")
	return filters
}

// ParseDate parses natural language ("last week", "3 days ago") or a
// calendar date. It returns nil when nothing matches.
func ParseDate(s string) *time.Time {
	return parseDate(newDateParser(), s)
}

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

func parseDate(w *when.Parser, dateStr string) *time.Time {
	formats := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006/01/02",
		"01/02/2006",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, dateStr, time.Local); err == nil {
			return &t
		}
	}

	// Natural language; "last-week" reads as "last week"
	phrase := strings.ReplaceAll(dateStr, "-", " ")
	if result, err := w.Parse(phrase, time.Now()); err == nil && result != nil {
		return &result.Time
	}

	return nil
}
