package journalerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain sentinel", ErrInvalidMoodRating, KindValidation},
		{"wrapped op error", New("record_interaction", "abc", ErrNoActiveSession), KindState},
		{"fmt wrapped", fmt.Errorf("outer: %w", New("resolve", "../x.md", ErrPathTraversal)), KindSecurity},
		{"persistence", Persistence("append_message", "abc", errors.New("disk full")), KindPersistence},
		{"not found", Newf("add_journal_tags", "a.md", ErrEntryNotFound, "no such file"), KindNotFound},
		{"unknown", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorMessageIncludesContext(t *testing.T) {
	err := New("create_conversation", "session-1", ErrDuplicateSession)
	msg := err.Error()
	if !strings.Contains(msg, "create_conversation") || !strings.Contains(msg, "session-1") {
		t.Errorf("error message missing context: %s", msg)
	}

	cause := errors.New("database is locked")
	err = Persistence("append_message", "session-1", cause)
	if !errors.Is(err, cause) {
		t.Error("persistence error should keep the cause reachable")
	}
}
