// Package journalerr defines the closed set of failures the journaling core
// reports. Every error returned across a package boundary wraps one of the
// sentinels below so callers can classify it with KindOf.
package journalerr

import (
	"errors"
	"fmt"
)

// Kind groups sentinels by how a caller should react to them.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindState       Kind = "state"
	KindSecurity    Kind = "security"
	KindPersistence Kind = "persistence"
	KindNotFound    Kind = "not_found"
	KindUnknown     Kind = "unknown"
)

// Validation
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidMoodRating = errors.New("invalid mood rating")
	ErrEmptySession      = errors.New("session has no recorded interactions")
	ErrInvalidLimit      = errors.New("limit must be a positive integer")
	ErrInvalidExtension  = errors.New("invalid file extension")
)

// State
var (
	ErrNoActiveSession     = errors.New("no active session")
	ErrDuplicateSession    = errors.New("session already exists")
	ErrUnknownConversation = errors.New("unknown conversation")
)

// Security, persistence, not found
var (
	ErrPathTraversal = errors.New("path escapes journal directory")
	ErrPersistence   = errors.New("persistence failure")
	ErrEntryNotFound = errors.New("journal entry not found")
)

var kinds = map[error]Kind{
	ErrInvalidInput:        KindValidation,
	ErrInvalidMoodRating:   KindValidation,
	ErrEmptySession:        KindValidation,
	ErrInvalidLimit:        KindValidation,
	ErrInvalidExtension:    KindValidation,
	ErrNoActiveSession:     KindState,
	ErrDuplicateSession:    KindState,
	ErrUnknownConversation: KindState,
	ErrPathTraversal:       KindSecurity,
	ErrPersistence:         KindPersistence,
	ErrEntryNotFound:       KindNotFound,
}

// Error carries the operation and identifying key alongside the cause.
type Error struct {
	Op  string // operation name, e.g. "record_interaction"
	Key string // session id, file path, ... (may be empty)
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with operation context.
func New(op, key string, err error) error {
	return &Error{Op: op, Key: key, Err: err}
}

// Newf wraps a sentinel with a formatted detail message.
func Newf(op, key string, sentinel error, format string, args ...interface{}) error {
	return &Error{Op: op, Key: key, Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))}
}

// Persistence wraps an I/O or database failure so it classifies as
// KindPersistence while keeping the underlying cause reachable.
func Persistence(op, key string, cause error) error {
	return &Error{Op: op, Key: key, Err: errors.Join(ErrPersistence, cause)}
}

// KindOf classifies err. Errors that wrap no known sentinel are KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}
