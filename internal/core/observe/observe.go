// Package observe sets up structured logging. Logs never go to stdout,
// which carries MCP frames when serving.
package observe

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/bolt/v3"
)

// Observer handles logging
type Observer struct {
	log    *bolt.Logger
	closer io.Closer
}

// Options selects log destination, format and level
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	File   string // empty for stderr
}

// New creates a new Observer with console output at the given level
func New(out io.Writer, level string) *Observer {
	l := bolt.New(bolt.NewConsoleHandler(out))
	setLevel(l, level)
	return &Observer{log: l}
}

// NewJSON creates a new Observer with JSON output at the given level
func NewJSON(out io.Writer, level string) *Observer {
	l := bolt.New(bolt.NewJSONHandler(out))
	setLevel(l, level)
	return &Observer{log: l}
}

// Open builds an Observer from options, opening the log file if one is set
func Open(opts Options) (*Observer, error) {
	if err := ValidateLevel(opts.Level); err != nil {
		return nil, err
	}

	var out io.Writer = os.Stderr
	var closer io.Closer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closer = f
	}

	var obs *Observer
	switch strings.ToLower(opts.Format) {
	case "json":
		obs = NewJSON(out, opts.Level)
	case "", "console", "text":
		obs = New(out, opts.Level)
	default:
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	obs.closer = closer
	return obs, nil
}

// Discard returns an Observer that drops everything below ERROR
func Discard() *Observer {
	return New(io.Discard, "error")
}

// Log returns the underlying logger
func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// Close releases the log file, if any
func (o *Observer) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

// ValidateLevel reports whether level is a known log level
func ValidateLevel(level string) error {
	switch strings.ToLower(level) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("unknown log level %q", level)
}

func setLevel(l *bolt.Logger, level string) {
	switch strings.ToLower(level) {
	case "debug":
		l.SetLevel(bolt.DEBUG)
	case "warn", "warning":
		l.SetLevel(bolt.WARN)
	case "error":
		l.SetLevel(bolt.ERROR)
	default:
		l.SetLevel(bolt.INFO)
	}
}
