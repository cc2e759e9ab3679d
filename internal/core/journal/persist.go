package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/neilberkman/ccjournal/internal/core/journalerr"
	"github.com/neilberkman/ccjournal/internal/core/pathguard"
)

const (
	backupTimeLayout = "20060102_150405"
	maxSuffix        = 10000
)

// Entry is a journal entry on disk
type Entry struct {
	Path   string `json:"filepath"`
	Header Header `json:"header"`
	Stats  Stats  `json:"stats"`
}

// PersisterConfig configures a Persister
type PersisterConfig struct {
	Guard     *pathguard.Guard
	Prefix    string
	BackupDir string // empty disables backups
	Log       *bolt.Logger
}

// Persister writes entries under the journal root. Creates never overwrite
// and tag edits replace files atomically.
type Persister struct {
	guard     *pathguard.Guard
	prefix    string
	backupDir string
	log       *bolt.Logger

	// mu serializes creates and in-place edits
	mu sync.Mutex

	now       func() time.Time
	writeFile func(f *os.File, data []byte) error
}

// NewPersister creates a Persister. The journal root must already exist.
func NewPersister(cfg PersisterConfig) (*Persister, error) {
	if cfg.Guard == nil {
		return nil, fmt.Errorf("%w: path guard is required", journalerr.ErrInvalidInput)
	}
	if cfg.Prefix == "" || strings.ContainsAny(cfg.Prefix, `/\`) {
		return nil, fmt.Errorf("%w: invalid filename prefix %q", journalerr.ErrInvalidInput, cfg.Prefix)
	}
	var backupDir string
	if cfg.BackupDir != "" {
		dir, err := pathguard.Canonical(cfg.BackupDir)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid backup directory %q", journalerr.ErrInvalidInput, cfg.BackupDir)
		}
		backupDir = dir
	}
	return &Persister{
		guard:     cfg.Guard,
		prefix:    cfg.Prefix,
		backupDir: backupDir,
		log:       cfg.Log,
		now:       time.Now,
		writeFile: func(f *os.File, data []byte) error {
			_, err := f.Write(data)
			return err
		},
	}, nil
}

// Root returns the journal directory
func (p *Persister) Root() string {
	return p.guard.Root()
}

// Guard returns the path guard entries are resolved with
func (p *Persister) Guard() *pathguard.Guard {
	return p.guard
}

// BackupsEnabled reports whether edits are preceded by a backup
func (p *Persister) BackupsEnabled() bool {
	return p.backupDir != ""
}

// EntryName is the file name for the n-th entry of a date, n starting at 1
func (p *Persister) EntryName(date string, n int) string {
	if n <= 1 {
		return fmt.Sprintf("%s_%s%s", p.prefix, date, p.guard.Extension())
	}
	return fmt.Sprintf("%s_%s_%d%s", p.prefix, date, n, p.guard.Extension())
}

// Create writes doc to a new file named after its date. When a file for the
// date exists the next free suffix (_2, _3, ...) is used. The content is
// fully written and synced before the final name appears, so no reader
// ever sees a partial entry.
func (p *Persister) Create(doc *Document) (*Entry, error) {
	const op = "create_entry"

	if doc == nil || doc.Content == "" {
		return nil, journalerr.Newf(op, "", journalerr.ErrInvalidInput, "document has no content")
	}
	if _, err := time.Parse(dateLayout, doc.Header.Date); err != nil {
		return nil, journalerr.Newf(op, doc.Header.Date, journalerr.ErrInvalidInput, "invalid entry date")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tmpPath, err := p.writeTemp(p.guard.Root(), []byte(doc.Content), 0o600)
	if err != nil {
		return nil, journalerr.Persistence(op, p.guard.Root(), err)
	}
	defer func() { _ = os.Remove(tmpPath) }()

	for n := 1; n <= maxSuffix; n++ {
		target, err := p.guard.Resolve(p.EntryName(doc.Header.Date, n))
		if err != nil {
			return nil, err
		}

		claimed, err := claim(tmpPath, target)
		if err != nil {
			return nil, journalerr.Persistence(op, target, err)
		}
		if !claimed {
			continue
		}

		if p.log != nil {
			p.log.Info().Str("path", target).Int("words", doc.Stats.WordCount).Msg("journal entry written")
		}
		return &Entry{Path: target, Header: doc.Header, Stats: doc.Stats}, nil
	}

	return nil, journalerr.Persistence(op, doc.Header.Date, fmt.Errorf("no free file name after %d attempts", maxSuffix))
}

// claim gives the fully written temp file its final name without ever
// replacing an existing file. It reports false when target is taken.
func claim(tmpPath, target string) (bool, error) {
	err := os.Link(tmpPath, target)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}

	// Filesystems without hard links: check then rename. Creates are
	// serialized by the persister lock, so only an outside writer can race.
	if _, statErr := os.Lstat(target); statErr == nil {
		return false, nil
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return false, statErr
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return false, err
	}
	return true, nil
}

// writeTemp writes data to a new hidden file in dir, syncs and closes it
func (p *Persister) writeTemp(dir string, data []byte, mode os.FileMode) (string, error) {
	f, err := os.CreateTemp(dir, "."+p.prefix+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()

	fail := func(err error) (string, error) {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}

	if err := p.writeFile(f, data); err != nil {
		return fail(fmt.Errorf("failed to write temp file: %w", err))
	}
	if err := f.Chmod(mode); err != nil {
		return fail(fmt.Errorf("failed to set permissions: %w", err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync temp file: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmpPath, nil
}

// resolveEntry resolves name to an entry file: a direct child of the root
// named {prefix}_*{ext}. Backups and other files under the root are refused.
func (p *Persister) resolveEntry(op, name string) (string, error) {
	path, err := p.guard.Resolve(name)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if dir != p.guard.Root() || (p.backupDir != "" && dir == p.backupDir) ||
		!strings.HasPrefix(filepath.Base(path), p.prefix+"_") {
		if p.log != nil {
			p.log.Warn().
				Str("event", "path_traversal").
				Str("path", name).
				Str("root", p.guard.Root()).
				Msg("rejected path that is not a journal entry")
		}
		return "", journalerr.New(op, name, journalerr.ErrPathTraversal)
	}
	return path, nil
}

// Read returns the content of an entry
func (p *Persister) Read(name string) (string, string, error) {
	const op = "read_entry"

	path, err := p.resolveEntry(op, name)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", "", journalerr.New(op, name, journalerr.ErrEntryNotFound)
	}
	if err != nil {
		return "", "", journalerr.Persistence(op, path, err)
	}
	return path, string(data), nil
}

// Remove deletes an entry created by this persister. It is only used to
// undo a create whose bookkeeping failed.
func (p *Persister) Remove(path string) error {
	resolved, err := p.resolveEntry("remove_entry", path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.Remove(resolved); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return journalerr.Persistence("remove_entry", resolved, err)
	}
	return nil
}

// backup copies data to the backup directory as
// {stem}_{YYYYmmdd_HHMMSS}[_{n}]{ext}. Existing backups are never replaced.
func (p *Persister) backup(path string, data []byte) (string, error) {
	if err := os.MkdirAll(p.backupDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	stamp := p.now().Format(backupTimeLayout)

	for n := 1; n <= maxSuffix; n++ {
		name := fmt.Sprintf("%s_%s%s", stem, stamp, ext)
		if n > 1 {
			name = fmt.Sprintf("%s_%s_%d%s", stem, stamp, n, ext)
		}
		backupPath := filepath.Join(p.backupDir, name)

		f, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create backup: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(backupPath)
			return "", fmt.Errorf("failed to write backup: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(backupPath)
			return "", fmt.Errorf("failed to close backup: %w", err)
		}

		if p.log != nil {
			p.log.Debug().Str("path", path).Str("backup", backupPath).Msg("journal entry backed up")
		}
		return backupPath, nil
	}
	return "", fmt.Errorf("no free backup name for %s", path)
}
