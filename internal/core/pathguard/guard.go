// Package pathguard confines every journal file path to the configured
// journal root. Paths are cleaned, symlinks in the longest existing prefix
// are evaluated, and the result must sit strictly inside the root with the
// required extension.
package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/neilberkman/ccjournal/internal/core/journalerr"
)

// Guard validates journal paths against a root directory
type Guard struct {
	root string // absolute, symlink-evaluated
	ext  string // required suffix including the dot
	log  *bolt.Logger
}

// EnsureRoot creates dir (and parents) if missing. Safe to call repeatedly.
func EnsureRoot(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: journal directory cannot be empty", journalerr.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}
	return nil
}

// New creates a guard for root. The root must already exist.
func New(root, ext string, log *bolt.Logger) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: journal directory cannot be empty", journalerr.ErrInvalidInput)
	}
	if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
		return nil, fmt.Errorf("%w: %q", journalerr.ErrInvalidExtension, ext)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve journal directory: %w", err)
	}
	evalRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate journal directory: %w", err)
	}

	return &Guard{root: evalRoot, ext: ext, log: log}, nil
}

// Root returns the canonical journal root
func (g *Guard) Root() string {
	return g.root
}

// Extension returns the required file extension
func (g *Guard) Extension() string {
	return g.ext
}

// Resolve turns a file name, relative path or absolute path into a
// canonical absolute path inside the root. It never touches the file
// itself; only existing parent directories are inspected for symlinks.
func (g *Guard) Resolve(name string) (string, error) {
	const op = "resolve_path"

	if strings.TrimSpace(name) == "" {
		return "", journalerr.Newf(op, name, journalerr.ErrInvalidInput, "path cannot be empty")
	}
	if strings.ContainsRune(name, 0) {
		return "", journalerr.Newf(op, name, journalerr.ErrInvalidInput, "path contains NUL byte")
	}

	var abs string
	if filepath.IsAbs(name) {
		abs = filepath.Clean(name)
	} else {
		abs = filepath.Join(g.root, name)
	}

	// Lexical check first so "../" never reaches the filesystem.
	if !g.inside(abs) {
		// Absolute paths under a symlinked alias of the root (macOS /var vs
		// /private/var) are only accepted once evaluated.
		if !filepath.IsAbs(name) || !g.inside(resolveExisting(abs)) {
			return "", g.traversal(op, name)
		}
	}

	resolved := resolveExisting(abs)
	if !g.inside(resolved) {
		return "", g.traversal(op, name)
	}

	if filepath.Ext(resolved) != g.ext {
		return "", journalerr.Newf(op, name, journalerr.ErrInvalidExtension, "expected %s", g.ext)
	}

	return resolved, nil
}

// Canonical returns path made absolute with symlinks evaluated in its
// existing prefix. The path does not need to exist.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return resolveExisting(abs), nil
}

// Contains reports whether an already-absolute path lies inside the root
func (g *Guard) Contains(path string) bool {
	return g.inside(resolveExisting(filepath.Clean(path)))
}

func (g *Guard) inside(path string) bool {
	rel, err := filepath.Rel(g.root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

func (g *Guard) traversal(op, name string) error {
	if g.log != nil {
		g.log.Warn().
			Str("event", "path_traversal").
			Str("path", name).
			Str("root", g.root).
			Msg("rejected path outside journal directory")
	}
	return journalerr.New(op, name, journalerr.ErrPathTraversal)
}

// resolveExisting evaluates symlinks in the longest existing prefix of path
// and re-appends the components that do not exist yet.
func resolveExisting(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	var missing []string
	current := path
	for {
		dir := filepath.Dir(current)
		missing = append(missing, filepath.Base(current))
		if dir == current {
			return path
		}
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved
		}
		current = dir
	}
}
