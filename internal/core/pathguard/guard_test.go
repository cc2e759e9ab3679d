package pathguard

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/neilberkman/ccjournal/internal/core/journalerr"
)

func newTestGuard(t *testing.T) (*Guard, string) {
	t.Helper()
	root := t.TempDir()
	g, err := New(root, ".md", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g, g.Root()
}

func TestResolve(t *testing.T) {
	g, root := newTestGuard(t)
	outside := t.TempDir()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "bare filename", input: "journal_2025-01-01.md", want: filepath.Join(root, "journal_2025-01-01.md")},
		{name: "nested relative", input: "2025/entry.md", want: filepath.Join(root, "2025", "entry.md")},
		{name: "dot segments that stay inside", input: "a/../entry.md", want: filepath.Join(root, "entry.md")},
		{name: "absolute inside root", input: filepath.Join(root, "entry.md"), want: filepath.Join(root, "entry.md")},
		{name: "parent escape", input: "../entry.md", wantErr: journalerr.ErrPathTraversal},
		{name: "deep parent escape", input: "a/../../../etc/passwd.md", wantErr: journalerr.ErrPathTraversal},
		{name: "absolute outside root", input: filepath.Join(outside, "entry.md"), wantErr: journalerr.ErrPathTraversal},
		{name: "root itself", input: ".", wantErr: journalerr.ErrPathTraversal},
		{name: "wrong extension", input: "entry.txt", wantErr: journalerr.ErrInvalidExtension},
		{name: "no extension", input: "entry", wantErr: journalerr.ErrInvalidExtension},
		{name: "empty", input: "  ", wantErr: journalerr.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Resolve(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolve_SymlinkEscape(t *testing.T) {
	g, root := newTestGuard(t)
	outside := t.TempDir()

	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if _, err := g.Resolve("link/entry.md"); !errors.Is(err, journalerr.ErrPathTraversal) {
		t.Errorf("expected traversal through directory symlink, got %v", err)
	}

	target := filepath.Join(outside, "secret.md")
	if err := os.WriteFile(target, []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, filepath.Join(root, "alias.md")); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Resolve("alias.md"); !errors.Is(err, journalerr.ErrPathTraversal) {
		t.Errorf("expected traversal through file symlink, got %v", err)
	}
}

func TestResolve_DoesNotTouchFilesystem(t *testing.T) {
	g, root := newTestGuard(t)

	if _, err := g.Resolve("../escape.md"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := g.Resolve("new/dir/entry.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Resolve created %d entries in root", len(entries))
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape.md")); !os.IsNotExist(err) {
		t.Errorf("escape target should not exist, stat err = %v", err)
	}
}

func TestNew(t *testing.T) {
	if _, err := New("", ".md", nil); err == nil {
		t.Error("expected error for empty root")
	}
	if _, err := New(t.TempDir(), "md", nil); !errors.Is(err, journalerr.ErrInvalidExtension) {
		t.Errorf("expected ErrInvalidExtension, got %v", err)
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing"), ".md", nil); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestEnsureRoot_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal", "nested")
	for i := 0; i < 2; i++ {
		if err := EnsureRoot(dir); err != nil {
			t.Fatalf("EnsureRoot() call %d error = %v", i, err)
		}
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory, stat err = %v", err)
	}
}

func TestContains(t *testing.T) {
	g, root := newTestGuard(t)
	if !g.Contains(filepath.Join(root, "a.md")) {
		t.Error("expected path inside root")
	}
	if g.Contains(filepath.Join(root, "..", "a.md")) {
		t.Error("expected path outside root")
	}
}
