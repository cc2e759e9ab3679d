package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/neilberkman/ccjournal/internal/core/journalerr"
)

// isolate points HOME and the working directory at empty temp dirs so no
// real config or .env leaks into a test
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"JOURNAL_DIR", "FILENAME_PREFIX", "FILE_EXTENSION", "MAX_RECENT_ENTRIES",
		"ENABLE_BACKUP", "BACKUP_DIR", "ENABLE_DATABASE", "DATABASE_PATH",
		"LOG_LEVEL", "LOG_FILE", "LOG_FORMAT", "MOOD_MIN", "MOOD_MAX",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	return home
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.JournalDir != filepath.Join(home, "journal") {
		t.Errorf("JournalDir = %q", cfg.JournalDir)
	}
	if cfg.FilenamePrefix != "journal" || cfg.FileExtension != ".md" {
		t.Errorf("prefix/ext = %q/%q", cfg.FilenamePrefix, cfg.FileExtension)
	}
	if cfg.MaxRecentEntries != 5 || !cfg.EnableBackup || !cfg.EnableDatabase {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.BackupDir != filepath.Join(cfg.JournalDir, "backups") {
		t.Errorf("BackupDir = %q", cfg.BackupDir)
	}
	if cfg.DatabasePath != filepath.Join(cfg.JournalDir, "conversations.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.MoodMin != 1 || cfg.MoodMax != 10 {
		t.Errorf("mood range = %d-%d", cfg.MoodMin, cfg.MoodMax)
	}
	if cfg.StartPromptTemplate != DefaultStartPrompt {
		t.Error("expected default start prompt")
	}
}

func TestLoad_Layering(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	toml := `
journal_dir = "/tmp/from-toml"
filename_prefix = "diary"
max_recent_entries = 9
enable_backup = false
mood_max = 5
`
	if err := os.WriteFile(configPath, []byte(toml), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "start_prompt.txt"), []byte("custom {{journal_dir}}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(".env", []byte("FILE_EXTENSION=txt\nFILENAME_PREFIX=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Real environment beats .env
	t.Setenv("FILENAME_PREFIX", "from-env")
	t.Setenv("MAX_RECENT_ENTRIES", "3")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.JournalDir != "/tmp/from-toml" {
		t.Errorf("JournalDir = %q", cfg.JournalDir)
	}
	if cfg.FilenamePrefix != "from-env" {
		t.Errorf("FilenamePrefix = %q", cfg.FilenamePrefix)
	}
	if cfg.FileExtension != ".txt" {
		t.Errorf("FileExtension = %q", cfg.FileExtension)
	}
	if cfg.MaxRecentEntries != 3 {
		t.Errorf("MaxRecentEntries = %d", cfg.MaxRecentEntries)
	}
	if cfg.EnableBackup {
		t.Error("expected backup disabled by toml")
	}
	if cfg.MoodMin != 1 || cfg.MoodMax != 5 {
		t.Errorf("mood range = %d-%d", cfg.MoodMin, cfg.MoodMax)
	}
	if cfg.StartPromptTemplate != "custom {{journal_dir}}" {
		t.Errorf("StartPromptTemplate = %q", cfg.StartPromptTemplate)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	isolate(t)

	t.Setenv("MAX_RECENT_ENTRIES", "five")
	if _, err := Load(""); !errors.Is(err, journalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	t.Setenv("MAX_RECENT_ENTRIES", "")
	t.Setenv("ENABLE_BACKUP", "sometimes")
	if _, err := Load(""); !errors.Is(err, journalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLoad_BadTOML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("journal_dir = [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"empty prefix", func(c *Config) { c.FilenamePrefix = "" }, journalerr.ErrInvalidInput},
		{"prefix with separator", func(c *Config) { c.FilenamePrefix = "../x" }, journalerr.ErrInvalidInput},
		{"hidden prefix", func(c *Config) { c.FilenamePrefix = ".journal" }, journalerr.ErrInvalidInput},
		{"unsupported extension", func(c *Config) { c.FileExtension = ".exe" }, journalerr.ErrInvalidExtension},
		{"zero max entries", func(c *Config) { c.MaxRecentEntries = 0 }, journalerr.ErrInvalidInput},
		{"negative max entries", func(c *Config) { c.MaxRecentEntries = -2 }, journalerr.ErrInvalidInput},
		{"mood scale from zero", func(c *Config) { c.MoodMin = 0 }, journalerr.ErrInvalidInput},
		{"inverted mood range", func(c *Config) { c.MoodMin, c.MoodMax = 10, 1 }, journalerr.ErrInvalidInput},
		{"single point mood range", func(c *Config) { c.MoodMin, c.MoodMax = 5, 5 }, journalerr.ErrInvalidInput},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, journalerr.ErrInvalidInput},
		{"markdown extension", func(c *Config) { c.FileExtension = ".markdown" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.JournalDir = t.TempDir()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrepare(t *testing.T) {
	cfg := Defaults()
	cfg.JournalDir = filepath.Join(t.TempDir(), "nested", "journal")
	cfg.BackupDir = filepath.Join(cfg.JournalDir, "backups")

	for i := 0; i < 2; i++ {
		if err := cfg.Prepare(); err != nil {
			t.Fatalf("Prepare() call %d error = %v", i, err)
		}
	}
	for _, dir := range []string{cfg.JournalDir, cfg.BackupDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected %s to exist", dir)
		}
	}
	entries, _ := os.ReadDir(cfg.JournalDir)
	if len(entries) != 1 {
		t.Errorf("write check left files behind: %v", entries)
	}
}

func TestPrepare_NotWritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	cfg := Defaults()
	cfg.JournalDir = dir
	cfg.EnableBackup = false
	if err := cfg.Prepare(); !errors.Is(err, journalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for read-only dir, got %v", err)
	}
}
