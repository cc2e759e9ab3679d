package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/neilberkman/ccjournal/internal/core/journalerr"
	"github.com/neilberkman/ccjournal/internal/core/observe"
	"github.com/neilberkman/ccjournal/internal/core/pathguard"
)

const DefaultStartPrompt = `First, please read the resource at "journals://recent" into our conversation to understand my previous emotional states and recurring themes.{{#has_entries}} There are {{entry_count}} earlier entries in {{journal_dir}}, the latest from {{latest_entry}}.{{/has_entries}}
Then start our conversation by asking how I'm feeling today, taking into account any patterns or ongoing situations from previous entries.
Let's begin - how are you feeling today?`

// SupportedExtensions lists the entry file suffixes the journal accepts
var SupportedExtensions = []string{".md", ".markdown", ".txt"}

type Config struct {
	JournalDir       string
	FilenamePrefix   string
	FileExtension    string // always with a leading dot
	MaxRecentEntries int
	EnableBackup     bool
	BackupDir        string

	EnableDatabase bool
	DatabasePath   string

	MoodMin int
	MoodMax int

	LogLevel  string
	LogFile   string
	LogFormat string

	StartPromptTemplate string
	ConfigDir           string
}

type tomlConfig struct {
	JournalDir       string `toml:"journal_dir"`
	FilenamePrefix   string `toml:"filename_prefix"`
	FileExtension    string `toml:"file_extension"`
	MaxRecentEntries int    `toml:"max_recent_entries"`
	EnableBackup     bool   `toml:"enable_backup"`
	BackupDir        string `toml:"backup_dir"`
	EnableDatabase   bool   `toml:"enable_database"`
	DatabasePath     string `toml:"database_path"`
	MoodMin          int    `toml:"mood_min"`
	MoodMax          int    `toml:"mood_max"`
	LogLevel         string `toml:"log_level"`
	LogFile          string `toml:"log_file"`
	LogFormat        string `toml:"log_format"`
}

// DefaultConfigDir is ~/.config/ccjournal
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "ccjournal")
	}
	return filepath.Join(home, ".config", "ccjournal")
}

// Defaults returns the configuration used when nothing overrides it
func Defaults() *Config {
	journalDir := "journal"
	if home, err := os.UserHomeDir(); err == nil {
		journalDir = filepath.Join(home, "journal")
	}
	return &Config{
		JournalDir:          journalDir,
		FilenamePrefix:      "journal",
		FileExtension:       ".md",
		MaxRecentEntries:    5,
		EnableBackup:        true,
		EnableDatabase:      true,
		MoodMin:             1,
		MoodMax:             10,
		LogLevel:            "info",
		LogFormat:           "console",
		StartPromptTemplate: DefaultStartPrompt,
		ConfigDir:           DefaultConfigDir(),
	}
}

// Load reads config in layers: defaults, then config.toml, then .env in the
// working directory, then the environment. An empty configPath means
// ~/.config/ccjournal/config.toml. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath == "" {
		configPath = filepath.Join(cfg.ConfigDir, "config.toml")
	} else {
		cfg.ConfigDir = filepath.Dir(configPath)
	}

	if _, err := os.Stat(configPath); err == nil {
		tc := tomlConfig{
			JournalDir:       cfg.JournalDir,
			FilenamePrefix:   cfg.FilenamePrefix,
			FileExtension:    cfg.FileExtension,
			MaxRecentEntries: cfg.MaxRecentEntries,
			EnableBackup:     cfg.EnableBackup,
			EnableDatabase:   cfg.EnableDatabase,
			MoodMin:          cfg.MoodMin,
			MoodMax:          cfg.MoodMax,
			LogLevel:         cfg.LogLevel,
			LogFormat:        cfg.LogFormat,
		}
		if _, err := toml.DecodeFile(configPath, &tc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
		cfg.JournalDir = tc.JournalDir
		cfg.FilenamePrefix = tc.FilenamePrefix
		cfg.FileExtension = tc.FileExtension
		cfg.MaxRecentEntries = tc.MaxRecentEntries
		cfg.EnableBackup = tc.EnableBackup
		cfg.BackupDir = tc.BackupDir
		cfg.EnableDatabase = tc.EnableDatabase
		cfg.DatabasePath = tc.DatabasePath
		cfg.MoodMin = tc.MoodMin
		cfg.MoodMax = tc.MoodMax
		cfg.LogLevel = tc.LogLevel
		cfg.LogFile = tc.LogFile
		cfg.LogFormat = tc.LogFormat
	}

	// Existing environment variables win over .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	// If custom template exists, use it
	if data, err := os.ReadFile(filepath.Join(cfg.ConfigDir, "start_prompt.txt")); err == nil {
		cfg.StartPromptTemplate = string(data)
	}

	cfg.normalize()
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.JournalDir = getEnv("JOURNAL_DIR", cfg.JournalDir)
	cfg.FilenamePrefix = getEnv("FILENAME_PREFIX", cfg.FilenamePrefix)
	cfg.FileExtension = getEnv("FILE_EXTENSION", cfg.FileExtension)
	cfg.BackupDir = getEnv("BACKUP_DIR", cfg.BackupDir)
	cfg.DatabasePath = getEnv("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	var err error
	if cfg.MaxRecentEntries, err = getEnvAsInt("MAX_RECENT_ENTRIES", cfg.MaxRecentEntries); err != nil {
		return err
	}
	if cfg.MoodMin, err = getEnvAsInt("MOOD_MIN", cfg.MoodMin); err != nil {
		return err
	}
	if cfg.MoodMax, err = getEnvAsInt("MOOD_MAX", cfg.MoodMax); err != nil {
		return err
	}
	if cfg.EnableBackup, err = getEnvAsBool("ENABLE_BACKUP", cfg.EnableBackup); err != nil {
		return err
	}
	if cfg.EnableDatabase, err = getEnvAsBool("ENABLE_DATABASE", cfg.EnableDatabase); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", journalerr.ErrInvalidInput, key, valueStr)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false, got %q", journalerr.ErrInvalidInput, key, valueStr)
	}
	return value, nil
}

// normalize fills derived paths and canonicalizes the extension
func (c *Config) normalize() {
	c.JournalDir = expandHome(c.JournalDir)
	if abs, err := filepath.Abs(c.JournalDir); err == nil {
		c.JournalDir = abs
	}

	ext := strings.ToLower(strings.TrimSpace(c.FileExtension))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.FileExtension = ext

	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(c.JournalDir, "backups")
	} else {
		c.BackupDir = expandHome(c.BackupDir)
	}
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.JournalDir, "conversations.db")
	} else {
		c.DatabasePath = expandHome(c.DatabasePath)
	}
	if c.LogFile != "" {
		c.LogFile = expandHome(c.LogFile)
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Validate checks values without touching the filesystem
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JournalDir) == "" {
		return fmt.Errorf("%w: journal directory cannot be empty", journalerr.ErrInvalidInput)
	}
	if c.FilenamePrefix == "" {
		return fmt.Errorf("%w: filename prefix cannot be empty", journalerr.ErrInvalidInput)
	}
	for _, r := range c.FilenamePrefix {
		if !(r == '-' || r == '_' || r == '.' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return fmt.Errorf("%w: filename prefix %q may only contain letters, digits, '-', '_' and '.'", journalerr.ErrInvalidInput, c.FilenamePrefix)
		}
	}
	if strings.HasPrefix(c.FilenamePrefix, ".") {
		return fmt.Errorf("%w: filename prefix %q cannot start with '.'", journalerr.ErrInvalidInput, c.FilenamePrefix)
	}
	if !isSupportedExtension(c.FileExtension) {
		return fmt.Errorf("%w: %q (supported: %s)", journalerr.ErrInvalidExtension, c.FileExtension, strings.Join(SupportedExtensions, ", "))
	}
	if c.MaxRecentEntries < 1 {
		return fmt.Errorf("%w: max recent entries must be at least 1, got %d", journalerr.ErrInvalidInput, c.MaxRecentEntries)
	}
	if c.MoodMin < 1 {
		return fmt.Errorf("%w: mood scale must start at 1 or above, got %d", journalerr.ErrInvalidInput, c.MoodMin)
	}
	if c.MoodMin >= c.MoodMax {
		return fmt.Errorf("%w: mood range %d-%d needs at least two values", journalerr.ErrInvalidInput, c.MoodMin, c.MoodMax)
	}
	if err := observe.ValidateLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", journalerr.ErrInvalidInput, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", journalerr.ErrInvalidInput, c.LogFormat)
	}
	return nil
}

func isSupportedExtension(ext string) bool {
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// Prepare validates the config, creates the journal (and backup) directories
// and verifies they are writable. Run once at startup.
func (c *Config) Prepare() error {
	if err := c.Validate(); err != nil {
		return err
	}

	dirs := []string{c.JournalDir}
	if c.EnableBackup {
		dirs = append(dirs, c.BackupDir)
	}
	for _, dir := range dirs {
		if err := pathguard.EnsureRoot(dir); err != nil {
			return err
		}
		if err := checkWritable(dir); err != nil {
			return err
		}
	}
	return nil
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".ccjournal-write-check-*")
	if err != nil {
		return fmt.Errorf("%w: directory %s is not writable: %v", journalerr.ErrInvalidInput, dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
