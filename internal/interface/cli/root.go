package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/neilberkman/ccjournal/internal/core/config"
	"github.com/neilberkman/ccjournal/internal/core/journaling"
	"github.com/neilberkman/ccjournal/internal/core/observe"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	versionInfo string
	version     = "dev"
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(v, commit, date string) {
	version = v
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", v, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ccjournal",
	Short: "Conversational journal with an MCP server",
	Long: `ccjournal - turn journaling conversations into markdown entries

Records the conversation between you and an assistant, writes it to a
dated markdown entry with a summary, emotional analysis, reflections,
tags and a mood rating, and keeps every message in a searchable SQLite
database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to the browser if no subcommand specified
		return browseCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default ~/.config/ccjournal/config.toml)")
}

// openService loads config, opens the log and builds the journaling service.
// The returned cleanup closes both. Interactive commands only log warnings
// unless debug logging is configured.
func openService(interactive bool) (*journaling.Service, *observe.Observer, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel
	if interactive && !strings.EqualFold(level, "debug") {
		level = "warn"
	}

	obs, err := observe.Open(observe.Options{
		Level:  level,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open log: %w", err)
	}

	svc, err := journaling.New(cfg, obs.Log())
	if err != nil {
		_ = obs.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = svc.Close()
		_ = obs.Close()
	}
	return svc, obs, cleanup, nil
}
