package cli

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	"github.com/neilberkman/ccjournal/internal/core/search"
	"github.com/neilberkman/ccjournal/internal/core/stats"
	"github.com/spf13/cobra"
)

var (
	listLimit int
	listSince string
	listCopy  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries",
	Long: `List journal entries, newest first.

Shows each entry's title, date, tags, mood and word count.

Examples:
  ccjournal list
  ccjournal list --limit 10
  ccjournal list --since "last week"
  ccjournal list --copy`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of entries to display (default: max_recent_entries)")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only entries modified after this date (e.g. 2025-01-01, yesterday, \"3 days ago\")")
	listCmd.Flags().BoolVar(&listCopy, "copy", false, "Copy the newest listed entry's path to the clipboard")
}

func runList(cmd *cobra.Command, args []string) error {
	svc, _, cleanup, err := openService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := svc.RecentEntries(listLimit)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	if listSince != "" {
		since := search.ParseDate(listSince)
		if since == nil {
			return fmt.Errorf("could not understand date %q", listSince)
		}
		filtered := entries[:0]
		for _, e := range entries {
			if e.ModTime.After(*since) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if len(entries) == 0 {
		fmt.Printf("No journal entries found in %s\n", svc.Config().JournalDir)
		return nil
	}

	fmt.Printf("Showing %d entr%s\n\n", len(entries), plural(len(entries), "y", "ies"))
	for i, e := range entries {
		printEntry(i+1, e)
	}

	if listCopy {
		if err := clipboard.WriteAll(entries[0].Path); err != nil {
			return fmt.Errorf("failed to copy to clipboard: %w", err)
		}
		fmt.Printf("Copied %s to clipboard\n", entries[0].Path)
	}
	return nil
}

func printEntry(n int, e stats.EntryInfo) {
	fmt.Printf("[%d] %s\n", n, nameStyle.Render(e.Title))
	fmt.Printf("    File:  %s\n", e.Name)
	fmt.Printf("    Date:  %s (modified %s)\n", e.Date, humanize.Time(e.ModTime))
	if len(e.Tags) > 0 {
		fmt.Printf("    Tags:  %s\n", tagStyle.Render(strings.Join(e.Tags, ", ")))
	}
	if e.Mood != 0 {
		fmt.Printf("    Mood:  %d\n", e.Mood)
	}
	fmt.Printf("    Words: %s, %s\n", humanize.Comma(int64(e.WordCount)), humanize.Bytes(uint64(e.Size)))
	fmt.Println()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
