package cli

import (
	"fmt"
	"strings"

	"github.com/neilberkman/ccjournal/internal/core/search"
	"github.com/spf13/cobra"
)

var (
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search recorded conversations using full-text search",
	Long: `Search through every recorded journaling conversation.

Uses FTS5 full-text search with porter stemming for natural language.
Results are grouped by conversation and show matching message snippets.

Filters can be written into the query:
  speaker:user, speaker:assistant
  after:yesterday, before:2025-01-01

Examples:
  ccjournal search "feeling anxious"
  ccjournal search running speaker:user
  ccjournal search work after:"last week" --limit 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of conversations to show")
}

func runSearch(cmd *cobra.Command, args []string) error {
	// Join all args as query
	query := strings.Join(args, " ")

	svc, _, cleanup, err := openService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	if svc.Store() == nil {
		return fmt.Errorf("search needs the database; set enable_database = true")
	}

	filters := search.ParseQuery(query)
	results, err := search.SearchWithFilters(svc.Store(), filters)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Printf("No results found for: %s\n", query)
		return nil
	}

	totalMatches := 0
	for _, r := range results {
		totalMatches += len(r.Matches)
	}
	fmt.Printf("Found %d conversation(s) with %d match(es) for: %s\n\n", len(results), totalMatches, query)

	for i, r := range results {
		if i >= searchLimit {
			fmt.Printf("... and %d more conversations (use --limit to see more)\n", len(results)-searchLimit)
			break
		}

		fmt.Printf("=== %s ===\n", nameStyle.Render(r.SessionID))
		if r.EntryPath != "" {
			fmt.Printf("Entry:   %s\n", r.EntryPath)
		} else {
			fmt.Printf("Entry:   %s\n", dimStyle.Render("[no entry written]"))
		}
		fmt.Printf("Updated: %s\n", r.UpdatedAt)
		fmt.Printf("Matches: %d\n\n", len(r.Matches))

		// Show up to 3 matches per conversation
		for j, m := range r.Matches {
			if j >= 3 {
				break
			}
			fmt.Printf("  %s: %s\n\n", m.Speaker, truncateMessage(m.Snippet, 200))
		}
	}

	return nil
}

// truncateMessage truncates long messages for display
func truncateMessage(msg string, maxLen int) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) <= maxLen {
		return msg
	}

	// Find a good break point (end of word)
	truncated := msg[:maxLen]
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > maxLen-50 {
		truncated = truncated[:lastSpace]
	}
	return truncated + "..."
}
