package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show journal statistics",
	Long: `Display statistics about the journal.

Shows entry counts, word totals, the date range of entries and, when the
database is enabled, conversation and message counts.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	svc, _, cleanup, err := openService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := svc.JournalStatistics()
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}

	fmt.Println(titleStyle.Render("Journal Statistics"))
	fmt.Println()

	fmt.Printf("Total Entries:     %d\n", st.TotalEntries)
	fmt.Printf("Total Words:       %s\n", humanize.Comma(int64(st.TotalWords)))
	fmt.Printf("Avg Words/Entry:   %s\n", humanize.Comma(int64(st.AverageWords)))
	fmt.Printf("Total Size:        %s\n", humanize.Bytes(uint64(st.TotalBytes)))
	if st.TotalEntries > 0 {
		fmt.Printf("Oldest Entry:      %s\n", st.OldestEntry.Format("Jan 2, 2006 3:04 PM"))
		fmt.Printf("Newest Entry:      %s (%s)\n", st.NewestEntry.Format("Jan 2, 2006 3:04 PM"), humanize.Time(st.NewestEntry))
	}
	fmt.Println()

	if st.DatabaseEnabled {
		fmt.Printf("Conversations:     %d\n", st.Conversations)
		fmt.Printf("Messages:          %d (%d from you, %d from the assistant)\n",
			st.Messages, st.UserMessages, st.AssistantMessages)
		fmt.Printf("Avg Messages/Conv: %.1f\n", st.AvgMessagesPerConvo)
		if !st.LastActivity.IsZero() {
			fmt.Printf("Last Activity:     %s\n", humanize.Time(st.LastActivity))
		}
		fmt.Println()
	}

	fmt.Printf("Journal Directory: %s\n", st.JournalDir)
	fmt.Printf("Backups:           %s\n", enabledLabel(st.BackupEnabled))
	fmt.Printf("Database:          %s\n", enabledLabel(st.DatabaseEnabled))

	return nil
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return dimStyle.Render("disabled")
}
