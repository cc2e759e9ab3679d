package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag <entry> <tag>...",
	Short: "Add tags to a journal entry",
	Long: `Add tags to an existing journal entry.

The entry may be a file name or a path inside the journal directory.
Existing tags are kept; a backup is written first when backups are enabled.

Examples:
  ccjournal tag journal_2025-01-02.md work family`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTag,
}

func init() {
	rootCmd.AddCommand(tagCmd)
}

func runTag(cmd *cobra.Command, args []string) error {
	svc, _, cleanup, err := openService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := svc.AddJournalTags(args[0], args[1:])
	if err != nil {
		return err
	}

	if result.Changed {
		fmt.Printf("Tagged %s\n", result.Path)
	} else {
		fmt.Printf("%s already has these tags\n", result.Path)
	}
	fmt.Printf("Tags: %s\n", tagStyle.Render(strings.Join(result.Tags, ", ")))
	if result.BackupPath != "" {
		fmt.Printf("Backup: %s\n", dimStyle.Render(result.BackupPath))
	}
	return nil
}
