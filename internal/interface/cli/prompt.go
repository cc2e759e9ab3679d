package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the start_journaling prompt",
	Long: `Render the start_journaling prompt exactly as the MCP server sends it.

The template is DefaultStartPrompt unless start_prompt.txt exists in the
config directory. It is a mustache template with these variables:
  {{has_entries}}   true when the journal has entries
  {{entry_count}}   number of entries
  {{journal_dir}}   journal directory
  {{latest_entry}}  date of the newest entry`,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	svc, _, cleanup, err := openService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	prompt, err := svc.StartPrompt()
	if err != nil {
		return err
	}

	fmt.Println(prompt)
	return nil
}
