package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/ccjournal/internal/core/journaling"
	"github.com/spf13/cobra"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions [session-id]",
	Short: "List recorded conversations or show one",
	Long: `Without arguments, list recorded conversations, most recently active first.
With a session id, print that conversation's messages in order.

Examples:
  ccjournal sessions
  ccjournal sessions --limit 5
  ccjournal sessions 0b7c6f3e-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum number of conversations to display")
}

func runSessions(cmd *cobra.Command, args []string) error {
	svc, _, cleanup, err := openService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 1 {
		return showSession(svc, args[0])
	}

	convs, err := svc.RecentConversations(sessionsLimit)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}
	if len(convs) == 0 {
		fmt.Println("No conversations recorded yet. Start one from your MCP client.")
		return nil
	}

	for i, c := range convs {
		fmt.Printf("[%d] %s\n", i+1, nameStyle.Render(c.SessionID))
		fmt.Printf("    Messages: %d\n", c.MessageCount)
		fmt.Printf("    Updated:  %s\n", humanize.Time(c.UpdatedAt))
		if path, ok := c.Metadata[journaling.EntryPathKey].(string); ok {
			fmt.Printf("    Entry:    %s\n", path)
		}
		fmt.Println()
	}
	return nil
}

func showSession(svc *journaling.Service, sessionID string) error {
	conv, msgs, err := svc.Conversation(sessionID)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Conversation " + conv.SessionID))
	fmt.Printf("Started: %s\n", conv.CreatedAt.Local().Format("Jan 2, 2006 3:04 PM"))
	if path, ok := conv.Metadata[journaling.EntryPathKey].(string); ok {
		fmt.Printf("Entry:   %s\n", path)
	}
	fmt.Println()

	for _, m := range msgs {
		label := m.Speaker.Label()
		fmt.Printf("%s %s\n%s\n\n",
			nameStyle.Render(label),
			dimStyle.Render(m.Timestamp.Local().Format("15:04")),
			m.Content)
	}
	return nil
}
