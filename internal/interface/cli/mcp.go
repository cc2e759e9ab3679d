package cli

import (
	"fmt"

	"github.com/neilberkman/ccjournal/cmd/ccjournal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start the journaling MCP server on stdio",
	Long: `Start an MCP (Model Context Protocol) server that lets an assistant
record a journaling conversation and write it to a journal entry.

Configure in Claude Desktop's config file:
  {
    "mcpServers": {
      "journal": {
        "command": "ccjournal",
        "args": ["serve-mcp"]
      }
    }
  }

Logs go to stderr or to log_file; stdout carries the protocol.
`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	svc, obs, cleanup, err := openService(false)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := mcp.StartServer(svc, version, obs.Log()); err != nil {
		obs.Log().Error().Err(err).Msg("MCP server stopped")
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
