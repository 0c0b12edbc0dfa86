package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coachkb/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --http to serve over streamable HTTP instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access via HTTP

Examples:
  # Stdio mode (default)
  coachkb mcp

  # HTTP mode
  coachkb mcp --http :8080

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "coachkb": {
        "command": "/path/to/coachkb",
        "args": ["mcp"]
      }
    }
  }`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().String("http", "", "HTTP listen address (empty = use stdio)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	addr, err := cmd.Flags().GetString("http")
	if err != nil {
		return fmt.Errorf("getting http flag: %w", err)
	}

	settings, settingsSvc, err := loadSettings()
	if err != nil {
		return err
	}
	if err := validated(settingsSvc, settings); err != nil {
		return err
	}

	retriever, closeFn, err := factory.Retriever(*settings)
	if err != nil {
		return fmt.Errorf("failed to create retriever: %w", err)
	}
	defer closeQuietly(closeFn)

	server, err := mcp.NewServer(&mcp.Ports{Retriever: retriever, Settings: settingsSvc})
	if err != nil {
		return err
	}

	if addr != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	return server.Run(cmd.Context())
}
