package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	bellmcp "github.com/echobell/echobell/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  classify_intent   classify a visitor utterance
  map_vision_label  map a raw detector label to its semantic class
  handle_ring       run a ring through classification and policy, and record it
  reload_rules      reload rules and household settings
  list_intents      list intents and the active rule version
  recent_events     list recent door events

If the database cannot be opened at startup the server still starts;
tool calls will return MCP error responses.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			// A nil app makes every tool call return an error result.
			a, closeFn, err := openApp(cmd.Context(), logger)
			if err != nil {
				logger.Error("mcp: failed to open database; tool calls will fail", "error", err)
			} else {
				defer closeFn()
			}

			srv := bellmcp.NewServer(a, logger)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: echobell MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
