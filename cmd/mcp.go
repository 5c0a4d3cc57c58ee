package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Zerofisher/megatable/internal/app"
	"github.com/Zerofisher/megatable/internal/config"
	"github.com/Zerofisher/megatable/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose search and detail lookups as MCP tools over stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout with two read-only tools:
search_records (paginated name and email search) and get_record (full record by id).

Logs go to stderr; stdout carries protocol messages only.`,
	GroupID: "query",
	Args:    cobra.NoArgs,
	RunE:    runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	settings, logger, err := setup(config.Settings{})
	if err != nil {
		return err
	}
	client, err := app.OpenStore(settings)
	if err != nil {
		return err
	}
	svc, err := app.NewQueryService(client, settings)
	if err != nil {
		return err
	}
	logger.Info("mcp server starting", "store", client.Endpoint())
	return mcpserver.ServeStdio(svc, Version)
}
