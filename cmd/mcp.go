package cmd

import (
	"github.com/agentic-research/skilltree/internal/mcptools"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newMCPCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run an MCP server on stdio exposing the skill tree as tools",
		Long: `Run a Model Context Protocol server on stdin/stdout. The tree is loaded
lazily by the load_tree tool; logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer e.Close()

			tools := mcptools.New(mcptools.Options{
				Store:         e.store,
				Fetcher:       e.fetcher,
				DefaultSource: e.cfg.Source,
				Sources:       e.cfg.SourceAllowList(),
				Logger:        e.logger,
			})
			return server.ServeStdio(tools.Server(version))
		},
	}
}
