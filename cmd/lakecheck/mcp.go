package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lakecheck/lakecheck/pkg/mcp"
)

func newMCPCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the SQL generation and cache tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			gen, store, err := app.generator()
			if err != nil {
				return err
			}

			srv := mcp.NewServer("lakecheck", version, app.logger)
			deps := &mcp.ToolDeps{
				Generator: gen,
				Logger:    app.logger,
			}
			if store != nil {
				deps.Cache = store
			}
			mcp.RegisterTools(srv, deps)
			return srv.ServeStdio(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
}
