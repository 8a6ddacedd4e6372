package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSchemaCmd(opts *globalOptions) *cobra.Command {
	var showDDL bool

	cmd := &cobra.Command{
		Use:   "schema <table>",
		Short: "Show a table's columns from the Glue catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]

			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			_, catalog, err := app.awsClients(cmd.Context())
			if err != nil {
				return err
			}

			columns, err := catalog.TableSchema(cmd.Context(), table)
			if err != nil {
				return fmt.Errorf("fetch schema for %s: %w", table, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d columns)\n\n", table, len(columns))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COLUMN\tTYPE\tCOMMENT")
			for _, col := range columns {
				fmt.Fprintf(w, "%s\t%s\t%s\n", col.Name, col.Type, col.Comment)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if showDDL {
				ddl := app.ddlFetcher()
				if ddl == nil {
					fmt.Fprintln(out, "\nGitHub DDL lookup is not configured (set GITHUB_OWNER, GITHUB_REPO, GITHUB_SCHEMA_ENABLED=true).")
					return nil
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, ddl.EnhancedContext(cmd.Context(), table, columns))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showDDL, "ddl", false, "also look up the lake DDL definition on GitHub")
	return cmd
}
