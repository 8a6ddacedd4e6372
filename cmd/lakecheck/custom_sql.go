package main

import (
	"github.com/spf13/cobra"

	"github.com/lakecheck/lakecheck/pkg/validator"
)

func newCustomSQLCmd(opts *globalOptions) *cobra.Command {
	var (
		legacySQL    string
		prodSQL      string
		name         string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "custom-sql",
		Short: "Run a caller-supplied SQL pair and compare the result sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			executor, _, err := app.awsClients(cmd.Context())
			if err != nil {
				return err
			}

			v := validator.New(executor, app.logger)
			result := v.ValidateCustomSQL(cmd.Context(), legacySQL, prodSQL, name)
			return renderResult(cmd.OutOrStdout(), result, outputFormat)
		},
	}

	cmd.Flags().StringVar(&legacySQL, "legacy-sql", "", "SQL to run against the legacy table")
	cmd.Flags().StringVar(&prodSQL, "prod-sql", "", "SQL to run against the production table")
	cmd.Flags().StringVarP(&name, "name", "n", "Custom SQL Validation", "name for this validation")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table or json)")
	_ = cmd.MarkFlagRequired("legacy-sql")
	return cmd
}
