package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lakecheck/lakecheck/pkg/rules"
	"github.com/lakecheck/lakecheck/pkg/sqlgen"
	"github.com/lakecheck/lakecheck/pkg/validator"
)

func newLLMValidateCmd(opts *globalOptions) *cobra.Command {
	var (
		tables       string
		dateColumn   string
		startDate    string
		endDate      string
		primaryKey   string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "llm-validate <request>",
		Short: "Generate and run a validation from a natural-language request",
		Long: `Generates comparison SQL for the request through the LLM pipeline and runs
it against Athena. Table names and a date window are auto-extracted from the
request text when the flags are omitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := strings.TrimSpace(args[0])
			if request == "" {
				return fmt.Errorf("the validation request must not be empty")
			}

			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			hints := extractHints(request)
			tableList := splitColumns(tables)
			if len(tableList) == 0 {
				tableList = hints.Tables
				if len(tableList) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Auto-detected tables: %s\n", strings.Join(tableList, ", "))
				}
			}
			if len(tableList) == 0 {
				return fmt.Errorf("no table names found: pass --tables or name them in the request")
			}

			if startDate == "" {
				startDate = hints.StartDate
			}
			if endDate == "" {
				endDate = hints.EndDate
			}
			if dateColumn == "" && (startDate != "" || endDate != "") {
				dateColumn = hints.DateColumn
			}
			filter := rules.DateFilter{Column: dateColumn, Start: startDate, End: endDate}

			// One table means no comparison partner: generate the SQL and
			// run the legacy side alone.
			if len(tableList) == 1 {
				return runSingleTable(cmd, app, request, tableList[0], filter)
			}
			if len(tableList) > 2 {
				fmt.Fprintln(cmd.OutOrStdout(), "More than two tables named, comparing the first two.")
			}

			job := validator.Job{
				LegacyTable:       tableList[0],
				ProdTable:         tableList[1],
				PrimaryKeyColumns: splitColumns(primaryKey),
				CustomRequests:    []string{request},
				SkipBasicRules:    true,
				Filter:            filter,
			}

			v, err := app.buildValidator(cmd.Context())
			if err != nil {
				return err
			}
			report, err := v.Validate(cmd.Context(), job)
			if err != nil {
				return err
			}
			return renderReport(cmd.OutOrStdout(), report, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&tables, "tables", "t", "", "table names, comma-separated (auto-extracted from the request when omitted)")
	cmd.Flags().StringVarP(&dateColumn, "date-column", "d", "", "date column for filtering")
	cmd.Flags().StringVarP(&startDate, "start-date", "s", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&endDate, "end-date", "e", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&primaryKey, "primary-key", "k", "", "primary key column(s) for context")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table or json)")
	return cmd
}

// runSingleTable generates SQL for a one-table request and executes the
// legacy statement, printing its rows.
func runSingleTable(cmd *cobra.Command, a *app, request, table string, filter rules.DateFilter) error {
	gen, _, err := a.generator()
	if err != nil {
		return err
	}
	executor, _, err := a.awsClients(cmd.Context())
	if err != nil {
		return err
	}

	res := gen.Generate(cmd.Context(), sqlgen.Request{
		LegacyTable:       table,
		ValidationRequest: request,
		DateColumn:        filter.Column,
		StartDate:         filter.Start,
		EndDate:           filter.End,
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Origin: %s\n", res.Origin)
	if res.Explanation != "" {
		fmt.Fprintf(out, "Explanation: %s\n", res.Explanation)
	}
	fmt.Fprintf(out, "SQL:\n%s\n\n", res.LegacySQL)

	rows, err := executor.Execute(cmd.Context(), res.LegacySQL)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return renderRows(out, rows)
}
