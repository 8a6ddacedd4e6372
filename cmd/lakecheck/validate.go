package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lakecheck/lakecheck/pkg/rules"
	"github.com/lakecheck/lakecheck/pkg/validator"
)

func newValidateCmd(opts *globalOptions) *cobra.Command {
	var (
		legacyTable    string
		prodTable      string
		primaryKey     string
		nullColumns    string
		dateColumn     string
		startDate      string
		endDate        string
		suitePath      string
		includeSchema  bool
		compareColumns bool
		outputFormat   string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run comparison checks against a legacy/prod table pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			job := validator.Job{
				LegacyTable:       legacyTable,
				ProdTable:         prodTable,
				PrimaryKeyColumns: splitColumns(primaryKey),
				NullCheckColumns:  splitColumns(nullColumns),
				IncludeSchema:     includeSchema,
				NullTolerance:     app.cfg.Validation.NullTolerancePercent,
				Filter: rules.DateFilter{
					Column: dateColumn,
					Start:  startDate,
					End:    endDate,
				},
			}
			if compareColumns {
				job.ExtraRules = append(job.ExtraRules, rules.ColumnComparison{Filter: job.Filter})
			}

			if suitePath != "" {
				if err := applySuite(&job, suitePath); err != nil {
					return err
				}
			}
			if job.LegacyTable == "" || job.ProdTable == "" {
				return fmt.Errorf("both --legacy-table and --prod-table are required (or a suite naming them)")
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

	cmd.Flags().StringVarP(&legacyTable, "legacy-table", "l", "", "legacy table name (e.g. ecomm_mart.fact_bill_line)")
	cmd.Flags().StringVarP(&prodTable, "prod-table", "p", "", "production table name")
	cmd.Flags().StringVarP(&primaryKey, "primary-key", "k", "", "primary key column(s), comma-separated for composite keys")
	cmd.Flags().StringVar(&nullColumns, "null-columns", "", "columns to null-rate check, comma-separated")
	cmd.Flags().StringVarP(&dateColumn, "date-column", "d", "", "date column for filtering")
	cmd.Flags().StringVarP(&startDate, "start-date", "s", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&endDate, "end-date", "e", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&suitePath, "suite", "", "YAML suite file declaring tables and rules")
	cmd.Flags().BoolVar(&includeSchema, "schema", true, "include the Glue data-type comparison")
	cmd.Flags().BoolVar(&compareColumns, "compare-columns", false, "add the lake-schema column comparison")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table or json)")
	return cmd
}

// newValidateSingleCmd runs exactly one named rule for a table pair.
func newValidateSingleCmd(opts *globalOptions) *cobra.Command {
	var (
		legacyTable  string
		prodTable    string
		ruleType     string
		columns      string
		dateColumn   string
		startDate    string
		endDate      string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "validate-single",
		Short: "Run one comparison rule against a table pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			filter := rules.DateFilter{Column: dateColumn, Start: startDate, End: endDate}
			job := validator.Job{
				LegacyTable:    legacyTable,
				ProdTable:      prodTable,
				Filter:         filter,
				SkipBasicRules: true,
			}

			if ruleType == rules.RuleTypeSchema {
				job.IncludeSchema = true
			} else {
				spec := rules.RuleSpec{Type: ruleType, Columns: splitColumns(columns)}
				rule, err := spec.Build(filter)
				if err != nil {
					return err
				}
				job.ExtraRules = []rules.Rule{rule}
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

	cmd.Flags().StringVarP(&legacyTable, "legacy-table", "l", "", "legacy table name")
	cmd.Flags().StringVarP(&prodTable, "prod-table", "p", "", "production table name")
	cmd.Flags().StringVarP(&ruleType, "rule", "r", rules.RuleTypeRowCount, "rule to run (row_count, primary_key, null_values, schema, column_comparison)")
	cmd.Flags().StringVar(&columns, "columns", "", "columns for the rule, comma-separated")
	cmd.Flags().StringVarP(&dateColumn, "date-column", "d", "", "date column for filtering")
	cmd.Flags().StringVarP(&startDate, "start-date", "s", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&endDate, "end-date", "e", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table or json)")
	_ = cmd.MarkFlagRequired("legacy-table")
	_ = cmd.MarkFlagRequired("prod-table")
	return cmd
}

// applySuite folds a suite file into the job. Flags that were set win over
// the suite's table pair so one suite can be pointed at other tables.
func applySuite(job *validator.Job, path string) error {
	suite, err := rules.LoadSuite(path)
	if err != nil {
		return err
	}

	if job.LegacyTable == "" {
		job.LegacyTable = suite.Tables.Legacy
	}
	if job.ProdTable == "" {
		job.ProdTable = suite.Tables.Prod
	}
	if job.Filter.Empty() {
		job.Filter = suite.Filter()
	}

	for _, spec := range suite.Rules {
		switch spec.Type {
		case rules.RuleTypeSchema:
			job.IncludeSchema = true
		case rules.RuleTypeCustom:
			job.CustomRequests = append(job.CustomRequests, spec.Request)
		default:
			rule, err := spec.Build(job.Filter)
			if err != nil {
				return fmt.Errorf("suite %s: %w", path, err)
			}
			job.ExtraRules = append(job.ExtraRules, rule)
		}
	}
	return nil
}

func splitColumns(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
