package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/lakecheck/lakecheck/pkg/rules"
	"github.com/lakecheck/lakecheck/pkg/validator"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle  = lipgloss.NewStyle().Faint(true)
)

func statusStyle(status rules.Status) lipgloss.Style {
	switch status {
	case rules.StatusPass:
		return passStyle
	case rules.StatusFail:
		return failStyle
	case rules.StatusError:
		return errorStyle
	default:
		return infoStyle
	}
}

// renderReport writes a validation report in the requested format.
func renderReport(w io.Writer, report *validator.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "", "table":
		return renderReportTable(w, report)
	default:
		return fmt.Errorf("unknown output format %q (want table or json)", format)
	}
}

func renderReportTable(w io.Writer, report *validator.Report) error {
	title := fmt.Sprintf("%s vs %s", report.LegacyTable, report.ProdTable)
	if report.ProdTable == "" {
		title = report.LegacyTable
	}
	fmt.Fprintln(w, headerStyle.Render(title))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("run %s, %.1fs", report.RunID, report.ExecutionTime)))
	fmt.Fprintln(w)

	// Styled text stays out of the tab cells: tabwriter counts ANSI escape
	// bytes as width and misaligns colored columns.
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tLEGACY\tPROD\tMESSAGE")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.RuleName,
			strings.ToUpper(string(r.Status)),
			truncate(r.LegacyValue, 30),
			truncate(r.ProdValue, 30),
			truncate(r.Message, 70))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s passed, %s failed, %s errors (of %d checks)\n",
		passStyle.Render(fmt.Sprint(report.PassedChecks)),
		failStyle.Render(fmt.Sprint(report.FailedChecks)),
		errorStyle.Render(fmt.Sprint(report.ErrorChecks)),
		report.TotalChecks)
	if report.Summary != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, report.Summary)
	}

	for _, r := range report.Results {
		if r.ErrorDetails != "" {
			fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s: %s", r.RuleName, truncate(r.ErrorDetails, 200))))
		}
	}
	return nil
}

// renderResult writes one check outcome.
func renderResult(w io.Writer, result rules.Result, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(w, "%s: %s\n", result.RuleName,
		statusStyle(result.Status).Render(strings.ToUpper(string(result.Status))))
	fmt.Fprintln(w, result.Message)
	if result.LegacyValue != "" || result.ProdValue != "" {
		fmt.Fprintf(w, "legacy: %s\nprod:   %s\n", result.LegacyValue, result.ProdValue)
	}
	if result.ErrorDetails != "" {
		fmt.Fprintln(w, mutedStyle.Render(result.ErrorDetails))
	}
	return nil
}

// renderRows prints query rows with a stable column order.
func renderRows(w io.Writer, rows []map[string]string) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No rows returned.")
		return nil
	}

	columns := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(columns, "\t")))
	for _, row := range rows {
		values := make([]string, len(columns))
		for i, name := range columns {
			values[i] = row[name]
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d row(s)\n", len(rows))
	return nil
}
