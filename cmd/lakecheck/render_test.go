package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakecheck/lakecheck/pkg/rules"
	"github.com/lakecheck/lakecheck/pkg/validator"
)

func sampleReport() *validator.Report {
	return &validator.Report{
		RunID:       "run-1",
		LegacyTable: "ecomm_mart.fact_bill_line",
		ProdTable:   "enterprise.fact_bill_line",
		Results: []rules.Result{
			{RuleName: "Row Count Validation", Status: rules.StatusPass, LegacyValue: "100", ProdValue: "100", Message: "Row counts match"},
			{RuleName: "Null Value Validation", Status: rules.StatusFail, Message: "Null rates differ", ErrorDetails: ""},
		},
		ExecutionTime: 1.5,
		Summary:       "1 passed, 1 failed",
		TotalChecks:   2,
		PassedChecks:  1,
		FailedChecks:  1,
	}
}

func TestRenderReport_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderReport(&buf, sampleReport(), "table"))

	out := buf.String()
	assert.Contains(t, out, "ecomm_mart.fact_bill_line vs enterprise.fact_bill_line")
	assert.Contains(t, out, "Row Count Validation")
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "1 passed, 1 failed")
}

func TestRenderReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderReport(&buf, sampleReport(), "json"))

	var decoded validator.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Len(t, decoded.Results, 2)
}

func TestRenderReport_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := renderReport(&buf, sampleReport(), "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRenderResult(t *testing.T) {
	var buf bytes.Buffer
	result := rules.Result{
		RuleName:     "Custom SQL Validation",
		Status:       rules.StatusError,
		Message:      "Custom SQL execution error",
		ErrorDetails: "mismatched input 'FORM'",
	}
	require.NoError(t, renderResult(&buf, result, "table"))

	out := buf.String()
	assert.Contains(t, out, "Custom SQL Validation")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "mismatched input")
}

func TestRenderRows(t *testing.T) {
	var buf bytes.Buffer
	rows := []map[string]string{
		{"row_count": "42", "table_name": "legacy"},
	}
	require.NoError(t, renderRows(&buf, rows))

	out := buf.String()
	assert.Contains(t, out, "ROW_COUNT")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "1 row(s)")
}

func TestRenderRows_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderRows(&buf, nil))
	assert.Contains(t, buf.String(), "No rows returned")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
	assert.Equal(t, "a long ...", truncate("a long string here", 10))
}
