package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHints_QualifiedTablesAndRange(t *testing.T) {
	hints := extractHints("check shopper_id mismatch between enterprise_linked.dim_bill_shopper_id_xref and enterprise.dim_bill_shopper_id_xref_lookalike from 2025-07-19 to 2025-07-24")

	require.GreaterOrEqual(t, len(hints.Tables), 2)
	assert.Equal(t, "enterprise_linked.dim_bill_shopper_id_xref", hints.Tables[0])
	assert.Equal(t, "enterprise.dim_bill_shopper_id_xref_lookalike", hints.Tables[1])
	assert.Equal(t, "2025-07-19", hints.StartDate)
	assert.Equal(t, "2025-07-24", hints.EndDate)
}

func TestExtractHints_BareWarehouseNames(t *testing.T) {
	hints := extractHints("compare fact_bill_line and fact_order tables for data quality issues between 2025-01-01 and 2025-01-31")

	assert.Contains(t, hints.Tables, "fact_bill_line")
	assert.Contains(t, hints.Tables, "fact_order")
	assert.NotContains(t, hints.Tables, "tables")
	assert.Equal(t, "2025-01-01", hints.StartDate)
	assert.Equal(t, "2025-01-31", hints.EndDate)
}

func TestExtractHints_OpenEndedWindow(t *testing.T) {
	hints := extractHints("find missing records in dim_customer after 2025-06-01")

	assert.Contains(t, hints.Tables, "dim_customer")
	assert.Equal(t, "2025-06-01", hints.StartDate)
	assert.Empty(t, hints.EndDate)
}

func TestExtractHints_DateColumn(t *testing.T) {
	hints := extractHints("compare row counts on bill_modified_mst_date for fact_bill_line")

	assert.Equal(t, "bill_modified_mst_date", hints.DateColumn)
}

func TestExtractHints_NothingFound(t *testing.T) {
	hints := extractHints("compare row counts")

	assert.Empty(t, hints.Tables)
	assert.Empty(t, hints.StartDate)
	assert.Empty(t, hints.EndDate)
	assert.Empty(t, hints.DateColumn)
}

func TestSplitColumns(t *testing.T) {
	assert.Nil(t, splitColumns(""))
	assert.Nil(t, splitColumns("  "))
	assert.Equal(t, []string{"bill_id", "line_id"}, splitColumns("bill_id, line_id"))
	assert.Equal(t, []string{"a"}, splitColumns("a,,"))
}
