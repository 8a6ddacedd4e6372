package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lakecheck/lakecheck/pkg/schema"
)

// SchemaRuleName identifies the catalog comparison in reports.
const SchemaRuleName = "Data Type Validation"

// typeAliases maps equivalent type spellings across Hive and Iceberg
// catalog entries.
var typeAliases = map[string]string{
	"varchar":          "string",
	"char":             "string",
	"text":             "string",
	"integer":          "int",
	"double precision": "double",
	"real":             "float",
	"bool":             "boolean",
}

// NormalizeType lowers a Glue type and strips precision so equivalent
// declarations compare equal, e.g. varchar(255) and string.
func NormalizeType(dataType string) string {
	t := strings.ToLower(strings.TrimSpace(dataType))
	if idx := strings.Index(t, "("); idx >= 0 {
		t = strings.TrimSpace(t[:idx])
	}
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}

// CompareSchemas reports column and type drift between two catalog
// snapshots. Snapshots come from Glue rather than information_schema so
// Iceberg tables work too. Drift is informational; it never fails the run
// on its own.
func CompareSchemas(legacy, prod schema.Table) Result {
	legacyTypes := columnTypes(legacy.Columns)
	prodTypes := columnTypes(prod.Columns)

	var warnings []string
	if legacy.Type != prod.Type {
		warnings = append(warnings, fmt.Sprintf("Table types differ: Legacy=%s, Prod=%s",
			legacy.Type, prod.Type))
	}

	var issues []string
	missingProd := missingFrom(legacyTypes, prodTypes)
	missingLegacy := missingFrom(prodTypes, legacyTypes)
	if len(missingProd) > 0 {
		issues = append(issues, fmt.Sprintf("Columns missing in prod (%d): %s",
			len(missingProd), sampleList(missingProd, 5, ", ")))
	}
	if len(missingLegacy) > 0 {
		issues = append(issues, fmt.Sprintf("Columns missing in legacy (%d): %s",
			len(missingLegacy), sampleList(missingLegacy, 5, ", ")))
	}

	var mismatches []string
	common := 0
	for _, col := range sortedKeys(legacyTypes) {
		prodType, ok := prodTypes[col]
		if !ok {
			continue
		}
		common++
		if NormalizeType(legacyTypes[col]) != NormalizeType(prodType) {
			mismatches = append(mismatches, fmt.Sprintf("%s: %s -> %s", col, legacyTypes[col], prodType))
		}
	}
	if len(mismatches) > 0 {
		issues = append(issues, fmt.Sprintf("Type mismatches (%d): %s",
			len(mismatches), sampleList(mismatches, 3, "; ")))
	}

	summary := []string{
		fmt.Sprintf("Legacy: %s (%d cols)", legacy.Type, len(legacyTypes)),
		fmt.Sprintf("Prod: %s (%d cols)", prod.Type, len(prodTypes)),
		fmt.Sprintf("Common: %d cols", common),
	}
	summary = append(summary, warnings...)

	message := "Schema comparison: " + strings.Join(summary, "; ")
	if len(issues) > 0 {
		message = strings.Join(append(summary, issues...), "; ")
	}

	difference := int64(len(legacyTypes) - len(prodTypes))
	if difference < 0 {
		difference = -difference
	}

	return Result{
		RuleName:    SchemaRuleName,
		Status:      StatusInfo,
		LegacyValue: fmt.Sprintf("%s (%d cols)", legacy.Type, len(legacyTypes)),
		ProdValue:   fmt.Sprintf("%s (%d cols)", prod.Type, len(prodTypes)),
		Difference:  difference,
		Message:     message,
	}
}

func columnTypes(columns []schema.Column) map[string]string {
	types := make(map[string]string, len(columns))
	for _, col := range columns {
		types[col.Name] = col.Type
	}
	return types
}

func missingFrom(have, other map[string]string) []string {
	var missing []string
	for name := range have {
		if _, ok := other[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sampleList(values []string, n int, sep string) string {
	if len(values) <= n {
		return strings.Join(values, sep)
	}
	return strings.Join(values[:n], sep) + "..."
}
