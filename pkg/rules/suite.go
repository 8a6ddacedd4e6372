package rules

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule type names accepted in suite files.
const (
	RuleTypeRowCount         = "row_count"
	RuleTypePrimaryKey       = "primary_key"
	RuleTypeNullValues       = "null_values"
	RuleTypeSchema           = "schema"
	RuleTypeColumnComparison = "column_comparison"
	RuleTypeCustom           = "custom"
)

// Suite is a YAML-declared validation run: the table pair, an optional date
// window, and the checks to perform.
type Suite struct {
	Tables struct {
		Legacy string `yaml:"legacy"`
		Prod   string `yaml:"prod"`
	} `yaml:"tables"`
	DateWindow struct {
		Column string `yaml:"column"`
		Start  string `yaml:"start"`
		End    string `yaml:"end"`
	} `yaml:"date_filter"`
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec selects one rule type plus its parameters.
type RuleSpec struct {
	Type       string   `yaml:"type"`
	Columns    []string `yaml:"columns"`
	MaxColumns int      `yaml:"max_columns"`
	Tolerance  float64  `yaml:"tolerance"`
	Request    string   `yaml:"request"`
}

// LoadSuite reads and checks a suite file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parse suite: %w", err)
	}
	if suite.Tables.Legacy == "" || suite.Tables.Prod == "" {
		return nil, errors.New("suite must name tables.legacy and tables.prod")
	}
	for i, spec := range suite.Rules {
		if spec.Type == "" {
			return nil, fmt.Errorf("rule %d has no type", i)
		}
		if spec.Type == RuleTypeCustom && spec.Request == "" {
			return nil, fmt.Errorf("rule %d: custom rules need a request", i)
		}
	}
	return &suite, nil
}

// Filter returns the suite's date window as a DateFilter.
func (s *Suite) Filter() DateFilter {
	return DateFilter{
		Column: s.DateWindow.Column,
		Start:  s.DateWindow.Start,
		End:    s.DateWindow.End,
	}
}

// Build turns a spec into an executable SQL rule. Schema and custom specs
// have no SQL rule form; callers run those through the catalog comparison
// and the generation pipeline respectively.
func (spec RuleSpec) Build(filter DateFilter) (Rule, error) {
	switch spec.Type {
	case RuleTypeRowCount:
		return RowCount{Filter: filter}, nil
	case RuleTypePrimaryKey:
		if len(spec.Columns) == 0 {
			return nil, fmt.Errorf("%s rule needs columns", spec.Type)
		}
		return PrimaryKeyCount{Columns: spec.Columns, Filter: filter}, nil
	case RuleTypeNullValues:
		if len(spec.Columns) == 0 {
			return nil, fmt.Errorf("%s rule needs columns", spec.Type)
		}
		return NullValue{Columns: spec.Columns, Filter: filter, Tolerance: spec.Tolerance}, nil
	case RuleTypeColumnComparison:
		return ColumnComparison{Columns: spec.Columns, MaxColumns: spec.MaxColumns, Filter: filter}, nil
	case RuleTypeSchema, RuleTypeCustom:
		return nil, fmt.Errorf("%s rules have no direct SQL form", spec.Type)
	default:
		return nil, fmt.Errorf("unknown rule type %q", spec.Type)
	}
}
