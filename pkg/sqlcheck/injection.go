package sqlcheck

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionFinding describes an input value that matched a SQL injection
// pattern before interpolation into a query template.
type InjectionFinding struct {
	Fingerprint string // libinjection fingerprint of the detected pattern
	Input       string // name of the offending input
	Value       any    // the value that was checked
}

// CheckInput runs libinjection over a single template input, such as a table
// name or date bound supplied on the command line or by a tool call.
//
// Only string values are checked; numbers and booleans cannot carry injection
// payloads. Returns nil when the value is clean.
func CheckInput(name string, value any) *InjectionFinding {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if !isSQLi {
		return nil
	}

	return &InjectionFinding{
		Fingerprint: string(fingerprint),
		Input:       name,
		Value:       value,
	}
}

// CheckInputs validates every template input and returns a finding for each
// value that matched an injection pattern. Empty result means all inputs are
// safe to interpolate.
func CheckInputs(inputs map[string]any) []*InjectionFinding {
	var findings []*InjectionFinding
	for name, value := range inputs {
		if finding := CheckInput(name, value); finding != nil {
			findings = append(findings, finding)
		}
	}
	return findings
}
