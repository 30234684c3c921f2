package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/deskquery/internal/ir"
)

// Snapshot renders the parts of a result pinned by golden files: the
// scenario name, the parse outcome, the query description and the event
// trace.
func Snapshot(scenarioName string, result *Result) ir.Object {
	return ir.Object{
		"scenario":    ir.String(scenarioName),
		"full":        ir.Bool(result.Full),
		"description": ir.String(result.Description),
		"skipped":     ir.Strings(result.Skipped),
		"trace":       result.Trace(),
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := ir.MarshalCanonical(Snapshot(scenarioName, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
