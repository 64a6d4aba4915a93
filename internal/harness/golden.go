package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// TraceSnapshot captures a scenario execution for golden comparison.
// Fingerprints are deliberately left out: they are covered by replay
// verification, and the snapshot keeps only the fields a reviewer can
// read and diff.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunToken     string       `json:"run_token"`
	Stable       bool         `json:"stable"`
	Verdicts     []string     `json:"verdicts"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalValue converts the snapshot into the ir value model so it
// can be serialized through canonical JSON.
func (s *TraceSnapshot) toCanonicalValue() ir.Obj {
	traceList := make(ir.Arr, len(s.Trace))
	for i, event := range s.Trace {
		entry := ir.Obj{
			"seq":     ir.Int(event.Seq),
			"rule_id": ir.Str(event.RuleID),
			"root":    ir.Str(event.Root),
			"applied": ir.Bool(event.Applied),
		}
		if event.Tag != "" {
			entry["tag"] = ir.Str(event.Tag)
		}
		traceList[i] = entry
	}

	verdicts := make(ir.Arr, len(s.Verdicts))
	for i, v := range s.Verdicts {
		verdicts[i] = ir.Str(v)
	}

	return ir.Obj{
		"scenario_name": ir.Str(s.ScenarioName),
		"run_token":     ir.Str(s.RunToken),
		"stable":        ir.Bool(s.Stable),
		"verdicts":      verdicts,
		"trace":         traceList,
	}
}

// RunWithGolden executes a scenario and compares the trace against a
// golden file. The golden file lives in testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Assertion failure (via
// goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares a result's trace against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		RunToken:     result.RunToken,
		Stable:       result.Stable,
		Verdicts:     result.Verdicts,
		Trace:        result.Trace,
	}

	traceJSON, err := ir.MarshalCanonical(snapshot.toCanonicalValue())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
