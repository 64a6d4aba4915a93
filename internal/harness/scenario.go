package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios drive a state/diagram pair to a fixed point and assert on
// the resulting rewrite trace and stability verdicts.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are keyed
	// by this name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Package is the path to the CUE package directory to compile.
	// Relative paths resolve against the scenario file location.
	Package string `yaml:"package"`

	// State and Diagram name the pair to run, by id within the package.
	State   string `yaml:"state"`
	Diagram string `yaml:"diagram"`

	// RunToken is an optional fixed run token for deterministic tests.
	// If empty, DefaultRunToken is used so golden files stay stable.
	RunToken string `yaml:"run_token,omitempty"`

	// MaxSteps bounds the applied rewrites for the run. Zero means the
	// engine default.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Tolerance overrides the loop-convergence tolerance. Zero means
	// the analyzer default.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Assertions validate the final trace and verdicts.
	// Supported types: trace_contains, trace_order, trace_count, final_verdict
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the rewrite trace or the final stability report.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check the rule fired (applied) in the trace
	// - "trace_order": Check rules fired in the given order
	// - "trace_count": Check a rule fired exactly N times
	// - "final_verdict": Check the stability outcome
	Type string `yaml:"type"`

	// Rule is the rewrite rule id (used by trace_contains, trace_count).
	Rule string `yaml:"rule,omitempty"`

	// Root is the expected match site (optional, used by trace_contains).
	Root string `yaml:"root,omitempty"`

	// Count is the expected number of applied rewrites (used by
	// trace_count). With an empty Rule it counts every applied rewrite.
	Count int `yaml:"count,omitempty"`

	// Rules is the expected firing order (used by trace_order).
	Rules []string `yaml:"rules,omitempty"`

	// Verdict is a termination condition that must be present in the
	// final report (used by final_verdict).
	Verdict string `yaml:"verdict,omitempty"`

	// Stable is the expected overall stability (used by final_verdict).
	// Nil leaves it unchecked.
	Stable *bool `yaml:"stable,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalVerdict  = "final_verdict"
)

// DefaultRunToken is used when a scenario does not fix its own token.
const DefaultRunToken = "test-run-default"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the package directory relative to the provided base path.
// This is useful when scenario files reference packages using relative
// paths.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the package path before validation so the existence check
	// sees the final path.
	if scenario.Package != "" && !filepath.IsAbs(scenario.Package) && basePath != "" {
		scenario.Package = filepath.Join(basePath, scenario.Package)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Package == "" {
		return fmt.Errorf("package is required")
	}

	if s.State == "" {
		return fmt.Errorf("state is required")
	}

	if s.Diagram == "" {
		return fmt.Errorf("diagram is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	if s.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative")
	}

	info, err := os.Stat(s.Package)
	if os.IsNotExist(err) {
		return fmt.Errorf("package directory not found: %s", s.Package)
	}
	if err == nil && !info.IsDir() {
		return fmt.Errorf("package path is not a directory: %s", s.Package)
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Rules) == 0 {
			return fmt.Errorf("assertions[%d]: rules list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalVerdict:
		if a.Verdict == "" && a.Stable == nil {
			return fmt.Errorf("assertions[%d]: verdict or stable is required for final_verdict", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
