package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace so the failure can be debugged from the
// message alone.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		outcome := "applied"
		if !event.Applied {
			outcome = "rejected (" + event.Tag + ")"
		}
		fmt.Fprintf(&buf, "  [%d] %s at %s: %s\n", event.Seq, event.RuleID, event.Root, outcome)
	}

	return buf.String()
}

// assertTraceContains checks that the rule fired (applied) at least
// once, optionally at a specific root.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if !event.Applied || event.RuleID != assertion.Rule {
			continue
		}
		if assertion.Root == "" || event.Root == assertion.Root {
			return nil
		}
	}

	expected := fmt.Sprintf("rule %s applied", assertion.Rule)
	if assertion.Root != "" {
		expected += fmt.Sprintf(" at %s", assertion.Root)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that rules fired in the specified order.
// Firings don't need to be consecutive; intervening rewrites are
// allowed. Order compares the first applied occurrence of each rule.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if !event.Applied {
			continue
		}
		if _, seen := positions[event.RuleID]; !seen {
			positions[event.RuleID] = i + 1 // 1-indexed for readability
		}
	}

	for _, rule := range assertion.Rules {
		if positions[rule] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all rules applied: %v", assertion.Rules),
				Actual:   fmt.Sprintf("rule never applied: %s", rule),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Rules); i++ {
		prev := assertion.Rules[i-1]
		curr := assertion.Rules[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("rules in order: %v", assertion.Rules),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that the rule applied exactly the specified
// number of times. With an empty rule it counts every applied rewrite.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if !event.Applied {
			continue
		}
		if assertion.Rule == "" || event.RuleID == assertion.Rule {
			count++
		}
	}

	if count != assertion.Count {
		subject := "applied rewrites"
		if assertion.Rule != "" {
			subject = fmt.Sprintf("applications of %s", assertion.Rule)
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s", assertion.Count, subject),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalVerdict checks the stability outcome: overall stability
// when Stable is set, and the presence of a named termination
// condition when Verdict is set.
func assertFinalVerdict(result *Result, assertion Assertion) error {
	if assertion.Stable != nil && result.Stable != *assertion.Stable {
		return &AssertionError{
			Type:     AssertFinalVerdict,
			Expected: fmt.Sprintf("stable=%v", *assertion.Stable),
			Actual:   fmt.Sprintf("stable=%v", result.Stable),
			Trace:    result.Trace,
		}
	}

	if assertion.Verdict != "" {
		for _, v := range result.Verdicts {
			if v == assertion.Verdict {
				return nil
			}
		}
		return &AssertionError{
			Type:     AssertFinalVerdict,
			Expected: fmt.Sprintf("verdict %q present", assertion.Verdict),
			Actual:   fmt.Sprintf("verdicts %v", result.Verdicts),
			Trace:    result.Trace,
		}
	}

	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalVerdict:
			err = assertFinalVerdict(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
