package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, RuleID: "swap", Root: "n3", Applied: true},
		{Seq: 2, RuleID: "wrap", Root: "n4", Applied: false, Tag: "precondition_failed"},
		{Seq: 3, RuleID: "swap", Root: "n4", Applied: true},
		{Seq: 4, RuleID: "merge", Root: "n5", Applied: true},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Rule: "swap"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Rule: "swap", Root: "n4"}))

	err := assertTraceContains(trace, Assertion{Rule: "swap", Root: "n9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in trace")

	// Rejected attempts do not count as firings.
	err = assertTraceContains(trace, Assertion{Rule: "wrap"})
	require.Error(t, err)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Rules: []string{"swap", "merge"}}))

	err := assertTraceOrder(trace, Assertion{Rules: []string{"merge", "swap"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Rules: []string{"swap", "ghost"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never applied")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Rule: "swap", Count: 2}))
	// An empty rule counts every applied rewrite.
	assert.NoError(t, assertTraceCount(trace, Assertion{Count: 3}))

	err := assertTraceCount(trace, Assertion{Rule: "swap", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "applications of swap")
}

func TestAssertFinalVerdict(t *testing.T) {
	stable := true
	unstable := false
	result := &Result{Stable: true, Verdicts: []string{"loop_converged"}}

	assert.NoError(t, assertFinalVerdict(result, Assertion{Stable: &stable}))
	assert.NoError(t, assertFinalVerdict(result, Assertion{Verdict: "loop_converged"}))

	err := assertFinalVerdict(result, Assertion{Stable: &unstable})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stable=false")

	err = assertFinalVerdict(result, Assertion{Verdict: "no_rewrites"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `verdict "no_rewrites" present`)
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{Rule: "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected (precondition_failed)")
	assert.Contains(t, err.Error(), "[1] swap at n3: applied")
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{
		Stable:   true,
		Verdicts: []string{"loop_converged"},
		Trace:    sampleTrace(),
	}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Rule: "swap"},
		{Type: AssertTraceCount, Rule: "merge", Count: 1},
		{Type: AssertFinalVerdict, Verdict: "loop_converged"},
	})
	assert.Empty(t, errs)

	errs = EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Rule: "ghost"},
		{Type: "bogus"},
	})
	assert.Len(t, errs, 2)
}
