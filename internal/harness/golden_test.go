package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

func TestRunWithGolden_SwapScenario(t *testing.T) {
	scenario := loadTestdataScenario(t)
	require.NoError(t, RunWithGolden(t, scenario))
}

func TestTraceSnapshot_CanonicalBytes(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "s",
		RunToken:     "tok",
		Stable:       true,
		Verdicts:     []string{"no_rewrites"},
		Trace: []TraceEvent{
			{Seq: 1, RuleID: "r", Root: "n1", Applied: false, Tag: "precondition_failed"},
		},
	}

	b, err := ir.MarshalCanonical(snapshot.toCanonicalValue())
	require.NoError(t, err)
	assert.Equal(t,
		`{"run_token":"tok","scenario_name":"s","stable":true,"trace":[{"applied":false,"root":"n1","rule_id":"r","seq":1,"tag":"precondition_failed"}],"verdicts":["no_rewrites"]}`,
		string(b))
}

func TestTraceSnapshot_OmitsEmptyTag(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "s",
		RunToken:     "tok",
		Trace:        []TraceEvent{{Seq: 1, RuleID: "r", Root: "n1", Applied: true}},
	}

	b, err := ir.MarshalCanonical(snapshot.toCanonicalValue())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "tag")
}
