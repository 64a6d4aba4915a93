package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

func TestAnalyzeRuleCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeRuleCycles(nil))
}

func TestAnalyzeRuleCycles_DAG(t *testing.T) {
	rules := []ir.RewriteRule{
		{ID: "r1", PatternExpr: "C($a, $b)", ReplacementExpr: "P($a)"},
		{ID: "r2", PatternExpr: "P($a)", ReplacementExpr: "O($a)"},
	}
	assert.Empty(t, AnalyzeRuleCycles(rules))
}

func TestAnalyzeRuleCycles_SelfLoop(t *testing.T) {
	rules := []ir.RewriteRule{
		{ID: "swap", PatternExpr: "C($a, $b)", ReplacementExpr: "C($b, $a)"},
	}
	warnings := AnalyzeRuleCycles(rules)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"swap", "swap"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
}

func TestAnalyzeRuleCycles_MutualCycle(t *testing.T) {
	rules := []ir.RewriteRule{
		{ID: "r1", PatternExpr: "C($a, $b)", ReplacementExpr: "P($a)"},
		{ID: "r2", PatternExpr: "P($a)", ReplacementExpr: "C($a, $a)"},
	}
	warnings := AnalyzeRuleCycles(rules)
	require.Len(t, warnings, 1)
	assert.Len(t, warnings[0].Path, 3, "path returns to its start")
	assert.Contains(t, warnings[0].Message, "cycle")
}

func TestAnalyzeRuleCycles_BareAtomMatchesPresence(t *testing.T) {
	// A bare-atom replacement is P-sugar, so it can feed a P pattern.
	rules := []ir.RewriteRule{
		{ID: "r1", PatternExpr: "P($a)", ReplacementExpr: "x"},
	}
	warnings := AnalyzeRuleCycles(rules)
	require.Len(t, warnings, 1)
}

func TestAnalyzeRuleCycles_SkipsUnparsableRules(t *testing.T) {
	rules := []ir.RewriteRule{
		{ID: "broken", PatternExpr: "C($a", ReplacementExpr: "P($a)"},
		{ID: "fine", PatternExpr: "O($a)", ReplacementExpr: "P($a)"},
	}
	assert.Empty(t, AnalyzeRuleCycles(rules))
}
