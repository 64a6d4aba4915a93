package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/rewrite"
)

// recordStep applies the package's swap rule once against the given
// working copies and returns the audit record for it, advancing the
// copies to the post-rewrite values.
func recordStep(t *testing.T, pkg *ir.Package, pkgID, runToken string, seq int64, diagram *ir.Diagram, state *ir.State) RewriteRecord {
	t.Helper()
	rule := pkg.RewriteRules[0]
	csi := pkg.FindCSI(state.CSIID)

	beforeFP, err := ir.DiagramFingerprint(diagram)
	require.NoError(t, err)

	matches, err := rewrite.FindMatches(diagram, rule, 0)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	site := matches[0]

	alloc := rewrite.NewIDAllocator(diagram)
	res, err := rewrite.Apply(diagram, *state, site, rule, alloc, pkg.Constraints, csi)
	require.NoError(t, err)
	require.True(t, res.Applied)

	afterFP, err := ir.DiagramFingerprint(&res.Diagram)
	require.NoError(t, err)
	stateFP, err := ir.StateFingerprint(&res.State)
	require.NoError(t, err)

	*diagram = res.Diagram
	*state = res.State

	return RewriteRecord{
		RunToken:  runToken,
		Seq:       seq,
		PackageID: pkgID,
		RuleID:    rule.ID,
		StateID:   state.ID,
		DiagramID: diagram.ID,
		RootID:    site.Root,
		Applied:   true,
		BeforeFP:  beforeFP,
		AfterFP:   afterFP,
		StateFP:   stateFP,
		RewriteFP: ir.RewriteFingerprint(rule.ID, site.Root, afterFP),
	}
}

func TestVerifyRun_EmptyLogVerifies(t *testing.T) {
	s := openTestStore(t)

	report, err := s.VerifyRun(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.True(t, report.Verified)
	assert.Zero(t, report.Steps)
}

func TestVerifyRun_ReplaysRecordedRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	pkg := testPackage(t)

	pkgID, err := s.SavePackage(ctx, pkg)
	require.NoError(t, err)

	// Apply the swap twice in sequence; the second step starts from the
	// first step's result, so replay must thread state forward.
	diagram := pkg.Diagrams[0].Clone()
	state := pkg.States[0].Clone()
	for seq := int64(1); seq <= 2; seq++ {
		rec := recordStep(t, pkg, pkgID, "run-ok", seq, &diagram, &state)
		_, _, err := s.AppendRewrite(ctx, rec)
		require.NoError(t, err)
	}

	report, err := s.VerifyRun(ctx, "run-ok")
	require.NoError(t, err)
	assert.True(t, report.Verified)
	assert.Equal(t, 2, report.Steps)
	assert.Empty(t, report.Reason)
}

func TestVerifyRun_TamperedFingerprintDiverges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	pkg := testPackage(t)

	pkgID, err := s.SavePackage(ctx, pkg)
	require.NoError(t, err)

	diagram := pkg.Diagrams[0].Clone()
	state := pkg.States[0].Clone()
	rec := recordStep(t, pkg, pkgID, "run-bad", 1, &diagram, &state)
	rec.AfterFP = "tampered"
	_, _, err = s.AppendRewrite(ctx, rec)
	require.NoError(t, err)

	report, err := s.VerifyRun(ctx, "run-bad")
	require.NoError(t, err)
	assert.False(t, report.Verified)
	assert.Equal(t, int64(1), report.DivergedSeq)
	assert.Contains(t, report.Reason, "tampered")
}

func TestVerifyRun_TamperedOutcomeDiverges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	pkg := testPackage(t)

	pkgID, err := s.SavePackage(ctx, pkg)
	require.NoError(t, err)

	diagram := pkg.Diagrams[0].Clone()
	state := pkg.States[0].Clone()
	rec := recordStep(t, pkg, pkgID, "run-bad", 1, &diagram, &state)
	rec.Applied = false
	rec.Tag = "precondition_failed"
	_, _, err = s.AppendRewrite(ctx, rec)
	require.NoError(t, err)

	report, err := s.VerifyRun(ctx, "run-bad")
	require.NoError(t, err)
	assert.False(t, report.Verified)
	assert.Equal(t, int64(1), report.DivergedSeq)
	assert.Contains(t, report.Reason, "outcome")
}
