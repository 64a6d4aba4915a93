package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popslovesmusic/airs-sub008/internal/compiler"
	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/queryir"
)

func testPackage(t *testing.T) *ir.Package {
	t.Helper()
	d, err := compiler.TranslateSource("C(P(X), P(Y))", "d1", "c0")
	require.NoError(t, err)

	return &ir.Package{
		DOFs: []ir.DOF{
			{ID: "X", OrthogonalGroup: "position"},
			{ID: "Y", OrthogonalGroup: "position"},
		},
		Compartments: []ir.Compartment{{ID: "c0", Index: 0}},
		CSIs:         []ir.CSI{{ID: "main", AllowedDOFs: []string{"X", "Y"}}},
		Diagrams:     []ir.Diagram{d},
		States: []ir.State{
			{ID: "s1", DiagramID: "d1", CSIID: "main", CompartmentID: "c0"},
		},
		RewriteRules: []ir.RewriteRule{
			{ID: "swap", PatternExpr: "C($a, $b)", ReplacementExpr: "C($b, $a)"},
		},
	}
}

func testRecord(runToken string, seq int64, pkgID string) RewriteRecord {
	return RewriteRecord{
		RunToken:  runToken,
		Seq:       seq,
		PackageID: pkgID,
		RuleID:    "swap",
		StateID:   "s1",
		DiagramID: "d1",
		RootID:    "n3",
		Applied:   true,
		BeforeFP:  "fp-before",
		AfterFP:   "fp-after",
		StateFP:   "fp-state",
		RewriteFP: "fp-rewrite",
	}
}

func TestSavePackage_ContentAddressed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	pkg := testPackage(t)

	id1, err := s.SavePackage(ctx, pkg)
	require.NoError(t, err)
	id2, err := s.SavePackage(ctx, pkg)
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "same content, same id")

	loaded, err := s.LoadPackage(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, pkg.Diagrams[0].ID, loaded.Diagrams[0].ID)
	assert.Len(t, loaded.Diagrams[0].Nodes, 3)

	ids, err := s.ListPackages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id1}, ids)
}

func TestLoadPackage_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadPackage(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendRewrite_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pkgID, err := s.SavePackage(ctx, testPackage(t))
	require.NoError(t, err)

	rec := testRecord("run-1", 1, pkgID)
	id1, inserted, err := s.AppendRewrite(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same (run_token, seq) again: silently deduplicated.
	rec.Tag = "changed"
	id2, inserted, err := s.AppendRewrite(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id1, id2)

	records, err := s.RewritesForRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "", records[0].Tag, "the first write wins")
}

func TestRewritesForRun_ReplayOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pkgID, err := s.SavePackage(ctx, testPackage(t))
	require.NoError(t, err)

	// Append out of order; reads come back by seq.
	for _, seq := range []int64{3, 1, 2} {
		_, _, err := s.AppendRewrite(ctx, testRecord("run-1", seq, pkgID))
		require.NoError(t, err)
	}
	_, _, err = s.AppendRewrite(ctx, testRecord("run-2", 1, pkgID))
	require.NoError(t, err)

	records, err := s.RewritesForRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(1), records[0].Seq)
	assert.Equal(t, int64(2), records[1].Seq)
	assert.Equal(t, int64(3), records[2].Seq)

	tokens, err := s.RunTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-2"}, tokens)
}

func TestQueryRewrites_Filtered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pkgID, err := s.SavePackage(ctx, testPackage(t))
	require.NoError(t, err)

	applied := testRecord("run-1", 1, pkgID)
	rejected := testRecord("run-1", 2, pkgID)
	rejected.Applied = false
	rejected.Tag = "would_introduce_cycle"
	for _, rec := range []RewriteRecord{applied, rejected} {
		_, _, err := s.AppendRewrite(ctx, rec)
		require.NoError(t, err)
	}

	records, err := s.QueryRewrites(ctx, queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Field: "run_token", Value: ir.Str("run-1")},
		queryir.Equals{Field: "applied", Value: ir.Bool(false)},
	}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "would_introduce_cycle", records[0].Tag)

	_, err = s.QueryRewrites(ctx, queryir.Equals{Field: "bogus", Value: ir.Str("x")})
	assert.Error(t, err)
}

func TestTelemetry_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := TelemetryRecord{
		RunToken:          "run-1",
		Seq:               1,
		LoopGain:          0.1,
		AdmissibleVolume:  10,
		UndecidedVolume:   990,
		CollapseRatio:     0.01,
		ConservationError: 0,
		TransportReady:    true,
	}
	require.NoError(t, s.AppendTelemetry(ctx, rec))
	require.NoError(t, s.AppendTelemetry(ctx, rec), "duplicate append is a no-op")

	records, err := s.TelemetryForRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 0.1, records[0].LoopGain, 1e-12)
	assert.True(t, records[0].TransportReady)
}

func TestLastSeq(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pkgID, err := s.SavePackage(ctx, testPackage(t))
	require.NoError(t, err)

	seq, err := s.LastSeq(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	_, _, err = s.AppendRewrite(ctx, testRecord("run-1", 4, pkgID))
	require.NoError(t, err)
	require.NoError(t, s.AppendTelemetry(ctx, TelemetryRecord{RunToken: "run-1", Seq: 7}))

	seq, err = s.LastSeq(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
}
