package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/queryir"
)

func TestCompile_NoFilter(t *testing.T) {
	sql, params, err := Compile(queryir.Select{
		From:    queryir.TablePackages,
		Columns: []string{"id", "doc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, doc FROM packages ORDER BY id COLLATE BINARY ASC", sql)
	assert.Empty(t, params)
}

func TestCompile_EqualsIsParameterized(t *testing.T) {
	sql, params, err := Compile(queryir.Select{
		From:    queryir.TableRewriteLog,
		Columns: []string{"id", "seq"},
		Filter:  queryir.Equals{Field: "run_token", Value: ir.Str("r'; DROP TABLE packages;--")},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, seq FROM rewrite_log WHERE run_token = ? ORDER BY seq ASC, id COLLATE BINARY ASC", sql)
	require.Len(t, params, 1)
	assert.Equal(t, "r'; DROP TABLE packages;--", params[0], "the value rides as a parameter, never interpolated")
}

func TestCompile_AndConjunction(t *testing.T) {
	sql, params, err := Compile(queryir.Select{
		From:    queryir.TableRewriteLog,
		Columns: []string{"id"},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "run_token", Value: ir.Str("r1")},
			queryir.Equals{Field: "applied", Value: ir.Bool(true)},
			queryir.Equals{Field: "seq", Value: ir.Int(7)},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE run_token = ? AND applied = ? AND seq = ?")
	assert.Equal(t, []any{"r1", int64(1), int64(7)}, params)
}

func TestCompile_EmptyAndIsVacuouslyTrue(t *testing.T) {
	sql, params, err := Compile(queryir.Select{
		From:    queryir.TableMixerTelemetry,
		Columns: []string{"seq"},
		Filter:  queryir.And{},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE 1 = 1")
	assert.Empty(t, params)
}

func TestCompile_RejectsInvalidQuery(t *testing.T) {
	_, _, err := Compile(queryir.Select{From: "evil", Columns: []string{"id"}})
	assert.Error(t, err)

	_, _, err = Compile(queryir.Select{
		From:    queryir.TableRewriteLog,
		Columns: []string{"id"},
		Filter:  queryir.Equals{Field: "tag", Value: ir.Obj{"k": ir.Str("v")}},
	})
	assert.Error(t, err)
}

func TestCompile_PointerPredicates(t *testing.T) {
	sql, params, err := Compile(queryir.Select{
		From:    queryir.TableRewriteLog,
		Columns: []string{"id"},
		Filter: &queryir.And{Predicates: []queryir.Predicate{
			&queryir.Equals{Field: "rule_id", Value: ir.Str("swap")},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, "rule_id = ?")
	assert.Equal(t, []any{"swap"}, params)
}
