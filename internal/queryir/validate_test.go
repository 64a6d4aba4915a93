package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

func TestValidate_KnownTableAndColumns(t *testing.T) {
	q := Select{
		From:    TableRewriteLog,
		Columns: []string{"run_token", "seq", "rule_id"},
		Filter:  Equals{Field: "run_token", Value: ir.Str("r1")},
	}
	assert.NoError(t, Validate(q))
}

func TestValidate_UnknownTable(t *testing.T) {
	q := Select{From: "nope", Columns: []string{"id"}}
	assert.Error(t, Validate(q))
}

func TestValidate_UnknownColumn(t *testing.T) {
	q := Select{From: TablePackages, Columns: []string{"id", "flow_token"}}
	assert.Error(t, Validate(q))
}

func TestValidate_NoImplicitColumns(t *testing.T) {
	q := Select{From: TablePackages}
	assert.Error(t, Validate(q), "SELECT * is outside the portable fragment")
}

func TestValidate_UnknownPredicateField(t *testing.T) {
	q := Select{
		From:    TableMixerTelemetry,
		Columns: []string{"seq"},
		Filter:  Equals{Field: "rule_id", Value: ir.Str("x")},
	}
	assert.Error(t, Validate(q), "rule_id belongs to rewrite_log, not telemetry")
}

func TestValidate_NonScalarValueRejected(t *testing.T) {
	q := Select{
		From:    TableRewriteLog,
		Columns: []string{"id"},
		Filter:  Equals{Field: "tag", Value: ir.Arr{ir.Str("a")}},
	}
	assert.Error(t, Validate(q))

	q.Filter = Equals{Field: "tag"}
	assert.Error(t, Validate(q), "missing value")
}

func TestValidate_NestedAnd(t *testing.T) {
	q := Select{
		From:    TableRewriteLog,
		Columns: []string{"id"},
		Filter: And{Predicates: []Predicate{
			Equals{Field: "run_token", Value: ir.Str("r1")},
			And{Predicates: []Predicate{
				Equals{Field: "applied", Value: ir.Bool(true)},
				Equals{Field: "seq", Value: ir.Int(3)},
			}},
		}},
	}
	assert.NoError(t, Validate(q))

	q.Filter = And{Predicates: []Predicate{
		Equals{Field: "bogus", Value: ir.Str("x")},
	}}
	assert.Error(t, Validate(q))
}
