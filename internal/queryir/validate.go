package queryir

import (
	"fmt"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// tableColumns is the schema the portable fragment may reference.
var tableColumns = map[string]map[string]bool{
	TableRewriteLog: {
		"id": true, "run_token": true, "seq": true, "package_id": true,
		"rule_id": true, "state_id": true, "diagram_id": true,
		"root_id": true, "applied": true, "tag": true, "before_fp": true,
		"after_fp": true, "state_fp": true, "rewrite_fp": true,
	},
	TableMixerTelemetry: {
		"id": true, "run_token": true, "seq": true, "loop_gain": true,
		"admissible_volume": true, "excluded_volume": true,
		"undecided_volume": true, "collapse_ratio": true,
		"conservation_error": true, "transport_ready": true,
	},
	TablePackages: {
		"id": true, "doc": true,
	},
}

// Validate checks a query against the portable fragment: a known
// table, explicit known columns, and scalar-valued predicates over
// known fields.
func Validate(q Select) error {
	columns, ok := tableColumns[q.From]
	if !ok {
		return fmt.Errorf("queryir: unknown table %q", q.From)
	}
	if len(q.Columns) == 0 {
		return fmt.Errorf("queryir: columns must be explicit, got none")
	}
	for _, col := range q.Columns {
		if !columns[col] {
			return fmt.Errorf("queryir: unknown column %q on table %q", col, q.From)
		}
	}
	if q.Filter != nil {
		if err := validatePredicate(q.Filter, q.From, columns); err != nil {
			return err
		}
	}
	return nil
}

func validatePredicate(p Predicate, table string, columns map[string]bool) error {
	switch pred := p.(type) {
	case Equals:
		return validateEquals(pred, table, columns)
	case *Equals:
		return validateEquals(*pred, table, columns)
	case And:
		return validateAnd(pred, table, columns)
	case *And:
		return validateAnd(*pred, table, columns)
	default:
		return fmt.Errorf("queryir: unsupported predicate type %T", p)
	}
}

func validateEquals(eq Equals, table string, columns map[string]bool) error {
	if !columns[eq.Field] {
		return fmt.Errorf("queryir: unknown field %q on table %q", eq.Field, table)
	}
	switch eq.Value.(type) {
	case ir.Str, ir.Int, ir.Bool:
		return nil
	case nil:
		return fmt.Errorf("queryir: equals on %q has no value", eq.Field)
	default:
		return fmt.Errorf("queryir: non-scalar value %T on field %q", eq.Value, eq.Field)
	}
}

func validateAnd(and And, table string, columns map[string]bool) error {
	for _, p := range and.Predicates {
		if err := validatePredicate(p, table, columns); err != nil {
			return err
		}
	}
	return nil
}
