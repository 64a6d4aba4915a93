// Package querysql compiles the portable filter IR to parameterized
// SQLite SQL.
//
// Every compiled query includes a deterministic ORDER BY, and every
// value is parameterized, never interpolated.
package querysql

import (
	"fmt"
	"strings"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/queryir"
)

// Compile converts a validated query to parameterized SQL. Returns
// (sql, params, error).
func Compile(q queryir.Select) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}

	var whereClause string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		strings.Join(q.Columns, ", "),
		q.From,
		whereClause,
		stableOrderKey(q.From))

	return sql, params, nil
}

// stableOrderKey returns the ORDER BY clause for a table. Every query
// carries it; COLLATE BINARY keeps text ordering identical across
// SQLite versions.
func stableOrderKey(table string) string {
	switch table {
	case queryir.TableRewriteLog, queryir.TableMixerTelemetry:
		return "seq ASC, id COLLATE BINARY ASC"
	default:
		return "id COLLATE BINARY ASC"
	}
}

func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return compileEquals(pred)
	case *queryir.Equals:
		return compileEquals(*pred)
	case queryir.And:
		return compileAnd(pred)
	case *queryir.And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals emits "field = ?". The value is always a parameter.
func compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := valueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("%s = ?", eq.Field), []any{param}, nil
}

func compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // vacuous truth
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}

// valueToParam converts a scalar ir.Value to a SQL parameter. Arrays
// and objects are rejected; they have no deterministic parameter form.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.Str:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		if bool(val) {
			return int64(1), nil
		}
		return int64(0), nil
	case ir.Arr, ir.Obj:
		return nil, fmt.Errorf("%T cannot be a SQL parameter", v)
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
