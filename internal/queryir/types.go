package queryir

import "github.com/popslovesmusic/airs-sub008/internal/ir"

// Table names the filter IR may address.
const (
	TableRewriteLog     = "rewrite_log"
	TableMixerTelemetry = "mixer_telemetry"
	TablePackages       = "packages"
)

// Select is the only query form: explicit columns from one table,
// optionally filtered.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter>
//
// Columns must be explicit; SELECT * is outside the portable fragment
// because column order would then depend on the backend schema.
type Select struct {
	From    string
	Filter  Predicate // nil = no filter
	Columns []string
}

// Predicate is a filter condition.
//
// Sealed: only types in this package implement it. The marker method
// prevents external implementations and enables exhaustive type
// switches in backend compilers.
type Predicate interface {
	predicateNode()
}

// Equals is a field-equals-literal predicate.
//
//	<field> = <value>
//
// Value is constrained to scalar ir.Value kinds; arrays and objects
// have no deterministic SQL parameter form.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// And is a conjunction: all predicates must hold. An empty slice is
// vacuously true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
