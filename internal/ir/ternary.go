package ir

// Ternary is the three-valued admissibility label attached to diagram
// elements by the constraint resolution framework.
//
// The three values:
//   - I: included / admissible
//   - N: not included / excluded
//   - U: undetermined
//
// U is the default. Absence of evidence never proves exclusion: only a
// failing hard constraint may produce N, and only a passing hard
// constraint may produce I. Heuristic constraints can never move an
// element out of U (the Non-Forcing invariant).
type Ternary string

const (
	TernaryI Ternary = "I"
	TernaryN Ternary = "N"
	TernaryU Ternary = "U"
)

// Valid reports whether t is one of I, N, U.
func (t Ternary) Valid() bool {
	return t == TernaryI || t == TernaryN || t == TernaryU
}

// Operator tags the six node kinds of a semantic interaction diagram.
type Operator string

const (
	OpPresence  Operator = "P"  // presence of a single DOF
	OpSuperPos  Operator = "S+" // positive superposition, one or more DOFs
	OpSuperNeg  Operator = "S-" // negative superposition, one or more DOFs
	OpCollapse  Operator = "O"  // irreversible collapse
	OpCoupling  Operator = "C"  // binary coupling
	OpTransport Operator = "T"  // compartment transport
)

// Operators returns all operator tags in declaration order.
// Every algorithm that switches on Operator must handle all of these;
// adding an operator here is a compile-visible change everywhere an
// exhaustive switch lives.
func Operators() []Operator {
	return []Operator{OpPresence, OpSuperPos, OpSuperNeg, OpCollapse, OpCoupling, OpTransport}
}

// Valid reports whether op is a known operator tag.
func (op Operator) Valid() bool {
	switch op {
	case OpPresence, OpSuperPos, OpSuperNeg, OpCollapse, OpCoupling, OpTransport:
		return true
	}
	return false
}

// Arity describes the argument-count contract of an operator.
// Max < 0 means unbounded.
type Arity struct {
	Min int
	Max int
}

// OperatorArity is the authoritative arity table, enforced at parse
// time rather than during later validation.
var OperatorArity = map[Operator]Arity{
	OpPresence:  {Min: 1, Max: 1},
	OpSuperPos:  {Min: 1, Max: -1},
	OpSuperNeg:  {Min: 1, Max: -1},
	OpCollapse:  {Min: 1, Max: 1},
	OpCoupling:  {Min: 2, Max: 2},
	OpTransport: {Min: 1, Max: 1},
}
