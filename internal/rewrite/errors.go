// Package rewrite implements pattern matching and rule application
// over diagrams. Matching is exact-arity; application is value
// oriented: the caller's diagram and state are never mutated, and a
// rejected rewrite hands the originals back unchanged.
package rewrite

import (
	"errors"
	"fmt"
)

// RuleErrorCode categorizes rule application failures that are real
// errors. "No match" and "would introduce cycle" are expected
// outcomes, not errors, and never surface here.
type RuleErrorCode string

const (
	// ErrCodeBadExpression indicates the rule's pattern or replacement
	// does not parse.
	ErrCodeBadExpression RuleErrorCode = "BAD_EXPRESSION"

	// ErrCodeUnboundVariable indicates the replacement references a
	// variable the pattern never bound.
	ErrCodeUnboundVariable RuleErrorCode = "UNBOUND_VARIABLE"
)

// RuleError is a structural defect in a rule or its application.
type RuleError struct {
	Code    RuleErrorCode
	RuleID  string
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: rule %s: %s", e.Code, e.RuleID, e.Message)
}

// IsUnboundVariable reports whether err is an unbound-variable rule
// error, unwrapping as needed.
func IsUnboundVariable(err error) bool {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Code == ErrCodeUnboundVariable
	}
	return false
}
