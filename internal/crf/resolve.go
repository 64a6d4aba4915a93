package crf

import (
	"fmt"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// Conflict types, least to most severe. The dispatcher routes each to
// its resolution procedure; when several apply, the caller picks the
// most severe.
const (
	ConflictSoftViolation    = "soft_violation"    // -> attenuate
	ConflictTemporalMismatch = "temporal_mismatch" // -> defer
	ConflictDOFInterference  = "dof_interference"  // -> partition
	ConflictScopeOverflow    = "scope_overflow"    // -> escalate
	ConflictAmbiguousChoice  = "ambiguous_choice"  // -> bifurcate
	ConflictHardViolation    = "hard_violation"    // -> halt
)

// Resolution is the outcome of one conflict-resolution procedure. The
// contained state is a new value; the input state is never touched.
type Resolution struct {
	Action  string
	Success bool
	Message string
	State   ir.State
}

// Attenuate weakens a heuristic constraint to resolve the conflict.
// Only usable when no hard constraint is violated.
func Attenuate(details ir.ConflictRecord, state ir.State, _ *ir.Diagram) Resolution {
	next := state.Clone()
	next.AttenuatedConstraints = append(next.AttenuatedConstraints, details.ConstraintID)
	return Resolution{
		Action:  "attenuate",
		Success: true,
		Message: fmt.Sprintf("attenuated heuristic constraint %s", details.ConstraintID),
		State:   next,
	}
}

// Defer postpones resolution to a later compartment.
func Defer(details ir.ConflictRecord, state ir.State, _ *ir.Diagram) Resolution {
	next := state.Clone()
	next.DeferredConflicts = append(next.DeferredConflicts, details.Clone())
	return Resolution{
		Action:  "defer",
		Success: true,
		Message: fmt.Sprintf("deferred conflict of type %s to next compartment", details.Type),
		State:   next,
	}
}

// Partition splits conflicting elements so they operate independently.
func Partition(details ir.ConflictRecord, state ir.State, _ *ir.Diagram) Resolution {
	next := state.Clone()
	next.PartitionedElements = append(next.PartitionedElements, details.Elements...)
	return Resolution{
		Action:  "partition",
		Success: true,
		Message: fmt.Sprintf("partitioned %d conflicting elements", len(details.Elements)),
		State:   next,
	}
}

// Escalate promotes the conflict to global scope.
func Escalate(details ir.ConflictRecord, state ir.State, _ *ir.Diagram) Resolution {
	next := state.Clone()
	next.EscalatedConflicts = append(next.EscalatedConflicts, details.Clone())
	scope := details.Scope
	if scope == "" {
		scope = "local"
	}
	return Resolution{
		Action:  "escalate",
		Success: true,
		Message: fmt.Sprintf("escalated %s conflict to global scope", scope),
		State:   next,
	}
}

// Bifurcate marks the state for parallel exploration of the
// conflicting choices.
func Bifurcate(details ir.ConflictRecord, state ir.State, _ *ir.Diagram) Resolution {
	next := state.Clone()
	next.Bifurcated = true
	next.BifurcationChoices = append([]string(nil), details.Elements...)
	return Resolution{
		Action:  "bifurcate",
		Success: true,
		Message: fmt.Sprintf("bifurcated state into %d parallel branches", len(details.Elements)),
		State:   next,
	}
}

// Halt stops the pipeline for an unresolvable hard violation.
func Halt(details ir.ConflictRecord, state ir.State, _ *ir.Diagram) Resolution {
	reason := details.Reason
	if reason == "" {
		reason = "unresolvable hard constraint violation"
	}
	next := state.Clone()
	next.Halted = true
	next.HaltReason = reason
	return Resolution{
		Action:  "halt",
		Success: false,
		Message: "halted: " + reason,
		State:   next,
	}
}

// ResolveConflict dispatches a conflict to its resolution procedure.
// Unknown conflict types halt; guessing a milder action for an
// unrecognized conflict would mask violations.
func ResolveConflict(conflictType string, details ir.ConflictRecord, state ir.State, d *ir.Diagram) Resolution {
	details.Type = conflictType
	switch conflictType {
	case ConflictSoftViolation:
		return Attenuate(details, state, d)
	case ConflictTemporalMismatch:
		return Defer(details, state, d)
	case ConflictDOFInterference:
		return Partition(details, state, d)
	case ConflictScopeOverflow:
		return Escalate(details, state, d)
	case ConflictAmbiguousChoice:
		return Bifurcate(details, state, d)
	case ConflictHardViolation:
		return Halt(details, state, d)
	default:
		details.Reason = fmt.Sprintf("unknown conflict type: %s", conflictType)
		return Halt(details, state, d)
	}
}
