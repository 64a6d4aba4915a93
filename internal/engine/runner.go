package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/popslovesmusic/airs-sub008/internal/crf"
	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/rewrite"
	"github.com/popslovesmusic/airs-sub008/internal/stability"
	"github.com/popslovesmusic/airs-sub008/internal/store"
)

// DefaultMaxSteps bounds the number of applied rewrites in one run.
// A run that has not reached a fixed point by then stops anyway.
const DefaultMaxSteps = 1000

// Runner executes rewrite runs against a store.
//
// All mutation happens inside Run on the caller's goroutine; a Runner
// must not be shared across concurrent runs.
type Runner struct {
	store     *store.Store
	clock     *Clock
	tokens    RunTokenGenerator
	maxSteps  int
	tolerance float64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxSteps sets the applied-rewrite quota per run.
func WithMaxSteps(maxSteps int) RunnerOption {
	return func(r *Runner) {
		r.maxSteps = maxSteps
	}
}

// WithTolerance sets the loop-convergence tolerance passed to the
// stability analyzer.
func WithTolerance(tolerance float64) RunnerOption {
	return func(r *Runner) {
		r.tolerance = tolerance
	}
}

// WithClock replaces the run clock. Used with NewClockAt to resume a
// run token from its last recorded seq.
func WithClock(c *Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = c
	}
}

// NewRunner creates a Runner writing to the given store.
func NewRunner(s *store.Store, tokens RunTokenGenerator, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:     s,
		clock:     NewClock(),
		tokens:    tokens,
		maxSteps:  DefaultMaxSteps,
		tolerance: stability.DefaultTolerance,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunReport summarizes a finished run.
type RunReport struct {
	RunToken  string
	PackageID string
	// Applied counts rewrites that fired; Rejected counts attempts the
	// apply step turned down. Both kinds are in the audit log.
	Applied  int
	Rejected int
	// Stability is the analyzer's verdict when the run stopped.
	Stability stability.Report
}

// Run drives the package's state to a fixed point.
//
// Each step fires the first authorized rewrite, in rule declaration
// order and match-site order, records it, and re-analyzes. The run
// stops when the analyzer reports stable, when every remaining site is
// rejected, or when the step quota runs out. The package is mutated in
// place: the named diagram and state carry the final values.
func (r *Runner) Run(ctx context.Context, pkg *ir.Package, stateID, diagramID string) (RunReport, error) {
	report := RunReport{RunToken: r.tokens.Generate()}

	state := pkg.FindState(stateID)
	diagram := pkg.FindDiagram(diagramID)
	if state == nil || diagram == nil {
		return report, fmt.Errorf("run: state %s or diagram %s not found", stateID, diagramID)
	}

	pkgID, err := r.store.SavePackage(ctx, pkg)
	if err != nil {
		return report, fmt.Errorf("run: %w", err)
	}
	report.PackageID = pkgID

	slog.Info("run starting",
		"run_token", report.RunToken,
		"package_id", pkgID,
		"state_id", stateID,
		"diagram_id", diagramID)

	for report.Applied < r.maxSteps {
		stab, err := stability.Analyze(pkg, stateID, diagramID, r.tolerance)
		if err != nil {
			return report, fmt.Errorf("run: %w", err)
		}
		report.Stability = stab
		if stab.Stable {
			slog.Info("run stable",
				"run_token", report.RunToken,
				"applied", report.Applied,
				"verdict", stab.Message)
			return report, nil
		}

		applied, err := r.step(ctx, pkg, state, diagram, pkgID, &report)
		if err != nil {
			return report, err
		}
		if !applied {
			// Every matching site was rejected; nothing can change, so
			// re-analyzing would loop forever.
			slog.Info("run halted, no applicable rewrite",
				"run_token", report.RunToken,
				"applied", report.Applied,
				"rejected", report.Rejected)
			return report, nil
		}
	}

	stab, err := stability.Analyze(pkg, stateID, diagramID, r.tolerance)
	if err != nil {
		return report, fmt.Errorf("run: %w", err)
	}
	report.Stability = stab
	slog.Warn("run step quota exhausted",
		"run_token", report.RunToken,
		"max_steps", r.maxSteps)
	return report, nil
}

// step fires the first rewrite that applies, recording every attempt
// along the way. Returns whether any rewrite applied.
func (r *Runner) step(ctx context.Context, pkg *ir.Package, state *ir.State, diagram *ir.Diagram, pkgID string, report *RunReport) (bool, error) {
	csi := pkg.FindCSI(state.CSIID)

	for i := range pkg.RewriteRules {
		rule := pkg.RewriteRules[i]

		auth := crf.AuthorizeRewrite(pkg.Constraints, *state, diagram, csi, rule)
		if !auth.Allowed {
			slog.Debug("rewrite not authorized",
				"run_token", report.RunToken,
				"rule_id", rule.ID,
				"errors", auth.Errors)
			continue
		}

		matches, err := rewrite.FindMatches(diagram, rule, 0)
		if err != nil {
			// A malformed rule cannot fire; it does not abort the run.
			slog.Warn("rule skipped",
				"run_token", report.RunToken,
				"rule_id", rule.ID,
				"error", err)
			continue
		}

		for _, site := range matches {
			applied, err := r.attempt(ctx, pkg, state, diagram, pkgID, rule, site, report)
			if err != nil {
				return false, err
			}
			if applied {
				return true, nil
			}
		}
	}
	return false, nil
}

// attempt applies one rewrite at one site and appends the audit
// record. On success the package's diagram and state are advanced and
// the label history extended.
func (r *Runner) attempt(ctx context.Context, pkg *ir.Package, state *ir.State, diagram *ir.Diagram, pkgID string, rule ir.RewriteRule, site rewrite.Match, report *RunReport) (bool, error) {
	csi := pkg.FindCSI(state.CSIID)

	beforeFP, err := ir.DiagramFingerprint(diagram)
	if err != nil {
		return false, fmt.Errorf("run: %w", err)
	}

	alloc := rewrite.NewIDAllocator(diagram)
	res, err := rewrite.Apply(diagram, *state, site, rule, alloc, pkg.Constraints, csi)
	if err != nil {
		return false, fmt.Errorf("run: apply %s: %w", rule.ID, err)
	}

	afterFP, err := ir.DiagramFingerprint(&res.Diagram)
	if err != nil {
		return false, fmt.Errorf("run: %w", err)
	}
	stateFP, err := ir.StateFingerprint(&res.State)
	if err != nil {
		return false, fmt.Errorf("run: %w", err)
	}

	seq := r.clock.Next()
	_, _, err = r.store.AppendRewrite(ctx, store.RewriteRecord{
		RunToken:  report.RunToken,
		Seq:       seq,
		PackageID: pkgID,
		RuleID:    rule.ID,
		StateID:   state.ID,
		DiagramID: diagram.ID,
		RootID:    site.Root,
		Applied:   res.Applied,
		Tag:       res.Tag,
		BeforeFP:  beforeFP,
		AfterFP:   afterFP,
		StateFP:   stateFP,
		RewriteFP: ir.RewriteFingerprint(rule.ID, site.Root, afterFP),
	})
	if err != nil {
		return false, fmt.Errorf("run: %w", err)
	}

	if !res.Applied {
		report.Rejected++
		slog.Debug("rewrite rejected",
			"run_token", report.RunToken,
			"seq", seq,
			"rule_id", rule.ID,
			"root", site.Root,
			"tag", res.Tag)
		return false, nil
	}

	*diagram = res.Diagram
	*state = res.State
	stability.RecordLabels(state, state.INULabels)
	report.Applied++

	slog.Info("rewrite applied",
		"run_token", report.RunToken,
		"seq", seq,
		"rule_id", rule.ID,
		"root", site.Root)
	return true, nil
}
