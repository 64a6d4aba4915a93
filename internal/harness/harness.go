package harness

import (
	"context"
	"fmt"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/popslovesmusic/airs-sub008/internal/compiler"
	"github.com/popslovesmusic/airs-sub008/internal/engine"
	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/store"
)

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database for isolation,
// with a fixed run token so the recorded trace is reproducible.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Compile the scenario's CUE package
//  3. Drive the state/diagram pair to a fixed point
//  4. Read the recorded trace back from the audit log
//  5. Evaluate assertions and return the result
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	pkg, err := loadPackage(scenario.Package)
	if err != nil {
		return nil, err
	}
	if errs := compiler.ValidatePackage(pkg); len(errs) > 0 {
		return nil, fmt.Errorf("package %s is invalid: %s", scenario.Package, errs[0].Error())
	}

	token := scenario.RunToken
	if token == "" {
		token = DefaultRunToken
	}

	opts := []engine.RunnerOption{}
	if scenario.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(scenario.MaxSteps))
	}
	if scenario.Tolerance > 0 {
		opts = append(opts, engine.WithTolerance(scenario.Tolerance))
	}
	runner := engine.NewRunner(st, engine.NewFixedGenerator(token), opts...)

	ctx := context.Background()
	report, err := runner.Run(ctx, pkg, scenario.State, scenario.Diagram)
	if err != nil {
		return nil, fmt.Errorf("scenario run: %w", err)
	}

	result := NewResult()
	result.RunToken = report.RunToken
	result.PackageID = report.PackageID
	result.Stable = report.Stability.Stable
	result.Applied = report.Applied
	result.Rejected = report.Rejected
	for _, cond := range report.Stability.Conditions {
		result.Verdicts = append(result.Verdicts, cond.Verdict)
	}

	// The trace comes from the audit log, not from in-process
	// bookkeeping, so assertions see exactly what replay will see.
	recs, err := st.RewritesForRun(ctx, report.RunToken)
	if err != nil {
		return nil, fmt.Errorf("scenario trace: %w", err)
	}
	for _, rec := range recs {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:     rec.Seq,
			RuleID:  rec.RuleID,
			Root:    rec.RootID,
			Applied: rec.Applied,
			Tag:     rec.Tag,
		})
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// loadPackage compiles the CUE package directory into the ir model.
func loadPackage(dir string) (*ir.Package, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	return compiler.CompilePackage(value)
}
