package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/popslovesmusic/airs-sub008/internal/engine"
	"github.com/popslovesmusic/airs-sub008/internal/stability"
	"github.com/popslovesmusic/airs-sub008/internal/store"
)

// RunResult summarizes a finished rewrite run.
type RunResult struct {
	RunToken  string `json:"run_token"`
	PackageID string `json:"package_id"`
	Applied   int    `json:"applied"`
	Rejected  int    `json:"rejected"`
	Stable    bool   `json:"stable"`
	Verdict   string `json:"verdict"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath    string
		stateID   string
		diagramID string
		maxSteps  int
		tolerance float64
	)

	cmd := &cobra.Command{
		Use:   "run <package-dir>",
		Short: "Drive a pair to a fixed point, recording every rewrite",
		Long: `Fire authorized rewrites in declaration order until the stability
analyzer reports a fixed point or the step quota runs out. Every
attempt is appended to the audit log under a fresh run token; the
finished run can be verified with the replay command.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, args[0], dbPath, stateID, diagramID, maxSteps, tolerance, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (required)")
	cmd.Flags().StringVar(&stateID, "state", "", "state id (required)")
	cmd.Flags().StringVar(&diagramID, "diagram", "", "diagram id (required)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", engine.DefaultMaxSteps, "applied-rewrite quota")
	cmd.Flags().Float64Var(&tolerance, "tolerance", stability.DefaultTolerance, "loop convergence tolerance")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("state")
	_ = cmd.MarkFlagRequired("diagram")
	return cmd
}

func runRun(opts *RootOptions, dir, dbPath, stateID, diagramID string, maxSteps int, tolerance float64, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	pkg, err := LoadPackageDir(dir)
	if err != nil {
		return loadFailure(formatter, err)
	}

	s, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer s.Close()

	runner := engine.NewRunner(s, engine.UUIDv7Generator{},
		engine.WithMaxSteps(maxSteps),
		engine.WithTolerance(tolerance))

	report, err := runner.Run(cmd.Context(), pkg, stateID, diagramID)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	result := RunResult{
		RunToken:  report.RunToken,
		PackageID: report.PackageID,
		Applied:   report.Applied,
		Rejected:  report.Rejected,
		Stable:    report.Stability.Stable,
		Verdict:   report.Stability.Message,
	}
	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "run %s: applied=%d rejected=%d\n",
			result.RunToken, result.Applied, result.Rejected)
		fmt.Fprintf(formatter.Writer, "%s\n", result.Verdict)
	}

	if !result.Stable {
		return NewExitError(ExitFailure, "run did not reach a fixed point")
	}
	return nil
}
