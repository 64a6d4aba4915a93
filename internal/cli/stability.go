package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/popslovesmusic/airs-sub008/internal/stability"
)

// StabilityResult reports the analyzer's verdict on one pair.
type StabilityResult struct {
	Stable     bool                  `json:"stable"`
	Message    string                `json:"message"`
	Conditions []stability.Condition `json:"conditions,omitempty"`
	Metrics    *stability.Metrics    `json:"metrics,omitempty"`
}

// NewStabilityCommand creates the stability command.
func NewStabilityCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		stateID     string
		diagramID   string
		tolerance   float64
		withMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "stability <package-dir>",
		Short: "Check whether a (state, diagram) pair is a fixed point",
		Long: `Run the termination conditions against the pair. Any one satisfied
condition makes the pair stable. An unstable pair exits 1; errors in
loading the package exit 2.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStability(rootOpts, args[0], stateID, diagramID, tolerance, withMetrics, cmd)
		},
	}

	cmd.Flags().StringVar(&stateID, "state", "", "state id (required)")
	cmd.Flags().StringVar(&diagramID, "diagram", "", "diagram id (required)")
	cmd.Flags().Float64Var(&tolerance, "tolerance", stability.DefaultTolerance, "loop convergence tolerance")
	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "include pair metrics in the output")
	_ = cmd.MarkFlagRequired("state")
	_ = cmd.MarkFlagRequired("diagram")
	return cmd
}

func runStability(opts *RootOptions, dir, stateID, diagramID string, tolerance float64, withMetrics bool, cmd *cobra.Command) error {
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

	report, err := stability.Analyze(pkg, stateID, diagramID, tolerance)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	result := StabilityResult{
		Stable:     report.Stable,
		Message:    report.Message,
		Conditions: report.Conditions,
	}
	if withMetrics {
		m := stability.ComputeMetrics(pkg.FindState(stateID), pkg.FindDiagram(diagramID))
		result.Metrics = &m
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		if report.Stable {
			fmt.Fprintf(formatter.Writer, "stable: %s\n", report.Message)
			for _, c := range report.Conditions {
				fmt.Fprintf(formatter.Writer, "  %s: %s\n", c.Verdict, c.Message)
			}
		} else {
			fmt.Fprintf(formatter.Writer, "unstable: %s\n", report.Message)
		}
		if result.Metrics != nil {
			m := result.Metrics
			fmt.Fprintf(formatter.Writer, "  admissible_volume=%d admissible_ratio=%.4f collapse_ratio=%.4f\n",
				m.AdmissibleVolume, m.AdmissibleRatio, m.CollapseRatio)
		}
	}

	if !report.Stable {
		return NewExitError(ExitFailure, "pair is not stable")
	}
	return nil
}
