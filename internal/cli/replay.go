package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/popslovesmusic/airs-sub008/internal/store"
)

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "replay <run-token>",
		Short: "Re-execute a recorded run and verify its fingerprints",
		Long: `Replay the run's rewrite log from its stored base package and check
every recorded fingerprint. A diverged run exits 1 and names the first
mismatching record; the replay never papers over a mismatch.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, dbPath, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (required)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func runReplay(opts *RootOptions, dbPath, runToken string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer s.Close()

	report, err := s.VerifyRun(cmd.Context(), runToken)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	if formatter.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else if report.Verified {
		fmt.Fprintf(formatter.Writer, "verified: %d step(s) replayed\n", report.Steps)
	} else {
		fmt.Fprintf(formatter.Writer, "diverged at seq %d: %s\n", report.DivergedSeq, report.Reason)
	}

	if !report.Verified {
		return NewExitError(ExitFailure, fmt.Sprintf("replay diverged at seq %d", report.DivergedSeq))
	}
	return nil
}
