package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/queryir"
	"github.com/popslovesmusic/airs-sub008/internal/store"
)

// TraceEntry is one audit record as shown by the trace command.
type TraceEntry struct {
	RunToken string `json:"run_token"`
	Seq      int64  `json:"seq"`
	RuleID   string `json:"rule_id"`
	Root     string `json:"root"`
	Applied  bool   `json:"applied"`
	Tag      string `json:"tag,omitempty"`
	AfterFP  string `json:"after_fp"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath   string
		runToken string
		ruleID   string
		rejected bool
	)

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Browse the rewrite audit log",
		Long: `List audit records, filtered by run token, rule, or rejection
status. Filters compile to the portable query fragment; results always
come back in replay order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(rootOpts, dbPath, runToken, ruleID, rejected, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (required)")
	cmd.Flags().StringVar(&runToken, "run", "", "filter by run token")
	cmd.Flags().StringVar(&ruleID, "rule", "", "filter by rule id")
	cmd.Flags().BoolVar(&rejected, "rejected", false, "only rejected rewrites")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func runTrace(opts *RootOptions, dbPath, runToken, ruleID string, rejected bool, cmd *cobra.Command) error {
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

	filter := buildTraceFilter(runToken, ruleID, rejected)
	records, err := s.QueryRewrites(cmd.Context(), filter)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	entries := make([]TraceEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, TraceEntry{
			RunToken: rec.RunToken,
			Seq:      rec.Seq,
			RuleID:   rec.RuleID,
			Root:     rec.RootID,
			Applied:  rec.Applied,
			Tag:      rec.Tag,
			AfterFP:  rec.AfterFP,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "no records")
		return nil
	}
	for _, e := range entries {
		status := "applied"
		if !e.Applied {
			status = "rejected (" + e.Tag + ")"
		}
		fmt.Fprintf(formatter.Writer, "%s seq=%d %s @ %s: %s\n",
			e.RunToken, e.Seq, e.RuleID, e.Root, status)
	}
	return nil
}

// buildTraceFilter assembles the query predicate from the flag set. An
// empty flag set compiles to a vacuous filter that returns everything.
func buildTraceFilter(runToken, ruleID string, rejected bool) queryir.Predicate {
	var preds []queryir.Predicate
	if runToken != "" {
		preds = append(preds, queryir.Equals{Field: "run_token", Value: ir.Str(runToken)})
	}
	if ruleID != "" {
		preds = append(preds, queryir.Equals{Field: "rule_id", Value: ir.Str(ruleID)})
	}
	if rejected {
		preds = append(preds, queryir.Equals{Field: "applied", Value: ir.Bool(false)})
	}
	return queryir.And{Predicates: preds}
}
