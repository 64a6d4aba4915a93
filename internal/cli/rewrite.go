package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/popslovesmusic/airs-sub008/internal/crf"
	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/rewrite"
)

// RewriteResult reports one rewrite attempt.
type RewriteResult struct {
	Applied  bool     `json:"applied"`
	Tag      string   `json:"tag,omitempty"`
	RuleID   string   `json:"rule_id"`
	Root     string   `json:"root,omitempty"`
	Messages []string `json:"messages,omitempty"`
	Output   string   `json:"output,omitempty"`
}

// NewRewriteCommand creates the rewrite command.
func NewRewriteCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		stateID   string
		diagramID string
		ruleID    string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "rewrite <package-dir>",
		Short: "Apply one rewrite rule to a diagram",
		Long: `Apply the named rule at its first match site in the diagram and
report the outcome. A rule with no match site prints "not applicable"
and exits 0; no match is an ordinary result, not an error.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrite(rootOpts, args[0], stateID, diagramID, ruleID, outPath, cmd)
		},
	}

	cmd.Flags().StringVar(&stateID, "state", "", "state id (required)")
	cmd.Flags().StringVar(&diagramID, "diagram", "", "diagram id (required)")
	cmd.Flags().StringVar(&ruleID, "rule", "", "rewrite rule id (required)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write the updated package as JSON")
	_ = cmd.MarkFlagRequired("state")
	_ = cmd.MarkFlagRequired("diagram")
	_ = cmd.MarkFlagRequired("rule")
	return cmd
}

func runRewrite(opts *RootOptions, dir, stateID, diagramID, ruleID, outPath string, cmd *cobra.Command) error {
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

	state := pkg.FindState(stateID)
	diagram := pkg.FindDiagram(diagramID)
	if state == nil || diagram == nil {
		msg := fmt.Sprintf("state %s or diagram %s not found in package", stateID, diagramID)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	var rule *ir.RewriteRule
	for i := range pkg.RewriteRules {
		if pkg.RewriteRules[i].ID == ruleID {
			rule = &pkg.RewriteRules[i]
		}
	}
	if rule == nil {
		msg := fmt.Sprintf("rule %s not found in package", ruleID)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	csi := pkg.FindCSI(state.CSIID)

	// Same gate the run loop applies before any attempt: constraints
	// and the rule's preconditions must authorize the rewrite.
	auth := crf.AuthorizeRewrite(pkg.Constraints, *state, diagram, csi, *rule)
	if !auth.Allowed {
		result := RewriteResult{
			Applied:  false,
			Tag:      "not_authorized",
			RuleID:   ruleID,
			Messages: auth.Errors,
		}
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "not authorized: rule %s blocked by constraints\n", ruleID)
		for _, msg := range auth.Errors {
			fmt.Fprintf(formatter.Writer, "  %s\n", msg)
		}
		return nil
	}

	matches, err := rewrite.FindMatches(diagram, *rule, 1)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	if len(matches) == 0 {
		result := RewriteResult{Applied: false, Tag: "not_applicable", RuleID: ruleID}
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "not applicable: rule %s has no match in %s\n", ruleID, diagramID)
		return nil
	}

	alloc := rewrite.NewIDAllocator(diagram)
	res, err := rewrite.Apply(diagram, *state, matches[0], *rule, alloc, pkg.Constraints, csi)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	if outPath != "" && res.Applied {
		// The output is a whole package with the rewritten diagram and
		// state swapped in, so it can feed the next pipeline stage.
		for i := range pkg.Diagrams {
			if pkg.Diagrams[i].ID == res.Diagram.ID {
				pkg.Diagrams[i] = res.Diagram
			}
		}
		for i := range pkg.States {
			if pkg.States[i].ID == res.State.ID {
				pkg.States[i] = res.State
			}
		}
		doc, err := json.MarshalIndent(pkg, "", "  ")
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
		if err := os.WriteFile(outPath, append(doc, '\n'), 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
	}

	result := RewriteResult{
		Applied:  res.Applied,
		Tag:      res.Tag,
		RuleID:   ruleID,
		Root:     matches[0].Root,
		Messages: res.Messages(),
		Output:   outPath,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if res.Applied {
		fmt.Fprintf(formatter.Writer, "applied %s at %s\n", ruleID, matches[0].Root)
	} else {
		fmt.Fprintf(formatter.Writer, "rejected %s at %s: %s\n", ruleID, matches[0].Root, res.Tag)
	}
	for _, msg := range result.Messages {
		formatter.VerboseLog("  %s", msg)
	}
	return nil
}
