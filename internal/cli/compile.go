package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/popslovesmusic/airs-sub008/internal/compiler"
	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// CompileResult summarizes a successful compilation.
type CompileResult struct {
	PackageID string                  `json:"package_id"`
	Diagrams  int                     `json:"diagrams"`
	States    int                     `json:"states"`
	Rules     int                     `json:"rules"`
	Warnings  []compiler.CycleWarning `json:"warnings,omitempty"`
	Output    string                  `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "compile <package-dir>",
		Short: "Compile a CUE package document to a package JSON file",
		Long: `Compile the CUE package document, validate it, analyze the rule set
for potential rewrite cycles, and emit the package as JSON.

Cycle warnings are advisory; they do not fail the compile.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, args[0], outPath, cmd)
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func runCompile(opts *RootOptions, dir, outPath string, cmd *cobra.Command) error {
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

	if errs := compiler.ValidatePackage(pkg); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	warnings := compiler.AnalyzeRuleCycles(pkg.RewriteRules)
	for _, w := range warnings {
		formatter.VerboseLog("cycle warning: %s", w.Message)
	}

	fp, err := ir.PackageFingerprint(pkg)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	doc, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, append(doc, '\n'), 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
	}

	result := CompileResult{
		PackageID: fp,
		Diagrams:  len(pkg.Diagrams),
		States:    len(pkg.States),
		Rules:     len(pkg.RewriteRules),
		Warnings:  warnings,
		Output:    outPath,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if outPath == "" {
		fmt.Fprintln(formatter.Writer, string(doc))
	}
	fmt.Fprintf(formatter.Writer, "compiled %s (%d diagram(s), %d state(s), %d rule(s))\n",
		fp, result.Diagrams, result.States, result.Rules)
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "warning: %s\n", w.Message)
	}
	return nil
}
