package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chartfold/chartfold/internal/chart"
	"github.com/chartfold/chartfold/internal/resource"
	"github.com/chartfold/chartfold/internal/ui"
)

var (
	refactorDryRun       bool
	refactorValidate     bool
	refactorNoTransform  bool
	refactorForce        bool
	refactorSkipSnapshot bool
	refactorVerbose      bool
)

// refactorCmd represents the refactor command.
var refactorCmd = &cobra.Command{
	Use:   "refactor <input-dir> <output-dir>",
	Short: "Fold per-service manifests into shared templates",
	Long: `Refactor a helmify-style chart into shared microservice templates.

Reads every manifest under <input-dir>/templates, detects the optional
blocks each service uses, and writes a new chart to <output-dir>: one
shared template per resource kind, a thin include file per service, and
a values.yaml restructured to the layout the shared templates read.

Services whose values cannot be restructured pass through verbatim, so
the output always renders. A non-empty output directory is snapshotted
before anything is overwritten.

Examples:
  chartfold refactor ./chart ./chart-folded
  chartfold refactor ./chart ./chart-folded --dry-run
  chartfold refactor ./chart ./chart-folded --validate
  chartfold refactor ./chart ./chart-folded --force --skip-snapshot`,
	Args: cobra.ExactArgs(2),
	Run:  runRefactor,
}

func init() {
	rootCmd.AddCommand(refactorCmd)

	refactorCmd.Flags().BoolVarP(&refactorDryRun, "dry-run", "n", false, "Show what would be written without writing")
	refactorCmd.Flags().BoolVar(&refactorValidate, "validate", false, "Run helm template on the output afterwards")
	refactorCmd.Flags().BoolVar(&refactorNoTransform, "no-transform-values", false, "Copy values.yaml through unchanged")
	refactorCmd.Flags().BoolVarP(&refactorForce, "force", "f", false, "Overwrite a non-empty output directory without asking")
	refactorCmd.Flags().BoolVar(&refactorSkipSnapshot, "skip-snapshot", false, "Do not snapshot existing output content")
	refactorCmd.Flags().BoolVarP(&refactorVerbose, "verbose", "v", false, "List every generated file")
}

func runRefactor(cmd *cobra.Command, args []string) {
	input, output := args[0], args[1]

	if !refactorForce && !refactorDryRun && dirHasFiles(output) {
		if !isTerminal() {
			ui.Fatal("output directory %s is not empty; use --force to overwrite", output)
		}
		ok, err := promptYesNo(fmt.Sprintf("Output directory %s is not empty. Overwrite?", output))
		if err != nil {
			ui.Fatal("%v", err)
		}
		if !ok {
			ui.Warning("Aborted.")
			return
		}
	}

	ui.Header("Refactoring %s", input)

	res, err := chart.Refactor(context.Background(), chart.Options{
		InputDir:          input,
		OutputDir:         output,
		DryRun:            refactorDryRun,
		NoTransformValues: refactorNoTransform,
		Validate:          refactorValidate,
		SkipSnapshot:      refactorSkipSnapshot,
	})
	if err != nil {
		ui.Fatal("refactor failed: %v", err)
	}

	printRunSummary(res)

	if refactorDryRun {
		ui.Info("Dry run: nothing written. Files that would be generated:")
		for _, f := range res.Files {
			ui.Detail("%s", f.Path)
		}
		return
	}

	if refactorVerbose {
		for _, f := range res.Files {
			ui.Detail("wrote %s", f.Path)
		}
	}
	if res.Snapshot != "" {
		ui.Info("Previous output saved as snapshot %s", res.Snapshot)
	}
	ui.Success("Wrote %d files to %s", len(res.Files), output)
	if refactorValidate {
		ui.Success("helm template check passed")
	}
}

// printRunSummary reports what the pipeline saw and produced.
func printRunSummary(res *chart.Result) {
	ui.Step(1, "Parsed %d services from chart %q", len(res.Services), res.Chart.Name)
	for _, err := range res.ParseErrors {
		ui.Warning("parse: %v", err)
	}
	for _, w := range res.Warnings {
		ui.Warning("%s", w)
	}

	ui.Step(2, "Generated shared templates")
	for _, kind := range resource.TemplatedKinds {
		if n, ok := res.Features[kind]; ok {
			ui.Detail("%s: %d optional blocks", kind, n)
		}
	}

	ui.Step(3, "Rewrote service files")
	for _, err := range res.Conflicts {
		ui.Warning("left unchanged: %v", err)
	}
	kept := len(res.Services) - len(res.Skipped)
	if res.Stats.OriginalLines > 0 {
		ui.Detail("%d of %d services folded, %d lines -> %d (%.0f%% smaller)",
			kept, len(res.Services),
			res.Stats.OriginalLines, res.Stats.NewLines, res.Stats.Reduction())
	}
}
