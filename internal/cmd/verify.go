package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/chartfold/chartfold/internal/chart"
	"github.com/chartfold/chartfold/internal/ui"
)

// verifyCmd represents the verify command.
var verifyCmd = &cobra.Command{
	Use:   "verify <input-dir>",
	Short: "Check that refactoring the chart loses nothing",
	Long: `Run the refactoring in memory and render every service twice: once
from the original manifests with the original values, once from the
generated templates with the transformed values. The renderings are
compared document by document on their leaf values.

Nothing is written. Exits non-zero when any service drifts.

Examples:
  chartfold verify ./chart`,
	Args: cobra.ExactArgs(1),
	Run:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) {
	input := args[0]

	ui.Header("Verifying %s", input)

	report, err := chart.Verify(input)
	if err != nil {
		ui.Fatal("verify failed: %v", err)
	}

	for _, name := range report.Skipped {
		ui.Warning("%s: values conflict, would pass through verbatim", name)
	}

	if report.Lossless() {
		ui.Success("All %d services render identically after refactoring", report.Services)
		return
	}

	for _, d := range report.Drifts {
		ui.Error("%s: %s", d.Service, d.Detail)
	}
	ui.Error("%d of %d services drift", len(report.Drifts), report.Services)
	os.Exit(1)
}
