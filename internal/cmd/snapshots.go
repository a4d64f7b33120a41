package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chartfold/chartfold/internal/config"
	"github.com/chartfold/chartfold/internal/snapshot"
	"github.com/chartfold/chartfold/internal/ui"
)

var snapshotsKeep int

// snapshotsCmd groups the snapshot management commands.
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Manage snapshots of a refactored chart directory",
	Long: `Manage the snapshots chartfold takes before overwriting output.

Snapshots live inside the chart directory under .chartfold/snapshots.
When <chart-dir> is omitted, list and cleanup act on the chart
enclosing the working directory.

Examples:
  chartfold snapshots list ./chart-folded
  chartfold snapshots restore ./chart-folded snapshot-20240301-101500.000000000
  chartfold snapshots cleanup ./chart-folded --keep 3`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list [chart-dir]",
	Short: "List available snapshots, newest first",
	Args:  cobra.MaximumNArgs(1),
	Run:   runSnapshotsList,
}

var snapshotsRestoreCmd = &cobra.Command{
	Use:   "restore <chart-dir> <snapshot>",
	Short: "Put a snapshot's files back into the chart directory",
	Args:  cobra.ExactArgs(2),
	Run:   runSnapshotsRestore,
}

var snapshotsCleanupCmd = &cobra.Command{
	Use:   "cleanup [chart-dir]",
	Short: "Remove snapshots beyond the retention limit",
	Args:  cobra.MaximumNArgs(1),
	Run:   runSnapshotsCleanup,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsRestoreCmd)
	snapshotsCmd.AddCommand(snapshotsCleanupCmd)

	snapshotsCleanupCmd.Flags().IntVar(&snapshotsKeep, "keep", snapshot.DefaultRetention, "How many snapshots to keep")
}

func runSnapshotsList(cmd *cobra.Command, args []string) {
	dir := chartDirArg(args)

	snapshots, err := snapshot.List(dir)
	if err != nil {
		ui.Fatal("list snapshots: %v", err)
	}
	if len(snapshots) == 0 {
		ui.Info("No snapshots found in %s", dir)
		return
	}

	ui.Header("Snapshots of %s", dir)
	for _, snap := range snapshots {
		ui.Detail("%-44s %s  %d files", snap.Name, snap.Created.Format("2006-01-02 15:04:05"), snap.FileCount)
	}
}

func runSnapshotsRestore(cmd *cobra.Command, args []string) {
	dir, name := args[0], args[1]

	if err := snapshot.Restore(dir, name); err != nil {
		ui.Fatal("restore failed: %v", err)
	}
	ui.Success("Restored %s into %s", name, dir)
}

func runSnapshotsCleanup(cmd *cobra.Command, args []string) {
	if err := snapshot.Cleanup(chartDirArg(args), snapshotsKeep); err != nil {
		ui.Fatal("cleanup failed: %v", err)
	}
	ui.Success("Snapshots pruned to the newest %d", snapshotsKeep)
}

// chartDirArg resolves the optional chart-dir argument, defaulting to
// the chart enclosing the working directory.
func chartDirArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	dir, err := config.FindChart(".")
	if err != nil {
		ui.Fatal("%v", err)
	}
	return dir
}
