package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/chartfold/chartfold/internal/snapshot"
)

// completeSnapshotNames completes the snapshot argument of restore. The
// chart directory comes first and uses normal file completion.
func completeSnapshotNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}
	if len(args) > 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	snapshots, err := snapshot.List(args[0])
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var names []string
	for _, snap := range snapshots {
		if strings.HasPrefix(snap.Name, toComplete) {
			names = append(names, snap.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// init registers completions after all commands are set up.
func init() {
	cobra.OnInitialize(func() {
		snapshotsRestoreCmd.ValidArgsFunction = completeSnapshotNames
	})
}
