// Package cmd provides the CLI commands for chartfold.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chartfold",
	Short: "Fold helmify charts into shared microservice templates",
	Long: `chartfold - fold per-service Kubernetes manifests into shared templates

Takes a Helm chart where every service carries its own near-identical
Deployment, Service, and ServiceAccount (the shape helmify emits) and
rewrites it: one conditionally-gated template per resource kind, a
restructured values.yaml, and a thin include file per service. The
rendered manifests stay semantically identical.

REFACTORING
  refactor <in> <out>   Generate the folded chart into a new directory
    --dry-run, -n       Show the plan without writing
    --validate          Run helm template on the output afterwards
    --no-transform-values  Copy values.yaml through unchanged
    --skip-snapshot     Do not snapshot existing output content
    --force, -f         Overwrite a non-empty output without asking

INSPECTION
  inspect <in>          Show services and the observed feature matrix
  verify <in>           Render every service twice and compare (exit 1 on drift)

SNAPSHOTS
  snapshots list [dir]      List snapshots of a refactored chart
  snapshots restore <dir> <name>  Put a snapshot's files back
  snapshots cleanup [dir]   Prune snapshots beyond the retention limit

MAINTENANCE
  update                Update chartfold from GitHub releases`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate("chartfold version {{.Version}}\n")
}
