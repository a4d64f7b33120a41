package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chartfold/chartfold/internal/config"
	"github.com/chartfold/chartfold/internal/extract"
	"github.com/chartfold/chartfold/internal/resource"
	"github.com/chartfold/chartfold/internal/ui"
)

var inspectVerbose bool

// inspectCmd represents the inspect command.
var inspectCmd = &cobra.Command{
	Use:   "inspect <input-dir>",
	Short: "Show services and the observed feature matrix",
	Long: `Parse a chart and show what refactoring would work with.

Lists every detected service with the document kinds it carries, then
the per-kind feature matrix: which optional blocks were observed and in
how many services. Nothing is generated or written.

Examples:
  chartfold inspect ./chart
  chartfold inspect ./chart --verbose`,
	Args: cobra.ExactArgs(1),
	Run:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVarP(&inspectVerbose, "verbose", "v", false, "Show block variants and the services using each block")
}

func runInspect(cmd *cobra.Command, args []string) {
	input := args[0]

	cfg, err := config.Load(input)
	if err != nil {
		ui.Fatal("%v", err)
	}
	parsed, err := resource.ParseDir(input, append([]string{cfg.HelpersFile}, cfg.ExcludeFiles...)...)
	if err != nil {
		ui.Fatal("%v", err)
	}
	if len(parsed.Services) == 0 {
		ui.Fatal("no services found in %s", input)
	}

	ui.Header("Chart %s (version %s, app %s)", parsed.Chart.Name, parsed.Chart.Version, parsed.Chart.AppVersion)
	for _, w := range parsed.Warnings {
		ui.Warning("%s", w)
	}
	for _, err := range parsed.Errors {
		ui.Warning("parse: %v", err)
	}

	ui.Info("Services (%d):", len(parsed.Services))
	for _, svc := range parsed.Services {
		ui.Detail("%-24s %s", svc.Name, serviceKinds(svc))
	}

	for _, kind := range resource.TemplatedKinds {
		d := extract.Extract(parsed.Services, kind)
		if d.ServiceCount == 0 {
			continue
		}
		fmt.Println()
		ui.Info("%s blocks (%d services):", kind, d.ServiceCount)
		for _, b := range extract.CatalogFor(kind) {
			f := d.Feature(b.Name)
			if f == nil {
				continue
			}
			line := fmt.Sprintf("%-32s %d/%d", b.Name, len(f.Services), d.ServiceCount)
			if inspectVerbose && len(f.Variants) > 0 {
				line += " [" + strings.Join(f.Variants, ", ") + "]"
			}
			ui.Detail("%s", line)
			if inspectVerbose {
				ui.Detail("    used by: %s", strings.Join(f.Services, ", "))
			}
		}
	}
}

// serviceKinds summarizes which documents a service carries.
func serviceKinds(svc *resource.ServiceResources) string {
	var kinds []string
	if svc.HasDeployment() {
		kinds = append(kinds, "deployment")
	}
	if svc.HasService() {
		kinds = append(kinds, "service")
	}
	if svc.HasServiceAccount() {
		kinds = append(kinds, "serviceaccount")
	}
	label := strings.Join(kinds, ", ")
	if n := len(svc.Others); n > 0 {
		label += fmt.Sprintf(" +%d passthrough", n)
	}
	return label
}
