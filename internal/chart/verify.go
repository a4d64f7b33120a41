package chart

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chartfold/chartfold/internal/config"
	"github.com/chartfold/chartfold/internal/extract"
	"github.com/chartfold/chartfold/internal/generate"
	"github.com/chartfold/chartfold/internal/render"
	"github.com/chartfold/chartfold/internal/resource"
	"github.com/chartfold/chartfold/internal/values"
)

// maxDriftDetails caps how many differing paths one drift entry reports.
const maxDriftDetails = 3

// Drift records one service whose refactored rendering differs from the
// original.
type Drift struct {
	Service string
	Detail  string
}

// VerifyReport is the outcome of a round-trip check.
type VerifyReport struct {
	// Services is the number of services checked.
	Services int

	// Drifts lists the services that did not render identically.
	Drifts []Drift

	// Skipped lists services left verbatim after a values conflict.
	// They are still checked, but against their own pass-through.
	Skipped []string
}

// Lossless reports whether every service rendered identically.
func (r *VerifyReport) Lossless() bool {
	return len(r.Drifts) == 0
}

// Verify runs the pipeline in memory and renders every service twice:
// once from the original manifests with the original values, once from
// the generated include files with the transformed values. The two
// renderings are compared document by document on their leaf values.
// Nothing is written.
func Verify(inputDir string) (*VerifyReport, error) {
	cfg, err := config.Load(inputDir)
	if err != nil {
		return nil, err
	}

	parsed, err := resource.ParseDir(inputDir, append([]string{cfg.HelpersFile}, cfg.ExcludeFiles...)...)
	if err != nil {
		return nil, err
	}
	if len(parsed.Services) == 0 {
		return nil, ErrNoServices
	}

	valuesDoc, _, err := loadValues(inputDir)
	if err != nil {
		return nil, err
	}

	var descriptors []*extract.Descriptor
	for _, kind := range resource.TemplatedKinds {
		if d := extract.Extract(parsed.Services, kind); d.ServiceCount > 0 {
			descriptors = append(descriptors, d)
		}
	}
	generated, err := generate.HelpersFile(descriptors, parsed.Chart)
	if err != nil {
		return nil, err
	}

	transformed := values.TransformAll(valuesDoc, parsed.Services, parsed.Chart)
	skipped := make(map[string]bool)
	for _, name := range transformed.Skipped {
		skipped[name] = true
	}

	helpersTpl, err := chartHelpers(inputDir, parsed.Chart)
	if err != nil {
		return nil, err
	}

	original := render.NewEngine()
	refactored := render.NewEngine()
	if err := original.AddFile("_helpers.tpl", helpersTpl); err != nil {
		return nil, err
	}
	if err := refactored.AddFile("_helpers.tpl", helpersTpl); err != nil {
		return nil, err
	}
	if err := refactored.AddFile(cfg.HelpersFile, generated); err != nil {
		return nil, err
	}

	for _, svc := range parsed.Services {
		if err := original.AddFile(svc.Name, generate.PassthroughFile(svc)); err != nil {
			return nil, fmt.Errorf("service %s: %w", svc.Name, err)
		}
		content := generate.PassthroughFile(svc)
		if !skipped[svc.Name] {
			content, _ = generate.IncludeFile(svc, values.SubtreeKey(valuesDoc, svc.Name))
		}
		if err := refactored.AddFile(svc.Name, content); err != nil {
			return nil, fmt.Errorf("service %s: %w", svc.Name, err)
		}
	}

	originalCtx := render.Context(valuesDoc, parsed.Chart)
	refactoredCtx := render.Context(transformed.Values, parsed.Chart)

	report := &VerifyReport{Skipped: transformed.Skipped}
	for _, svc := range parsed.Services {
		report.Services++

		before, err := renderDocs(original, svc.Name, originalCtx)
		if err != nil {
			report.Drifts = append(report.Drifts, Drift{
				Service: svc.Name,
				Detail:  fmt.Sprintf("original did not render: %v", err),
			})
			continue
		}
		after, err := renderDocs(refactored, svc.Name, refactoredCtx)
		if err != nil {
			report.Drifts = append(report.Drifts, Drift{
				Service: svc.Name,
				Detail:  fmt.Sprintf("refactored output did not render: %v", err),
			})
			continue
		}

		if diffs := compareDocs(before, after); len(diffs) > 0 {
			report.Drifts = append(report.Drifts, Drift{
				Service: svc.Name,
				Detail:  driftDetail(diffs),
			})
		}
	}
	return report, nil
}

// chartHelpers returns the chart's helper defines from either customary
// location, or the standard set when the chart carries none.
func chartHelpers(inputDir string, chart resource.ChartInfo) (string, error) {
	for _, loc := range []string{"_helpers.tpl", filepath.Join("templates", "_helpers.tpl")} {
		data, err := os.ReadFile(filepath.Join(inputDir, loc))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", loc, err)
		}
		return string(data), nil
	}
	return render.DefaultHelpers(chart.Name), nil
}

func renderDocs(e *render.Engine, name string, ctx map[string]any) ([]map[string]any, error) {
	out, err := e.Render(name, ctx)
	if err != nil {
		return nil, err
	}
	return render.Documents(out)
}

// compareDocs diffs two renderings of the same service. Documents pair
// up by kind and metadata name; within a pair every leaf path must carry
// the same value. Returned diffs are sorted by path.
func compareDocs(before, after []map[string]any) []string {
	beforeDocs := leafSets(before)
	afterDocs := leafSets(after)

	var diffs []string
	for _, key := range docKeys(beforeDocs) {
		bm := beforeDocs[key]
		am, ok := afterDocs[key]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s: missing from refactored output", key))
			continue
		}
		for _, path := range leafPaths(bm) {
			av, ok := am[path]
			switch {
			case !ok:
				diffs = append(diffs, fmt.Sprintf("%s%s: %q dropped", key, path, bm[path]))
			case av != bm[path]:
				diffs = append(diffs, fmt.Sprintf("%s%s: %q became %q", key, path, bm[path], av))
			}
		}
		for _, path := range leafPaths(am) {
			if _, ok := bm[path]; !ok {
				diffs = append(diffs, fmt.Sprintf("%s%s: %q added", key, path, am[path]))
			}
		}
	}
	for _, key := range docKeys(afterDocs) {
		if _, ok := beforeDocs[key]; !ok {
			diffs = append(diffs, fmt.Sprintf("%s: not in original output", key))
		}
	}
	return diffs
}

func leafSets(docs []map[string]any) map[string]map[string]string {
	out := make(map[string]map[string]string, len(docs))
	for _, doc := range docs {
		leaves := make(map[string]string)
		flatten("", doc, leaves)
		out[docKey(doc)] = leaves
	}
	return out
}

func docKey(doc map[string]any) string {
	kind, _ := doc["kind"].(string)
	name := ""
	if meta, ok := doc["metadata"].(map[string]any); ok {
		name, _ = meta["name"].(string)
	}
	return kind + "/" + name
}

// flatten records every scalar leaf under its dotted path. Nil values
// and empty containers are skipped: a manifest with `resources: {}` and
// one without it configure the same thing.
func flatten(prefix string, v any, out map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			flatten(prefix+"."+k, val, out)
		}
	case []any:
		for i, val := range t {
			flatten(fmt.Sprintf("%s[%d]", prefix, i), val, out)
		}
	case nil:
	default:
		out[prefix] = fmt.Sprintf("%v", t)
	}
}

func driftDetail(diffs []string) string {
	if len(diffs) > maxDriftDetails {
		extra := len(diffs) - maxDriftDetails
		diffs = append(diffs[:maxDriftDetails:maxDriftDetails], fmt.Sprintf("and %d more", extra))
	}
	return strings.Join(diffs, "; ")
}

func docKeys(docs map[string]map[string]string) []string {
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func leafPaths(leaves map[string]string) []string {
	paths := make([]string, 0, len(leaves))
	for p := range leaves {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
