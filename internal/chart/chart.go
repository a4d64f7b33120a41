// Package chart orchestrates a refactoring run: parse the input chart,
// extract the shared patterns, generate templates and include files,
// transform values, and write the output chart. The stages live in
// their own packages; this one only sequences them and touches disk.
package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chartfold/chartfold/internal/config"
	"github.com/chartfold/chartfold/internal/extract"
	"github.com/chartfold/chartfold/internal/fileutil"
	"github.com/chartfold/chartfold/internal/generate"
	"github.com/chartfold/chartfold/internal/lock"
	"github.com/chartfold/chartfold/internal/render"
	"github.com/chartfold/chartfold/internal/resource"
	"github.com/chartfold/chartfold/internal/snapshot"
	"github.com/chartfold/chartfold/internal/values"
)

// ErrNoServices is returned when the input directory parses but contains
// no recognizable service manifests.
var ErrNoServices = errors.New("no services found in input chart")

// Options control one refactoring run.
type Options struct {
	InputDir  string
	OutputDir string

	// DryRun computes everything but writes nothing.
	DryRun bool

	// NoTransformValues copies the input values.yaml through unchanged.
	// The generated templates still expect the canonical layout, so this
	// leaves values migration to the caller.
	NoTransformValues bool

	// Validate runs helm template on the output directory afterwards.
	Validate bool

	// SkipSnapshot skips the pre-write snapshot of the output directory.
	SkipSnapshot bool
}

// File is one output file, path relative to the output directory.
type File struct {
	Path    string
	Content string
}

// Result summarizes a refactoring run.
type Result struct {
	Chart resource.ChartInfo

	// Services lists the parsed service names in input order.
	Services []string

	// Skipped lists services passed through verbatim after a values
	// conflict.
	Skipped []string

	// Features maps kind to the number of distinct optional blocks
	// observed across services.
	Features map[string]int

	// Stats aggregates line counts of replaced documents versus their
	// include files.
	Stats generate.Stats

	// Files holds everything the run writes (or would write, dry-run),
	// in write order.
	Files []File

	// ParseErrors and Conflicts carry the non-fatal failures: documents
	// that did not parse and services whose values did not restructure.
	ParseErrors []error
	Conflicts   []error

	// Warnings are non-fatal oddities from parsing.
	Warnings []string

	// Snapshot names the snapshot taken before writing, when one was.
	Snapshot string
}

// Refactor runs the whole pipeline. Parse and values errors are collected
// on the Result; only I/O failures and an unusable input abort the run.
func Refactor(ctx context.Context, opts Options) (*Result, error) {
	cfg, err := config.Load(opts.InputDir)
	if err != nil {
		return nil, err
	}

	parsed, err := resource.ParseDir(opts.InputDir, append([]string{cfg.HelpersFile}, cfg.ExcludeFiles...)...)
	if err != nil {
		return nil, err
	}
	if len(parsed.Services) == 0 {
		return nil, ErrNoServices
	}

	valuesDoc, valuesRaw, err := loadValues(opts.InputDir)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Chart:       parsed.Chart,
		Features:    make(map[string]int),
		ParseErrors: parsed.Errors,
		Warnings:    parsed.Warnings,
	}
	for _, svc := range parsed.Services {
		result.Services = append(result.Services, svc.Name)
	}

	// Extraction needs the complete service set; nothing is generated
	// until every document has been seen.
	var descriptors []*extract.Descriptor
	for _, kind := range resource.TemplatedKinds {
		d := extract.Extract(parsed.Services, kind)
		if d.ServiceCount == 0 {
			continue
		}
		descriptors = append(descriptors, d)
		result.Features[kind] = d.Count()
	}

	helpers, err := generate.HelpersFile(descriptors, parsed.Chart)
	if err != nil {
		return nil, err
	}
	result.Files = append(result.Files, File{
		Path:    filepath.Join("templates", cfg.HelpersFile),
		Content: helpers,
	})

	skipped := make(map[string]bool)
	valuesOut := valuesRaw
	if opts.NoTransformValues {
		result.Warnings = append(result.Warnings,
			"values.yaml copied unchanged; the generated templates expect the canonical layout")
	} else {
		transformed := values.TransformAll(valuesDoc, parsed.Services, parsed.Chart)
		result.Conflicts = transformed.Errors
		result.Skipped = transformed.Skipped
		for _, name := range transformed.Skipped {
			skipped[name] = true
		}
		valuesOut, err = marshalValues(transformed.Values)
		if err != nil {
			return nil, err
		}
	}
	result.Files = append(result.Files, File{Path: "values.yaml", Content: string(valuesOut)})

	for _, svc := range parsed.Services {
		var content string
		if skipped[svc.Name] {
			content = generate.PassthroughFile(svc)
		} else {
			var stats generate.Stats
			content, stats = generate.IncludeFile(svc, values.SubtreeKey(valuesDoc, svc.Name))
			result.Stats.OriginalLines += stats.OriginalLines
			result.Stats.NewLines += stats.NewLines
		}
		if content == "" {
			continue
		}
		result.Files = append(result.Files, File{
			Path:    filepath.Join("templates", svc.Name+".yaml"),
			Content: content,
		})
	}

	if err := addSupportingFiles(result, opts.InputDir, parsed.Chart); err != nil {
		return nil, err
	}

	if opts.DryRun {
		return result, nil
	}

	if err := writeOutput(result, opts, cfg); err != nil {
		return nil, err
	}

	if opts.Validate {
		if err := validateOutput(ctx, opts.OutputDir); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// addSupportingFiles carries over Chart.yaml and the chart's helper
// defines. A chart without its own _helpers.tpl gets the standard one,
// since the generated templates include fullname and label helpers.
func addSupportingFiles(result *Result, inputDir string, chart resource.ChartInfo) error {
	if data, err := os.ReadFile(filepath.Join(inputDir, "Chart.yaml")); err == nil {
		result.Files = append(result.Files, File{Path: "Chart.yaml", Content: string(data)})
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read Chart.yaml: %w", err)
	}

	for _, loc := range []string{"_helpers.tpl", filepath.Join("templates", "_helpers.tpl")} {
		data, err := os.ReadFile(filepath.Join(inputDir, loc))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", loc, err)
		}
		result.Files = append(result.Files, File{
			Path:    filepath.Join("templates", "_helpers.tpl"),
			Content: string(data),
		})
		return nil
	}

	result.Files = append(result.Files, File{
		Path:    filepath.Join("templates", "_helpers.tpl"),
		Content: render.DefaultHelpers(chart.Name),
	})
	return nil
}

// writeOutput writes every file under the output directory, holding the
// refactor lock and snapshotting existing content first.
func writeOutput(result *Result, opts Options, cfg *config.Config) error {
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	return lock.WithLock(opts.OutputDir, "refactor", func() error {
		if !opts.SkipSnapshot {
			name, err := snapshot.Create(opts.OutputDir, cfg.SnapshotRetention)
			if err != nil {
				return fmt.Errorf("snapshot output directory: %w", err)
			}
			result.Snapshot = name
		}

		for _, f := range result.Files {
			path := filepath.Join(opts.OutputDir, f.Path)
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("create %s: %w", filepath.Dir(f.Path), err)
			}
			if err := fileutil.WriteFile(path, []byte(f.Content), 0644); err != nil {
				return fmt.Errorf("write %s: %w", f.Path, err)
			}
		}
		return nil
	})
}

// validateOutput runs helm template against the written chart when helm
// is installed.
func validateOutput(ctx context.Context, outputDir string) error {
	helmPath, err := exec.LookPath("helm")
	if err != nil {
		return fmt.Errorf("helm not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, helmPath, "template", outputDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("helm template failed: %w\n%s", err, bytes.TrimSpace(out))
	}
	return nil
}

// loadValues reads the input values.yaml, returning both the decoded
// document and the raw bytes. A missing file is an empty document.
func loadValues(inputDir string) (map[string]any, []byte, error) {
	data, err := os.ReadFile(filepath.Join(inputDir, "values.yaml"))
	if os.IsNotExist(err) {
		return map[string]any{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read values.yaml: %w", err)
	}

	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse values.yaml: %w", err)
	}
	return doc, data, nil
}

// marshalValues serializes the transformed values document. yaml.v3
// sorts map keys, so output is deterministic for a given tree.
func marshalValues(doc map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("serialize values.yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("serialize values.yaml: %w", err)
	}
	return buf.Bytes(), nil
}
