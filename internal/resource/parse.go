package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation"
)

// excludedFiles are chart metadata or previously generated helpers, never
// per-service manifests.
var excludedFiles = map[string]bool{
	"Chart.yaml":                 true,
	"values.yaml":                true,
	"_helpers.tpl":               true,
	"_helpers-microservice.yaml": true,
}

var (
	kindLine       = regexp.MustCompile(`(?m)^kind:\s*(\w+)`)
	appLabelLine   = regexp.MustCompile(`(?m)^\s*app:\s*(\S+)\s*$`)
	fullnameSuffix = regexp.MustCompile(`name:\s*\{\{\s*include\s+"[^"]+"\s+\.\s*\}\}-(\S+)`)
	plainNameLine  = regexp.MustCompile(`(?m)^\s*name:\s+(\S+)\s*$`)

	directiveOnly  = regexp.MustCompile(`^\s*\{\{.*\}\}\s*$`)
	templatedValue = regexp.MustCompile(`^(\s*(?:- +)?[^:\n]+?: +)(\{\{.*)$`)
	templatedItem  = regexp.MustCompile(`^(\s*- +)(\{\{.*)$`)
)

// ParseResult carries everything ParseDir learned about an input chart.
type ParseResult struct {
	// Services holds one group per derived service name, in first-seen order.
	Services []*ServiceResources

	// Chart is the metadata from Chart.yaml, defaulted when absent.
	Chart ChartInfo

	// Errors collects per-file and per-document parse failures. A failure
	// never aborts the remaining files; the affected document passes
	// through verbatim instead of feeding extraction.
	Errors []error

	// Warnings collects non-fatal oddities: unnameable documents, service
	// names that are not valid DNS subdomains.
	Warnings []string
}

// ParseDir reads every manifest under inputDir, and under inputDir/templates
// when that exists, groups documents by derived service name, and returns
// the groups in first-seen order together with the chart metadata. Extra
// file names to skip, beyond the built-in exclusions, may be appended.
func ParseDir(inputDir string, extraExclude ...string) (*ParseResult, error) {
	if _, err := os.Stat(inputDir); err != nil {
		return nil, fmt.Errorf("input directory: %w", err)
	}

	result := &ParseResult{}

	chart, err := LoadChartInfo(inputDir)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not parse Chart.yaml: %v", err))
	}
	result.Chart = chart

	files, err := manifestFiles(inputDir, extraExclude)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*ServiceResources)
	var order []string
	group := func(name string) *ServiceResources {
		if svc, ok := byName[name]; ok {
			return svc
		}
		svc := &ServiceResources{Name: name}
		byName[name] = svc
		order = append(order, name)
		return svc
	}
	warnedName := make(map[string]bool)

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("read %s: %w", filepath.Base(file), err))
			continue
		}

		for _, docText := range SplitDocuments(string(data)) {
			if strings.TrimSpace(docText) == "" {
				continue
			}

			res, err := ParseDocument(docText)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("%s: %w", filepath.Base(file), err))
			}

			name := deriveServiceName(res)
			if name == "" {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("%s: could not determine service name for %s document", filepath.Base(file), kindOrUnknown(res.Kind)))
				continue
			}
			if !warnedName[name] {
				warnedName[name] = true
				if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("service name %q is not a valid DNS subdomain: %s", name, strings.Join(errs, "; ")))
				}
			}
			res.ServiceName = name
			svc := group(name)

			switch {
			case res.Doc == nil:
				// Undecodable documents pass through verbatim and never
				// feed extraction.
				svc.Others = append(svc.Others, res)
			case res.Kind == KindDeployment:
				svc.Deployment = res
			case res.Kind == KindService:
				if svc.Service == nil {
					svc.Service = res
					continue
				}
				// A second Service sharing the app label (for example
				// frontend-external) becomes its own group keyed by its
				// metadata name. Files process in sorted order, so the
				// extra Service may arrive first; when the group's own
				// document shows up later, the incumbent moves out.
				extName := deriveMetadataName(res)
				switch {
				case extName == name && deriveMetadataName(svc.Service) != name:
					prev := svc.Service
					svc.Service = res
					if prevName := deriveMetadataName(prev); prevName != "" && prevName != name {
						prev.ServiceName = prevName
						ext := group(prevName)
						if ext.Service == nil {
							ext.Service = prev
						} else {
							ext.Others = append(ext.Others, prev)
						}
					} else {
						svc.Others = append(svc.Others, prev)
					}
				case extName != "" && extName != name:
					res.ServiceName = extName
					ext := group(extName)
					if ext.Service == nil {
						ext.Service = res
					} else {
						ext.Others = append(ext.Others, res)
					}
				default:
					svc.Others = append(svc.Others, res)
				}
			case res.Kind == KindServiceAccount:
				svc.ServiceAccount = res
			default:
				svc.Others = append(svc.Others, res)
			}
		}
	}

	for _, name := range order {
		result.Services = append(result.Services, byName[name])
	}
	return result, nil
}

// ParseDocument parses one manifest document into a Resource. The returned
// Resource is always usable for verbatim pass-through; a decode error
// leaves Doc nil and is reported to the caller.
func ParseDocument(text string) (*Resource, error) {
	res := &Resource{Raw: text, Kind: sniffKind(text)}

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(Sanitize(text)), &doc); err != nil {
		return res, fmt.Errorf("decode %s document: %w", kindOrUnknown(res.Kind), err)
	}
	res.Doc = doc

	if k, ok := doc["kind"].(string); ok && k != "" && !strings.Contains(k, "{{") {
		res.Kind = k
	}
	return res, nil
}

// SplitDocuments splits multi-document YAML text on --- separator lines.
// Indentation tabs are normalized to spaces first; helmify occasionally
// emits them and the YAML decoder rejects them.
func SplitDocuments(content string) []string {
	content = strings.ReplaceAll(content, "\t", "  ")

	var docs []string
	var current []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "---" {
			if len(current) > 0 {
				docs = append(docs, strings.Join(current, "\n"))
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		docs = append(docs, strings.Join(current, "\n"))
	}
	return docs
}

// Sanitize rewrites one document so the YAML decoder accepts helmify
// output: tabs become spaces, directive-only lines (label includes, control
// lines) are dropped, and values beginning with a template expression are
// single-quoted. Raw text on the Resource keeps the original bytes; the
// sanitized form exists only for structural inspection.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\t", "  ")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		switch {
		case directiveOnly.MatchString(line):
			continue
		case templatedValue.MatchString(line):
			m := templatedValue.FindStringSubmatch(line)
			out = append(out, m[1]+quoteScalar(m[2]))
		case templatedItem.MatchString(line):
			m := templatedItem.FindStringSubmatch(line)
			out = append(out, m[1]+quoteScalar(m[2]))
		default:
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// quoteScalar wraps a value in single quotes, doubling any embedded quotes.
func quoteScalar(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// LoadChartInfo reads Chart.yaml from dir. Defaults are returned, with the
// error, when the file is missing or malformed; chart metadata problems
// never stop a refactoring run.
func LoadChartInfo(dir string) (ChartInfo, error) {
	info := DefaultChartInfo()

	data, err := os.ReadFile(filepath.Join(dir, "Chart.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return info, fmt.Errorf("read Chart.yaml: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return info, fmt.Errorf("parse Chart.yaml: %w", err)
	}

	if v, ok := raw["name"]; ok && v != nil {
		info.Name = fmt.Sprint(v)
	}
	if v, ok := raw["version"]; ok && v != nil {
		info.Version = fmt.Sprint(v)
	}
	if v, ok := raw["appVersion"]; ok && v != nil {
		info.AppVersion = fmt.Sprint(v)
	}
	return info, nil
}

// manifestFiles lists candidate manifest files under inputDir and its
// templates subdirectory, sorted for deterministic processing.
func manifestFiles(inputDir string, extraExclude []string) ([]string, error) {
	dirs := []string{inputDir, filepath.Join(inputDir, "templates")}

	skip := make(map[string]bool, len(extraExclude))
	for _, name := range extraExclude {
		skip[name] = true
	}

	var files []string
	for i, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if i > 0 && os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read input directory: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if ext := filepath.Ext(name); ext != ".yaml" && ext != ".yml" {
				continue
			}
			if excludedFiles[name] || skip[name] {
				continue
			}
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// deriveServiceName resolves the logical service that owns a document.
// The app label is the most reliable signal in helmify output, then the
// fullname include suffix on the metadata name, then the plain name.
func deriveServiceName(res *Resource) string {
	if res.Doc != nil {
		for _, path := range []string{
			"metadata.labels.app",
			"spec.selector.app",
			"spec.selector.matchLabels.app",
			"spec.template.metadata.labels.app",
		} {
			if v, err := Lookup(res.Doc, path); err == nil && v.Present {
				if s, ok := v.Data.(string); ok && s != "" && !strings.Contains(s, "{{") {
					return s
				}
			}
		}
	}
	if m := appLabelLine.FindStringSubmatch(res.Raw); m != nil && !strings.Contains(m[1], "{{") {
		return m[1]
	}
	return deriveMetadataName(res)
}

// FullnameNamed reports whether a resource's metadata name follows the
// {{ include "chart.fullname" . }}-<service> pattern the shared templates
// reproduce. Resources named any other way must pass through verbatim.
func FullnameNamed(res *Resource) bool {
	return res != nil && fullnameSuffix.MatchString(res.Raw)
}

// deriveMetadataName resolves a name from metadata alone. Extra Service
// documents that share a service's app label (frontend-external) are keyed
// this way.
func deriveMetadataName(res *Resource) string {
	if m := fullnameSuffix.FindStringSubmatch(res.Raw); m != nil {
		return m[1]
	}
	if res.Doc != nil {
		if v, err := Lookup(res.Doc, "metadata.name"); err == nil && v.Present {
			if s, ok := v.Data.(string); ok && s != "" && !strings.Contains(s, "{{") {
				return s
			}
		}
		return ""
	}
	// Undecodable documents still need a group so they can pass through;
	// the first plain name line is metadata.name in practice.
	if m := plainNameLine.FindStringSubmatch(res.Raw); m != nil && !strings.Contains(m[1], "{{") {
		return m[1]
	}
	return ""
}

// sniffKind extracts the kind from raw text without a full decode.
func sniffKind(text string) string {
	if m := kindLine.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func kindOrUnknown(kind string) string {
	if kind == "" {
		return "unknown"
	}
	return kind
}
