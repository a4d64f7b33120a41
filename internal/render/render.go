// Package render executes chart templates with Helm's dialect: sprig
// functions plus include, toYaml and friends, against a .Values/.Chart/
// .Release context. It exists so a refactored chart can be rendered
// in-process and compared with its input without shelling out to helm.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"

	"github.com/chartfold/chartfold/internal/resource"
)

// Engine holds one template namespace. Every added file shares defines,
// the way files in a chart's templates directory do.
type Engine struct {
	root *template.Template
}

// NewEngine returns an engine with the Helm function surface installed.
// Missing keys resolve to zero values, matching helm's non-strict mode.
func NewEngine() *Engine {
	root := template.New("chartfold").Option("missingkey=zero")
	root.Funcs(sprig.TxtFuncMap()).Funcs(helmFuncs(root))
	return &Engine{root: root}
}

// AddFile parses one template file into the shared namespace.
func (e *Engine) AddFile(name, content string) error {
	if _, err := e.root.New(name).Parse(content); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// Render executes one previously added file.
func (e *Engine) Render(name string, ctx map[string]any) (string, error) {
	var buf strings.Builder
	if err := e.root.ExecuteTemplate(&buf, name, ctx); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Context builds the root dot for a render: values plus chart and
// release metadata. The release is named after the chart so fullname
// collapses to the chart name, the way helm template <chart> renders.
func Context(values map[string]any, chart resource.ChartInfo) map[string]any {
	return map[string]any{
		"Values": values,
		"Chart": map[string]any{
			"Name":       chart.Name,
			"Version":    chart.Version,
			"AppVersion": chart.AppVersion,
		},
		"Release": map[string]any{
			"Name":      chart.Name,
			"Namespace": "default",
			"Service":   "Helm",
			"IsInstall": true,
			"IsUpgrade": false,
		},
	}
}

// Documents splits rendered output into decoded manifest documents,
// dropping the empty ones a defines-only file leaves behind.
func Documents(rendered string) ([]map[string]any, error) {
	var docs []map[string]any
	for _, part := range resource.SplitDocuments(rendered) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		doc := map[string]any{}
		if err := yaml.Unmarshal([]byte(part), &doc); err != nil {
			return nil, fmt.Errorf("decode rendered document: %w", err)
		}
		if len(doc) == 0 {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// helmFuncs supplies the functions helm layers onto sprig. include and
// tpl close over the root template so they see every define.
func helmFuncs(root *template.Template) template.FuncMap {
	return template.FuncMap{
		"include": func(name string, data any) (string, error) {
			var buf strings.Builder
			if err := root.ExecuteTemplate(&buf, name, data); err != nil {
				return "", err
			}
			return buf.String(), nil
		},
		"toYaml": func(v any) string {
			var buf bytes.Buffer
			enc := yaml.NewEncoder(&buf)
			enc.SetIndent(2)
			if err := enc.Encode(v); err != nil {
				return ""
			}
			enc.Close()
			return strings.TrimSuffix(buf.String(), "\n")
		},
		"fromYaml": func(s string) map[string]any {
			m := map[string]any{}
			if err := yaml.Unmarshal([]byte(s), &m); err != nil {
				return map[string]any{"Error": err.Error()}
			}
			return m
		},
		"tpl": func(s string, data any) (string, error) {
			clone, err := root.Clone()
			if err != nil {
				return "", err
			}
			t, err := clone.New("tpl").Parse(s)
			if err != nil {
				return "", fmt.Errorf("tpl parse error: %w", err)
			}
			var buf strings.Builder
			if err := t.Execute(&buf, data); err != nil {
				return "", err
			}
			return buf.String(), nil
		},
		"required": func(msg string, v any) (any, error) {
			if v == nil {
				return nil, errors.New(msg)
			}
			if s, ok := v.(string); ok && s == "" {
				return nil, errors.New(msg)
			}
			return v, nil
		},
		"lookup": func(string, string, string, string) map[string]any {
			return map[string]any{}
		},
	}
}
