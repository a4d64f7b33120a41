package generate

import (
	"strings"

	"github.com/chartfold/chartfold/internal/extract"
	"github.com/chartfold/chartfold/internal/resource"
)

// deploymentTemplate renders the shared Deployment unit: fixed skeleton
// (metadata, selector, pod template, container range with name and image)
// interleaved with one gated segment per observed block, in catalog order.
func deploymentTemplate(d *extract.Descriptor, chart resource.ChartInfo) string {
	t := &tmpl{}
	name := chart.Name

	t.add(
		"{{/*",
		"Shared deployment template for microservices.",
		"Renders one Deployment from a service's values subtree; optional",
		"blocks appear only when the subtree carries them.",
		"*/}}",
		`{{- define "microservice.deployment.helmify" -}}`,
		"apiVersion: apps/v1",
		"kind: Deployment",
		"metadata:",
	)
	t.addf(`  name: {{ include "%s.fullname" .root }}-{{ .serviceName }}`, name)
	t.add(
		"  labels:",
		"    app: {{ .serviceName }}",
	)
	t.addf(`  {{- include "%s.labels" .root | nindent 4 }}`, name)
	t.add("spec:")

	spec, container, pod := deploymentStages(d)

	for _, b := range spec {
		t.gate(b, 2, name)
	}

	t.add(
		"  selector:",
		"    matchLabels:",
		"      app: {{ .serviceName }}",
	)
	t.addf(`    {{- include "%s.selectorLabels" .root | nindent 6 }}`, name)
	t.add(
		"  template:",
		"    metadata:",
		"      labels:",
		"        app: {{ .serviceName }}",
	)
	t.addf(`      {{- include "%s.selectorLabels" .root | nindent 8 }}`, name)
	t.add("    spec:")

	for _, b := range pod {
		if b.Name == "initContainers" {
			t.gate(b, 6, name)
		}
	}

	t.add(
		"      containers:",
		"      {{- range $containerName, $container := .Values.containers }}",
		"      - name: {{ $containerName }}",
		"        image: {{ $container.image.repository }}:{{ $container.image.tag | default $.root.Chart.AppVersion }}",
	)
	for _, b := range container {
		t.gate(b, 8, name)
	}
	t.add("      {{- end }}")

	for _, b := range pod {
		if b.Name != "initContainers" {
			t.gate(b, 6, name)
		}
	}

	t.add("{{- end }}")
	return t.String()
}

// deploymentStages splits the observed catalog blocks by where they render:
// directly under spec, inside the container range, or at pod level.
func deploymentStages(d *extract.Descriptor) (spec, container, pod []extract.Block) {
	for _, b := range extract.CatalogFor(resource.KindDeployment) {
		if !d.Has(b.Name) {
			continue
		}
		switch {
		case b.Container:
			container = append(container, b)
		case strings.HasPrefix(b.Path, "spec.template."):
			pod = append(pod, b)
		default:
			spec = append(spec, b)
		}
	}
	return spec, container, pod
}
