package generate

import (
	"github.com/chartfold/chartfold/internal/extract"
	"github.com/chartfold/chartfold/internal/resource"
)

// serviceTemplate renders the shared Service unit. The type field and
// selector are part of the skeleton; ports pass through whole so entries
// keep every field they came with (protocol, nodePort, appProtocol).
//
// The selector app falls back to .Values.app for services whose selector
// targets another service's pods, the frontend-external pattern.
func serviceTemplate(d *extract.Descriptor, chart resource.ChartInfo) string {
	t := &tmpl{}
	name := chart.Name

	t.add(
		"{{/*",
		"Shared service template for microservices.",
		"*/}}",
		`{{- define "microservice.service.helmify" -}}`,
		"apiVersion: v1",
		"kind: Service",
		"metadata:",
	)
	t.addf(`  name: {{ include "%s.fullname" .root }}-{{ .serviceName }}`, name)
	t.add(
		"  labels:",
		"    app: {{ .Values.app | default .serviceName }}",
	)
	t.addf(`  {{- include "%s.labels" .root | nindent 4 }}`, name)
	t.add(
		"spec:",
		`  type: {{ .Values.type | default "ClusterIP" }}`,
	)

	for _, b := range extract.CatalogFor(resource.KindService) {
		if b.Name == "ports" || !d.Has(b.Name) {
			continue
		}
		t.gate(b, 2, name)
	}

	t.add(
		"  selector:",
		"    app: {{ .Values.app | default .serviceName }}",
	)
	t.addf(`  {{- include "%s.selectorLabels" .root | nindent 4 }}`, name)

	if d.Has("ports") {
		if b, ok := extract.CatalogBlock(resource.KindService, "ports"); ok {
			t.gate(b, 2, name)
		}
	}

	t.add("{{- end }}")
	return t.String()
}
