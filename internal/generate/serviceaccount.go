package generate

import (
	"github.com/chartfold/chartfold/internal/extract"
	"github.com/chartfold/chartfold/internal/resource"
)

// serviceAccountTemplate renders the shared ServiceAccount unit. Optional
// blocks read from the serviceAccount sub-mapping of the service's values;
// imagePullSecrets and automountServiceAccountToken sit at the document
// root on this kind. Unlike the other kinds there is no app label:
// helmify does not put one on service accounts.
func serviceAccountTemplate(d *extract.Descriptor, chart resource.ChartInfo) string {
	t := &tmpl{}
	name := chart.Name

	t.add(
		"{{/*",
		"Shared service account template for microservices.",
		"*/}}",
		`{{- define "microservice.serviceaccount.helmify" -}}`,
		"apiVersion: v1",
		"kind: ServiceAccount",
		"metadata:",
	)
	t.addf(`  name: {{ include "%s.fullname" .root }}-{{ .serviceName }}`, name)
	t.add("  labels:")
	t.addf(`  {{- include "%s.labels" .root | nindent 4 }}`, name)

	if d.Has("annotations") {
		t.add(
			"  {{- with .Values.serviceAccount }}",
			"  {{- with .annotations }}",
			"  annotations:",
			"    {{- toYaml . | nindent 4 }}",
			"  {{- end }}",
			"  {{- end }}",
		)
	}

	if d.Has("imagePullSecrets") || d.Has("automountServiceAccountToken") {
		t.add("{{- with .Values.serviceAccount }}")
		if d.Has("imagePullSecrets") {
			t.add(
				"{{- with .imagePullSecrets }}",
				"imagePullSecrets:",
				"  {{- toYaml . | nindent 2 }}",
				"{{- end }}",
			)
		}
		if d.Has("automountServiceAccountToken") {
			t.add(
				`{{- if hasKey . "automountServiceAccountToken" }}`,
				"automountServiceAccountToken: {{ .automountServiceAccountToken }}",
				"{{- end }}",
			)
		}
		t.add("{{- end }}")
	}

	t.add("{{- end }}")
	return t.String()
}
