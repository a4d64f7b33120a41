// Package generate renders the shared template units, the helpers file
// that holds them, and the thin per-service include files. Output is a
// pure function of the feature descriptors and chart metadata: the same
// inputs always produce byte-identical text.
package generate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chartfold/chartfold/internal/extract"
	"github.com/chartfold/chartfold/internal/resource"
)

// ErrUnsupportedKind indicates a kind with no registered template
// skeleton. This is fatal: emitting a template for an unknown kind could
// silently drop fields.
var ErrUnsupportedKind = errors.New("no template registered for kind")

// HelpersFileName is the output file holding the shared templates.
const HelpersFileName = "_helpers-microservice.yaml"

type builder func(*extract.Descriptor, resource.ChartInfo) string

var builders = map[string]builder{
	resource.KindDeployment:     deploymentTemplate,
	resource.KindService:        serviceTemplate,
	resource.KindServiceAccount: serviceAccountTemplate,
}

// Template renders the shared template unit for the descriptor's kind.
func Template(d *extract.Descriptor, chart resource.ChartInfo) (string, error) {
	b, ok := builders[d.Kind]
	if !ok {
		return "", fmt.Errorf("%s: %w", d.Kind, ErrUnsupportedKind)
	}
	return b(d, chart), nil
}

// tmpl accumulates template lines the way the output file carries them.
type tmpl struct {
	lines []string
}

func (t *tmpl) add(lines ...string) {
	t.lines = append(t.lines, lines...)
}

func (t *tmpl) addf(format string, args ...any) {
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

func (t *tmpl) String() string {
	return strings.Join(t.lines, "\n")
}

// gate emits one conditionally-gated block segment at the given indent.
func (t *tmpl) gate(b extract.Block, indent int, chartName string) {
	pad := strings.Repeat(" ", indent)
	ref := ".Values." + b.Name
	owner := ".Values"
	if b.Container {
		ref = "$container." + b.Name
		owner = "$container"
	}

	switch b.Render {
	case extract.RenderScalar:
		t.add(
			pad+"{{- if "+ref+" }}",
			pad+b.FieldName()+": {{ "+ref+" }}",
			pad+"{{- end }}",
		)
	case extract.RenderKeyed:
		t.add(
			pad+`{{- if hasKey `+owner+` "`+b.Name+`" }}`,
			pad+b.FieldName()+": {{ "+ref+" }}",
			pad+"{{- end }}",
		)
	case extract.RenderBlock:
		t.add(
			pad+"{{- with "+ref+" }}",
			pad+b.FieldName()+":",
			pad+"  {{- toYaml . | nindent "+strconv.Itoa(indent+2)+" }}",
			pad+"{{- end }}",
		)
	case extract.RenderFlag:
		t.add(
			pad+"{{- if "+ref+" }}",
			fmt.Sprintf(`%s%s: {{ include "%s.fullname" .root }}-{{ .serviceName }}`, pad, b.FieldName(), chartName),
			pad+"{{- end }}",
		)
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// valuesRef returns the template expression addressing a service's values
// subtree. Names that are not template identifiers (redis-cart) need the
// index form; dots and dashes do not parse as field access.
func valuesRef(name string) string {
	if identifier.MatchString(name) {
		return ".Values." + name
	}
	return fmt.Sprintf("(index .Values %q)", name)
}
