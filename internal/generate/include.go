package generate

import (
	"fmt"
	"strings"

	"github.com/chartfold/chartfold/internal/resource"
)

// Stats summarizes the size change for one generated service file.
type Stats struct {
	OriginalLines int
	NewLines      int
}

// Reduction returns the percent line reduction, zero when no replaced
// document contributed a line count.
func (s Stats) Reduction() float64 {
	if s.OriginalLines == 0 {
		return 0
	}
	return float64(s.OriginalLines-s.NewLines) / float64(s.OriginalLines) * 100
}

// IncludeFile renders the thin per-service manifest file: one include
// invocation per templated kind, verbatim pass-through for everything
// else. valuesKey names the top-level values entry the includes read;
// empty means the entry is keyed by the service name. Content is empty
// when the service carries no documents.
func IncludeFile(svc *resource.ServiceResources, valuesKey string) (string, Stats) {
	if valuesKey == "" {
		valuesKey = svc.Name
	}

	var parts []string
	var stats Stats

	addDoc := func(text string) {
		if len(parts) > 0 {
			parts = append(parts, "---")
		}
		parts = append(parts, text)
	}

	if svc.HasDeployment() {
		stats.OriginalLines += lineCount(svc.Deployment.Raw)
		addDoc(includeLine("deployment", valuesKey, svc.Name))
	}
	if svc.HasService() {
		stats.OriginalLines += lineCount(svc.Service.Raw)
		addDoc(includeLine("service", valuesKey, svc.Name))
	}
	if svc.HasServiceAccount() {
		if sa := svc.ServiceAccount; resource.FullnameNamed(sa) {
			stats.OriginalLines += lineCount(sa.Raw)
			addDoc(includeLine("serviceaccount", valuesKey, svc.Name))
		} else {
			addDoc(strings.TrimSpace(sa.Raw))
		}
	}
	for _, other := range svc.Others {
		addDoc(strings.TrimSpace(other.Raw))
	}

	if len(parts) == 0 {
		return "", stats
	}
	content := strings.Join(parts, "\n") + "\n"
	stats.NewLines = lineCount(content)
	return content, stats
}

// PassthroughFile renders every document of the service verbatim. Used
// for services whose values could not be restructured, so their manifests
// keep rendering exactly as before.
func PassthroughFile(svc *resource.ServiceResources) string {
	var parts []string
	for _, res := range []*resource.Resource{svc.Deployment, svc.Service, svc.ServiceAccount} {
		if res != nil {
			parts = append(parts, strings.TrimSpace(res.Raw))
		}
	}
	for _, other := range svc.Others {
		parts = append(parts, strings.TrimSpace(other.Raw))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n---\n") + "\n"
}

// includeLine emits one include invocation. No leading trim marker: the
// shared templates render whole documents, and trimming here would pull
// the document onto the preceding --- separator line.
func includeLine(kind, valuesKey, name string) string {
	return fmt.Sprintf(`{{ include "microservice.%s.helmify" (dict "Values" %s "root" . "serviceName" %q) }}`, kind, valuesRef(valuesKey), name)
}

func lineCount(s string) int {
	return len(strings.Split(s, "\n"))
}
