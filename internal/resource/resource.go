// Package resource implements the loss-preserving model for parsed chart
// manifests: one Resource per document, grouped per service, with a typed
// field path accessor for structural inspection.
package resource

// Resource kinds handled by the refactoring pipeline.
const (
	// KindDeployment identifies a Deployment document.
	KindDeployment = "Deployment"

	// KindService identifies a Service document.
	KindService = "Service"

	// KindServiceAccount identifies a ServiceAccount document.
	KindServiceAccount = "ServiceAccount"
)

// TemplatedKinds lists the kinds that receive a shared template body.
// Every other kind passes through verbatim.
var TemplatedKinds = []string{KindDeployment, KindService, KindServiceAccount}

// Resource is one parsed manifest document.
//
// Raw preserves the original text byte for byte; Doc is the structural
// decode of the sanitized text, with template expressions appearing as
// string scalars. A Resource is immutable after parsing: consumers read,
// restructuring copies.
type Resource struct {
	// Kind is the Kubernetes resource kind (Deployment, Service, ...).
	Kind string

	// ServiceName is the owning service identifier, stable across the
	// Deployment/Service/ServiceAccount of one logical service.
	ServiceName string

	// Raw is the original document text as read from the input file.
	Raw string

	// Doc is the decoded document. Nil when the document could not be
	// decoded even after sanitization.
	Doc map[string]any
}

// ServiceResources groups the documents belonging to one logical service.
type ServiceResources struct {
	// Name is the derived service identifier.
	Name string

	// Deployment, Service, and ServiceAccount hold the service's templated
	// documents, nil when absent.
	Deployment     *Resource
	Service        *Resource
	ServiceAccount *Resource

	// Others holds pass-through documents (ConfigMaps, Secrets, extra
	// Services) in input order.
	Others []*Resource
}

// HasDeployment reports whether the service has a Deployment document.
func (s *ServiceResources) HasDeployment() bool { return s.Deployment != nil }

// HasService reports whether the service has a Service document.
func (s *ServiceResources) HasService() bool { return s.Service != nil }

// HasServiceAccount reports whether the service has a ServiceAccount document.
func (s *ServiceResources) HasServiceAccount() bool { return s.ServiceAccount != nil }

// ByKind returns the service's documents of the given templated kind.
func (s *ServiceResources) ByKind(kind string) *Resource {
	switch kind {
	case KindDeployment:
		return s.Deployment
	case KindService:
		return s.Service
	case KindServiceAccount:
		return s.ServiceAccount
	}
	return nil
}

// ChartInfo carries the chart metadata read from Chart.yaml.
type ChartInfo struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	AppVersion string `yaml:"appVersion"`
}

// DefaultChartInfo returns the metadata used when Chart.yaml is missing or
// unreadable. The name matches what helmify emits by default.
func DefaultChartInfo() ChartInfo {
	return ChartInfo{Name: "helm", Version: "0.1.0", AppVersion: "0.1.0"}
}
