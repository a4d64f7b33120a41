// Package extract detects which optional manifest blocks each service uses
// and unions them into one feature picture per resource kind. The union is
// what makes the shared templates safe: a block any single service carries
// must be representable by the template every service renders through.
package extract

import "github.com/chartfold/chartfold/internal/resource"

// RenderStyle picks how the template emits a block.
type RenderStyle int

const (
	// RenderScalar emits the field inline behind a truthy if gate.
	RenderScalar RenderStyle = iota

	// RenderKeyed emits the field inline behind a hasKey gate, so zero
	// values like hostNetwork false stay representable.
	RenderKeyed

	// RenderBlock pipes the whole value through toYaml behind a with
	// gate, preserving arbitrary nested structure.
	RenderBlock

	// RenderFlag emits the generated service account name when the
	// boolean flag is set. serviceAccountName only.
	RenderFlag
)

// Block is one catalog entry: an optional manifest block the templates
// know how to gate. The catalog is versioned with the binary; adding a
// block here is the only step needed to start templating it.
type Block struct {
	// Name is the values key and the block identifier in descriptors.
	Name string

	// Field is the manifest key the template emits when it differs from
	// Name. podSecurityContext renders as securityContext.
	Field string

	// Path locates the block in the source document: relative to one
	// container mapping when Container is set, absolute otherwise.
	Path string

	// Container marks blocks that live inside each container entry.
	Container bool

	// Repeating marks collections with per-item identity (env entries,
	// ports, volumes). Singleton blocks appear at most once per parent.
	Repeating bool

	// Variants are the mutually exclusive sub-keys tracked for the
	// block, probe handler shapes being the only current case.
	Variants []string

	// Render is the emission style for the block's template segment.
	Render RenderStyle
}

// FieldName returns the manifest key the template emits for the block.
func (b Block) FieldName() string {
	if b.Field != "" {
		return b.Field
	}
	return b.Name
}

var probeVariants = []string{"httpGet", "tcpSocket", "grpc", "exec"}

// deploymentCatalog lists Deployment blocks in template emission order:
// spec-level first, then per-container blocks in the order they appear
// inside the range, then pod-level blocks.
var deploymentCatalog = []Block{
	{Name: "replicas", Path: "spec.replicas", Render: RenderScalar},
	{Name: "strategy", Path: "spec.strategy", Render: RenderBlock},
	{Name: "initContainers", Path: "spec.template.spec.initContainers", Repeating: true, Render: RenderBlock},

	{Name: "imagePullPolicy", Path: "imagePullPolicy", Container: true, Render: RenderScalar},
	{Name: "command", Path: "command", Container: true, Repeating: true, Render: RenderBlock},
	{Name: "args", Path: "args", Container: true, Repeating: true, Render: RenderBlock},
	{Name: "env", Path: "env", Container: true, Repeating: true, Render: RenderBlock},
	{Name: "envFrom", Path: "envFrom", Container: true, Repeating: true, Render: RenderBlock},
	{Name: "ports", Path: "ports", Container: true, Repeating: true, Render: RenderBlock},
	{Name: "livenessProbe", Path: "livenessProbe", Container: true, Variants: probeVariants, Render: RenderBlock},
	{Name: "readinessProbe", Path: "readinessProbe", Container: true, Variants: probeVariants, Render: RenderBlock},
	{Name: "startupProbe", Path: "startupProbe", Container: true, Variants: probeVariants, Render: RenderBlock},
	{Name: "resources", Path: "resources", Container: true, Render: RenderBlock},
	{Name: "volumeMounts", Path: "volumeMounts", Container: true, Repeating: true, Render: RenderBlock},
	{Name: "securityContext", Path: "securityContext", Container: true, Render: RenderBlock},

	{Name: "podSecurityContext", Field: "securityContext", Path: "spec.template.spec.securityContext", Render: RenderBlock},
	{Name: "serviceAccountName", Path: "spec.template.spec.serviceAccountName", Render: RenderFlag},
	{Name: "terminationGracePeriodSeconds", Path: "spec.template.spec.terminationGracePeriodSeconds", Render: RenderKeyed},
	{Name: "hostNetwork", Path: "spec.template.spec.hostNetwork", Render: RenderKeyed},
	{Name: "dnsPolicy", Path: "spec.template.spec.dnsPolicy", Render: RenderScalar},
	{Name: "volumes", Path: "spec.template.spec.volumes", Repeating: true, Render: RenderBlock},
	{Name: "nodeSelector", Path: "spec.template.spec.nodeSelector", Repeating: true, Render: RenderBlock},
	{Name: "affinity", Path: "spec.template.spec.affinity", Render: RenderBlock},
	{Name: "tolerations", Path: "spec.template.spec.tolerations", Repeating: true, Render: RenderBlock},
}

// serviceCatalog lists Service blocks. The type field and selector are
// part of the fixed skeleton, not the catalog.
var serviceCatalog = []Block{
	{Name: "ports", Path: "spec.ports", Repeating: true, Render: RenderBlock},
	{Name: "clusterIP", Path: "spec.clusterIP", Render: RenderScalar},
	{Name: "externalTrafficPolicy", Path: "spec.externalTrafficPolicy", Render: RenderScalar},
	{Name: "sessionAffinity", Path: "spec.sessionAffinity", Render: RenderScalar},
}

// serviceAccountCatalog lists ServiceAccount blocks. imagePullSecrets and
// automountServiceAccountToken sit at the document root on this kind.
var serviceAccountCatalog = []Block{
	{Name: "annotations", Path: "metadata.annotations", Repeating: true, Render: RenderBlock},
	{Name: "imagePullSecrets", Path: "imagePullSecrets", Repeating: true, Render: RenderBlock},
	{Name: "automountServiceAccountToken", Path: "automountServiceAccountToken", Render: RenderKeyed},
}

// CatalogFor returns the ordered block catalog for a kind, nil when the
// kind has no catalog.
func CatalogFor(kind string) []Block {
	switch kind {
	case resource.KindDeployment:
		return deploymentCatalog
	case resource.KindService:
		return serviceCatalog
	case resource.KindServiceAccount:
		return serviceAccountCatalog
	}
	return nil
}

// CatalogBlock returns one catalog entry by kind and name.
func CatalogBlock(kind, name string) (Block, bool) {
	for _, b := range CatalogFor(kind) {
		if b.Name == name {
			return b, true
		}
	}
	return Block{}, false
}
