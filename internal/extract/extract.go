package extract

import (
	"sort"

	"github.com/chartfold/chartfold/internal/resource"
)

// BlockFeature records one observed catalog block: which services carry it
// and which shape variants appeared.
type BlockFeature struct {
	Block Block

	// Variants holds the observed sub-keys in catalog order. Empty for
	// blocks without variant tracking.
	Variants []string

	// Services lists the services carrying the block, sorted.
	Services []string
}

// Descriptor is the union feature picture for one resource kind across
// every service in a chart. It is computed once, read-only afterward.
type Descriptor struct {
	Kind string

	// Blocks maps block name to its observation. A name absent here was
	// observed in no service and gets no template segment.
	Blocks map[string]*BlockFeature

	// ContainerKeys is the sorted union of container names across all
	// services of the kind.
	ContainerKeys []string

	// ServiceCount is how many services contributed a document.
	ServiceCount int
}

// Has reports whether the named block was observed in any service.
func (d *Descriptor) Has(name string) bool {
	_, ok := d.Blocks[name]
	return ok
}

// Feature returns the observation for a block name, nil when unobserved.
func (d *Descriptor) Feature(name string) *BlockFeature {
	return d.Blocks[name]
}

// Count returns how many distinct blocks were observed.
func (d *Descriptor) Count() int {
	return len(d.Blocks)
}

// Extract unions the catalog blocks observed across all services for one
// kind. Services without a document of the kind, and documents that did
// not decode, contribute nothing. Extraction never fails: malformed
// substructure reads as feature absent.
func Extract(services []*resource.ServiceResources, kind string) *Descriptor {
	d := &Descriptor{Kind: kind, Blocks: make(map[string]*BlockFeature)}
	catalog := CatalogFor(kind)

	containerNames := make(map[string]bool)

	for _, svc := range services {
		res := svc.ByKind(kind)
		if res == nil || res.Doc == nil {
			continue
		}
		d.ServiceCount++

		containers := Containers(res.Doc)
		for name := range containers {
			containerNames[name] = true
		}

		for _, b := range catalog {
			if b.Container {
				for _, c := range containers {
					d.observe(b, svc.Name, c)
				}
				continue
			}
			d.observe(b, svc.Name, res.Doc)
		}
	}

	for name := range containerNames {
		d.ContainerKeys = append(d.ContainerKeys, name)
	}
	sort.Strings(d.ContainerKeys)
	for _, f := range d.Blocks {
		sort.Strings(f.Services)
	}
	return d
}

// observe marks a block when its path holds a value, or when the key
// exists with a null one. The latter is what a sanitized directive line
// leaves behind (`ports:` followed by a values injection), and the field
// is just as much in use there.
func (d *Descriptor) observe(b Block, service string, doc map[string]any) {
	if v, err := resource.Lookup(doc, b.Path); err == nil && v.Present {
		d.mark(b, service, variantsIn(v.Data, b))
		return
	}
	if resource.NullKey(doc, b.Path) {
		d.mark(b, service, nil)
	}
}

func (d *Descriptor) mark(b Block, service string, variants []string) {
	f, ok := d.Blocks[b.Name]
	if !ok {
		f = &BlockFeature{Block: b}
		d.Blocks[b.Name] = f
	}
	appendUnique(&f.Services, service)
	for _, v := range variants {
		appendUnique(&f.Variants, v)
	}
	// Keep variant order stable regardless of which service was seen
	// first.
	sortByCatalogOrder(f.Variants, b.Variants)
}

// Containers returns the named container mappings of a Deployment
// document, keyed by container name. Unnamed entries are skipped; a
// container the template cannot address by name cannot be restructured.
func Containers(doc map[string]any) map[string]map[string]any {
	v, err := resource.Lookup(doc, "spec.template.spec.containers")
	if err != nil || !v.Present {
		return nil
	}
	seq, ok := v.Data.([]any)
	if !ok {
		return nil
	}

	out := make(map[string]map[string]any)
	for _, item := range seq {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, ok := m["name"].(string)
		if !ok || name == "" {
			continue
		}
		out[name] = m
	}
	return out
}

// variantsIn lists which of the block's variant sub-keys the value uses.
func variantsIn(data any, b Block) []string {
	if len(b.Variants) == 0 {
		return nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range b.Variants {
		if _, ok := m[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

func appendUnique(list *[]string, s string) {
	for _, have := range *list {
		if have == s {
			return
		}
	}
	*list = append(*list, s)
}

func sortByCatalogOrder(values, order []string) {
	rank := make(map[string]int, len(order))
	for i, v := range order {
		rank[v] = i
	}
	sort.SliceStable(values, func(i, j int) bool {
		return rank[values[i]] < rank[values[j]]
	})
}
