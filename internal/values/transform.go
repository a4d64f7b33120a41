// Package values restructures a chart's values.yaml into the canonical
// shape the shared templates read: containers grouped by name, hardcoded
// manifest blocks lifted in, template references resolved to the data
// they point at. The manifest documents are the source of truth for what
// renders; values entries nothing references are dropped so the rendered
// output never changes.
package values

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/chartfold/chartfold/internal/extract"
	"github.com/chartfold/chartfold/internal/resource"
)

// ConflictError reports a service whose values could not be restructured.
// The orchestrator leaves such a service untouched: its documents pass
// through verbatim and its values entry keeps its original shape.
type ConflictError struct {
	Service string
	Err     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("service %s: %v", e.Service, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// Result carries the transformed values document plus the per-service
// failures that did not stop the run.
type Result struct {
	// Values is the full transformed document. Keys not owned by any
	// parsed service pass through untouched.
	Values map[string]any

	// Errors holds one *ConflictError per service left untransformed.
	Errors []error

	// Skipped lists the names of those services.
	Skipped []string
}

// TransformAll restructures every service's values subtree. A conflict in
// one service never stops the others; the failed subtree stays exactly as
// it came in. Subtree keys are never renamed, because pass-through
// documents may reference them by their original spelling.
func TransformAll(values map[string]any, services []*resource.ServiceResources, chart resource.ChartInfo) *Result {
	tr := &transformer{resolver: &resolver{values: values, chart: chart}}
	result := &Result{}
	out := make(map[string]any, len(values))
	consumed := make(map[string]bool)

	for _, svc := range services {
		key := SubtreeKey(values, svc.Name)
		var subtree map[string]any
		if key != "" {
			consumed[key] = true
			subtree, _ = values[key].(map[string]any)
			if subtree == nil {
				result.Errors = append(result.Errors, &ConflictError{
					Service: svc.Name,
					Err:     fmt.Errorf("values entry %q is not a mapping: %w", key, resource.ErrShapeConflict),
				})
				result.Skipped = append(result.Skipped, svc.Name)
				out[key] = values[key]
				continue
			}
		}

		transformed, err := tr.service(svc, subtree, key)
		if err != nil {
			result.Errors = append(result.Errors, &ConflictError{Service: svc.Name, Err: err})
			result.Skipped = append(result.Skipped, svc.Name)
			if key != "" {
				out[key] = subtree
			}
			continue
		}

		switch {
		case key != "":
			out[key] = transformed
		case len(transformed) > 0:
			out[svc.Name] = transformed
		}
	}

	for k, v := range values {
		if !consumed[k] {
			out[k] = v
		}
	}

	result.Values = out
	return result
}

// SubtreeKey returns the top-level values key carrying a service's
// configuration: the exact service name when present, else helmify's
// identifier spelling of it (redis-cart is stored as redisCart).
func SubtreeKey(values map[string]any, name string) string {
	if _, ok := values[name]; ok {
		return name
	}
	var candidates []string
	for k := range values {
		if k != name && identEqual(k, name) {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	return candidates[0]
}

type transformer struct {
	*resolver
}

// service builds one service's canonical subtree from its matched values
// entry and its parsed documents.
func (tr *transformer) service(svc *resource.ServiceResources, subtree map[string]any, valuesKey string) (map[string]any, error) {
	base := make(map[string]any)
	if subtree != nil {
		base = deepCopyMap(subtree)
	}

	if svc.HasDeployment() {
		if err := tr.deployment(svc, base, valuesKey); err != nil {
			return nil, err
		}
	}
	if svc.HasService() {
		if err := tr.serviceDoc(svc, base, valuesKey); err != nil {
			return nil, err
		}
	}
	if svc.HasServiceAccount() && resource.FullnameNamed(svc.ServiceAccount) {
		if err := tr.serviceAccount(svc, base, valuesKey); err != nil {
			return nil, err
		}
	}
	return base, nil
}

func (tr *transformer) deployment(svc *resource.ServiceResources, base map[string]any, valuesKey string) error {
	doc := svc.Deployment.Doc
	raw := svc.Deployment.Raw
	docContainers := extract.Containers(doc)

	names := make([]string, 0, len(docContainers))
	for name := range docContainers {
		names = append(names, name)
	}
	sort.Strings(names)

	containers := make(map[string]any, len(names))
	for _, name := range names {
		c := docContainers[name]

		entry := make(map[string]any)
		containerKey := ""
		if m, key := matchContainer(base, name); m != nil {
			entry = deepCopyMap(m)
			containerKey = key
			delete(base, key)
		}

		img, err := tr.image(name, c, entry)
		if err != nil {
			return err
		}
		entry["image"] = img

		prefix := ""
		if valuesKey != "" && containerKey != "" {
			prefix = valuesKey + "." + containerKey
		}
		for _, b := range extract.CatalogFor(resource.KindDeployment) {
			if !b.Container {
				continue
			}
			if err := tr.lift(c, entry, b, raw, prefix); err != nil {
				return fmt.Errorf("container %s: %w", name, err)
			}
		}
		containers[name] = entry
	}
	if len(docContainers) > 0 {
		base["containers"] = containers
	}

	for _, b := range extract.CatalogFor(resource.KindDeployment) {
		if b.Container {
			continue
		}
		if b.Render == extract.RenderFlag {
			// serviceAccountName becomes a flag; the template renders
			// the generated account name from it.
			v, err := resource.Lookup(doc, b.Path)
			if err != nil {
				return err
			}
			if v.Present {
				base[b.Name] = true
			} else {
				delete(base, b.Name)
			}
			continue
		}
		if err := tr.lift(doc, base, b, raw, valuesKey); err != nil {
			return err
		}
	}
	return nil
}

// lift moves one catalog block from a document into a values mapping.
// The document is the render truth: a block it carries replaces whatever
// the values held, a block it lacks is deleted as dead configuration.
// Blocks the document injects from values through a directive line are
// invisible after sanitizing, so a values entry the raw text references
// survives on its own.
func (tr *transformer) lift(doc, dst map[string]any, b extract.Block, raw, refPrefix string) error {
	v, err := resource.Lookup(doc, b.Path)
	if err != nil {
		return err
	}
	switch {
	case v.Present:
		dst[b.Name] = tr.data(v.Data)
	case dst[b.Name] != nil && referencesKey(raw, refPrefix, b.Name):
		dst[b.Name] = tr.data(dst[b.Name])
	default:
		delete(dst, b.Name)
	}
	return nil
}

// image returns the canonical {repository, tag} mapping for a container.
// The document's image reference is authoritative; the matched values
// image mapping backs it up when the reference cannot resolve.
func (tr *transformer) image(name string, c, entry map[string]any) (map[string]any, error) {
	raw, _ := c["image"].(string)
	if strings.Contains(raw, "{{") {
		if resolved, ok := tr.embedded(raw); ok {
			raw = resolved
		} else if img, ok := entry["image"].(map[string]any); ok {
			return img, nil
		} else {
			return nil, fmt.Errorf("container %q: image reference does not resolve: %w", name, resource.ErrShapeConflict)
		}
	}
	if raw == "" {
		if img, ok := entry["image"].(map[string]any); ok {
			return img, nil
		}
		return nil, fmt.Errorf("container %q: no usable image: %w", name, resource.ErrShapeConflict)
	}

	repo, tag := splitImage(raw)
	img := map[string]any{"repository": repo}
	if tag != "" {
		img["tag"] = tag
	}
	return img, nil
}

func (tr *transformer) serviceDoc(svc *resource.ServiceResources, base map[string]any, valuesKey string) error {
	doc := svc.Service.Doc
	raw := svc.Service.Raw

	app := selectorApp(doc)
	if app != "" && app != svc.Name {
		base["app"] = app
	} else {
		delete(base, "app")
	}

	typeBlock := extract.Block{Name: "type", Path: "spec.type"}
	if err := tr.lift(doc, base, typeBlock, raw, valuesKey); err != nil {
		return err
	}

	for _, b := range extract.CatalogFor(resource.KindService) {
		if err := tr.lift(doc, base, b, raw, valuesKey); err != nil {
			return err
		}
	}
	return nil
}

func (tr *transformer) serviceAccount(svc *resource.ServiceResources, base map[string]any, valuesKey string) error {
	doc := svc.ServiceAccount.Doc
	raw := svc.ServiceAccount.Raw

	sub := make(map[string]any)
	if existing, ok := base["serviceAccount"].(map[string]any); ok {
		sub = deepCopyMap(existing)
	}

	prefix := ""
	if valuesKey != "" {
		prefix = valuesKey + ".serviceAccount"
	}
	for _, b := range extract.CatalogFor(resource.KindServiceAccount) {
		if err := tr.lift(doc, sub, b, raw, prefix); err != nil {
			return err
		}
	}

	if len(sub) > 0 {
		base["serviceAccount"] = sub
	} else {
		delete(base, "serviceAccount")
	}
	return nil
}

// selectorApp reads the app a Service targets, from its selector first
// and its labels second. Services fronting another service's pods carry
// an app different from their own name.
func selectorApp(doc map[string]any) string {
	for _, path := range []string{"spec.selector.app", "metadata.labels.app"} {
		if v, err := resource.Lookup(doc, path); err == nil && v.Present {
			if s, ok := v.Data.(string); ok && !strings.Contains(s, "{{") {
				return s
			}
		}
	}
	return ""
}

// referencesKey reports whether raw manifest text reads the values entry
// .Values.<prefix>.<name>.
func referencesKey(raw, prefix, name string) bool {
	if prefix == "" {
		return false
	}
	ref := regexp.QuoteMeta(".Values." + prefix + "." + name)
	return regexp.MustCompile(ref + `([^A-Za-z0-9_]|$)`).MatchString(raw)
}

// matchContainer finds the values entry describing a document container:
// the exact name, else the identifier spelling, among mappings that carry
// an image key.
func matchContainer(base map[string]any, name string) (map[string]any, string) {
	if m, ok := base[name].(map[string]any); ok {
		if _, hasImage := m["image"]; hasImage {
			return m, name
		}
	}
	var candidates []string
	for k, v := range base {
		m, ok := v.(map[string]any)
		if !ok || k == name || !identEqual(k, name) {
			continue
		}
		if _, hasImage := m["image"]; hasImage {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return nil, ""
	}
	sort.Strings(candidates)
	return base[candidates[0]].(map[string]any), candidates[0]
}

// identEqual compares two names ignoring case and separator punctuation,
// so redis-cart matches redisCart.
func identEqual(a, b string) bool {
	return stripSeparators(a) == stripSeparators(b)
}

func stripSeparators(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == '-' || r == '_' || r == '.' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// splitImage splits an image reference into repository and tag. A colon
// inside the registry host (localhost:5000/app) is not a tag separator.
func splitImage(ref string) (repo, tag string) {
	i := strings.LastIndex(ref, ":")
	if i < 0 || strings.Contains(ref[i:], "/") {
		return ref, ""
	}
	return ref[:i], ref[i+1:]
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	}
	return v
}
