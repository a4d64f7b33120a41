package values

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/chartfold/chartfold/internal/resource"
)

// resolver substitutes helmify template references with the concrete data
// they point at. References resolve against the original values document
// and the chart metadata; an expression the resolver does not understand
// stays in place as a literal string.
type resolver struct {
	values map[string]any
	chart  resource.ChartInfo
}

var (
	wholeExpr = regexp.MustCompile(`^\{\{-?\s*(.*?)\s*-?\}\}$`)
	anyExpr   = regexp.MustCompile(`\{\{.*?\}\}`)
)

// data returns a deep copy of v with every resolvable template expression
// replaced. The input is never mutated; lifted document subtrees stay
// pristine.
func (r *resolver) data(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = r.data(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = r.data(val)
		}
		return out
	case string:
		if resolved, ok := r.scalar(t); ok {
			return resolved
		}
		return t
	}
	return v
}

// scalar resolves a string that is exactly one template expression.
func (r *resolver) scalar(s string) (any, bool) {
	m := wholeExpr.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil, false
	}
	return r.expression(m[1])
}

// embedded resolves a string with template expressions mixed into literal
// text, the helmify image form. Every expression must resolve to a
// scalar.
func (r *resolver) embedded(s string) (string, bool) {
	ok := true
	out := anyExpr.ReplaceAllStringFunc(s, func(span string) string {
		v, resolved := r.scalar(span)
		if !resolved {
			ok = false
			return span
		}
		switch v.(type) {
		case map[string]any, []any:
			ok = false
			return span
		}
		return stringify(v)
	})
	return out, ok
}

// expression evaluates the inside of one {{ }} directive: a subject
// reference followed by pipe operations.
func (r *resolver) expression(expr string) (any, bool) {
	segments := strings.Split(expr, "|")
	subject := strings.TrimSpace(segments[0])

	v, ok := r.subject(subject)
	for _, seg := range segments[1:] {
		op := strings.Fields(strings.TrimSpace(seg))
		if len(op) == 0 {
			return nil, false
		}
		switch op[0] {
		case "quote", "squote", "toYaml":
			// Quoting collapses on decode and toYaml on re-encode;
			// the data itself is what carries over.
		case "nindent", "indent":
			if len(op) != 2 {
				return nil, false
			}
		case "default":
			if len(op) != 2 {
				return nil, false
			}
			if !ok {
				v, ok = r.reference(op[1])
				if !ok {
					return nil, false
				}
			}
		default:
			// upper, replace, include, tpl, required and the rest
			// transform the value in ways lifting must not guess at.
			return nil, false
		}
	}
	if !ok {
		return nil, false
	}
	return v, true
}

// subject resolves the head of an expression: a reference, or a function
// form like "quote .Values.x" / "toYaml .Values.x".
func (r *resolver) subject(s string) (any, bool) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		return r.reference(fields[0])
	case 2:
		switch fields[0] {
		case "quote", "squote", "toYaml":
			return r.reference(fields[1])
		}
	}
	return nil, false
}

// reference resolves one argument: a .Values / .Chart path or a literal.
func (r *resolver) reference(arg string) (any, bool) {
	switch {
	case strings.HasPrefix(arg, ".Values."):
		path := strings.TrimPrefix(arg, ".Values.")
		v, err := resource.Lookup(r.values, path)
		if err != nil || !v.Present {
			return nil, false
		}
		return v.Data, true
	case arg == ".Chart.AppVersion":
		return r.chart.AppVersion, true
	case arg == ".Chart.Version":
		return r.chart.Version, true
	case arg == ".Chart.Name":
		return r.chart.Name, true
	case len(arg) >= 2 && arg[0] == '"' && arg[len(arg)-1] == '"':
		return arg[1 : len(arg)-1], true
	}
	if n, err := strconv.Atoi(arg); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return f, true
	}
	return nil, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
