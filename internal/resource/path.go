package resource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrShapeConflict indicates a node whose type conflicts with the structure
// a field path requires, such as a scalar where a mapping is expected.
var ErrShapeConflict = errors.New("value conflicts with expected shape")

// Value is the tagged result of a field path lookup.
type Value struct {
	// Present is true when the path resolved to a non-empty value.
	Present bool

	// Data is the resolved value; nil when absent.
	Data any
}

// pathOp is one traversal operation of a parsed field path.
type pathOp struct {
	key   string
	index int
	isKey bool
}

// parsePath splits a dot/bracket field path such as
// "spec.template.spec.containers[0].livenessProbe" into traversal ops.
func parsePath(path string) ([]pathOp, error) {
	if path == "" {
		return nil, fmt.Errorf("empty field path")
	}

	var ops []pathOp
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, fmt.Errorf("field path %q: empty segment", path)
		}

		key := seg
		var indexes []int
		for {
			open := strings.IndexByte(key, '[')
			if open < 0 {
				break
			}
			closing := strings.IndexByte(key[open:], ']')
			if closing < 0 {
				return nil, fmt.Errorf("field path %q: unterminated index in %q", path, seg)
			}
			idx, err := strconv.Atoi(key[open+1 : open+closing])
			if err != nil {
				return nil, fmt.Errorf("field path %q: bad index in %q", path, seg)
			}
			indexes = append(indexes, idx)
			key = key[:open] + key[open+closing+1:]
		}

		if key != "" {
			ops = append(ops, pathOp{key: key, isKey: true})
		}
		for _, idx := range indexes {
			ops = append(ops, pathOp{index: idx})
		}
	}
	return ops, nil
}

// Lookup resolves a field path against a decoded document.
//
// Missing keys, nil parents, out-of-range indexes, and empty
// mappings/sequences all resolve to an absent Value. Traversal through a
// node whose type cannot satisfy the path returns an error wrapping
// ErrShapeConflict; feature detection swallows that (see Has), the values
// transformer surfaces it per service.
func Lookup(doc map[string]any, path string) (Value, error) {
	ops, err := parsePath(path)
	if err != nil {
		return Value{}, err
	}

	var cur any = doc
	for _, op := range ops {
		if cur == nil {
			return Value{}, nil
		}
		if op.isKey {
			m, ok := cur.(map[string]any)
			if !ok {
				return Value{}, fmt.Errorf("%s: need mapping at %q, found %T: %w", path, op.key, cur, ErrShapeConflict)
			}
			next, ok := m[op.key]
			if !ok {
				return Value{}, nil
			}
			cur = next
			continue
		}

		seq, ok := cur.([]any)
		if !ok {
			return Value{}, fmt.Errorf("%s: need sequence at index %d, found %T: %w", path, op.index, cur, ErrShapeConflict)
		}
		if op.index < 0 || op.index >= len(seq) {
			return Value{}, nil
		}
		cur = seq[op.index]
	}

	if IsEmpty(cur) {
		return Value{}, nil
	}
	return Value{Present: true, Data: cur}, nil
}

// Has reports whether the path resolves to a non-empty value. Shape
// conflicts read as absent: malformed substructure means "feature absent",
// never an error.
func Has(doc map[string]any, path string) bool {
	v, err := Lookup(doc, path)
	return err == nil && v.Present
}

// NullKey reports whether the final path segment exists in its parent
// with a null value. Sanitizing a manifest strips directive-only lines,
// which leaves `ports:` style keys with no value; such a key still marks
// the field as in use. An explicit empty mapping or sequence does not
// count: that is authored configuration, not a stripped injection.
func NullKey(doc map[string]any, path string) bool {
	ops, err := parsePath(path)
	if err != nil {
		return false
	}

	var cur any = doc
	for i, op := range ops {
		last := i == len(ops)-1
		if op.isKey {
			m, ok := cur.(map[string]any)
			if !ok {
				return false
			}
			next, ok := m[op.key]
			if !ok {
				return false
			}
			if last {
				return next == nil
			}
			cur = next
			continue
		}

		seq, ok := cur.([]any)
		if !ok {
			return false
		}
		if op.index < 0 || op.index >= len(seq) {
			return false
		}
		if last {
			return seq[op.index] == nil
		}
		cur = seq[op.index]
	}
	return false
}

// IsEmpty reports whether a decoded value counts as absent: nil, an empty
// mapping, or an empty sequence.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
