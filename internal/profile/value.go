// Package profile models extracted profile data as a recursive value type with
// deterministic merge semantics.
//
// Extraction output arrives as loosely-typed JSON. Instead of merging raw
// map[string]any blobs by convention, the pipeline converts them into Value
// trees and merges those with explicit precedence rules:
//
//   - two lists concatenate
//   - two maps merge per key, recursing with the same rules
//   - anything else: the later value wins
package profile

import "maps"

// Kind discriminates the Value variants.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindMap
)

// Value is a recursive variant over JSON-shaped data.
// The zero Value is a nil scalar.
type Value struct {
	kind   Kind
	scalar any
	list   []Value
	object map[string]Value
}

// Scalar wraps a scalar (string, number, bool, nil) as a Value.
func Scalar(v any) Value {
	return Value{kind: KindScalar, scalar: v}
}

// List wraps a slice of values.
func List(vs ...Value) Value {
	return Value{kind: KindList, list: vs}
}

// Map wraps a keyed set of values.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, object: m}
}

// Kind returns the variant of this value.
func (v Value) Kind() Kind { return v.kind }

// FromAny converts decoded JSON (as produced by encoding/json into any) into a
// Value tree. Unknown types are treated as scalars.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, v := range t {
			m[k] = FromAny(v)
		}
		return Map(m)
	case []any:
		l := make([]Value, len(t))
		for i, v := range t {
			l[i] = FromAny(v)
		}
		return Value{kind: KindList, list: l}
	default:
		return Scalar(raw)
	}
}

// ToAny converts a Value tree back into plain JSON-shaped data.
func (v Value) ToAny() any {
	switch v.kind {
	case KindList:
		l := make([]any, len(v.list))
		for i, e := range v.list {
			l[i] = e.ToAny()
		}
		return l
	case KindMap:
		m := make(map[string]any, len(v.object))
		for k, e := range v.object {
			m[k] = e.ToAny()
		}
		return m
	default:
		return v.scalar
	}
}

// Merge combines two values. Lists concatenate, maps merge per key with the
// same rules applied recursively, and in every other pairing b wins. Neither
// input is mutated.
func Merge(a, b Value) Value {
	switch {
	case a.kind == KindList && b.kind == KindList:
		merged := make([]Value, 0, len(a.list)+len(b.list))
		merged = append(merged, a.list...)
		merged = append(merged, b.list...)
		return Value{kind: KindList, list: merged}

	case a.kind == KindMap && b.kind == KindMap:
		merged := make(map[string]Value, len(a.object)+len(b.object))
		maps.Copy(merged, a.object)
		for k, bv := range b.object {
			if av, ok := merged[k]; ok {
				merged[k] = Merge(av, bv)
			} else {
				merged[k] = bv
			}
		}
		return Value{kind: KindMap, object: merged}

	default:
		return b
	}
}

// MergeMaps folds a sequence of JSON objects into one, left to right, using
// Merge precedence. Used by the batch merge to combine per-conversation
// insights in processing order.
func MergeMaps(objects ...map[string]any) map[string]any {
	acc := Map(nil)
	for _, obj := range objects {
		acc = Merge(acc, FromAny(obj))
	}
	out, ok := acc.ToAny().(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return out
}
