// Package structured holds the generic message tree exchanged with the remote bus.
//
// A Value is exactly one of: a mapping (string -> Value), a sequence of Values, or a
// scalar (string, float64, bool, nil). Values are treated as immutable: every
// operation that changes a tree returns a new one and leaves the receiver untouched.
package structured

import (
	"fmt"
	"reflect"
	"sort"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindScalar Kind = iota
	KindMap
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMap:
		return "map"
	case KindSeq:
		return "seq"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is one node of a structured message tree. The zero Value is a nil scalar.
type Value struct {
	kind   Kind
	fields map[string]Value
	items  []Value
	scalar any
}

// Map builds a mapping node. The input map is copied.
func Map(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindMap, fields: cp}
}

// Seq builds a sequence node. The input slice is copied.
func Seq(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindSeq, items: cp}
}

// Scalar wraps a leaf value.
func Scalar(v any) Value {
	return Value{kind: KindScalar, scalar: v}
}

// String wraps a string leaf.
func String(s string) Value {
	return Scalar(s)
}

// Null is the nil scalar.
func Null() Value {
	return Value{}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsMap() bool {
	return v.kind == KindMap
}

func (v Value) IsSeq() bool {
	return v.kind == KindSeq
}

func (v Value) IsScalar() bool {
	return v.kind == KindScalar
}

// Get looks up a field of a mapping. It reports false for absent keys and for
// non-mapping receivers alike.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	child, ok := v.fields[key]
	return child, ok
}

// Keys returns mapping keys in sorted order; nil for non-mappings.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len is the number of fields of a mapping or items of a sequence, 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindMap:
		return len(v.fields)
	case KindSeq:
		return len(v.items)
	default:
		return 0
	}
}

// Items returns a copy of the sequence items; nil for non-sequences.
func (v Value) Items() []Value {
	if v.kind != KindSeq {
		return nil
	}
	out := make([]Value, len(v.items))
	copy(out, v.items)
	return out
}

// Raw returns the leaf payload of a scalar, nil otherwise.
func (v Value) Raw() any {
	if v.kind != KindScalar {
		return nil
	}
	return v.scalar
}

// AsString returns the string payload of a string scalar.
func (v Value) AsString() (string, bool) {
	if v.kind != KindScalar {
		return "", false
	}
	s, ok := v.scalar.(string)
	return s, ok
}

// With returns a copy of the mapping with key set to child. Non-mappings are
// returned unchanged.
func (v Value) With(key string, child Value) Value {
	if v.kind != KindMap {
		return v
	}
	cp := make(map[string]Value, len(v.fields)+1)
	for k, f := range v.fields {
		cp[k] = f
	}
	cp[key] = child
	return Value{kind: KindMap, fields: cp}
}

// Pick returns a copy of the mapping that keeps only the listed keys that are
// present. It never adds keys. Non-mappings are returned unchanged.
func (v Value) Pick(keys ...string) Value {
	if v.kind != KindMap {
		return v
	}
	cp := make(map[string]Value, len(keys))
	for _, k := range keys {
		if f, ok := v.fields[k]; ok {
			cp[k] = f
		}
	}
	return Value{kind: KindMap, fields: cp}
}

// VisitFunc rewrites one node. key is the field name under which the node sits
// in its parent mapping, or "" for the root and for sequence items.
type VisitFunc func(key string, node Value) Value

// Transform folds fn over the tree top-down: fn sees a node first, then the
// children of whatever fn returned are visited. Containers are rebuilt, so the
// receiver is never mutated.
func (v Value) Transform(fn VisitFunc) Value {
	return transform("", v, fn)
}

func transform(key string, node Value, fn VisitFunc) Value {
	node = fn(key, node)
	switch node.kind {
	case KindMap:
		cp := make(map[string]Value, len(node.fields))
		for k, child := range node.fields {
			cp[k] = transform(k, child, fn)
		}
		return Value{kind: KindMap, fields: cp}
	case KindSeq:
		cp := make([]Value, len(node.items))
		for i, child := range node.items {
			cp[i] = transform("", child, fn)
		}
		return Value{kind: KindSeq, items: cp}
	default:
		return node
	}
}

// Equal reports deep equality of two trees.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindMap:
		if len(v.fields) != len(other.fields) {
			return false
		}
		for k, f := range v.fields {
			of, ok := other.fields[k]
			if !ok || !f.Equal(of) {
				return false
			}
		}
		return true
	case KindSeq:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(v.scalar, other.scalar)
	}
}

// FromAny converts a decoded JSON-like tree (map[string]any, []any, leaves)
// into a Value. Anything that is not a map or slice becomes a scalar.
func FromAny(in any) Value {
	switch x := in.(type) {
	case Value:
		return x
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, child := range x {
			fields[k] = FromAny(child)
		}
		return Value{kind: KindMap, fields: fields}
	case []any:
		items := make([]Value, len(x))
		for i, child := range x {
			items[i] = FromAny(child)
		}
		return Value{kind: KindSeq, items: items}
	case []string:
		items := make([]Value, len(x))
		for i, child := range x {
			items[i] = String(child)
		}
		return Value{kind: KindSeq, items: items}
	case int:
		return Scalar(float64(x))
	case int64:
		return Scalar(float64(x))
	case uint32:
		return Scalar(float64(x))
	default:
		return Scalar(in)
	}
}

// ToAny converts the tree back into map[string]any / []any / leaves.
func (v Value) ToAny() any {
	switch v.kind {
	case KindMap:
		out := make(map[string]any, len(v.fields))
		for k, f := range v.fields {
			out[k] = f.ToAny()
		}
		return out
	case KindSeq:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.ToAny()
		}
		return out
	default:
		return v.scalar
	}
}

func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.kind, err)
	}
	return string(b)
}
