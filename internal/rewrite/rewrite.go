package rewrite

import "github.com/danmuck/mirbridge/internal/structured"

const (
	headerKey       = "header"
	frameIDKey      = "frame_id"
	transformsKey   = "transforms"
	childFrameIDKey = "child_frame_id"
)

// Func is one composable message rewrite.
type Func func(structured.Value) structured.Value

// Chain composes rewrites left to right. Nil entries are skipped.
func Chain(fns ...Func) Func {
	return func(v structured.Value) structured.Value {
		for _, fn := range fns {
			if fn != nil {
				v = fn(v)
			}
		}
		return v
	}
}

// Inject namespaces every header frame_id in the tree.
func Inject(v structured.Value, ns Namespace) structured.Value {
	return rewriteHeaders(v, ns.Qualify)
}

// Remove strips the namespace from every header frame_id in the tree.
func Remove(v structured.Value, ns Namespace) structured.Value {
	return rewriteHeaders(v, ns.Unqualify)
}

// InjectFunc and RemoveFunc bind a namespace for use in a Chain.
func InjectFunc(ns Namespace) Func {
	return func(v structured.Value) structured.Value { return Inject(v, ns) }
}

func RemoveFunc(ns Namespace) Func {
	return func(v structured.Value) structured.Value { return Remove(v, ns) }
}

func rewriteHeaders(v structured.Value, frame func(string) string) structured.Value {
	return v.Transform(func(key string, node structured.Value) structured.Value {
		if key != headerKey {
			return node
		}
		return rewriteFrameField(node, frameIDKey, frame)
	})
}

// rewriteFrameField maps frame over node[field] when node is a mapping holding
// a string there; anything else is returned unchanged.
func rewriteFrameField(node structured.Value, field string, frame func(string) string) structured.Value {
	raw, ok := node.Get(field)
	if !ok {
		return node
	}
	id, ok := raw.AsString()
	if !ok {
		return node
	}
	return node.With(field, structured.String(frame(id)))
}

// Project keeps only the allowed fields of the sub-object under field. A
// missing or non-mapping sub-object leaves the value unchanged.
func Project(field string, allow ...string) Func {
	keep := append([]string(nil), allow...)
	return func(v structured.Value) structured.Value {
		sub, ok := v.Get(field)
		if !ok || !sub.IsMap() {
			return v
		}
		return v.With(field, sub.Pick(keep...))
	}
}

// PrefixChildFrames namespaces child_frame_id of every entry in a tf
// "transforms" list.
func PrefixChildFrames(ns Namespace) Func {
	return func(v structured.Value) structured.Value {
		list, ok := v.Get(transformsKey)
		if !ok || !list.IsSeq() {
			return v
		}
		items := list.Items()
		for i, item := range items {
			items[i] = rewriteFrameField(item, childFrameIDKey, ns.Qualify)
		}
		return v.With(transformsKey, structured.Seq(items...))
	}
}
