package rewrite

import "strings"

// GlobalFrame is the frame shared by every robot on the local bus.
const GlobalFrame = "map"

const separator = "/"

// Namespace is the frame prefix of one bridged robot. Construct with
// NewNamespace; the zero value is the empty prefix.
type Namespace struct {
	prefix string
}

// NewNamespace normalizes raw by stripping leading and trailing separators.
func NewNamespace(raw string) Namespace {
	return Namespace{prefix: strip(strings.TrimSpace(raw))}
}

func (n Namespace) String() string {
	return n.prefix
}

func (n Namespace) IsEmpty() bool {
	return n.prefix == ""
}

// Qualify prefixes one frame identifier. Frames already inside the namespace
// are only normalized, so Qualify is idempotent.
func (n Namespace) Qualify(frame string) string {
	f := strip(frame)
	if f == GlobalFrame {
		return GlobalFrame
	}
	if n.owns(f) {
		return f
	}
	return strip(n.prefix + separator + f)
}

// Unqualify drops the namespace from one frame identifier. Frames outside the
// namespace are returned as given; with the empty prefix every frame is only
// normalized.
func (n Namespace) Unqualify(frame string) string {
	s := strip(frame)
	if n.prefix == "" {
		return s
	}
	if !n.owns(s) {
		return frame
	}
	return strip(s[len(n.prefix):])
}

// owns reports whether f starts with the prefix as a whole path segment.
func (n Namespace) owns(f string) bool {
	if n.prefix == "" {
		return false
	}
	return f == n.prefix || strings.HasPrefix(f, n.prefix+separator)
}

func strip(s string) string {
	return strings.Trim(s, separator)
}
