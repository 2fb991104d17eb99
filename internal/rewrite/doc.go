// Package rewrite implements the structural rewrites applied to messages as they
// cross the bridge.
//
// Frame identifiers found under any "header" mapping are namespaced on the way
// in (Inject) and un-namespaced on the way out (Remove). The "map" frame is the
// shared global frame and is never namespaced.
//
// All rewrites are pure: they return a new structured.Value and never mutate
// their input, so rewrites can be chained freely on the same message.
package rewrite
