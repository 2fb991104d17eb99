package rewrite

import (
	"testing"

	"github.com/danmuck/mirbridge/internal/structured"
	"github.com/danmuck/mirbridge/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
)

var (
	sampleFrames   = []string{"base_link", "odom", "/odom", "laser/front", "map", "/map/", "r10/odom", ""}
	samplePrefixes = []string{"", "mir", "r1", "fleet/r1", "/mir/"}
)

func headerMsg(frame string) structured.Value {
	return structured.Map(map[string]structured.Value{
		"header": structured.Map(map[string]structured.Value{
			"frame_id": structured.String(frame),
			"seq":      structured.Scalar(float64(7)),
		}),
	})
}

func frameOf(t *testing.T, v structured.Value) string {
	t.Helper()
	header, ok := v.Get("header")
	if !ok {
		t.Fatalf("missing header in %s", v)
	}
	raw, ok := header.Get("frame_id")
	if !ok {
		t.Fatalf("missing frame_id in %s", v)
	}
	s, ok := raw.AsString()
	if !ok {
		t.Fatalf("frame_id is not a string in %s", v)
	}
	return s
}

func assertTree(t *testing.T, got, want structured.Value) {
	t.Helper()
	if diff := cmp.Diff(want.ToAny(), got.ToAny()); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestInjectIsIdempotent(t *testing.T) {
	testlog.Start(t)
	for _, p := range samplePrefixes {
		ns := NewNamespace(p)
		for _, f := range sampleFrames {
			once := Inject(headerMsg(f), ns)
			twice := Inject(once, ns)
			assertTree(t, twice, once)
		}
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	testlog.Start(t)
	for _, p := range samplePrefixes {
		ns := NewNamespace(p)
		for _, f := range sampleFrames {
			once := Remove(Inject(headerMsg(f), ns), ns)
			twice := Remove(once, ns)
			assertTree(t, twice, once)
		}
	}
}

func TestRemoveUndoesInject(t *testing.T) {
	testlog.Start(t)
	frames := []string{"base_link", "odom", "laser/front", "r10/odom"}
	for _, p := range []string{"mir", "r1", "fleet/r1"} {
		ns := NewNamespace(p)
		for _, f := range frames {
			got := frameOf(t, Remove(Inject(headerMsg(f), ns), ns))
			if got != f {
				t.Fatalf("prefix=%q frame=%q round trip got %q", p, f, got)
			}
		}
		got := frameOf(t, Remove(Inject(headerMsg("/map"), ns), ns))
		if got != "map" {
			t.Fatalf("prefix=%q map frame normalized to %q", p, got)
		}
	}
}

func TestPrefixRoundTrip(t *testing.T) {
	testlog.Start(t)
	ns := NewNamespace("mir")
	injected := Inject(headerMsg("base_link"), ns)
	if got := frameOf(t, injected); got != "mir/base_link" {
		t.Fatalf("inject got %q", got)
	}
	if got := frameOf(t, Remove(injected, ns)); got != "base_link" {
		t.Fatalf("remove got %q", got)
	}
}

func TestInjectLeavesGlobalFrame(t *testing.T) {
	testlog.Start(t)
	for _, p := range samplePrefixes {
		if got := frameOf(t, Inject(headerMsg("map"), NewNamespace(p))); got != "map" {
			t.Fatalf("prefix=%q map became %q", p, got)
		}
	}
}

func TestInjectNestedHeaderOnly(t *testing.T) {
	testlog.Start(t)
	in := structured.MustParse(`{"header":{"frame_id":"/odom"},"child_frame_id":"base"}`)
	got := Inject(in, NewNamespace("r1"))
	assertTree(t, got, structured.MustParse(`{"header":{"frame_id":"r1/odom"},"child_frame_id":"base"}`))
}

func TestInjectWalksSequencesAndNesting(t *testing.T) {
	testlog.Start(t)
	in := structured.MustParse(`{
		"header": {"frame_id": "base"},
		"status": [
			{"header": {"frame_id": "a"}, "name": "x"},
			{"inner": {"header": {"frame_id": "/b/"}}}
		],
		"feedback": {"base_position": {"header": {"frame_id": "map"}}}
	}`)
	want := structured.MustParse(`{
		"header": {"frame_id": "mir/base"},
		"status": [
			{"header": {"frame_id": "mir/a"}, "name": "x"},
			{"inner": {"header": {"frame_id": "mir/b"}}}
		],
		"feedback": {"base_position": {"header": {"frame_id": "map"}}}
	}`)
	assertTree(t, Inject(in, NewNamespace("mir")), want)
}

func TestRewriteToleratesNonTrees(t *testing.T) {
	testlog.Start(t)
	ns := NewNamespace("mir")
	cases := []structured.Value{
		structured.String("plain"),
		structured.Null(),
		structured.MustParse(`{"header":"not-a-map"}`),
		structured.MustParse(`{"header":{"stamp":1}}`),
		structured.MustParse(`{"header":{"frame_id":5}}`),
		structured.MustParse(`[1,2,3]`),
	}
	for _, in := range cases {
		assertTree(t, Inject(in, ns), in)
		assertTree(t, Remove(in, ns), in)
	}
}

func TestRewriteDoesNotMutateInput(t *testing.T) {
	testlog.Start(t)
	in := headerMsg("base_link")
	_ = Inject(in, NewNamespace("mir"))
	if got := frameOf(t, in); got != "base_link" {
		t.Fatalf("input mutated to %q", got)
	}
}

func TestRemoveRespectsSegmentBoundary(t *testing.T) {
	testlog.Start(t)
	if got := frameOf(t, Remove(headerMsg("r10/odom"), NewNamespace("r1"))); got != "r10/odom" {
		t.Fatalf("foreign namespace stripped: %q", got)
	}
	if got := frameOf(t, Remove(headerMsg("/r1/odom"), NewNamespace("r1"))); got != "odom" {
		t.Fatalf("own namespace kept: %q", got)
	}
}

func TestProjectDropsUnlistedFields(t *testing.T) {
	testlog.Start(t)
	in := structured.MustParse(`{"status":{"text":"ok"},"feedback":{"base_position":{"x":1},"state":3}}`)
	got := Project("feedback", "base_position")(in)
	assertTree(t, got, structured.MustParse(`{"status":{"text":"ok"},"feedback":{"base_position":{"x":1}}}`))

	feedback, _ := got.Get("feedback")
	for _, k := range feedback.Keys() {
		if k != "base_position" {
			t.Fatalf("projection added or kept key %q", k)
		}
	}
}

func TestProjectNeverAddsFields(t *testing.T) {
	testlog.Start(t)
	in := structured.MustParse(`{"result":{"a":1}}`)
	got := Project("result", "a", "b", "c")(in)
	assertTree(t, got, in)

	empty := Project("result")(in)
	assertTree(t, empty, structured.MustParse(`{"result":{}}`))

	missing := Project("feedback", "x")(in)
	assertTree(t, missing, in)
}

func TestPrefixChildFrames(t *testing.T) {
	testlog.Start(t)
	in := structured.MustParse(`{"transforms":[{"child_frame_id":"/base_footprint","header":{"frame_id":"odom"}},{"child_frame_id":"mir/laser"}]}`)
	got := PrefixChildFrames(NewNamespace("mir"))(in)
	want := structured.MustParse(`{"transforms":[{"child_frame_id":"mir/base_footprint","header":{"frame_id":"odom"}},{"child_frame_id":"mir/laser"}]}`)
	assertTree(t, got, want)
}

func TestChainAppliesInOrder(t *testing.T) {
	testlog.Start(t)
	ns := NewNamespace("mir")
	in := structured.MustParse(`{"header":{"frame_id":"base"},"feedback":{"base_position":{"header":{"frame_id":"odom"}},"state":1}}`)
	got := Chain(InjectFunc(ns), nil, Project("feedback", "base_position"))(in)
	want := structured.MustParse(`{"header":{"frame_id":"mir/base"},"feedback":{"base_position":{"header":{"frame_id":"mir/odom"}}}}`)
	assertTree(t, got, want)
}

func TestNamespaceNormalizes(t *testing.T) {
	testlog.Start(t)
	if got := NewNamespace(" /mir/ ").String(); got != "mir" {
		t.Fatalf("unexpected namespace %q", got)
	}
	if !NewNamespace("///").IsEmpty() {
		t.Fatalf("expected empty namespace")
	}
}

func TestRemoveLeavesForeignFramesAsGiven(t *testing.T) {
	testlog.Start(t)
	ns := NewNamespace("mir")
	for _, f := range []string{"/odom", "odom/", "/map", "map", "/r10/odom"} {
		if got := frameOf(t, Remove(headerMsg(f), ns)); got != f {
			t.Fatalf("remove(%q) = %q, want unchanged", f, got)
		}
	}
	if got := frameOf(t, Remove(headerMsg("/odom/"), NewNamespace(""))); got != "odom" {
		t.Fatalf("empty prefix should only normalize, got %q", got)
	}
}
