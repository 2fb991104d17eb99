package structured

import (
	"encoding/json"
	"testing"

	"github.com/danmuck/mirbridge/internal/testutil/testlog"
)

func TestParseKinds(t *testing.T) {
	testlog.Start(t)
	v := MustParse(`{"a":{"b":[1,"x",true,null]},"c":2.5}`)
	if !v.IsMap() {
		t.Fatalf("expected map root, got %s", v.Kind())
	}
	a, ok := v.Get("a")
	if !ok || !a.IsMap() {
		t.Fatalf("expected nested map at a")
	}
	b, _ := a.Get("b")
	if !b.IsSeq() || b.Len() != 4 {
		t.Fatalf("expected 4-item seq, got %s len=%d", b.Kind(), b.Len())
	}
	first := b.Items()[0]
	if first.Raw() != float64(1) {
		t.Fatalf("expected float64 1, got %#v", first.Raw())
	}
	if s, ok := b.Items()[1].AsString(); !ok || s != "x" {
		t.Fatalf("expected string x, got %q ok=%v", s, ok)
	}
	if _, ok := v.Get("missing"); ok {
		t.Fatalf("missing key reported present")
	}
	if _, ok := first.Get("a"); ok {
		t.Fatalf("scalar lookup reported present")
	}
}

func TestWithDoesNotMutateReceiver(t *testing.T) {
	testlog.Start(t)
	orig := MustParse(`{"frame_id":"odom"}`)
	next := orig.With("frame_id", String("r1/odom"))

	got, _ := orig.Get("frame_id")
	if s, _ := got.AsString(); s != "odom" {
		t.Fatalf("receiver mutated: frame_id=%q", s)
	}
	got, _ = next.Get("frame_id")
	if s, _ := got.AsString(); s != "r1/odom" {
		t.Fatalf("unexpected frame_id=%q", s)
	}
}

func TestPickNeverAddsKeys(t *testing.T) {
	testlog.Start(t)
	v := MustParse(`{"a":1,"b":2,"state":3}`)
	got := v.Pick("a", "missing")
	if keys := got.Keys(); len(keys) != 1 || keys[0] != "a" {
		t.Fatalf("unexpected keys=%v", keys)
	}
	if scalar := String("x").Pick("a"); !scalar.Equal(String("x")) {
		t.Fatalf("pick on scalar should be identity")
	}
}

func TestTransformRebuildsContainers(t *testing.T) {
	testlog.Start(t)
	orig := MustParse(`{"list":[{"n":"a"},{"n":"b"}]}`)
	out := orig.Transform(func(key string, node Value) Value {
		if key == "n" {
			s, _ := node.AsString()
			return String(s + s)
		}
		return node
	})
	want := MustParse(`{"list":[{"n":"aa"},{"n":"bb"}]}`)
	if !out.Equal(want) {
		t.Fatalf("unexpected transform result: %s", out)
	}
	if !orig.Equal(MustParse(`{"list":[{"n":"a"},{"n":"b"}]}`)) {
		t.Fatalf("transform mutated input: %s", orig)
	}
}

func TestJSONRoundTripThroughStruct(t *testing.T) {
	testlog.Start(t)
	type envelope struct {
		Op  string `json:"op"`
		Msg *Value `json:"msg,omitempty"`
	}
	msg := MustParse(`{"data":"hi"}`)
	raw, err := json.Marshal(envelope{Op: "publish", Msg: &msg})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got envelope
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Msg == nil || !got.Msg.Equal(msg) {
		t.Fatalf("unexpected msg after round trip: %v", got.Msg)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	testlog.Start(t)
	if _, err := Parse([]byte(`{} {}`)); err == nil {
		t.Fatalf("expected error for trailing data")
	}
}
