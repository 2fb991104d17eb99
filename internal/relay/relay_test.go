package relay

import (
	"testing"
	"time"

	"github.com/danmuck/mirbridge/internal/localbus"
	"github.com/danmuck/mirbridge/internal/msgs"
	"github.com/danmuck/mirbridge/internal/rewrite"
	"github.com/danmuck/mirbridge/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func recv(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for relay output")
		return nil
	}
}

func tap(t *testing.T, bus *localbus.Bus, topic string) <-chan any {
	t.Helper()
	ch := make(chan any, 4)
	if _, err := bus.Subscribe(topic, "", func(v any) { ch <- v }); err != nil {
		t.Fatalf("subscribe %s: %v", topic, err)
	}
	return ch
}

func TestOdometryIsRepublishedAndBroadcast(t *testing.T) {
	testlog.Start(t)
	bus := localbus.New(4)
	defer bus.Close()

	r, err := Start(bus, Config{Namespace: rewrite.NewNamespace("mir")}, zerolog.Nop())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Close()
	odom := tap(t, bus, "odom")
	tf := tap(t, bus, "tf")

	src, _ := bus.Advertise("mir_odom", msgs.OdometryType.Name, false, localbus.Hooks{})
	stamp := msgs.Time{Secs: 42, Nsecs: 7}
	in := msgs.Odometry{
		Header: msgs.Header{Stamp: stamp, FrameID: "mir/odom"},
		Pose: msgs.PoseWithCovariance{Pose: msgs.Pose{
			Position:    msgs.Point{X: 1.5, Y: -2},
			Orientation: msgs.Quaternion{Z: 0.7071, W: 0.7071},
		}},
	}
	sent := in
	_ = src.Publish(&sent)

	out := recv(t, odom).(*msgs.Odometry)
	if diff := cmp.Diff(&in, out); diff != "" {
		t.Fatalf("odometry should be republished unmodified (-want +got):\n%s", diff)
	}

	got := recv(t, tf).(*msgs.TFMessage)
	want := &msgs.TFMessage{Transforms: []msgs.TransformStamped{{
		Header:       msgs.Header{Stamp: stamp, FrameID: "mir/odom"},
		ChildFrameID: "mir/base_footprint",
		Transform: msgs.Transform{
			Translation: msgs.Vector3{X: 1.5, Y: -2},
			Rotation:    msgs.Quaternion{Z: 0.7071, W: 0.7071},
		},
	}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected transform (-want +got):\n%s", diff)
	}
}

func TestVelocityCommandsAreStamped(t *testing.T) {
	testlog.Start(t)
	bus := localbus.New(4)
	defer bus.Close()

	now := time.Unix(1700000000, 250)
	r, err := Start(bus, Config{Now: func() time.Time { return now }}, zerolog.Nop())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Close()
	cmd := tap(t, bus, "mir_cmd")

	src, _ := bus.Advertise("cmd_vel", msgs.TwistType.Name, false, localbus.Hooks{})
	_ = src.Publish(&msgs.Twist{Linear: msgs.Vector3{X: 0.4}, Angular: msgs.Vector3{Z: 0.1}})

	got := recv(t, cmd).(*msgs.TwistStamped)
	want := &msgs.TwistStamped{
		Header: msgs.Header{Seq: 1, Stamp: msgs.Time{Secs: 1700000000, Nsecs: 250}, FrameID: "base_link"},
		Twist:  msgs.Twist{Linear: msgs.Vector3{X: 0.4}, Angular: msgs.Vector3{Z: 0.1}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected stamped command (-want +got):\n%s", diff)
	}
}

func TestRelayDropsForeignMessages(t *testing.T) {
	testlog.Start(t)
	bus := localbus.New(4)
	defer bus.Close()
	logger, buf := testlog.Capture(t)
	r, err := Start(bus, Config{}, logger)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Close()

	src, _ := bus.Advertise("cmd_vel", "", false, localbus.Hooks{})
	_ = src.Publish("not a twist")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(buf.String()) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected a warning for the foreign message")
}

func TestLocalsMapping(t *testing.T) {
	testlog.Start(t)
	want := map[string]string{"odom": "mir_odom", "cmd_vel": "mir_cmd"}
	if diff := cmp.Diff(want, Config{}.Locals()); diff != "" {
		t.Fatalf("unexpected locals (-want +got):\n%s", diff)
	}
}
