// Package relay adapts the robot's raw odometry and velocity topics for local
// consumers: odometry is republished and broadcast as a transform, and plain
// velocity commands are stamped before they are sent to the robot.
package relay

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/mirbridge/internal/localbus"
	"github.com/danmuck/mirbridge/internal/msgs"
	"github.com/danmuck/mirbridge/internal/rewrite"
	"github.com/rs/zerolog"
)

var ErrUnexpectedMessage = errors.New("relay: unexpected message type")

// Bus is the subset of the local bus the relay needs.
type Bus interface {
	Advertise(topic, typeName string, retained bool, hooks localbus.Hooks) (*localbus.Publisher, error)
	Subscribe(topic, typeName string, handler func(any)) (*localbus.Subscription, error)
}

type Config struct {
	Namespace  rewrite.Namespace
	OdomIn     string
	OdomOut    string
	TFTopic    string
	CmdIn      string
	CmdOut     string
	CmdFrame   string
	ChildFrame string
	Now        func() time.Time
}

func DefaultConfig() Config {
	return Config{
		OdomIn:     "mir_odom",
		OdomOut:    "odom",
		TFTopic:    "tf",
		CmdIn:      "cmd_vel",
		CmdOut:     "mir_cmd",
		CmdFrame:   "base_link",
		ChildFrame: "base_footprint",
		Now:        time.Now,
	}
}

// WithDefaults keeps Namespace and fills every other zero field.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.OdomIn == "" {
		c.OdomIn = d.OdomIn
	}
	if c.OdomOut == "" {
		c.OdomOut = d.OdomOut
	}
	if c.TFTopic == "" {
		c.TFTopic = d.TFTopic
	}
	if c.CmdIn == "" {
		c.CmdIn = d.CmdIn
	}
	if c.CmdOut == "" {
		c.CmdOut = d.CmdOut
	}
	if c.CmdFrame == "" {
		c.CmdFrame = d.CmdFrame
	}
	if c.ChildFrame == "" {
		c.ChildFrame = d.ChildFrame
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// Locals maps the remote topics the relay sits behind to the local names the
// bridge must use for them instead.
func (c Config) Locals() map[string]string {
	c = c.WithDefaults()
	return map[string]string{
		c.OdomOut: c.OdomIn,
		c.CmdIn:   c.CmdOut,
	}
}

type Relay struct {
	cfg    Config
	logger zerolog.Logger

	odomPub *localbus.Publisher
	tfPub   *localbus.Publisher
	cmdPub  *localbus.Publisher
	subs    []*localbus.Subscription

	cmdSeq atomic.Uint32
}

// Start wires the relay onto bus.
func Start(bus Bus, cfg Config, logger zerolog.Logger) (*Relay, error) {
	cfg = cfg.WithDefaults()
	r := &Relay{cfg: cfg, logger: logger.With().Str("component", "relay").Logger()}

	var err error
	if r.odomPub, err = bus.Advertise(cfg.OdomOut, msgs.OdometryType.Name, false, localbus.Hooks{}); err != nil {
		return nil, fmt.Errorf("relay: advertise %s: %w", cfg.OdomOut, err)
	}
	if r.tfPub, err = bus.Advertise(cfg.TFTopic, msgs.TFMessageType.Name, false, localbus.Hooks{}); err != nil {
		r.Close()
		return nil, fmt.Errorf("relay: advertise %s: %w", cfg.TFTopic, err)
	}
	if r.cmdPub, err = bus.Advertise(cfg.CmdOut, msgs.TwistStampedType.Name, false, localbus.Hooks{}); err != nil {
		r.Close()
		return nil, fmt.Errorf("relay: advertise %s: %w", cfg.CmdOut, err)
	}

	odomSub, err := bus.Subscribe(cfg.OdomIn, msgs.OdometryType.Name, r.onOdom)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("relay: subscribe %s: %w", cfg.OdomIn, err)
	}
	r.subs = append(r.subs, odomSub)
	cmdSub, err := bus.Subscribe(cfg.CmdIn, msgs.TwistType.Name, r.onCmd)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("relay: subscribe %s: %w", cfg.CmdIn, err)
	}
	r.subs = append(r.subs, cmdSub)
	return r, nil
}

func (r *Relay) Close() {
	for _, s := range r.subs {
		s.Close()
	}
	for _, p := range []*localbus.Publisher{r.odomPub, r.tfPub, r.cmdPub} {
		if p != nil {
			p.Close()
		}
	}
}

func (r *Relay) onOdom(msg any) {
	in, ok := msg.(*msgs.Odometry)
	if !ok {
		r.logger.Warn().Err(fmt.Errorf("%w: %T", ErrUnexpectedMessage, msg)).Str("topic", r.cfg.OdomIn).Msg("dropping message")
		return
	}
	out := *in
	if err := r.odomPub.Publish(&out); err != nil {
		r.logger.Warn().Err(err).Str("topic", r.cfg.OdomOut).Msg("odometry republish failed")
	}

	child := in.ChildFrameID
	if child == "" {
		child = r.cfg.ChildFrame
	}
	p := in.Pose.Pose
	tf := &msgs.TFMessage{Transforms: []msgs.TransformStamped{{
		Header:       msgs.Header{Stamp: in.Header.Stamp, FrameID: in.Header.FrameID},
		ChildFrameID: r.cfg.Namespace.Qualify(child),
		Transform: msgs.Transform{
			Translation: msgs.Vector3{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z},
			Rotation:    p.Orientation,
		},
	}}}
	if err := r.tfPub.Publish(tf); err != nil {
		r.logger.Warn().Err(err).Str("topic", r.cfg.TFTopic).Msg("transform broadcast failed")
	}
}

func (r *Relay) onCmd(msg any) {
	in, ok := msg.(*msgs.Twist)
	if !ok {
		r.logger.Warn().Err(fmt.Errorf("%w: %T", ErrUnexpectedMessage, msg)).Str("topic", r.cfg.CmdIn).Msg("dropping message")
		return
	}
	out := &msgs.TwistStamped{
		Header: msgs.Header{
			Seq:     r.cmdSeq.Add(1),
			Stamp:   msgs.NewTime(r.cfg.Now()),
			FrameID: r.cfg.Namespace.Qualify(r.cfg.CmdFrame),
		},
		Twist: *in,
	}
	if err := r.cmdPub.Publish(out); err != nil {
		r.logger.Warn().Err(err).Str("topic", r.cfg.CmdOut).Msg("velocity command publish failed")
	}
}
