package bridge

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danmuck/mirbridge/internal/msgs"
	"github.com/danmuck/mirbridge/internal/rewrite"
)

// Named filters selectable from configuration.
const (
	FilterMoveBaseFeedback = "move_base_feedback"
	FilterMoveBaseResult   = "move_base_result"
	FilterTFChildPrefix    = "tf_child_prefix"
)

var ErrUnknownFilter = errors.New("bridge: unknown filter")

var filters = map[string]func(ns rewrite.Namespace) rewrite.Func{
	FilterMoveBaseFeedback: func(rewrite.Namespace) rewrite.Func {
		return rewrite.Project("feedback", msgs.MoveBaseFeedbackFields...)
	},
	FilterMoveBaseResult: func(rewrite.Namespace) rewrite.Func {
		return rewrite.Project("result", msgs.MoveBaseResultFields...)
	},
	FilterTFChildPrefix: func(ns rewrite.Namespace) rewrite.Func {
		return rewrite.PrefixChildFrames(ns)
	},
}

// Filter resolves a named filter for ns. An empty name is no filter.
func Filter(name string, ns rewrite.Namespace) (rewrite.Func, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	build, ok := filters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %s)", ErrUnknownFilter, name, strings.Join(FilterNames(), ", "))
	}
	return build(ns), nil
}

// FilterNames lists the filters a topic table may name, sorted.
func FilterNames() []string {
	out := make([]string, 0, len(filters))
	for name := range filters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func mustFilter(name string, ns rewrite.Namespace) rewrite.Func {
	fn, err := Filter(name, ns)
	if err != nil {
		panic(err)
	}
	return fn
}

// DefaultOutbound returns the robot topics mirrored onto the local bus.
func DefaultOutbound(ns rewrite.Namespace) []TopicBinding {
	return []TopicBinding{
		{Name: "f_scan", Type: msgs.LaserScanType},
		{Name: "b_scan", Type: msgs.LaserScanType},
		{Name: "scan", Type: msgs.LaserScanType},
		{Name: "diagnostics", Type: msgs.DiagnosticArrayType},
		{Name: "diagnostics_agg", Type: msgs.DiagnosticArrayType},
		{Name: "diagnostics_toplevel_state", Type: msgs.DiagnosticStatusType},
		{Name: "imu_data", Type: msgs.ImuType},
		{Name: "odom", Type: msgs.OdometryType},
		{Name: "robot_mode", Type: msgs.RobotModeType},
		{Name: "robot_pose", Type: msgs.PoseType},
		{Name: "robot_state", Type: msgs.RobotStateType},
		{Name: "move_base/feedback", Type: msgs.MoveBaseActionFeedbackType, Rewrite: mustFilter(FilterMoveBaseFeedback, ns)},
		{Name: "move_base/result", Type: msgs.MoveBaseActionResultType, Rewrite: mustFilter(FilterMoveBaseResult, ns)},
	}
}

// DefaultInbound returns the local topics forwarded to the robot.
func DefaultInbound(rewrite.Namespace) []TopicBinding {
	return []TopicBinding{
		{Name: "cmd_vel", Type: msgs.TwistStampedType},
	}
}

// Remap returns a copy of bindings whose local topic is replaced for every
// remote name found in locals.
func Remap(bindings []TopicBinding, locals map[string]string) []TopicBinding {
	out := make([]TopicBinding, len(bindings))
	for i, b := range bindings {
		if local, ok := locals[strings.Trim(b.Name, "/")]; ok {
			b.Local = local
		}
		out[i] = b
	}
	return out
}

// BindingSpec is the by-name form of a binding, as read from configuration.
type BindingSpec struct {
	Topic  string
	Type   string
	Latch  bool
	Filter string
	Local  string
}

// ResolveBinding turns a spec into a binding using reg for the message type.
func ResolveBinding(spec BindingSpec, reg *msgs.Registry, ns rewrite.Namespace) (TopicBinding, error) {
	t, err := reg.Resolve(spec.Type)
	if err != nil {
		return TopicBinding{}, fmt.Errorf("%w: %s: %w", ErrInvalidBinding, spec.Topic, err)
	}
	fn, err := Filter(spec.Filter, ns)
	if err != nil {
		return TopicBinding{}, fmt.Errorf("%w: %s: %w", ErrInvalidBinding, spec.Topic, err)
	}
	b := TopicBinding{
		Name:     strings.Trim(strings.TrimSpace(spec.Topic), "/"),
		Local:    strings.Trim(strings.TrimSpace(spec.Local), "/"),
		Type:     t,
		Retained: spec.Latch,
		Rewrite:  fn,
	}
	if err := b.Validate(); err != nil {
		return TopicBinding{}, err
	}
	return b, nil
}

func ResolveBindings(specs []BindingSpec, reg *msgs.Registry, ns rewrite.Namespace) ([]TopicBinding, error) {
	out := make([]TopicBinding, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		b, err := ResolveBinding(spec, reg, ns)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[b.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate topic %s", ErrInvalidBinding, b.Name)
		}
		seen[b.Name] = struct{}{}
		out = append(out, b)
	}
	return out, nil
}
