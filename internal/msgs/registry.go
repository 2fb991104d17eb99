package msgs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownType = errors.New("msgs: unknown message type")
	ErrTypeExists  = errors.New("msgs: message type already registered")
)

// Type describes one native message type. New returns a pointer to a fresh
// zero value.
type Type struct {
	Name string
	New  func() any
}

func (t Type) String() string {
	return t.Name
}

func typeOf[T any](name string) Type {
	return Type{Name: name, New: func() any { return new(T) }}
}

var (
	Float64Type                = typeOf[Float64]("std_msgs/Float64")
	StringType                 = typeOf[String]("std_msgs/String")
	PoseType                   = typeOf[Pose]("geometry_msgs/Pose")
	PoseStampedType            = typeOf[PoseStamped]("geometry_msgs/PoseStamped")
	TwistType                  = typeOf[Twist]("geometry_msgs/Twist")
	TwistStampedType           = typeOf[TwistStamped]("geometry_msgs/TwistStamped")
	OdometryType               = typeOf[Odometry]("nav_msgs/Odometry")
	ImuType                    = typeOf[Imu]("sensor_msgs/Imu")
	LaserScanType              = typeOf[LaserScan]("sensor_msgs/LaserScan")
	DiagnosticArrayType        = typeOf[DiagnosticArray]("diagnostic_msgs/DiagnosticArray")
	DiagnosticStatusType       = typeOf[DiagnosticStatus]("diagnostic_msgs/DiagnosticStatus")
	TFMessageType              = typeOf[TFMessage]("tf/tfMessage")
	MoveBaseActionFeedbackType = typeOf[MoveBaseActionFeedback]("move_base_msgs/MoveBaseActionFeedback")
	MoveBaseActionResultType   = typeOf[MoveBaseActionResult]("move_base_msgs/MoveBaseActionResult")
	RobotModeType              = typeOf[RobotMode]("mir_msgs/RobotMode")
	RobotStateType             = typeOf[RobotState]("mir_msgs/RobotState")
)

// Registry resolves type names to descriptors.
type Registry struct {
	items map[string]Type
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Type)}
}

// DefaultRegistry holds every type defined in this package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range []Type{
		Float64Type, StringType, PoseType, PoseStampedType, TwistType, TwistStampedType,
		OdometryType, ImuType, LaserScanType, DiagnosticArrayType, DiagnosticStatusType,
		TFMessageType, MoveBaseActionFeedbackType, MoveBaseActionResultType,
		RobotModeType, RobotStateType,
	} {
		_ = r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Type) error {
	name := strings.TrimSpace(t.Name)
	if name == "" || t.New == nil {
		return fmt.Errorf("%w: %q", ErrUnknownType, t.Name)
	}
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%w: %s", ErrTypeExists, name)
	}
	r.items[name] = t
	return nil
}

// Resolve accepts both "pkg/Type" and the ROS 2 style "pkg/msg/Type".
func (r *Registry) Resolve(name string) (Type, error) {
	name = strings.TrimSpace(name)
	if t, ok := r.items[name]; ok {
		return t, nil
	}
	if pkg, rest, ok := strings.Cut(name, "/msg/"); ok {
		if t, ok := r.items[pkg+"/"+rest]; ok {
			return t, nil
		}
	}
	return Type{}, fmt.Errorf("%w: %s", ErrUnknownType, name)
}

// Names returns registered type names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.items))
	for name := range r.items {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
