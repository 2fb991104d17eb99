// Package msgs defines the native message types carried on the local bus and a
// registry resolving wire type names (e.g. "sensor_msgs/LaserScan") to them.
package msgs

import "time"

// Time is a ROS time stamp.
type Time struct {
	Secs  uint32 `json:"secs"`
	Nsecs uint32 `json:"nsecs"`
}

// NewTime converts a wall clock instant.
func NewTime(t time.Time) Time {
	return Time{Secs: uint32(t.Unix()), Nsecs: uint32(t.Nanosecond())}
}

func (t Time) AsTime() time.Time {
	return time.Unix(int64(t.Secs), int64(t.Nsecs))
}

type Duration struct {
	Secs  int32 `json:"secs"`
	Nsecs int32 `json:"nsecs"`
}

type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

type Float64 struct {
	Data float64 `json:"data"`
}

type String struct {
	Data string `json:"data"`
}
