package msgs

type Odometry struct {
	Header       Header              `json:"header"`
	ChildFrameID string              `json:"child_frame_id"`
	Pose         PoseWithCovariance  `json:"pose"`
	Twist        TwistWithCovariance `json:"twist"`
}

type Imu struct {
	Header                       Header     `json:"header"`
	Orientation                  Quaternion `json:"orientation"`
	OrientationCovariance        [9]float64 `json:"orientation_covariance"`
	AngularVelocity              Vector3    `json:"angular_velocity"`
	AngularVelocityCovariance    [9]float64 `json:"angular_velocity_covariance"`
	LinearAcceleration           Vector3    `json:"linear_acceleration"`
	LinearAccelerationCovariance [9]float64 `json:"linear_acceleration_covariance"`
}

type LaserScan struct {
	Header         Header    `json:"header"`
	AngleMin       float32   `json:"angle_min"`
	AngleMax       float32   `json:"angle_max"`
	AngleIncrement float32   `json:"angle_increment"`
	TimeIncrement  float32   `json:"time_increment"`
	ScanTime       float32   `json:"scan_time"`
	RangeMin       float32   `json:"range_min"`
	RangeMax       float32   `json:"range_max"`
	Ranges         []float32 `json:"ranges"`
	Intensities    []float32 `json:"intensities"`
}

const (
	DiagnosticOK    uint8 = 0
	DiagnosticWarn  uint8 = 1
	DiagnosticError uint8 = 2
	DiagnosticStale uint8 = 3
)

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type DiagnosticStatus struct {
	Level      uint8      `json:"level"`
	Name       string     `json:"name"`
	Message    string     `json:"message"`
	HardwareID string     `json:"hardware_id"`
	Values     []KeyValue `json:"values"`
}

type DiagnosticArray struct {
	Header Header             `json:"header"`
	Status []DiagnosticStatus `json:"status"`
}
