package msgs

type RobotMode struct {
	RobotMode       uint8  `json:"robot_mode"`
	RobotModeString string `json:"robot_mode_string"`
}

type RobotState struct {
	RobotState       uint8  `json:"robot_state"`
	RobotStateString string `json:"robot_state_string"`
}
