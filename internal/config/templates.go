package config

import (
	"fmt"
	"os"
)

func Template() string {
	return bridgeTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(bridgeTemplate), 0o600)
}

const bridgeTemplate = `# rosbridge endpoint of the robot
host = "192.168.12.20"
port = 9090

# use wss; ca_file pins the robot's certificate authority
secure = false
ca_file = ""

# prefix added to frame ids coming from the robot, removed on the way back
tf_prefix = ""

# serve /health, /ready, /catalog and /metrics when set
metrics_addr = ""
# origins allowed to read those endpoints from a browser
cors_origins = []

# republish mir_odom as odom + tf and stamp plain cmd_vel twists
relay = false

queue_size = 10
max_connect_attempts = 5
call_timeout = "5s"

# Topic tables replace the built-in MiR topics for their direction.
# Filters: move_base_feedback, move_base_result, tf_child_prefix
#
# [[outbound]]
# topic = "robot_state"
# type = "mir_msgs/RobotState"
# latch = true
#
# [[outbound]]
# topic = "move_base/feedback"
# type = "move_base_msgs/MoveBaseActionFeedback"
# filter = "move_base_feedback"
#
# [[inbound]]
# topic = "cmd_vel"
# type = "geometry_msgs/TwistStamped"
`
