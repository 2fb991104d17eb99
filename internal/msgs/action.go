package msgs

type GoalID struct {
	Stamp Time   `json:"stamp"`
	ID    string `json:"id"`
}

type GoalStatus struct {
	GoalID GoalID `json:"goal_id"`
	Status uint8  `json:"status"`
	Text   string `json:"text"`
}

// MoveBaseFeedback is the narrow local shape; the robot sends a superset.
type MoveBaseFeedback struct {
	BasePosition PoseStamped `json:"base_position"`
}

type MoveBaseActionFeedback struct {
	Header   Header           `json:"header"`
	Status   GoalStatus       `json:"status"`
	Feedback MoveBaseFeedback `json:"feedback"`
}

type MoveBaseResult struct{}

type MoveBaseActionResult struct {
	Header Header         `json:"header"`
	Status GoalStatus     `json:"status"`
	Result MoveBaseResult `json:"result"`
}

// Allowed fields of the local feedback/result shapes, used to project the
// robot's superset messages.
var (
	MoveBaseFeedbackFields = []string{"base_position"}
	MoveBaseResultFields   = []string{}
)
