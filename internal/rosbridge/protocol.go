package rosbridge

import "github.com/danmuck/mirbridge/internal/structured"

// rosbridge v2 operation names.
const (
	OpSubscribe       = "subscribe"
	OpAdvertise       = "advertise"
	OpPublish         = "publish"
	OpCallService     = "call_service"
	OpServiceResponse = "service_response"
	OpStatus          = "status"
)

type subscribeOp struct {
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
	Topic string `json:"topic"`
	Type  string `json:"type,omitempty"`
}

type advertiseOp struct {
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
	Topic string `json:"topic"`
	Type  string `json:"type"`
}

type publishOp struct {
	Op    string           `json:"op"`
	ID    string           `json:"id,omitempty"`
	Topic string           `json:"topic"`
	Msg   structured.Value `json:"msg"`
}

type callServiceOp struct {
	Op      string           `json:"op"`
	ID      string           `json:"id"`
	Service string           `json:"service"`
	Args    structured.Value `json:"args"`
}

// envelope is the union of every server->client operation we handle. For
// status ops Msg carries the human readable text as a string scalar.
type envelope struct {
	Op      string           `json:"op"`
	ID      string           `json:"id"`
	Topic   string           `json:"topic"`
	Msg     structured.Value `json:"msg"`
	Service string           `json:"service"`
	Values  structured.Value `json:"values"`
	Result  *bool            `json:"result"`
	Level   string           `json:"level"`
}

type serviceResult struct {
	values structured.Value
	err    error
}
