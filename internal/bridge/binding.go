package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/mirbridge/internal/msgs"
	"github.com/danmuck/mirbridge/internal/rewrite"
)

var ErrInvalidBinding = errors.New("bridge: invalid binding")

// TopicBinding configures one bridged topic. Name is the remote topic without
// its leading slash; Local, when set, is the local topic name used instead.
type TopicBinding struct {
	Name     string
	Local    string
	Type     msgs.Type
	Retained bool
	Rewrite  rewrite.Func
}

func (b TopicBinding) RemoteTopic() string {
	return "/" + strings.Trim(b.Name, "/")
}

func (b TopicBinding) LocalTopic() string {
	if local := strings.Trim(b.Local, "/"); local != "" {
		return local
	}
	return strings.Trim(b.Name, "/")
}

func (b TopicBinding) Validate() error {
	if strings.Trim(b.Name, "/ ") == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidBinding)
	}
	if b.Type.Name == "" || b.Type.New == nil {
		return fmt.Errorf("%w: %s has no message type", ErrInvalidBinding, b.Name)
	}
	return nil
}

func (b TopicBinding) String() string {
	if b.LocalTopic() != strings.Trim(b.Name, "/") {
		return fmt.Sprintf("%s->%s [%s]", b.RemoteTopic(), b.LocalTopic(), b.Type.Name)
	}
	return fmt.Sprintf("%s [%s]", b.RemoteTopic(), b.Type.Name)
}
