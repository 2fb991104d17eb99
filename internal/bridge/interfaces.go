package bridge

import (
	"context"

	"github.com/danmuck/mirbridge/internal/localbus"
	"github.com/danmuck/mirbridge/internal/msgs"
	"github.com/danmuck/mirbridge/internal/structured"
)

// LocalBus is the in-process side of the bridge.
type LocalBus interface {
	Advertise(topic, typeName string, retained bool, hooks localbus.Hooks) (*localbus.Publisher, error)
	Subscribe(topic, typeName string, handler func(any)) (*localbus.Subscription, error)
}

// ServiceCaller issues request/response calls to the remote side.
type ServiceCaller interface {
	CallService(ctx context.Context, service string, args structured.Value) (structured.Value, error)
}

// Transport is the remote side of the bridge.
type Transport interface {
	ServiceCaller
	IsConnected() bool
	IsErrored() bool
	Err() error
	Subscribe(topic, typeName string, handler func(structured.Value)) error
	Advertise(topic, typeName string) error
	Publish(topic string, msg structured.Value) error
}

// Codec converts native messages to and from structured trees.
type Codec interface {
	Encode(msg any) (structured.Value, error)
	Decode(t msgs.Type, v structured.Value) (any, error)
}
