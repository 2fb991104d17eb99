package bridge

import (
	"fmt"
	"sync"

	"github.com/danmuck/mirbridge/internal/localbus"
	"github.com/danmuck/mirbridge/internal/observability"
	"github.com/danmuck/mirbridge/internal/rewrite"
	"github.com/rs/zerolog"
)

// InboundChannel forwards every message of one local topic to the remote side.
type InboundChannel struct {
	binding   TopicBinding
	ns        rewrite.Namespace
	transport Transport
	codec     Codec
	logger    zerolog.Logger
	sub       *localbus.Subscription
	closeOnce sync.Once
}

func NewInboundChannel(
	bus LocalBus,
	transport Transport,
	codec Codec,
	ns rewrite.Namespace,
	binding TopicBinding,
	logger zerolog.Logger,
) (*InboundChannel, error) {
	if err := binding.Validate(); err != nil {
		return nil, err
	}
	c := &InboundChannel{
		binding:   binding,
		ns:        ns,
		transport: transport,
		codec:     codec,
		logger: logger.With().
			Str("direction", observability.DirectionInbound).
			Str("topic", binding.RemoteTopic()).
			Logger(),
	}
	if err := transport.Advertise(binding.RemoteTopic(), binding.Type.Name); err != nil {
		return nil, fmt.Errorf("bridge: advertise %s: %w", binding.RemoteTopic(), err)
	}
	sub, err := bus.Subscribe(binding.LocalTopic(), binding.Type.Name, c.handle)
	if err != nil {
		return nil, fmt.Errorf("bridge: subscribe %s: %w", binding.LocalTopic(), err)
	}
	c.sub = sub
	observability.AddActiveChannel(observability.DirectionInbound)
	return c, nil
}

func (c *InboundChannel) Binding() TopicBinding {
	return c.binding
}

func (c *InboundChannel) Close() {
	c.closeOnce.Do(func() {
		c.sub.Close()
		observability.RemoveActiveChannel(observability.DirectionInbound)
	})
}

func (c *InboundChannel) handle(msg any) {
	topic := c.binding.RemoteTopic()
	v, err := c.codec.Encode(msg)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping unencodable message")
		observability.RecordBridgeMessage(topic, observability.DirectionInbound, observability.ResultEncodeError)
		return
	}
	v = rewrite.Remove(v, c.ns)
	if c.binding.Rewrite != nil {
		v = c.binding.Rewrite(v)
	}
	if err := c.transport.Publish(topic, v); err != nil {
		c.logger.Warn().Err(err).Msg("remote publish failed")
		observability.RecordBridgeMessage(topic, observability.DirectionInbound, observability.ResultPublishError)
		return
	}
	observability.RecordBridgeMessage(topic, observability.DirectionInbound, observability.ResultOK)
}
