package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/danmuck/mirbridge/internal/localbus"
	"github.com/danmuck/mirbridge/internal/observability"
	"github.com/danmuck/mirbridge/internal/rewrite"
	"github.com/danmuck/mirbridge/internal/structured"
	"github.com/rs/zerolog"
)

// ChannelState is monotonic: a channel never returns to Inactive because the
// remote side offers no reliable way to resubscribe.
type ChannelState uint8

const (
	ChannelInactive ChannelState = iota
	ChannelActive
)

func (s ChannelState) String() string {
	if s == ChannelActive {
		return "active"
	}
	return "inactive"
}

// OutboundChannel mirrors one remote topic onto a local publisher. The remote
// subscription is made lazily when the first local subscriber appears, or at
// construction for retained bindings.
type OutboundChannel struct {
	binding   TopicBinding
	ns        rewrite.Namespace
	transport Transport
	codec     Codec
	logger    zerolog.Logger
	pub       atomic.Pointer[localbus.Publisher]

	mu     sync.Mutex
	state  ChannelState
	closed bool
}

func NewOutboundChannel(
	bus LocalBus,
	transport Transport,
	codec Codec,
	ns rewrite.Namespace,
	binding TopicBinding,
	logger zerolog.Logger,
) (*OutboundChannel, error) {
	if err := binding.Validate(); err != nil {
		return nil, err
	}
	c := &OutboundChannel{
		binding:   binding,
		ns:        ns,
		transport: transport,
		codec:     codec,
		logger: logger.With().
			Str("direction", observability.DirectionOutbound).
			Str("topic", binding.RemoteTopic()).
			Logger(),
	}
	pub, err := bus.Advertise(binding.LocalTopic(), binding.Type.Name, binding.Retained, localbus.Hooks{
		OnFirstSubscriber: c.onFirstSubscriber,
		OnLastSubscriber:  c.onLastSubscriber,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: advertise %s: %w", binding.LocalTopic(), err)
	}
	c.pub.Store(pub)
	if binding.Retained {
		if err := c.activate(); err != nil {
			pub.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *OutboundChannel) Binding() TopicBinding {
	return c.binding
}

func (c *OutboundChannel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close withdraws the local publisher. The remote subscription stays.
func (c *OutboundChannel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.state == ChannelActive {
		observability.RemoveActiveChannel(observability.DirectionOutbound)
	}
	c.mu.Unlock()
	if pub := c.pub.Load(); pub != nil {
		pub.Close()
	}
}

func (c *OutboundChannel) onFirstSubscriber(string) {
	if err := c.activate(); err != nil {
		c.logger.Error().Err(err).Msg("remote subscribe failed")
	}
}

func (c *OutboundChannel) onLastSubscriber(string) {
	c.logger.Debug().Msg("last local subscriber left; remote subscription kept")
}

// activate subscribes on the remote side exactly once.
func (c *OutboundChannel) activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ChannelActive || c.closed {
		return nil
	}
	if err := c.transport.Subscribe(c.binding.RemoteTopic(), c.binding.Type.Name, c.handle); err != nil {
		return fmt.Errorf("bridge: subscribe %s: %w", c.binding.RemoteTopic(), err)
	}
	c.state = ChannelActive
	observability.AddActiveChannel(observability.DirectionOutbound)
	c.logger.Debug().Msg("outbound channel active")
	return nil
}

func (c *OutboundChannel) handle(v structured.Value) {
	topic := c.binding.RemoteTopic()
	v = rewrite.Inject(v, c.ns)
	if c.binding.Rewrite != nil {
		v = c.binding.Rewrite(v)
	}
	msg, err := c.codec.Decode(c.binding.Type, v)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping undecodable message")
		observability.RecordBridgeMessage(topic, observability.DirectionOutbound, observability.ResultDecodeError)
		return
	}
	pub := c.pub.Load()
	if pub == nil {
		return
	}
	if err := pub.Publish(msg); err != nil {
		c.logger.Warn().Err(err).Msg("local publish failed")
		observability.RecordBridgeMessage(topic, observability.DirectionOutbound, observability.ResultPublishError)
		return
	}
	observability.RecordBridgeMessage(topic, observability.DirectionOutbound, observability.ResultOK)
}
