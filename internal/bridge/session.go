package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/mirbridge/internal/rewrite"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultNode         = "mir_bridge"
	DefaultPollInterval = 100 * time.Millisecond
	DefaultWarnEvery    = 10
)

var ErrTransportFailed = errors.New("bridge: transport failed")

type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateReady
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Options struct {
	Node         string
	Addr         string
	Namespace    rewrite.Namespace
	Outbound     []TopicBinding
	Inbound      []TopicBinding
	PollInterval time.Duration
	WarnEvery    int
}

func (o Options) WithDefaults() Options {
	if o.Node == "" {
		o.Node = DefaultNode
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.WarnEvery <= 0 {
		o.WarnEvery = DefaultWarnEvery
	}
	return o
}

// Session is the composition root of the bridge.
type Session struct {
	bus       LocalBus
	transport Transport
	codec     Codec
	opts      Options
	logger    zerolog.Logger

	state atomic.Int32
	ready chan struct{}

	mu       sync.RWMutex
	catalog  Catalog
	outbound []*OutboundChannel
	inbound  []*InboundChannel
}

func NewSession(bus LocalBus, transport Transport, codec Codec, opts Options, logger zerolog.Logger) *Session {
	opts = opts.WithDefaults()
	s := &Session{
		bus:       bus,
		transport: transport,
		codec:     codec,
		opts:      opts,
		logger:    logger.With().Str("node", opts.Node).Str("addr", opts.Addr).Logger(),
		ready:     make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(next State) {
	s.state.Store(int32(next))
}

// Ready is closed once every channel has been created.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

func (s *Session) Catalog() Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

func (s *Session) OutboundChannels() []*OutboundChannel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*OutboundChannel(nil), s.outbound...)
}

func (s *Session) InboundChannels() []*InboundChannel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*InboundChannel(nil), s.inbound...)
}

// Start waits for the transport, snapshots the catalog and builds every
// channel. It returns nil once Ready, nil with state Stopped when ctx ends
// first, and ErrTransportFailed when the transport gives up.
func (s *Session) Start(ctx context.Context) error {
	s.logger.Info().Msg("trying to connect")
	connected, err := s.awaitConnection(ctx)
	if err != nil || !connected {
		return err
	}
	s.logger.Info().Msg("connected")

	catalog, err := FetchCatalog(ctx, s.transport)
	if err != nil {
		if ctx.Err() != nil {
			s.setState(StateStopped)
			return nil
		}
		s.logger.Warn().Err(err).Msg("remote catalog unavailable; continuing without it")
		catalog = NewCatalog()
	}
	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()

	if err := s.build(catalog); err != nil {
		s.setState(StateFailed)
		s.closeChannels()
		return err
	}
	s.setState(StateReady)
	close(s.ready)
	s.logger.Info().
		Int("outbound", len(s.opts.Outbound)).
		Int("inbound", len(s.opts.Inbound)).
		Int("remote_topics", catalog.Len()).
		Msg("bridge ready")
	return nil
}

// Run is Start followed by serving until ctx ends.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	if s.State() != StateReady {
		return nil
	}
	<-ctx.Done()
	s.Close()
	return nil
}

// Close tears down every channel and marks the session stopped.
func (s *Session) Close() {
	s.closeChannels()
	s.setState(StateStopped)
}

func (s *Session) awaitConnection(ctx context.Context) (bool, error) {
	s.setState(StateConnecting)
	limiter := rate.NewLimiter(rate.Every(s.opts.PollInterval), 1)
	for polls := 1; ; polls++ {
		if s.transport.IsConnected() {
			s.setState(StateConnected)
			return true, nil
		}
		if s.transport.IsErrored() {
			s.setState(StateFailed)
			cause := s.transport.Err()
			s.logger.Error().Err(cause).Msg("connection error, giving up")
			if cause != nil {
				return false, fmt.Errorf("%w: %s: %v", ErrTransportFailed, s.opts.Addr, cause)
			}
			return false, fmt.Errorf("%w: %s", ErrTransportFailed, s.opts.Addr)
		}
		if polls%s.opts.WarnEvery == 0 {
			s.logger.Warn().Msg("still waiting for connection")
		}
		if err := limiter.Wait(ctx); err != nil {
			s.setState(StateStopped)
			return false, nil
		}
	}
}

func (s *Session) build(catalog Catalog) error {
	for _, b := range s.opts.Outbound {
		ch, err := NewOutboundChannel(s.bus, s.transport, s.codec, s.opts.Namespace, b, s.logger)
		if err != nil {
			return fmt.Errorf("bridge: outbound %s: %w", b.Name, err)
		}
		s.mu.Lock()
		s.outbound = append(s.outbound, ch)
		s.mu.Unlock()
		if !catalog.Published(b.RemoteTopic()) {
			s.logger.Warn().Str("topic", b.Name).Msg("topic is not published by the MiR")
		}
	}
	for _, b := range s.opts.Inbound {
		ch, err := NewInboundChannel(s.bus, s.transport, s.codec, s.opts.Namespace, b, s.logger)
		if err != nil {
			return fmt.Errorf("bridge: inbound %s: %w", b.Name, err)
		}
		s.mu.Lock()
		s.inbound = append(s.inbound, ch)
		s.mu.Unlock()
		if !catalog.Subscribed(b.RemoteTopic()) {
			s.logger.Warn().Str("topic", b.Name).Msg("topic is not yet subscribed to by the MiR")
		}
	}
	return nil
}

func (s *Session) closeChannels() {
	s.mu.Lock()
	outbound, inbound := s.outbound, s.inbound
	s.outbound, s.inbound = nil, nil
	s.mu.Unlock()
	for _, ch := range inbound {
		ch.Close()
	}
	for _, ch := range outbound {
		ch.Close()
	}
}
