package node

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/mirbridge/internal/bridge"
	"github.com/danmuck/mirbridge/internal/codec"
	"github.com/danmuck/mirbridge/internal/config"
	"github.com/danmuck/mirbridge/internal/localbus"
	"github.com/danmuck/mirbridge/internal/msgs"
	"github.com/danmuck/mirbridge/internal/relay"
	"github.com/danmuck/mirbridge/internal/rosbridge"
	"github.com/danmuck/mirbridge/internal/server"
	"github.com/rs/zerolog"
)

var _ Node = (*server.Server)(nil)

// Service owns every long-lived component of one bridge process.
type Service struct {
	cfg    config.Config
	logger zerolog.Logger

	bus     *localbus.Bus
	session *bridge.Session
	relay   *relay.Relay
	http    Node

	// dial is swapped in tests.
	dial func(ctx context.Context, cfg rosbridge.Config, logger zerolog.Logger) (bridge.Transport, func(), error)
}

func NewService(cfg config.Config, logger zerolog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger.With().Str("node", bridge.DefaultNode).Logger(),
		dial:   dialRosbridge,
	}
}

func dialRosbridge(ctx context.Context, cfg rosbridge.Config, logger zerolog.Logger) (bridge.Transport, func(), error) {
	c, err := rosbridge.Dial(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}

// Run blocks until ctx ends or the bridge fails. A cancelled ctx is a clean
// shutdown and returns nil.
func (s *Service) Run(ctx context.Context) error {
	closeTransport, err := s.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer s.shutdown(closeTransport)
	return s.serve(ctx)
}

// Session is nil before bootstrap.
func (s *Service) Session() *bridge.Session {
	return s.session
}

func (s *Service) bootstrap(ctx context.Context) (func(), error) {
	if err := s.cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingHost) {
			s.logger.Error().Msg(`parameter "host" is not set`)
		}
		return nil, err
	}
	addr := s.cfg.Rosbridge().Addr()

	outbound, inbound, err := s.cfg.Bindings(msgs.DefaultRegistry())
	if err != nil {
		return nil, err
	}

	s.bus = localbus.New(s.cfg.QueueSize)
	if s.cfg.Relay {
		rcfg := relay.Config{Namespace: s.cfg.Namespace()}
		if s.relay, err = relay.Start(s.bus, rcfg, s.logger); err != nil {
			s.bus.Close()
			return nil, err
		}
		outbound = bridge.Remap(outbound, rcfg.Locals())
		inbound = bridge.Remap(inbound, rcfg.Locals())
	}

	s.logger.Info().Str("addr", addr).Str("tf_prefix", s.cfg.Namespace().String()).Msg("starting bridge")
	transport, closeTransport, err := s.dial(ctx, s.cfg.Rosbridge(), s.logger)
	if err != nil {
		s.closeLocal()
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	s.session = bridge.NewSession(s.bus, transport, codec.JSON{}, bridge.Options{
		Node:      bridge.DefaultNode,
		Addr:      addr,
		Namespace: s.cfg.Namespace(),
		Outbound:  outbound,
		Inbound:   inbound,
	}, s.logger)

	if strings.TrimSpace(s.cfg.MetricsAddr) != "" {
		var opts []server.Option
		if len(s.cfg.CORSOrigins) > 0 {
			opts = append(opts, server.WithCORS(s.cfg.CORSOrigins...))
		}
		s.http = server.New(bridge.DefaultNode, s.cfg.MetricsAddr, s.session, s.logger, opts...)
		s.logger.Info().Str("kind", s.http.Kind()).Str("addr", s.cfg.MetricsAddr).Msg("http surface enabled")
	}
	return closeTransport, nil
}

func (s *Service) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	if s.http != nil {
		go func() {
			httpErr <- s.http.Run(ctx)
		}()
	}

	sessionErr := make(chan error, 1)
	go func() {
		sessionErr <- s.session.Run(ctx)
	}()

	select {
	case err := <-sessionErr:
		cancel()
		if s.http != nil {
			if herr := <-httpErr; herr != nil {
				s.logger.Warn().Err(herr).Msg("http server stopped with error")
			}
		}
		if err != nil {
			return err
		}
		s.logger.Info().Msg("bridge shutdown")
		return nil
	case err := <-httpErr:
		cancel()
		serr := <-sessionErr
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
		return serr
	}
}

func (s *Service) shutdown(closeTransport func()) {
	if closeTransport != nil {
		closeTransport()
	}
	s.closeLocal()
}

func (s *Service) closeLocal() {
	if s.relay != nil {
		s.relay.Close()
	}
	if s.bus != nil {
		s.bus.Close()
	}
}
