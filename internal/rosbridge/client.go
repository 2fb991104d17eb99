package rosbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/mirbridge/internal/structured"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrMissingHost    = errors.New("rosbridge: missing host")
	ErrInvalidPort    = errors.New("rosbridge: invalid port")
	ErrNotConnected   = errors.New("rosbridge: not connected")
	ErrClosed         = errors.New("rosbridge: client closed")
	ErrConnectFailed  = errors.New("rosbridge: connect failed")
	ErrDisconnected   = errors.New("rosbridge: connection lost")
	ErrServiceFailed  = errors.New("rosbridge: service call failed")
	ErrNilHandler     = errors.New("rosbridge: nil handler")
	ErrEmptyTopicName = errors.New("rosbridge: empty topic")
)

// Handler receives one remote topic message.
type Handler = func(structured.Value)

type Client struct {
	cfg    Config
	logger zerolog.Logger
	dialer *websocket.Dialer
	rng    *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	writeMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	subs      map[string]*topicSub
	adverts   map[string]string
	pending   map[string]chan serviceResult
	err       error
	connected atomic.Bool
	errored   atomic.Bool
}

type topicSub struct {
	typeName string
	handlers []Handler
}

// Dial validates cfg and starts connecting in the background. It never
// blocks on the network.
func Dial(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialer := &websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}
	if cfg.Secure {
		tlsCfg, err := cfg.clientTLSConfig()
		if err != nil {
			return nil, err
		}
		dialer.TLSClientConfig = tlsCfg
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := &Client{
		cfg:     cfg,
		logger:  logger.With().Str("component", "rosbridge").Str("url", cfg.URL()).Logger(),
		dialer:  dialer,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:     runCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		subs:    make(map[string]*topicSub),
		adverts: make(map[string]string),
		pending: make(map[string]chan serviceResult),
	}
	go c.connectLoop()
	return c, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// IsErrored reports a terminal failure; the client will not reconnect.
func (c *Client) IsErrored() bool {
	return c.errored.Load()
}

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close stops the connector and drops the connection.
func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
	<-c.done
	return nil
}

func (c *Client) connectLoop() {
	defer close(c.done)
	attempt := 0
	everConnected := false
	for {
		if c.ctx.Err() != nil {
			return
		}
		conn, _, err := c.dialer.DialContext(c.ctx, c.cfg.URL(), nil)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			attempt++
			limit := c.cfg.MaxConnectAttempts
			if everConnected {
				limit = c.cfg.MaxReconnectAttempts
			}
			if limit > 0 && attempt >= limit {
				c.fail(fmt.Errorf("%w: %s after %d attempts: %v", ErrConnectFailed, c.cfg.Addr(), attempt, err))
				return
			}
			delay := NextBackoffDelay(c.cfg.Backoff, attempt, c.rng)
			c.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("rosbridge dial failed")
			if !sleepContext(c.ctx, delay) {
				return
			}
			continue
		}

		attempt = 0
		if err := c.attach(conn); err != nil {
			c.logger.Warn().Err(err).Msg("rosbridge replay failed")
			_ = conn.Close()
		} else {
			if everConnected {
				c.logger.Info().Msg("rosbridge reconnected")
			} else {
				c.logger.Info().Msg("rosbridge connected")
			}
			everConnected = true
			c.readLoop(conn)
		}
		c.detach(conn)
	}
}

// attach installs conn and replays registered advertisements and
// subscriptions before the client reports connected.
func (c *Client) attach(conn *websocket.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	for _, topic := range sortedKeys(c.adverts) {
		if err := c.writeTo(conn, advertiseOp{Op: OpAdvertise, Topic: topic, Type: c.adverts[topic]}); err != nil {
			return err
		}
	}
	for _, topic := range sortedKeys(c.subs) {
		if err := c.writeTo(conn, subscribeOp{Op: OpSubscribe, Topic: topic, Type: c.subs[topic].typeName}); err != nil {
			return err
		}
	}
	c.conn = conn
	c.connected.Store(true)
	return nil
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connected.Store(false)
	pending := c.pending
	c.pending = make(map[string]chan serviceResult)
	c.mu.Unlock()

	_ = conn.Close()
	for _, ch := range pending {
		ch <- serviceResult{err: ErrDisconnected}
	}
	if c.ctx.Err() == nil {
		c.logger.Warn().Msg("rosbridge connection lost")
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.errored.Store(true)
	c.logger.Error().Err(err).Msg("rosbridge giving up")
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("rosbridge read ended")
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn().Err(err).Msg("rosbridge dropped malformed frame")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env envelope) {
	switch env.Op {
	case OpPublish:
		c.mu.Lock()
		var handlers []Handler
		if sub, ok := c.subs[env.Topic]; ok {
			handlers = append(handlers, sub.handlers...)
		}
		c.mu.Unlock()
		for _, h := range handlers {
			h(env.Msg)
		}
	case OpServiceResponse:
		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.mu.Unlock()
		if !ok {
			c.logger.Debug().Str("id", env.ID).Msg("rosbridge response for unknown call")
			return
		}
		if env.Result != nil && !*env.Result {
			ch <- serviceResult{err: fmt.Errorf("%w: %s: %s", ErrServiceFailed, env.Service, env.Values)}
			return
		}
		ch <- serviceResult{values: env.Values}
	case OpStatus:
		text, _ := env.Msg.AsString()
		c.logger.Warn().Str("level", env.Level).Str("id", env.ID).Msg("rosbridge status: " + text)
	default:
		c.logger.Debug().Str("op", env.Op).Msg("rosbridge ignored op")
	}
}

// writeTo serializes one op onto conn. Writes on a gorilla connection must
// not run concurrently.
func (c *Client) writeTo(conn *websocket.Conn, op any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteJSON(op)
}

func (c *Client) send(op any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		if c.ctx.Err() != nil {
			return ErrClosed
		}
		return ErrNotConnected
	}
	return c.writeTo(conn, op)
}

// Subscribe registers handler for a remote topic. The subscription is sent
// now if connected and on every later (re)connect.
func (c *Client) Subscribe(topic, typeName string, handler func(structured.Value)) error {
	if handler == nil {
		return ErrNilHandler
	}
	if strings.TrimSpace(topic) == "" {
		return ErrEmptyTopicName
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	sub, ok := c.subs[topic]
	if ok {
		sub.handlers = append(sub.handlers, handler)
		return nil
	}
	c.subs[topic] = &topicSub{typeName: typeName, handlers: []Handler{handler}}
	if c.conn == nil {
		return nil
	}
	return c.writeTo(c.conn, subscribeOp{Op: OpSubscribe, Topic: topic, Type: typeName})
}

// Advertise declares a topic this client publishes on.
func (c *Client) Advertise(topic, typeName string) error {
	if strings.TrimSpace(topic) == "" {
		return ErrEmptyTopicName
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	if existing, ok := c.adverts[topic]; ok && existing == typeName {
		return nil
	}
	c.adverts[topic] = typeName
	if c.conn == nil {
		return nil
	}
	return c.writeTo(c.conn, advertiseOp{Op: OpAdvertise, Topic: topic, Type: typeName})
}

func (c *Client) Publish(topic string, msg structured.Value) error {
	return c.send(publishOp{Op: OpPublish, Topic: topic, Msg: msg})
}

// CallService invokes a remote service and waits for its response. Without
// a deadline on ctx the call is bounded by Config.CallTimeout.
func (c *Client) CallService(ctx context.Context, service string, args structured.Value) (structured.Value, error) {
	if !c.IsConnected() {
		return structured.Value{}, ErrNotConnected
	}
	if args.IsScalar() && args.Raw() == nil {
		args = structured.Map(nil)
	}
	if _, ok := ctx.Deadline(); !ok && c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	id := OpCallService + ":" + service + ":" + uuid.NewString()
	ch := make(chan serviceResult, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	forget := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	if err := c.send(callServiceOp{Op: OpCallService, ID: id, Service: service, Args: args}); err != nil {
		forget()
		return structured.Value{}, err
	}
	select {
	case res := <-ch:
		return res.values, res.err
	case <-ctx.Done():
		forget()
		return structured.Value{}, fmt.Errorf("rosbridge: call %s: %w", service, ctx.Err())
	case <-c.ctx.Done():
		forget()
		return structured.Value{}, ErrClosed
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
