// Package localbus is the in-process publish/subscribe bus the bridge feeds.
//
// Topics are typed by name: the first publisher or subscriber fixes the type
// name and later participants must agree. Every subscription owns a bounded
// queue drained by its own goroutine; when the queue is full the oldest
// pending message is dropped so a slow handler never stalls publishers.
package localbus

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

const DefaultQueueSize = 16

var (
	ErrClosed       = errors.New("localbus: closed")
	ErrEmptyTopic   = errors.New("localbus: empty topic")
	ErrTypeMismatch = errors.New("localbus: topic type mismatch")
)

// Hooks are publisher callbacks fired on subscriber presence transitions.
// They run outside the bus lock.
type Hooks struct {
	OnFirstSubscriber func(topic string)
	OnLastSubscriber  func(topic string)
}

type Bus struct {
	mu        sync.Mutex
	queueSize int
	nextID    uint64
	closed    bool
	topics    map[string]*topicState
}

type topicState struct {
	typeName string
	retained bool
	last     any
	hasLast  bool
	pubs     map[uint64]*Publisher
	subs     map[uint64]*Subscription
}

func New(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{queueSize: queueSize, topics: make(map[string]*topicState)}
}

func normalizeTopic(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "/")
}

// lookup returns the topic state, creating it when absent. Caller holds mu.
func (b *Bus) lookup(name, typeName string) (*topicState, error) {
	ts, ok := b.topics[name]
	if !ok {
		ts = &topicState{
			typeName: typeName,
			pubs:     make(map[uint64]*Publisher),
			subs:     make(map[uint64]*Subscription),
		}
		b.topics[name] = ts
		return ts, nil
	}
	if ts.typeName == "" {
		ts.typeName = typeName
	}
	if typeName != "" && ts.typeName != typeName {
		return nil, fmt.Errorf("%w: %s is %s, not %s", ErrTypeMismatch, name, ts.typeName, typeName)
	}
	return ts, nil
}

// prune drops topic state nobody references anymore. Caller holds mu.
func (b *Bus) prune(name string, ts *topicState) {
	if len(ts.pubs) == 0 && len(ts.subs) == 0 {
		delete(b.topics, name)
	}
}

// Advertise registers a publisher. A retained publisher's last message is
// replayed to every later subscriber.
func (b *Bus) Advertise(topic, typeName string, retained bool, hooks Hooks) (*Publisher, error) {
	name := normalizeTopic(topic)
	if name == "" {
		return nil, ErrEmptyTopic
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	ts, err := b.lookup(name, typeName)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.nextID++
	p := &Publisher{bus: b, topic: name, id: b.nextID, hooks: hooks}
	ts.pubs[p.id] = p
	if retained {
		ts.retained = true
	}
	present := len(ts.subs) > 0
	b.mu.Unlock()

	if present && hooks.OnFirstSubscriber != nil {
		hooks.OnFirstSubscriber(name)
	}
	return p, nil
}

// Subscribe registers handler for topic. The handler runs on the
// subscription's own goroutine, one message at a time.
func (b *Bus) Subscribe(topic, typeName string, handler func(any)) (*Subscription, error) {
	name := normalizeTopic(topic)
	if name == "" {
		return nil, ErrEmptyTopic
	}
	if handler == nil {
		return nil, fmt.Errorf("localbus: nil handler for %s", name)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	ts, err := b.lookup(name, typeName)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.nextID++
	s := &Subscription{
		bus:     b,
		topic:   name,
		id:      b.nextID,
		queue:   make(chan any, b.queueSize),
		done:    make(chan struct{}),
		handler: handler,
	}
	first := len(ts.subs) == 0
	ts.subs[s.id] = s
	if ts.retained && ts.hasLast {
		s.enqueue(ts.last)
	}
	var fire []func(string)
	if first {
		for _, p := range ts.pubs {
			if p.hooks.OnFirstSubscriber != nil {
				fire = append(fire, p.hooks.OnFirstSubscriber)
			}
		}
	}
	b.mu.Unlock()

	go s.run()
	for _, fn := range fire {
		fn(name)
	}
	return s, nil
}

// NumSubscribers reports the live subscriber count for topic.
func (b *Bus) NumSubscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.topics[normalizeTopic(topic)]
	if !ok {
		return 0
	}
	return len(ts.subs)
}

// Close stops every subscription. Later calls on the bus fail with ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var subs []*Subscription
	for _, ts := range b.topics {
		for _, s := range ts.subs {
			subs = append(subs, s)
		}
	}
	b.topics = make(map[string]*topicState)
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (b *Bus) publish(p *Publisher, msg any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	ts, ok := b.topics[p.topic]
	if !ok || ts.pubs[p.id] == nil {
		return fmt.Errorf("%w: publisher for %s", ErrClosed, p.topic)
	}
	if ts.retained {
		ts.last = msg
		ts.hasLast = true
	}
	for _, s := range ts.subs {
		s.enqueue(msg)
	}
	return nil
}

func (b *Bus) unadvertise(p *Publisher) {
	b.mu.Lock()
	ts, ok := b.topics[p.topic]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(ts.pubs, p.id)
	b.prune(p.topic, ts)
	b.mu.Unlock()
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	ts, ok := b.topics[s.topic]
	if !ok || ts.subs[s.id] == nil {
		b.mu.Unlock()
		return
	}
	delete(ts.subs, s.id)
	var fire []func(string)
	if len(ts.subs) == 0 {
		for _, p := range ts.pubs {
			if p.hooks.OnLastSubscriber != nil {
				fire = append(fire, p.hooks.OnLastSubscriber)
			}
		}
	}
	b.prune(s.topic, ts)
	b.mu.Unlock()

	for _, fn := range fire {
		fn(s.topic)
	}
}

type Publisher struct {
	bus    *Bus
	topic  string
	id     uint64
	hooks  Hooks
	closed atomic.Bool
}

func (p *Publisher) Topic() string {
	return p.topic
}

func (p *Publisher) Publish(msg any) error {
	if p.closed.Load() {
		return fmt.Errorf("%w: publisher for %s", ErrClosed, p.topic)
	}
	return p.bus.publish(p, msg)
}

func (p *Publisher) NumSubscribers() int {
	return p.bus.NumSubscribers(p.topic)
}

func (p *Publisher) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.bus.unadvertise(p)
}

type Subscription struct {
	bus     *Bus
	topic   string
	id      uint64
	queue   chan any
	done    chan struct{}
	once    sync.Once
	handler func(any)
	dropped atomic.Uint64
}

func (s *Subscription) Topic() string {
	return s.topic
}

// Dropped counts messages discarded because the queue was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription. Pending messages are discarded.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
	s.stop()
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// enqueue never blocks: a full queue loses its oldest entry. Caller holds the
// bus lock, so enqueues for one subscription never race each other.
func (s *Subscription) enqueue(msg any) {
	for {
		select {
		case s.queue <- msg:
			return
		default:
		}
		select {
		case <-s.queue:
			s.dropped.Add(1)
		default:
		}
	}
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(msg)
		}
	}
}
