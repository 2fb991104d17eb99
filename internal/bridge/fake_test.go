package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/danmuck/mirbridge/internal/structured"
)

type publishedMsg struct {
	topic string
	msg   structured.Value
}

// fakeTransport records every call and lets tests push remote messages.
type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	errored    bool
	err        error
	subscribes []string
	handlers   map[string]func(structured.Value)
	adverts    map[string]string
	published  []publishedMsg
	services   map[string]func(args structured.Value) (structured.Value, error)
	calls      []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		connected: true,
		handlers:  make(map[string]func(structured.Value)),
		adverts:   make(map[string]string),
		services:  make(map[string]func(structured.Value) (structured.Value, error)),
	}
}

// withCatalog answers rosapi calls for the given topics. Topics in pubs have
// a publisher, topics in subs a subscriber.
func (f *fakeTransport) withCatalog(pubs, subs []string) *fakeTransport {
	has := func(list []string, topic string) bool {
		for _, t := range list {
			if t == topic {
				return true
			}
		}
		return false
	}
	all := map[string]struct{}{}
	for _, t := range append(append([]string{}, pubs...), subs...) {
		all[t] = struct{}{}
	}
	names := make([]any, 0, len(all))
	for t := range all {
		names = append(names, t)
	}
	topicArg := func(args structured.Value) string {
		v, _ := args.Get("topic")
		s, _ := v.AsString()
		return s
	}
	f.services[ServiceTopics] = func(structured.Value) (structured.Value, error) {
		return structured.FromAny(map[string]any{"topics": names}), nil
	}
	f.services[ServiceTopicType] = func(structured.Value) (structured.Value, error) {
		return structured.MustParse(`{"type":"std_msgs/String"}`), nil
	}
	f.services[ServicePublishers] = func(args structured.Value) (structured.Value, error) {
		out := []any{}
		if has(pubs, topicArg(args)) {
			out = append(out, "/mir_node")
		}
		return structured.FromAny(map[string]any{"publishers": out}), nil
	}
	f.services[ServiceSubscribers] = func(args structured.Value) (structured.Value, error) {
		out := []any{}
		if has(subs, topicArg(args)) {
			out = append(out, "/mir_node")
		}
		return structured.FromAny(map[string]any{"subscribers": out}), nil
	}
	return f
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) IsErrored() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errored
}

func (f *fakeTransport) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeTransport) CallService(_ context.Context, service string, args structured.Value) (structured.Value, error) {
	f.mu.Lock()
	f.calls = append(f.calls, service)
	fn, ok := f.services[service]
	f.mu.Unlock()
	if !ok {
		return structured.Value{}, errors.New("fake: no such service " + service)
	}
	return fn(args)
}

func (f *fakeTransport) Subscribe(topic, _ string, handler func(structured.Value)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, topic)
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Advertise(topic, typeName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adverts[topic] = typeName
	return nil
}

func (f *fakeTransport) Publish(topic string, msg structured.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMsg{topic: topic, msg: msg})
	return nil
}

// deliver pushes a remote message through the registered handler.
func (f *fakeTransport) deliver(topic string, msg structured.Value) bool {
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	if ok {
		h(msg)
	}
	return ok
}

func (f *fakeTransport) subscribeCount(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.subscribes {
		if t == topic {
			n++
		}
	}
	return n
}

func (f *fakeTransport) publishedOn(topic string) []structured.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []structured.Value
	for _, p := range f.published {
		if p.topic == topic {
			out = append(out, p.msg)
		}
	}
	return out
}
