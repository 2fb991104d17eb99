package bridge

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/danmuck/mirbridge/internal/observability"
	"github.com/danmuck/mirbridge/internal/structured"
)

// rosapi services queried for the catalog.
const (
	ServiceTopics      = "/rosapi/topics"
	ServiceTopicType   = "/rosapi/topic_type"
	ServicePublishers  = "/rosapi/publishers"
	ServiceSubscribers = "/rosapi/subscribers"
)

type CatalogEntry struct {
	Topic          string `json:"topic"`
	Type           string `json:"type"`
	HasPublishers  bool   `json:"has_publishers"`
	HasSubscribers bool   `json:"has_subscribers"`
}

// Catalog is a snapshot of the remote topic graph. The zero Catalog is empty.
type Catalog struct {
	entries map[string]CatalogEntry
}

func NewCatalog(entries ...CatalogEntry) Catalog {
	c := Catalog{entries: make(map[string]CatalogEntry, len(entries))}
	for _, e := range entries {
		c.entries[e.Topic] = e
	}
	return c
}

func (c Catalog) Len() int {
	return len(c.entries)
}

// Published reports whether topic has at least one remote publisher.
func (c Catalog) Published(topic string) bool {
	return c.entries[topic].HasPublishers
}

// Subscribed reports whether topic has at least one remote subscriber.
func (c Catalog) Subscribed(topic string) bool {
	return c.entries[topic].HasSubscribers
}

// Entries returns all entries sorted by topic.
func (c Catalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// FetchCatalog lists remote topics and, for each in sorted order, its type
// and whether it has publishers and subscribers.
func FetchCatalog(ctx context.Context, caller ServiceCaller) (Catalog, error) {
	resp, err := call(ctx, caller, ServiceTopics, nil)
	if err != nil {
		return Catalog{}, err
	}
	topics, err := stringList(resp, "topics")
	if err != nil {
		return Catalog{}, fmt.Errorf("bridge: %s: %w", ServiceTopics, err)
	}
	sort.Strings(topics)

	entries := make([]CatalogEntry, 0, len(topics))
	for _, topic := range topics {
		args := map[string]structured.Value{"topic": structured.String(topic)}
		entry := CatalogEntry{Topic: topic}

		resp, err := call(ctx, caller, ServiceTopicType, args)
		if err != nil {
			return Catalog{}, err
		}
		if t, ok := resp.Get("type"); ok {
			entry.Type, _ = t.AsString()
		}

		resp, err = call(ctx, caller, ServicePublishers, args)
		if err != nil {
			return Catalog{}, err
		}
		pubs, err := stringList(resp, "publishers")
		if err != nil {
			return Catalog{}, fmt.Errorf("bridge: %s %s: %w", ServicePublishers, topic, err)
		}
		entry.HasPublishers = len(pubs) > 0

		resp, err = call(ctx, caller, ServiceSubscribers, args)
		if err != nil {
			return Catalog{}, err
		}
		subs, err := stringList(resp, "subscribers")
		if err != nil {
			return Catalog{}, fmt.Errorf("bridge: %s %s: %w", ServiceSubscribers, topic, err)
		}
		entry.HasSubscribers = len(subs) > 0

		entries = append(entries, entry)
	}
	return NewCatalog(entries...), nil
}

func call(ctx context.Context, caller ServiceCaller, service string, args map[string]structured.Value) (structured.Value, error) {
	start := time.Now()
	resp, err := caller.CallService(ctx, service, structured.Map(args))
	observability.RecordServiceCall(service, time.Since(start), err == nil)
	if err != nil {
		return structured.Value{}, fmt.Errorf("bridge: %s: %w", service, err)
	}
	return resp, nil
}

func stringList(v structured.Value, key string) ([]string, error) {
	list, ok := v.Get(key)
	if !ok {
		return nil, fmt.Errorf("missing %q in response", key)
	}
	if !list.IsSeq() {
		return nil, fmt.Errorf("%q is %s, not a list", key, list.Kind())
	}
	out := make([]string, 0, list.Len())
	for _, item := range list.Items() {
		s, ok := item.AsString()
		if !ok {
			return nil, fmt.Errorf("non-string entry in %q", key)
		}
		out = append(out, s)
	}
	return out, nil
}
