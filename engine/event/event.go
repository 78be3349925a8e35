// Package event provides the synchronous topic bus used to announce scene creation and to ask
// traversal collaborators to flush deferred exports before a geometry registration reads them.
package event

import (
	"slices"
	"sync"
)

// Topic names a channel on the bus.
type Topic string

const (
	// TopicSceneCreated is published with a SceneCreated payload when a host creates a scene.
	TopicSceneCreated Topic = "scene-created"

	// TopicMarshal is published with a Marshal payload before each geometry registration.
	TopicMarshal Topic = "marshal"
)

// SceneCreated announces a new scene and the canvas it draws to.
type SceneCreated struct {
	SceneID string
	Canvas  Canvas
}

// Canvas describes the drawing surface of a scene.
type Canvas struct {
	ID     string
	Width  int
	Height int
}

// Marshal is the payload of TopicMarshal.
type Marshal struct {
	SceneID    string
	GeometryID string
}

// Handler receives a published payload.
type Handler func(payload any)

// Subscription identifies a registered handler.
type Subscription struct {
	topic Topic
	id    uint64
}

type subscriber struct {
	id uint64
	fn Handler
}

type bus struct {
	mu     *sync.RWMutex
	nextID uint64
	subs   map[Topic][]subscriber
}

// Bus delivers payloads to subscribers synchronously, in subscription order.
type Bus interface {
	// Subscribe registers fn for topic.
	//
	// Parameters:
	//   - topic: the topic to listen on
	//   - fn: called with each payload published on topic
	//
	// Returns:
	//   - Subscription: handle used to unsubscribe
	Subscribe(topic Topic, fn Handler) Subscription

	// Unsubscribe removes a handler. Unknown subscriptions are ignored.
	Unsubscribe(sub Subscription)

	// Publish calls every handler of topic on the calling goroutine and returns once all have run.
	//
	// Parameters:
	//   - topic: the topic to publish on
	//   - payload: the value handed to each handler
	Publish(topic Topic, payload any)
}

var _ Bus = &bus{}

// NewBus creates an empty bus.
func NewBus() Bus {
	return &bus{
		mu:   &sync.RWMutex{},
		subs: make(map[Topic][]subscriber),
	}
}

func (b *bus) Subscribe(topic Topic, fn Handler) Subscription {
	if fn == nil {
		panic("event: nil handler")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[topic] = append(b.subs[topic], subscriber{id: b.nextID, fn: fn})
	return Subscription{topic: topic, id: b.nextID}
}

func (b *bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[sub.topic] = slices.DeleteFunc(b.subs[sub.topic], func(s subscriber) bool {
		return s.id == sub.id
	})
}

func (b *bus) Publish(topic Topic, payload any) {
	// copy so handlers may subscribe or unsubscribe while being called
	b.mu.RLock()
	subs := slices.Clone(b.subs[topic])
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(payload)
	}
}
