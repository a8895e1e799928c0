package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// InProcessBus fans events out to in-process subscribers without touching
// the network. It is used by tests and by any subscriber colocated with its
// publisher; the default multi-process deployment uses RedisBus instead.
// Grounded on itskum47-FluxForge's streaming.Publisher/Subscriber interface
// shape (non-blocking publish, explicit Close) and on
// original_source/rpi/lib/eventbus.py's drop-on-full PUB/SUB semantics.
type InProcessBus struct {
	log zerolog.Logger

	mu          sync.RWMutex
	subscribers map[Topic][]*inProcessSubscription
	nextID      int
}

type inProcessSubscription struct {
	id      int
	topic   Topic
	ch      chan []byte
	handler Handler
	bus     *InProcessBus
	done    chan struct{}
}

// NewInProcessBus creates an empty bus ready to publish and subscribe.
func NewInProcessBus(log zerolog.Logger) *InProcessBus {
	return &InProcessBus{
		log:         log.With().Str("component", "events.inprocess").Logger(),
		subscribers: make(map[Topic][]*inProcessSubscription),
	}
}

// Publish marshals payload to JSON and delivers it to every subscriber of
// topic. A full subscriber channel drops the event rather than blocking the
// publisher (spec.md §4.3 "publish is non-blocking and best-effort").
func (b *InProcessBus) Publish(_ context.Context, topic Topic, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	subs := append([]*inProcessSubscription(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- data:
		default:
			b.log.Warn().Str("topic", string(topic)).Msg("subscriber channel full, dropping event")
		}
	}
	return nil
}

// Subscribe registers handler for topic and returns immediately; handler is
// invoked on a dedicated goroutine fed by a buffered channel.
func (b *InProcessBus) Subscribe(topic Topic, handler Handler) (Subscription, error) {
	b.mu.Lock()
	b.nextID++
	sub := &inProcessSubscription{
		id:      b.nextID,
		topic:   topic,
		ch:      make(chan []byte, 64),
		handler: handler,
		bus:     b,
		done:    make(chan struct{}),
	}
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()

	go sub.run()
	return sub, nil
}

func (s *inProcessSubscription) run() {
	for {
		select {
		case data := <-s.ch:
			s.handler(s.topic, data)
		case <-s.done:
			return
		}
	}
}

// Unsubscribe stops delivery and removes the subscription from the bus.
func (s *inProcessSubscription) Unsubscribe() {
	close(s.done)

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	list := s.bus.subscribers[s.topic]
	for i, other := range list {
		if other == s {
			s.bus.subscribers[s.topic] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// Close shuts down all subscriptions on the bus.
func (b *InProcessBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			close(sub.done)
		}
	}
	b.subscribers = make(map[Topic][]*inProcessSubscription)
	return nil
}
