package events

import "context"

// Publisher publishes one payload (or, for topics that support batching,
// a slice of payloads) to a topic. Publish is non-blocking and best-effort
// (spec.md §4.3) — a publisher instance is owned by one producer service and
// its publishes are serialized through it.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, payload any) error
	Close() error
}

// Handler receives the raw JSON payload for a single topic. Handlers run
// synchronously on the subscriber's delivery goroutine; heavy work should be
// handed off by the handler itself.
type Handler func(topic Topic, rawPayload []byte)

// Subscription is returned by Subscribe and released via Unsubscribe.
type Subscription interface {
	Unsubscribe()
}

// Subscriber exposes a single consumer stream per subscription (spec.md
// §4.3 "a subscriber exposes a single consumer stream; multi-reader fan-out
// is the caller's responsibility").
type Subscriber interface {
	Subscribe(topic Topic, handler Handler) (Subscription, error)
}

// Bus combines both roles; concrete implementations are InProcessBus and
// RedisBus.
type Bus interface {
	Publisher
	Subscriber
}
