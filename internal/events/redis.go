package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBus is the default cross-process event bus transport (spec.md §4.3,
// §9 Open Question #1): PUBLISH/SUBSCRIBE on a key/value broker, carrying
// UTF-8 JSON payloads per topic. Grounded on the go-redis client wiring and
// connection-check-at-construction pattern of itskum47-FluxForge's
// control_plane/store/redis.go; this package does not adopt FluxForge's Lua
// versioned-set script, since the bus's delivery contract here is plain
// at-most-once fan-out, not a compare-and-swap value store (internal/settings
// does not use that script either; its version counter is a plain INCR/GET).
type RedisBus struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisBus opens a client against addr (a redis:// URL) and verifies
// connectivity with a short-lived ping.
func NewRedisBus(addr string, log zerolog.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisBus{client: client, log: log.With().Str("component", "events.redis").Logger()}, nil
}

// Publish marshals payload and PUBLISHes it on topic. Redis pub/sub is
// inherently best-effort (spec.md §4.3 "at-most-once").
func (b *RedisBus) Publish(ctx context.Context, topic Topic, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, string(topic), data).Err()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

func (s *redisSubscription) Unsubscribe() {
	s.cancel()
	_ = s.pubsub.Close()
}

// Subscribe opens a dedicated Redis subscription for topic and dispatches
// each message to handler on its own goroutine until Unsubscribe is called.
func (b *RedisBus) Subscribe(topic Topic, handler Handler) (Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := b.client.Subscribe(ctx, string(topic))

	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		return nil, err
	}

	sub := &redisSubscription{pubsub: pubsub, cancel: cancel}

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(topic, []byte(msg.Payload))
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

// Close disconnects the underlying Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
