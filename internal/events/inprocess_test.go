package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessBusPublishSubscribe(t *testing.T) {
	bus := NewInProcessBus(zerolog.Nop())
	defer bus.Close()

	received := make(chan DHTReadingPayload, 1)
	sub, err := bus.Subscribe(TopicDHTReading, func(topic Topic, raw []byte) {
		var p DHTReadingPayload
		require.NoError(t, json.Unmarshal(raw, &p))
		received <- p
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	payload := NewDHTReadingPayload(22.5, 55.0, time.Now())
	require.NoError(t, bus.Publish(context.Background(), TopicDHTReading, payload))

	select {
	case got := <-received:
		assert.Equal(t, payload.Temperature, got.Temperature)
		assert.Equal(t, payload.Humidity, got.Humidity)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestInProcessBusFansOutToMultipleSubscribers(t *testing.T) {
	bus := NewInProcessBus(zerolog.Nop())
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	for i := 0; i < 2; i++ {
		sub, err := bus.Subscribe(TopicAlert, func(topic Topic, raw []byte) {
			wg.Done()
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()
	}

	require.NoError(t, bus.Publish(context.Background(), TopicAlert, map[string]string{"x": "y"}))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the event")
	}
}

func TestInProcessBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewInProcessBus(zerolog.Nop())
	defer bus.Close()

	received := make(chan struct{}, 10)
	sub, err := bus.Subscribe(TopicAlert, func(topic Topic, raw []byte) {
		received <- struct{}{}
	})
	require.NoError(t, err)

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), TopicAlert, map[string]string{"x": "y"}))

	select {
	case <-received:
		t.Fatal("handler invoked after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}
