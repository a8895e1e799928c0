package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rpi-gardener/greenhouse/internal/events"
)

// sseStream writes an initial snapshot (if any is available) followed by a
// stream of raw JSON payloads for topic, one per bus message, until the
// client disconnects. Grounded on original_source/rpi/server/sse.py's
// subscribe-then-stream pattern.
func (s *Server) sseStream(w http.ResponseWriter, r *http.Request, topic events.Topic, initial func() ([]byte, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if initial != nil {
		data, err := initial()
		if err != nil {
			s.log.Error().Err(err).Str("topic", string(topic)).Msg("failed to build sse snapshot")
		} else if data != nil {
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}

	messages := make(chan []byte, 16)
	sub, err := s.bus.Subscribe(topic, func(_ events.Topic, raw []byte) {
		select {
		case messages <- raw:
		default:
			// slow client, drop the update rather than block the bus
		}
	})
	if err != nil {
		s.log.Error().Err(err).Str("topic", string(topic)).Msg("sse subscribe failed")
		return
	}
	defer sub.Unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-messages:
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleSSEDHTLatest(w http.ResponseWriter, r *http.Request) {
	s.sseStream(w, r, events.TopicDHTReading, func() ([]byte, error) {
		row, err := getLatestDHT(r.Context(), s.db)
		if err != nil || row == nil {
			return nil, err
		}
		return json.Marshal(row)
	})
}

func (s *Server) handleSSEPicoLatest(w http.ResponseWriter, r *http.Request) {
	s.sseStream(w, r, events.TopicPicoReading, func() ([]byte, error) {
		rows, err := getLatestPico(r.Context(), s.db)
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return json.Marshal(rows)
	})
}

func (s *Server) handleSSEHumidifierState(w http.ResponseWriter, r *http.Request) {
	s.sseStream(w, r, events.TopicHumidifierState, func() ([]byte, error) {
		if data, ok := s.hub.Latest(events.TopicHumidifierState); ok {
			return data, nil
		}
		return nil, nil
	})
}
