package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/rpi-gardener/greenhouse/internal/events"
)

const (
	maxWSConnections = 200
	wsWriteTimeout   = 5 * time.Second

	// wsPingInterval is how often the application-level ping keeps proxies
	// from reaping an idle connection (spec.md §6 "WebSocket frames").
	wsPingInterval = 30 * time.Second
)

var wsPingMessage = []byte(`{"type":"ping"}`)

// BroadcastManager fans out raw event-bus payloads to WebSocket clients
// grouped by topic. It is the single subscriber per topic; clients never
// touch the bus directly. Adapted from itskum47-FluxForge's
// control_plane/ws_hub.go MetricsHub (single-broadcaster, register/
// unregister channel pattern), rewired from gorilla/websocket's
// WriteJSON/SetWriteDeadline onto nhooyr.io/websocket's context-scoped
// Write/Close, and from a polling ticker onto event-driven fan-out since
// the bus already pushes on change (spec.md §4.9 "WS routes").
type BroadcastManager struct {
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[events.Topic]map[*websocket.Conn]bool
	latest  map[events.Topic][]byte

	register   chan wsRegistration
	unregister chan wsRegistration
}

type wsRegistration struct {
	topic events.Topic
	conn  *websocket.Conn
}

type topicMessage struct {
	topic events.Topic
	data  []byte
}

func NewBroadcastManager(log zerolog.Logger) *BroadcastManager {
	return &BroadcastManager{
		log: log.With().Str("component", "ws_hub").Logger(),
		clients: map[events.Topic]map[*websocket.Conn]bool{
			events.TopicDHTReading:  {},
			events.TopicPicoReading: {},
			events.TopicAlert:       {},
		},
		latest:     make(map[events.Topic][]byte),
		register:   make(chan wsRegistration),
		unregister: make(chan wsRegistration),
	}
}

// Run subscribes to the topics this hub serves and pumps registration and
// broadcast events until ctx is canceled.
func (h *BroadcastManager) Run(ctx context.Context, bus events.Bus) {
	messages := make(chan topicMessage, 64)

	topics := []events.Topic{events.TopicDHTReading, events.TopicPicoReading, events.TopicAlert, events.TopicHumidifierState}
	for _, topic := range topics {
		topic := topic
		sub, err := bus.Subscribe(topic, func(_ events.Topic, raw []byte) {
			select {
			case messages <- topicMessage{topic: topic, data: raw}:
			case <-ctx.Done():
			}
		})
		if err != nil {
			h.log.Error().Err(err).Str("topic", string(topic)).Msg("failed to subscribe ws hub")
			continue
		}
		defer sub.Unsubscribe()
	}

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case reg := <-h.register:
			h.mu.Lock()
			if len(h.clients[reg.topic]) >= maxWSConnections {
				h.mu.Unlock()
				reg.conn.Close(websocket.StatusTryAgainLater, "too many connections")
				continue
			}
			h.clients[reg.topic][reg.conn] = true
			h.mu.Unlock()

		case reg := <-h.unregister:
			h.mu.Lock()
			delete(h.clients[reg.topic], reg.conn)
			h.mu.Unlock()

		case msg := <-messages:
			h.mu.Lock()
			h.latest[msg.topic] = msg.data
			h.mu.Unlock()
			h.broadcast(ctx, msg.topic, msg.data)
		}
	}
}

// Latest returns the most recently broadcast payload for topic, if any has
// arrived yet since startup.
func (h *BroadcastManager) Latest(topic events.Topic) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data, ok := h.latest[topic]
	return data, ok
}

func (h *BroadcastManager) broadcast(ctx context.Context, topic events.Topic, data []byte) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[topic]))
	for c := range h.clients[topic] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		err := conn.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.log.Debug().Err(err).Str("topic", string(topic)).Msg("ws write failed, dropping client")
			go func(c *websocket.Conn) { h.unregister <- wsRegistration{topic: topic, conn: c} }(conn)
		}
	}
}

func (h *BroadcastManager) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, conns := range h.clients {
		for c := range conns {
			c.Close(websocket.StatusGoingAway, "server shutting down")
		}
		h.clients[topic] = map[*websocket.Conn]bool{}
	}
}

func (h *BroadcastManager) registerConn(topic events.Topic, conn *websocket.Conn) {
	h.register <- wsRegistration{topic: topic, conn: conn}
}

func (h *BroadcastManager) unregisterConn(topic events.Topic, conn *websocket.Conn) {
	h.unregister <- wsRegistration{topic: topic, conn: conn}
}

// serveTopic accepts the WebSocket upgrade, writes the initial snapshot (if
// any), and blocks — holding the connection registered under topic and
// pumping a periodic ping heartbeat — until the client disconnects or the
// request context is canceled. initial is nil for alert streams, which are
// transient and have no snapshot to replay (spec.md §4.9 "WS routes").
func (s *Server) serveTopic(w http.ResponseWriter, r *http.Request, topic events.Topic, initial func() ([]byte, error)) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Debug().Err(err).Msg("ws accept failed")
		return
	}
	defer conn.CloseNow()

	s.hub.registerConn(topic, conn)
	defer s.hub.unregisterConn(topic, conn)

	ctx := r.Context()

	if initial != nil {
		data, err := initial()
		if err != nil {
			s.log.Error().Err(err).Str("topic", string(topic)).Msg("failed to build ws snapshot")
		} else if data != nil {
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}

	// Clients don't send anything meaningful; a dedicated reader goroutine
	// just detects disconnects (close frames, errors) so the hub can
	// release the slot, while the main loop stays free to pump pings.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-ticker.C:
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, wsPingMessage)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) handleWSDHTLatest(w http.ResponseWriter, r *http.Request) {
	s.serveTopic(w, r, events.TopicDHTReading, func() ([]byte, error) {
		row, err := getLatestDHT(r.Context(), s.db)
		if err != nil || row == nil {
			return nil, err
		}
		return json.Marshal(row)
	})
}

func (s *Server) handleWSPicoLatest(w http.ResponseWriter, r *http.Request) {
	s.serveTopic(w, r, events.TopicPicoReading, func() ([]byte, error) {
		rows, err := getLatestPico(r.Context(), s.db)
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return json.Marshal(rows)
	})
}

func (s *Server) handleWSAlerts(w http.ResponseWriter, r *http.Request) {
	s.serveTopic(w, r, events.TopicAlert, nil)
}
