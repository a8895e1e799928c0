// Package server implements the HTTP/WS dashboard server (spec.md §4.9),
// grounded on the teacher's internal/server/server.go for the router,
// middleware stack, and graceful-shutdown shape, and on
// original_source/rpi/server/{api/dashboard.py,api/health.py,
// api/thresholds.py,sse.py,websockets.py} for the routes themselves.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/config"
	"github.com/rpi-gardener/greenhouse/internal/database"
	"github.com/rpi-gardener/greenhouse/internal/events"
	"github.com/rpi-gardener/greenhouse/internal/settings"
)

// Config configures a new Server.
type Config struct {
	Port     int
	Log      zerolog.Logger
	DB       *database.DB // pool-mode connection (spec.md §4.1 "Bounded pool mode")
	Settings *settings.Store
	Bus      events.Bus
	Config   *config.Config
	DevMode  bool
}

// Server is the HTTP/WS dashboard server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	db     *database.DB
	store  *settings.Store
	bus    events.Bus
	cfg    *config.Config
	hub    *BroadcastManager
}

// New builds a Server and wires its routes; call Start to begin serving.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		db:     cfg.DB,
		store:  cfg.Settings,
		bus:    cfg.Bus,
		cfg:    cfg.Config,
		hub:    NewBroadcastManager(cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE/WS handlers hold the connection open themselves
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleDashboardPage)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/thresholds", s.handleThresholds)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/settings", s.handleGetAdminSettings)
			r.Post("/settings", s.handleUpdateAdminSettings)
		})
	})

	s.router.Route("/sse", func(r chi.Router) {
		r.Get("/dht/latest", s.handleSSEDHTLatest)
		r.Get("/pico/latest", s.handleSSEPicoLatest)
		r.Get("/humidifier/state", s.handleSSEHumidifierState)
	})

	s.router.Route("/ws", func(r chi.Router) {
		r.Get("/dht/latest", s.handleWSDHTLatest)
		r.Get("/pico/latest", s.handleWSPicoLatest)
		r.Get("/alerts", s.handleWSAlerts)
	})

	fileServer := http.FileServer(http.Dir("./static"))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
}

// Start runs the hub's broadcast pumps and serves HTTP until Shutdown is
// called. ctx cancellation stops the hub; the caller is responsible for
// calling Shutdown separately to stop accepting connections.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx, s.bus)
	s.log.Info().Int("port", s.cfg.Port).Msg("starting HTTP server")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops accepting new connections and waits for
// in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, "./static/index.html")
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
