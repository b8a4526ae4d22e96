// Package server is the HTTP and WebSocket API of tokenarb.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/server/handler"
	"github.com/alanyoungcy/tokenarb/internal/server/middleware"
	"github.com/alanyoungcy/tokenarb/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // empty disables authentication
	RateLimitPerMin int    // 0 disables rate limiting
}

// Handlers aggregates the endpoint handlers. Nil handlers leave their
// routes unregistered.
type Handlers struct {
	Health        *handler.HealthHandler
	Status        *handler.StatusHandler
	Opportunities *handler.OpportunityHandler
	Prices        *handler.PriceHandler
	Cycles        *handler.CycleHandler
	Simulations   *handler.SimulationHandler
}

// Server is the headless API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers routes and wraps them in CORS, logging, rate limiting
// and auth, outermost first.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	if h := handlers.Health; h != nil {
		mux.HandleFunc("GET /api/health", h.HealthCheck)
	}
	if h := handlers.Status; h != nil {
		mux.HandleFunc("GET /api/status", h.GetStatus)
	}
	if h := handlers.Opportunities; h != nil {
		mux.HandleFunc("GET /api/opportunities/recent", h.ListRecent)
		mux.HandleFunc("GET /api/opportunities/latest", h.Latest)
		mux.HandleFunc("GET /api/opportunities/stats", h.Stats)
		mux.HandleFunc("GET /api/opportunities/{id}", h.Get)
	}
	if h := handlers.Prices; h != nil {
		mux.HandleFunc("GET /api/prices", h.ListPrices)
	}
	if h := handlers.Cycles; h != nil {
		mux.HandleFunc("GET /api/cycles/recent", h.ListRecent)
	}
	if h := handlers.Simulations; h != nil {
		mux.HandleFunc("GET /api/simulations/recent", h.ListRecent)
		mux.HandleFunc("GET /api/simulations/{id}", h.Get)
		mux.HandleFunc("POST /api/simulations", h.Run)
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.RateLimit(limiter, cfg.RateLimitPerMin, time.Minute, logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
