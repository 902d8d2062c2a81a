package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"ghost-loop/internal/game"
)

// statsInterval is how often queue and event-log gauges are refreshed
const statsInterval = time.Second

// ServerConfig holds the public server options
type ServerConfig struct {
	CORSOrigins []string
	RateLimit   *RateLimitConfig
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket hub for real-time updates.
type Server struct {
	engine      EngineInterface
	inputs      InputQueue
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
func NewServer(engine EngineInterface, inputs InputQueue, cfg ServerConfig) *Server {
	rateCfg := DefaultRateLimitConfig
	if cfg.RateLimit != nil {
		rateCfg = *cfg.RateLimit
	}

	s := &Server{
		engine:      engine,
		inputs:      inputs,
		wsHub:       NewWebSocketHub(inputs, cfg.CORSOrigins),
		rateLimiter: NewIPRateLimiter(rateCfg),
	}
	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Inputs:      inputs,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.CORSOrigins,
	})

	// the websocket route needs the hub instance, so it is added here
	// rather than in NewRouter
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	// Start only reads these, so Shutdown may run alongside it
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// OnSignal forwards a core signal to websocket clients and metrics. It is
// safe to call from the tick goroutine: nothing here blocks.
func (s *Server) OnSignal(sig game.Signal) {
	RecordSignal(sig)
	if sig.Kind == game.SignalMoveEntity || sig.Kind == game.SignalMoveCamera {
		return
	}
	s.wsHub.Broadcast("signal", sig)
}

// OnTick records per-tick metrics
func (s *Server) OnTick(stats game.TickStats) {
	RecordTick(stats)
}

// Start launches the background workers and serves HTTP on addr until
// Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run(s.ctx)
	s.wsHub.StartBroadcastLoop(s.ctx, s.engine)
	s.rateLimiter.StartCleanup()
	go s.statsLoop(s.ctx)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	log.Info().Str("addr", ln.Addr().String()).Msg("🌐 API server starting")
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			UpdateQueueStats(s.inputs.Stats())
			stats := s.engine.GetEventLogStats()
			total, _ := stats["total"].(uint64)
			dropped, _ := stats["dropped"].(uint64)
			UpdateEventLogStats(total, dropped)
		}
	}
}

// Router returns the HTTP handler for use with httptest
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops accepting requests and stops background workers
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.rateLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}
