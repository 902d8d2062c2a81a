package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"ghost-loop/internal/game"
	"ghost-loop/internal/input"
)

// EngineInterface defines the engine methods used by the API.
// This interface enables mocking for tests without spinning up the tick loop.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// GetSnapshot returns the latest immutable snapshot
	GetSnapshot() game.Snapshot
	// FrameSamples returns the last frozen recording
	FrameSamples() []game.FrameSample
	// Rooms lists the level's rooms
	Rooms() []game.RoomInfo
	// Stats returns loop counters
	Stats() map[string]interface{}
	// GetEventLogStats returns event log counters
	GetEventLogStats() map[string]interface{}
}

// InputQueue is where POSTed and websocket commands go
type InputQueue interface {
	Enqueue(cmd input.Command) bool
	Stats() input.QueueStats
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Engine: mockEngine,
//	    Inputs: input.NewQueue(input.DefaultQueueConfig()),
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the loop engine (required)
	Engine EngineInterface

	// Inputs receives commands (required)
	Inputs InputQueue

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, localhost on any port is allowed.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds what the handler functions need
type routerHandlers struct {
	engine EngineInterface
	inputs InputQueue
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects:
//   - No goroutines are started
//   - No network listeners are opened
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if !cfg.DisableLogging {
		r.Use(requestLogger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	h := &routerHandlers{
		engine: cfg.Engine,
		inputs: cfg.Inputs,
	}

	r.Route("/api", func(r chi.Router) {
		// Loop state
		r.Get("/state", h.handleGetState)
		r.Get("/hud", h.handleGetHUD)
		r.Get("/stats", h.handleGetStats)
		r.Get("/rooms", h.handleGetRooms)

		// Recorded ghost
		r.Get("/ghost/frames", h.handleGetFrames)
		r.Get("/ghost/trail.png", h.handleGetTrail)

		// Inputs, applied at the start of the next tick
		r.Post("/begin", h.enqueue("begin"))
		r.Post("/switch", h.enqueue("force_switch"))
		r.Post("/reset", h.enqueue("reset"))
		r.Post("/room", h.enqueue("room"))
		r.Post("/region", h.enqueue("region"))
		r.Post("/key", h.enqueue("key"))
		r.Post("/pose", h.enqueue("pose"))
		r.Post("/command", h.enqueue("command"))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/state", http.StatusFound)
	})

	return r
}
