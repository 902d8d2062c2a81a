package api

import (
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"ghost-loop/internal/game"
	"ghost-loop/internal/input"
)

// Metrics with bounded cardinality: phases, outcomes and route patterns only
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghostloop_tick_duration_seconds",
		Help:    "Time spent in one loop tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.033},
	})

	currentPhase = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ghostloop_phase",
		Help: "Current phase (1 idle, 2 recording, 3 playback, 4 complete, 5 timed out)",
	})

	phaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghostloop_phase_transitions_total",
		Help: "Phase transitions by destination phase",
	}, []string{"to"})

	puzzleOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghostloop_puzzle_outcomes_total",
		Help: "Sync puzzle resolutions",
	}, []string{"outcome"})

	inputsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghostloop_inputs_applied_total",
		Help: "Input commands applied by the tick",
	})

	inputsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghostloop_inputs_dropped_total",
		Help: "Input commands rejected by the queue",
	})

	inputQueuePending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ghostloop_input_queue_pending",
		Help: "Commands waiting for the next tick",
	})

	eventLogTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ghostloop_event_log_events",
		Help: "Events accepted by the event log since start",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ghostloop_event_log_dropped",
		Help: "Events dropped by rate limiting or a full buffer since start",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghostloop_connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghostloop_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghostloop_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ghostloop_websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghostloop_websocket_messages_total",
		Help: "Total WebSocket messages broadcast",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // loopback only
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// DebugHandler serves pprof, prometheus metrics and a health check
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the observability server in the background.
// Non-loopback hosts are rewritten to 127.0.0.1 so pprof is never exposed.
// Returns nil when disabled.
func StartDebugServer(cfg ObservabilityConfig) *http.Server {
	if !cfg.Enabled {
		log.Info().Msg("📊 Debug server disabled")
		return nil
	}

	cfg.ListenAddr = loopbackOnly(cfg.ListenAddr)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           DebugHandler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("📊 Debug server starting (/metrics, /debug/pprof/)")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Msg("⚠️ Debug server error")
		}
	}()
	return srv
}

func loopbackOnly(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		log.Warn().Str("addr", addr).Msg("⚠️ Debug address invalid, using 127.0.0.1:6060")
		return "127.0.0.1:6060"
	}
	if host == "localhost" {
		return addr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return addr
	}
	log.Warn().Str("addr", addr).Msg("⚠️ Debug server forced to localhost")
	return net.JoinHostPort("127.0.0.1", port)
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request through zerolog and records HTTP
// metrics keyed by the chi route pattern
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		RecordRequest(r.Method, endpoint, status, elapsed)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("took", elapsed).
			Str("req", middleware.GetReqID(r.Context())).
			Msg("http")
	})
}

// RecordTick records tick timing and the current phase
func RecordTick(stats game.TickStats) {
	tickDuration.Observe(stats.Duration.Seconds())
	currentPhase.Set(float64(stats.Phase))
	if stats.Inputs > 0 {
		inputsApplied.Add(float64(stats.Inputs))
	}
}

// RecordSignal counts phase transitions and puzzle outcomes
func RecordSignal(s game.Signal) {
	switch s.Kind {
	case game.SignalPhaseChanged:
		phaseTransitions.WithLabelValues(s.Phase.String()).Inc()
	case game.SignalPuzzleResolved:
		puzzleOutcomes.WithLabelValues(s.Puzzle.String()).Inc()
	}
}

// RecordInputDropped counts a command the queue refused
func RecordInputDropped() {
	inputsDropped.Inc()
}

// UpdateQueueStats publishes input queue gauges
func UpdateQueueStats(stats input.QueueStats) {
	inputQueuePending.Set(float64(stats.Pending))
}

// UpdateEventLogStats publishes event log totals
func UpdateEventLogStats(total, dropped uint64) {
	eventLogTotal.Set(float64(total))
	eventLogDropped.Set(float64(dropped))
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
