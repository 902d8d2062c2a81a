package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"ghost-loop/internal/api"
	"ghost-loop/internal/config"
	"ghost-loop/internal/game"
	"ghost-loop/internal/input"
	"ghost-loop/internal/level"
	"ghost-loop/internal/logging"
)

func main() {
	// .env is optional; real environment variables win
	envErr := godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logging.Init("ghost-loop", "info")
		log.Fatal().Err(err).Msg("❌ configuration rejected")
	}
	logging.Init("ghost-loop", cfg.Log.Level)
	if envErr != nil {
		log.Debug().Msg("💡 No .env file found, using environment variables only")
	}

	log.Info().Msg("👻 ================================")
	log.Info().Msg("👻  GHOST LOOP")
	log.Info().Msg("👻 ================================")

	lvl, err := loadLevel(cfg.Level)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ level rejected")
	}

	orch := game.NewOrchestrator(game.Options{
		TransitionDuration: cfg.Sim.TransitionSeconds,
		CameraOffset: game.Vec3{
			X: cfg.Sim.CameraOffsetX,
			Y: cfg.Sim.CameraOffsetY,
			Z: cfg.Sim.CameraOffsetZ,
		},
		FallLimitY:     cfg.Sim.FallLimitY,
		RevealDelay:    cfg.Sim.RevealDelay,
		NoticeDuration: cfg.Sim.NoticeSeconds,
	})
	if err := lvl.Install(orch); err != nil {
		log.Fatal().Err(err).Msg("❌ level install failed")
	}
	log.Info().
		Int("rooms", len(lvl.Rooms)).
		Str("start", string(lvl.Start)).
		Msg("🗺️ level loaded")

	inputs := input.NewQueue(input.QueueConfig{
		BufferSize: cfg.Input.BufferSize,
		Limiter: input.LimiterConfig{
			PerSecond: cfg.Input.Rate,
			Burst:     cfg.Input.Burst,
			IdleTTL:   input.DefaultLimiterConfig().IdleTTL,
		},
	})

	engine := game.NewEngine(game.EngineConfig{
		TickRate: cfg.Sim.TickRate,
		Limits:   game.DefaultLimits,
	}, orch)
	engine.SetInputs(inputs)

	server := api.NewServer(engine, inputs, api.ServerConfig{CORSOrigins: cfg.Server.CORSOrigins})
	engine.SetCallbacks(server.OnSignal, server.OnTick)

	if cfg.EventLog.Path != "" {
		if err := engine.StartEventLog(cfg.EventLog.Path); err != nil {
			log.Warn().Err(err).Msg("⚠️ Event log disabled")
		}
	}

	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.Enabled = !cfg.Debug.Disabled
	debugCfg.ListenAddr = cfg.Debug.Addr
	debugSrv := api.StartDebugServer(debugCfg)

	engine.Start()

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(addr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info().Msg("🛑 Shutting down...")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("❌ API server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("⚠️ API server shutdown")
	}
	if debugSrv != nil {
		debugSrv.Shutdown(shutdownCtx)
	}
	engine.Stop()
	engine.StopEventLog()
	log.Info().Msg("👋 Goodbye")
}

func loadLevel(cfg config.LevelConfig) (*level.Level, error) {
	if cfg.Path == "" {
		return level.Default()
	}
	return level.Load(cfg.Path)
}
