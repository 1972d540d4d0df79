// Command gameserver runs the authoritative real-time match server: a
// fixed-tick simulation loop, a WebSocket delta-broadcast transport, a gRPC
// time-sync side channel, and the operational HTTP surface (health, stats,
// replay dump) bundled into one process.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"massivegame/server/internal/bots"
	"massivegame/server/internal/config"
	httpapi "massivegame/server/internal/http"
	"massivegame/server/internal/grpcsync"
	"massivegame/server/internal/input"
	"massivegame/server/internal/logging"
	"massivegame/server/internal/matchlogic"
	"massivegame/server/internal/replay"
	"massivegame/server/internal/simcore"
	"massivegame/server/internal/simulation"
	"massivegame/server/internal/transport"
)

func main() {
	startedAt := time.Now()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize structured logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if len(cfg.AllowedOrigins) > 0 {
		logger.Info("allowing WebSocket origins", logging.Strings("origins", cfg.AllowedOrigins))
	} else {
		logger.Info("no allowed origins configured; permitting only local development origins")
	}
	logger.Info("maximum WebSocket payload configured", logging.Int64("bytes", cfg.MaxPayloadBytes))
	if cfg.MaxClients > 0 {
		logger.Info("limiting WebSocket clients", logging.Int("max_clients", cfg.MaxClients))
	} else {
		logger.Info("no limit configured for WebSocket clients")
	}

	mode := matchlogic.ModeTDM
	if cfg.MatchMode == "ctf" {
		mode = matchlogic.ModeCTF
	}
	logger.Info("match mode selected", logging.String("mode", cfg.MatchMode))

	arena := buildArena(cfg.Simulation)
	worldCfg := simcore.NewConfig(cfg.Simulation)

	spawner := newBotSpawner()
	launcher := bots.NewPlayerLauncher(spawner, []uint8{1, 2})

	rng := rand.New(rand.NewSource(startedAt.UnixNano()))
	world := simcore.New(worldCfg, logger, rng, arena.partitions, arena.spawnPoints, mode, arena.homeBases, launcher)
	spawner.world = world

	for _, pk := range arena.pickups {
		world.AddPickup(pk.pos, pk.kind, 0)
	}

	gate := input.NewGate(input.Config{
		MaxAge:      4 * time.Second,
		MinInterval: gateMinInterval(cfg.Simulation),
	}, logger.With(logging.String("component", "input-gate")))

	validator := input.NewValidator(input.DefaultControlConstraints, logger.With(logging.String("component", "input-validator")))

	handler := newSessionHandler(world, worldCfg, logger, gate, validator, cfg.Simulation.TickRateHz, arena.homeBases)

	var authenticator transport.Authenticator
	if cfg.WSAuthSecret != "" {
		authenticator, err = transport.NewHMACAuthenticator(cfg.WSAuthSecret)
		if err != nil {
			logger.Fatal("failed to configure websocket authenticator", logging.Error(err))
		}
		logger.Info("websocket HMAC authentication enabled")
	} else {
		logger.Info("websocket authentication disabled; accepting unauthenticated connections")
	}

	transportServer := transport.NewServer(transport.Config{
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		PingInterval:    cfg.PingInterval,
		MaxClients:      cfg.MaxClients,
		AllowedOrigins:  cfg.AllowedOrigins,
	}, logger.With(logging.String("component", "transport")), handler, authenticator)

	replayDir := cfg.StateSnapshotPath
	if replayDir == "" {
		replayDir = "storage/replays"
	}
	recorder, err := replay.NewRecorder(replayDir, nil)
	if err != nil {
		logger.Fatal("failed to initialize replay recorder", logging.Error(err))
	}

	writer, _, err := replay.NewWriter(replayDir, fmt.Sprintf("match-%d", startedAt.Unix()), nil)
	if err != nil {
		logger.Fatal("failed to initialize replay writer", logging.Error(err))
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Warn("replay writer close failed", logging.Error(err))
		}
	}()

	cleaner := replay.NewCleaner(replayDir, replay.RetentionPolicy{MaxMatches: 20, MaxAge: 7 * 24 * time.Hour}, logger.With(logging.String("component", "replay-cleaner")))
	cleanerCtx, cleanerCancel := context.WithCancel(context.Background())
	go cleaner.Run(cleanerCtx, time.Hour)
	defer cleanerCancel()

	grpcServer := grpcsync.NewServer()
	clock := newSimClock(world, cfg.Simulation.TickRateHz, logger.With(logging.String("component", "timesync")))
	grpcsync.Register(grpcServer, grpcsync.NewService(clock, time.Second))

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			logger.Fatal("failed to start gRPC listener", logging.Error(err), logging.String("address", cfg.GRPCAddress))
		}
		logger.Info("gRPC time sync server listening", logging.String("address", cfg.GRPCAddress))
		if err := grpcServer.Serve(listener); err != nil {
			logger.Error("gRPC server terminated", logging.Error(err))
		}
	}()
	defer grpcServer.GracefulStop()

	tickDt := time.Second / time.Duration(cfg.Simulation.TickRateHz)
	scheduler := simulation.NewScheduler(cfg.Simulation, logger.With(logging.String("component", "scheduler")), simulation.Stages{
		ApplyInputs: func(dt time.Duration) { world.ApplyInputs(dt.Seconds()) },
		BotAI:       func(dt time.Duration) { world.RunBotAI(dt.Seconds()) },
		Physics:     func(dt time.Duration) { world.RunPhysics(dt.Seconds()) },
		GameLogic:   func(dt time.Duration) []matchlogic.Event { return world.RunGameLogic(dt.Seconds()) },
		StateSync:   func(dt time.Duration) { world.RunStateSync(dt.Seconds()) },
		Broadcast: func(ctx context.Context, events []matchlogic.Event) {
			handler.broadcastTick(ctx, events)
			recordReplayTick(world, writer, recorder, events, logger)
		},
		Cleanup: func() {
			world.RunCleanup()
			world.AdvanceClock(tickDt.Seconds())
		},
	})

	simCtx, simCancel := context.WithCancel(context.Background())
	scheduler.Start(simCtx)
	defer simCancel()
	defer scheduler.Stop()

	ready := &readinessProbe{server: transportServer, startedAt: startedAt}
	httpHandler := buildHTTPHandler(transportServer, world, recorder, cfg, logger, ready)

	server := &http.Server{Addr: cfg.Address, Handler: httpHandler}

	logger.Info("gameserver listening", logging.String("address", cfg.Address), logging.Bool("tls", cfg.TLSCertPath != ""))

	go func() {
		var serveErr error
		if cfg.TLSCertPath != "" {
			serveErr = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Fatal("gameserver terminated", logging.Error(serveErr))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful HTTP shutdown failed", logging.Error(err))
	}
}

// gateMinInterval derives the input gate's minimum accepted interval
// between sequence numbers from the configured tick rate and anti-cheat
// slack, mirroring the tolerance RunPhysics already applies to movement.
func gateMinInterval(sim config.SimulationConfig) time.Duration {
	if sim.TickRateHz <= 0 {
		return 0
	}
	tick := time.Second / time.Duration(sim.TickRateHz)
	slack := 1.0 - sim.AntiCheatSlack
	if slack <= 0 {
		return 0
	}
	return time.Duration(float64(tick) * slack)
}

// recordReplayTick mirrors the tick's authoritative world-frame and events
// into both the rolling dump recorder (for on-demand HTTP export) and the
// persistent artefact writer (for full-match reconstruction).
func recordReplayTick(world *simcore.World, writer *replay.Writer, recorder *replay.Recorder, events []matchlogic.Event, log *logging.Logger) {
	tick := world.TickCount()
	simMs := int64(world.Now() * 1000)

	for _, e := range events {
		payload := []byte(fmt.Sprintf(`{"kind":%d,"instigator":%q,"target":%q,"value":%d}`, e.Kind, e.Instigator.String(), e.Target.String(), e.Value))
		recorder.RecordEvent(tick, simMs, payload)
		if err := writer.AppendEvent(tick, simMs, eventKindName(e.Kind), payload); err != nil {
			log.Warn("replay event append failed", logging.Error(err))
		}
	}

	framePayload := []byte(fmt.Sprintf(`{"tick":%d,"players":%d}`, tick, world.Players.Len()))
	recorder.RecordWorldFrame(tick, simMs, framePayload)
	if err := writer.AppendFrame(tick, simMs, framePayload); err != nil {
		log.Warn("replay frame append failed", logging.Error(err))
	}
}

func eventKindName(k matchlogic.EventKind) string {
	return fmt.Sprintf("event_%d", int(k))
}

// readinessProbe adapts the live transport server into httpapi.ReadinessProvider.
type readinessProbe struct {
	server    *transport.Server
	startedAt time.Time
}

func (r *readinessProbe) SnapshotClientCounts() (clients, pending int) {
	return r.server.ActiveClients(), 0
}

func (r *readinessProbe) StartupError() error { return nil }

func (r *readinessProbe) Uptime() time.Duration { return time.Since(r.startedAt) }

// buildHTTPHandler assembles the operational HTTP surface: the operator
// endpoints from httpapi.HandlerSet, wrapped in trace-ID middleware. The
// game's own client traffic never touches this mux; it travels exclusively
// over the WebSocket upgrade handled by transport.Server and the gRPC
// time-sync channel, both wired in main.
func buildHTTPHandler(ts *transport.Server, world *simcore.World, recorder *replay.Recorder, cfg *config.Config, logger *logging.Logger, ready httpapi.ReadinessProvider) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", ts)

	var limiter httpapi.RateLimiter
	if cfg.ReplayDumpWindow > 0 && cfg.ReplayDumpBurst > 0 {
		limiter = httpapi.NewSlidingWindowLimiter(cfg.ReplayDumpWindow, cfg.ReplayDumpBurst, nil)
	}

	handlers := httpapi.NewHandlerSet(httpapi.Options{
		Logger:    logger,
		Readiness: ready,
		Stats: func() (int, int) {
			return int(world.TickCount()), ts.ActiveClients()
		},
		Snapshots: world.Metrics,
		Bandwidth: world.Bandwidth,
		Replay:    httpapi.ReplayDumperFunc(func(ctx context.Context) (string, error) { return recorder.Roll("gameserver") }),
		ReplayStats: func() replay.Stats {
			return recorder.Snapshot()
		},
		AdminToken:  cfg.AdminToken,
		RateLimiter: limiter,
		Match:       world.Match,
	})
	handlers.Register(mux)

	return logging.HTTPTraceMiddleware(logger)(mux)
}
