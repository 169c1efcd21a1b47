package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beamline/signage-server-go/internal/config"
	"github.com/beamline/signage-server-go/internal/database"
	"github.com/beamline/signage-server-go/internal/handler"
	"github.com/beamline/signage-server-go/internal/jobs"
	"github.com/beamline/signage-server-go/internal/middleware"
	"github.com/beamline/signage-server-go/internal/playback"
	"github.com/beamline/signage-server-go/internal/redis"
	"github.com/beamline/signage-server-go/internal/repository"
	"github.com/beamline/signage-server-go/internal/service"
	"github.com/beamline/signage-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	accountRepo := repository.NewAccountRepository(db.DB)
	pairingCodeRepo := repository.NewPairingCodeRepository(db.DB)
	deviceRepo := repository.NewDeviceRepository(db.DB)
	playlistRepo := repository.NewPlaylistRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	clock := playback.SystemClock()
	manager := playback.NewManager(clock, config.PlaybackTickInterval)
	defer manager.Close()

	pairingService := service.NewPairingService(
		db, pairingCodeRepo, deviceRepo, cfg.PairingCodeTTL(), clock,
	)
	deviceService := service.NewDeviceService(
		deviceRepo, manager, cfg.LivenessTimeout(), clock,
	)
	assignmentService := service.NewAssignmentService(
		deviceRepo, playlistRepo, manager, broker, clock,
	)
	playbackService := service.NewPlaybackService(
		deviceRepo, playlistRepo, manager, broker,
	)
	statsService := service.NewStatsService(
		accountRepo, deviceRepo, pairingCodeRepo, manager, broker,
		cfg.LivenessTimeout(), clock,
	)

	authMiddleware := middleware.NewAuthMiddleware(accountRepo)
	deviceAuthMiddleware := middleware.NewDeviceAuthMiddleware(deviceRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	pairRateLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		service.NewRateLimiter(redisClient.Client),
		config.PairRateLimitPerIP, config.PairRateLimitWindow, "pair",
	)
	opsAuthMiddleware := middleware.NewOpsAuthMiddleware(cfg.OpsPasswordHash)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	pairingHandler := handler.NewPairingHandler(pairingService)
	deviceHandler := handler.NewDeviceHandler(deviceService, assignmentService, playbackService)
	screenHandler := handler.NewScreenHandler(deviceService, playbackService)
	eventsHandler := handler.NewEventsHandler(broker, deviceService)
	opsHandler := handler.NewOpsHandler(statsService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	// Redemption is unauthenticated: the screen only holds the code.
	r.Route("/v1/pair", func(r chi.Router) {
		r.Use(pairRateLimitMiddleware.Handler)
		r.Post("/", pairingHandler.Pair)
	})

	r.Route("/v1/pairing", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Mount("/", pairingHandler.Routes())
	})

	r.Route("/v1/devices", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Get("/{deviceID}/events", eventsHandler.WatchDevice)
		r.Mount("/", deviceHandler.Routes())
	})

	r.Route("/v1/device", func(r chi.Router) {
		r.Use(deviceAuthMiddleware.Handler)
		r.Get("/events", eventsHandler.ServeHTTP)
		r.Mount("/", screenHandler.Routes())
	})

	r.Route("/ops", func(r chi.Router) {
		r.Use(opsAuthMiddleware.Handler)
		r.Mount("/", opsHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(
		pairingCodeRepo, deviceRepo, cfg.LivenessTimeout(), clock,
		config.CleanupJobInterval,
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
