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

	"github.com/mindbridge/peerchat-server/internal/broker"
	"github.com/mindbridge/peerchat-server/internal/config"
	"github.com/mindbridge/peerchat-server/internal/database"
	"github.com/mindbridge/peerchat-server/internal/handler"
	"github.com/mindbridge/peerchat-server/internal/jobs"
	"github.com/mindbridge/peerchat-server/internal/matching"
	"github.com/mindbridge/peerchat-server/internal/middleware"
	"github.com/mindbridge/peerchat-server/internal/pool"
	"github.com/mindbridge/peerchat-server/internal/redis"
	"github.com/mindbridge/peerchat-server/internal/repository"
	"github.com/mindbridge/peerchat-server/internal/room"
	"github.com/mindbridge/peerchat-server/internal/transcript"
	"github.com/mindbridge/peerchat-server/internal/ws"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

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

	sessionRepo := repository.NewSessionRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	transcriptRepo := repository.NewTranscriptRepository(db)

	eventBroker := broker.NewBroker(redisClient)
	defer eventBroker.Close()

	waitingPool := pool.NewMemoryPool()
	engine := matching.NewEngine(
		sessionRepo, directoryRepo, waitingPool, eventBroker,
		matching.NewUniformChooser(), cfg.AnonymousPeersAllowed,
	)

	recorder := transcript.NewRecorder(transcriptRepo)
	defer recorder.Close()

	rooms := room.NewCoordinator(sessionRepo, recorder, eventBroker, engine)

	authMiddleware := middleware.NewAuthMiddleware(directoryRepo)
	chatHandler := ws.NewHandler(engine, rooms, eventBroker, cfg.AllowedOrigin)
	sessionHandler := handler.NewSessionHandler(sessionRepo, transcriptRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Get("/chat", chatHandler.ServeHTTP)
		r.Mount("/sessions", sessionHandler.Routes())
	})

	sweeper := jobs.NewSweeper(waitingPool, engine, eventBroker, cfg.WaitingTTL(), config.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		// Websocket connections live for the whole conversation; no write
		// timeout.
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
