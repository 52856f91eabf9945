package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/curio-api/internal/adjudication"
	"github.com/ksred/curio-api/internal/auction"
	"github.com/ksred/curio-api/internal/auth"
	"github.com/ksred/curio-api/internal/checkout"
	"github.com/ksred/curio-api/internal/config"
	"github.com/ksred/curio-api/internal/database"
	"github.com/ksred/curio-api/internal/events"
	"github.com/ksred/curio-api/internal/server"
	"github.com/ksred/curio-api/internal/types"
)

// Demo identities behind the credentials registered at startup
var (
	demoAdmin = types.Principal{UserID: 1, Role: types.RoleAdmin}
	demoBuyer = types.Principal{UserID: 2, Role: types.RoleUser}
)

// setupLogging enables pretty console output outside production and
// debug level when DEBUG is set
func setupLogging(cfg *config.Config) {
	if !cfg.IsProduction() {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
}

func newPublisher(cfg config.EventsConfig) (events.Publisher, func()) {
	if cfg.RabbitMQURL == "" {
		return events.LogPublisher{}, func() {}
	}

	pub, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.Exchange)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect event broker")
	}
	zlog.Info().Str("exchange", cfg.Exchange).Msg("publishing events to rabbitmq")

	return pub, func() {
		if err := pub.Close(); err != nil {
			zlog.Error().Err(err).Msg("failed to close event publisher")
		}
	}
}

// main wires the store, services and routes and serves until SIGINT/SIGTERM
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg)

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}
	store := database.NewStore(db)
	defer func() {
		if err := store.Close(); err != nil {
			zlog.Error().Err(err).Msg("failed to close store")
		}
	}()

	if cfg.SeedDemo {
		if err := database.SeedDemoCatalog(db); err != nil {
			zlog.Fatal().Err(err).Msg("Failed to seed demo catalog")
		}
	}

	publisher, closePublisher := newPublisher(cfg.Events)
	defer closePublisher()

	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err := authService.RegisterAPICredentials(auth.DemoBuyerKey, auth.DemoBuyerSecret, demoBuyer); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to register demo buyer")
	}
	if err := authService.RegisterAPICredentials(auth.DemoAdminKey, auth.DemoAdminSecret, demoAdmin); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to register demo admin")
	}

	router := server.SetupRouter(server.Deps{
		Auth:    authService,
		Auction: auction.NewService(store, publisher),
		Checkout: checkout.NewService(store, publisher, checkout.Options{
			PriceTolerance: cfg.PriceTolerance,
			IdempotencyTTL: cfg.IdempotencyTTL,
		}),
		Adjudication: adjudication.NewService(store, publisher, adjudication.Options{
			RestockOnCancel: cfg.RestockOnCancel,
		}),
		Store: store,
	})

	janitor := checkout.NewJanitor(store, cfg.JanitorInterval)
	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()

	go janitor.Start(janitorCtx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		zlog.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding requests 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}
