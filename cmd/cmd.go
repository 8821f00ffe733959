package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"widget-sync-backend/internal/config"
	"widget-sync-backend/internal/handlers"
	"widget-sync-backend/internal/metrics"
	"widget-sync-backend/internal/middleware"
	"widget-sync-backend/internal/repository"
	"widget-sync-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	if err := repository.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	log.Info().Msg("Database connection established")

	// Open the local device settings store
	settingsStore, err := services.OpenSettings(cfg.Settings.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open settings store")
	}
	defer settingsStore.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	widgetRepo := repository.NewWidgetRepository(db)

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	pairingService := services.NewPairingService(userRepo)

	blobStore, err := services.NewBlobStore(
		context.Background(),
		cfg.AWS.Region,
		cfg.AWS.S3Bucket,
		cfg.AWS.AccessKey,
		cfg.AWS.SecretKey,
		cfg.AWS.Endpoint,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create blob store")
	}

	var pushService services.PushSender
	if cfg.APNS.CertPath != "" {
		svc, err := services.NewPushService(cfg.APNS.CertPath, cfg.APNS.CertPassword, cfg.APNS.Topic, cfg.APNS.Production)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create push service")
		}
		pushService = svc
	} else {
		log.Warn().Msg("Push not configured, relying on websocket and periodic refresh only")
	}

	wsHub := services.NewWSHub()
	refresh := services.NewRefreshBroadcaster(
		time.Duration(cfg.Widget.DebounceMS)*time.Millisecond,
		func(userID string) {
			wsHub.SendRefresh(userID)
			metrics.RefreshesTotal.Inc()
		},
	)
	defer refresh.Close()

	widgetService := services.NewWidgetService(widgetRepo, settingsStore, blobStore, cfg.Widget.CacheDir)
	shareService := services.NewShareService(userRepo, widgetRepo, blobStore, pushService, refresh)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	pairHandler := handlers.NewPairHandler(pairingService, wsHub, refresh)
	settingsHandler := handlers.NewSettingsHandler(settingsStore, refresh)
	shareHandler := handlers.NewShareHandler(shareService)
	widgetHandler := handlers.NewWidgetHandler(widgetService, userService, refresh)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService, pairingService, refresh)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)
		// token optional: degrades to the not-signed-in model
		r.Get("/widget", widgetHandler.GetWidget)
		r.Get("/settings", settingsHandler.GetSettings)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Get("/pair", pairHandler.GetPairing)
			r.Post("/pair", pairHandler.CreatePairing)
			r.Delete("/pair", pairHandler.DeletePairing)
			r.Put("/settings", settingsHandler.UpdateSettings)
			r.Post("/share", shareHandler.Share)
			r.Get("/messages/latest", shareHandler.Latest)
			r.Post("/push/token", userHandler.UpdatePushToken)
			r.Post("/push/inbound", widgetHandler.PushInbound)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Metrics
	r.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

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

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
