package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viberl/BlindTasting-sub000/config"
	"github.com/viberl/BlindTasting-sub000/database"
	"github.com/viberl/BlindTasting-sub000/middleware"
	"github.com/viberl/BlindTasting-sub000/queue"
	"github.com/viberl/BlindTasting-sub000/realtime"
	v1 "github.com/viberl/BlindTasting-sub000/routes/v1"
	"github.com/viberl/BlindTasting-sub000/services"
)

func newRootCmd() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:     "tasting",
		Short:   "Runs synchronized blind wine tastings and scores them.",
		Version: releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFile()
		},
	}
	config.BindFlags(cmd.PersistentFlags(), v)

	cmd.AddCommand(newServeCmd(v), newMigrateCmd(v))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("tasting v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Verbose)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			newLogger(cfg.Verbose)

			db, err := database.InitDB(cfg)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

// newLogger installs the process-wide logger: JSON at info level, or
// human-readable text at debug level when verbose.
func newLogger(verbose bool) *slog.Logger {
	var handler slog.Handler
	if verbose {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	gin.SetMode(cfg.GinMode)
	logger.Info("starting", "version", releaseVersion, "addr", cfg.Addr())

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	local := realtime.NewLocalRegistry(logger)
	defer local.Close()
	var rooms realtime.RoomRegistry = local
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		relay := realtime.NewRedisRegistry(client, local, logger)
		if err := relay.Start(ctx); err != nil {
			return err
		}
		defer relay.Close()
		rooms = relay
		logger.Info("realtime fan-out through redis", "addr", cfg.RedisAddr)
	}

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		amqpPublisher := queue.NewAMQPPublisher(cfg.RabbitMQURL, cfg.EventsExchange, logger)
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		logger.Info("publishing domain events", "exchange", cfg.EventsExchange)
	}

	svc := services.NewSessionService(db,
		services.WithRooms(rooms),
		services.WithPublisher(publisher),
		services.WithLogger(logger),
	)
	defer svc.Close()

	restored, err := svc.RestoreTimers(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore flight timers: %w", err)
	}
	logger.Info("flight timers restored", "count", restored)

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	middleware.UpdateSystemMetrics(ctx, 15*time.Second)
	middleware.RateLimiterJanitor(ctx, limiter, time.Minute)

	router := gin.New()
	router.Use(gin.Recovery())
	v1.Register(router, v1.Dependencies{
		Sessions:    svc,
		JWTSecret:   cfg.JWTSecret,
		RateLimiter: limiter,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errs:
		return err
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	// hijacked websocket connections are not tracked by Shutdown
	local.Close()
	return srv.Shutdown(shutdownCtx)
}
