package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-genealogy/internal/config"
	httpserver "github.com/tendant/simple-genealogy/internal/http"
	"github.com/tendant/simple-genealogy/internal/notification"
	"github.com/tendant/simple-genealogy/pkg/auth"
	"github.com/tendant/simple-genealogy/pkg/genealogy"
	"github.com/tendant/simple-genealogy/pkg/repository"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return serve(cmd.Context(), cfg, logger, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrate bool) error {
	// Connect to database
	db, err := repository.NewDB(cfg.Database())
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database")

	if migrate {
		if err := repository.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("schema applied")
	}

	deps := genealogy.Deps{
		Store:  repository.NewPostgresStore(db),
		Users:  repository.NewUsersRepository(db),
		Logger: logger,
	}

	// Notifications and audit events go to Redis Streams when configured
	var redisClient *redis.Client
	if cfg.HasRedis() {
		redisClient = notification.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer redisClient.Close()
		if err := notification.Ping(ctx, redisClient); err != nil {
			return err
		}
		publisher := notification.NewStreamPublisher(redisClient, notification.StreamConfig{
			EventsStream: cfg.EventsStream,
			AuditStream:  cfg.AuditStream,
			MaxLen:       cfg.StreamMaxLen,
		})
		deps.Notifier = publisher
		deps.Auditor = publisher
		logger.Info("redis streams enabled", zap.String("events", cfg.EventsStream), zap.String("audit", cfg.AuditStream))
	}

	// Invite emails when SMTP is configured
	if cfg.HasSMTP() {
		deps.Mailer = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		logger.Info("email service enabled")
	}

	engine := genealogy.New(cfg.Engine(), deps)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		Engine:          engine,
		Verifier:        auth.NewTokenVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer),
		RateLimit:       cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		Ready: func(r *http.Request) error {
			if err := db.PingContext(r.Context()); err != nil {
				return err
			}
			if redisClient != nil {
				return notification.Ping(r.Context(), redisClient)
			}
			return nil
		},
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
