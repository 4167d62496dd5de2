package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	_ "github.com/bgrizzle97/socialMedia/docs" // swagger docs

	"github.com/bgrizzle97/socialMedia/internal/auth"
	"github.com/bgrizzle97/socialMedia/internal/cache"
	"github.com/bgrizzle97/socialMedia/internal/config"
	"github.com/bgrizzle97/socialMedia/internal/db"
	"github.com/bgrizzle97/socialMedia/internal/handler"
	"github.com/bgrizzle97/socialMedia/internal/logging"
	"github.com/bgrizzle97/socialMedia/internal/metrics"
	"github.com/bgrizzle97/socialMedia/internal/notify"
	"github.com/bgrizzle97/socialMedia/internal/repository"
	"github.com/bgrizzle97/socialMedia/internal/router"
	"github.com/bgrizzle97/socialMedia/internal/service"
	"github.com/bgrizzle97/socialMedia/internal/storage"
)

const (
	Version = "0.1.0"
	appName = "socialmedia"
)

// @title Social Media API
// @version 1.0
// @description Accounts, sessions, friend requests and user search for the social media app.
// @host localhost:5000
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Social media API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.New(os.Stdout, cfg.LogLevel)

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	if err := db.Migrate(ctx, gormDB, cfg.ResetDB, log); err != nil {
		return err
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		log.Warn(ctx, "redis unavailable, profile cache disabled", "error", err)
	}

	notifier, closeNotifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	var avatars storage.AvatarStore
	if store, err := storage.NewS3AvatarStore(ctx, cfg); err != nil {
		return err
	} else if store != nil {
		avatars = store
	}

	rec := metrics.New()

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	friendRepo := repository.NewFriendshipRepository(gormDB)

	// Initialize auth components
	tokens := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	providers := auth.NewProviders(cfg.OAuth)

	// Initialize services
	credentials := service.NewCredentialStore(userRepo, hasher, cfg.ResetTokenTTL, log.With("component", "credentials"))
	authService := service.NewAuthService(credentials, tokens, notifier, service.AuthOptions{
		ResetLinkBaseURL: cfg.ResetLinkBaseURL,
		Providers:        providers,
		Cache:            cacheClient,
		Metrics:          rec,
		Logger:           log.With("component", "auth"),
	})
	friendService := service.NewFriendshipService(friendRepo, credentials, rec, log.With("component", "friendship"))
	searchService := service.NewSearchService(friendRepo, credentials)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, tokens, rec, router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		User:   handler.NewUserHandler(authService, searchService, avatars),
		Friend: handler.NewFriendHandler(friendService),
	})

	log.Info(ctx, "swagger documentation available", "url", swaggerURL(cfg.SwaggerHost))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.ServerPort
		log.Info(ctx, "server listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info(shutdownCtx, "shutting down")
	return e.Shutdown(shutdownCtx)
}

// newNotifier publishes reset links on NATS when configured and logs them
// otherwise.
func newNotifier(cfg *config.Config, log logging.Logger) (notify.ResetLinkNotifier, func(), error) {
	if cfg.NATSURL == "" {
		log.Warn(context.Background(), "NATS_URL not set, reset links are written to the log")
		return notify.NewLogNotifier(log), func() {}, nil
	}
	nc, err := notify.Connect(cfg.NATSURL)
	if err != nil {
		return nil, nil, err
	}
	return notify.NewNATSNotifier(nc, cfg.NATSSubject), nc.Close, nil
}

func swaggerURL(host string) string {
	switch {
	case host == "":
		// container listens on 8080, mapped to 5000 externally
		return "http://localhost:5000/swagger/index.html"
	case strings.HasPrefix(host, "http://"), strings.HasPrefix(host, "https://"):
		return host + "/swagger/index.html"
	default:
		return "http://" + host + "/swagger/index.html"
	}
}
