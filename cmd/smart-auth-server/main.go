package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/smart-auth/internal/config"
	"github.com/ehr/smart-auth/internal/domain/authorize"
	"github.com/ehr/smart-auth/internal/domain/client"
	"github.com/ehr/smart-auth/internal/domain/discovery"
	"github.com/ehr/smart-auth/internal/domain/launch"
	"github.com/ehr/smart-auth/internal/domain/token"
	"github.com/ehr/smart-auth/internal/platform/cache"
	"github.com/ehr/smart-auth/internal/platform/db"
	"github.com/ehr/smart-auth/internal/platform/keys"
	"github.com/ehr/smart-auth/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "smart-auth-server",
		Short: "SMART on FHIR authorization server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(keygenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authorization server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrations collects the DDL each store needs, in dependency order.
func migrations() []string {
	return []string{
		client.Migration,
		launch.Migration,
		authorize.Migration,
		token.Migration,
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool, migrations()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Schema applied successfully.")
			return nil
		},
	}
}

// cleanupCmd purges expired launch contexts. Expired rows are invisible to
// the flow but accumulate until this runs; meant for a cron schedule.
func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired launch contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			launchSvc := launch.NewService(launch.NewPGStoreFromPool(pool, cfg.AuthCodeTTL))
			if err := launchSvc.Cleanup(ctx); err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
			fmt.Println("Expired launch contexts removed.")
			return nil
		},
	}
}

func keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			km, err := keys.Generate()
			if err != nil {
				return err
			}
			if err := km.WritePEM(out); err != nil {
				return err
			}
			fmt.Printf("Wrote signing key to %s (kid: %s)\n", out, km.KID())
			return nil
		},
	}
	cmd.Flags().String("out", "", "Path for the PEM-encoded private key")
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Signing key. Production requires a persisted key so tokens survive
	// restarts; development falls back to an ephemeral one.
	var km *keys.Manager
	if cfg.SigningKeyFile != "" {
		km, err = keys.Load(cfg.SigningKeyFile)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.SigningKeyFile).Msg("failed to load signing key")
		}
		logger.Info().Str("kid", km.KID()).Msg("loaded signing key")
	} else {
		km, err = keys.Generate()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to generate signing key")
		}
		logger.Warn().Str("kid", km.KID()).Msg("SIGNING_KEY_FILE not set; using ephemeral signing key")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if err := db.Migrate(ctx, pool, migrations()); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	// Token cache. Redis is optional: introspection falls back to the
	// database when no cache is configured or the cache is down.
	var tokenCache cache.TokenCache = cache.NewMemoryCache()
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; using in-process token cache")
		} else {
			tokenCache = cache.NewRedisCache(rdb)
			logger.Info().Msg("connected to redis")
		}
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-User-ID"},
	}))

	// Health check
	e.GET("/health", db.HealthHandler(pool))

	// -- Wire domains --

	clientSvc := client.NewService(client.NewRepo(pool), cfg.DefaultTenant)
	launchSvc := launch.NewService(launch.NewPGStoreFromPool(pool, cfg.AuthCodeTTL))
	authorizeSvc := authorize.NewService(authorize.NewRepo(pool), clientSvc, launchSvc, cfg.AuthCodeTTL)
	tokenSvc := token.NewService(
		token.NewRepo(pool),
		clientSvc,
		authorizeSvc,
		km,
		tokenCache,
		logger,
		cfg.Issuer,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)

	apiV1 := e.Group("/api/v1")
	authGroup := e.Group("/auth")

	client.NewHandler(clientSvc).RegisterRoutes(apiV1)
	launch.NewHandler(launchSvc, cfg.AuthCodeTTL).RegisterRoutes(authGroup)
	authorize.NewHandler(authorizeSvc).RegisterRoutes(authGroup)
	token.NewHandler(tokenSvc).RegisterRoutes(authGroup)
	discovery.NewHandler(cfg.Issuer, km).RegisterRoutes(e)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	return nil
}
