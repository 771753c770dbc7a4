// Package main is the entry point for the Vaultbox server.
// One binary serves the auth service, the file service, or both.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/vaultbox/internal/app"
	"github.com/prn-tf/vaultbox/internal/config"
	"github.com/prn-tf/vaultbox/internal/handler"
	"github.com/prn-tf/vaultbox/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	serviceName := flag.String("service", "all", "endpoints to serve: auth, files or all")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Vaultbox Server %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	}

	mode, ok := handler.ParseMode(*serviceName)
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid -service %q: must be auth, files or all\n", *serviceName)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.New(cfg.Logging).With().Str("service", string(mode)).Logger()

	if err := run(cfg, mode, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(cfg *config.Config, mode handler.Mode, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("database", cfg.Database.Driver).
		Str("storage", cfg.Storage.Backend).
		Msg("Starting Vaultbox Server")

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if mode.ServesAuth() && cfg.Bootstrap.Enabled {
		if _, err := a.UserService.Bootstrap(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	if mode.ServesFiles() && cfg.Reconcile.Enabled {
		a.Reconciler.Start()
		defer a.Reconciler.Stop()
	}

	router := handler.NewRouter(handler.RouterConfig{
		Mode:       mode,
		Resolver:   a.SessionService,
		CookieName: cfg.Session.CookieName,
		AuthHandler: handler.NewAuthHandler(a.SessionService, handler.CookieConfig{
			Name:   cfg.Session.CookieName,
			TTL:    cfg.Session.TTL,
			Secure: cfg.Session.Secure,
		}, logger),
		AdminHandler:   handler.NewAdminHandler(a.UserService, logger),
		FileHandler:    handler.NewFileHandler(a.FileService, cfg.Upload.MaxMemory, logger),
		Health:         a.DB.Health,
		Metrics:        a.Metrics,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, a.Metrics.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsSrv.Addr).Str("path", cfg.Metrics.Path).Msg("Metrics server listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Metrics server shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
	return runErr
}
