// Package main starts the dashboard server: configuration, logging, the login
// throttle store, browser sessions, handlers and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/nordcup/ridevault/internal/config"
	"github.com/nordcup/ridevault/internal/db"
	"github.com/nordcup/ridevault/internal/digest"
	"github.com/nordcup/ridevault/internal/loader"
	"github.com/nordcup/ridevault/internal/logger"
	"github.com/nordcup/ridevault/internal/repository"
	"github.com/nordcup/ridevault/internal/server/handler/http"
	"github.com/nordcup/ridevault/internal/service"
	"github.com/nordcup/ridevault/internal/session"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const (
	sweepInterval    = 10 * time.Minute
	purgeInterval    = time.Hour
	attemptRetention = 24 * time.Hour
	shutdownTimeout  = 10 * time.Second
)

func main() {
	// Parse command-line and environment configuration.
	options, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(2)
	}
	zapLogger := log.Log

	if !digest.Valid(digest.Normalize(options.PasswordHash)) {
		zapLogger.Warn("PASSWORD_HASH is missing or malformed; every login will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Login throttle store: PostgreSQL when configured, memory otherwise.
	var attempts interface {
		service.AttemptRepository
		db.AttemptPurger
	}
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		defer postgresDB.Close()
		attempts = repository.NewPostgresAttemptRepository(postgresDB)
	} else {
		attempts = repository.NewMemoryAttemptRepository()
	}
	db.StartAttemptPurger(ctx, attempts, purgeInterval, attemptRetention, zapLogger)

	sessions := session.NewRegistry()
	sessions.StartSweeper(ctx, sweepInterval, options.SessionIdleTTL, zapLogger)

	authHandler := &http.AuthHandler{
		Sessions:     sessions,
		PasswordHash: options.PasswordHash,
		Throttle:     service.NewThrottle(attempts),
		Secure:       options.TLSEnabled(),
		TrustProxy:   options.TrustProxy,
		Log:          zapLogger,
	}
	dashboardHandler := &http.DashboardHandler{
		Sessions: sessions,
		DataURL:  options.DataURL,
		Client: &nethttp.Client{
			Transport: loader.NewTransport(options.PublicDir),
			Timeout:   30 * time.Second,
		},
		Log: zapLogger,
	}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, dashboardHandler, options.PublicDir, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("shutdown", zap.Error(err))
		}
	}()

	if options.TLSEnabled() {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Address))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Address))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
}
