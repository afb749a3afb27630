// Package main is the terminal dashboard viewer. It asks for the password,
// loads the published statistics, decrypts them in process and prints them,
// optionally refreshing every minute.
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
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nordcup/ridevault/internal/auth"
	"github.com/nordcup/ridevault/internal/client/viewer"
	"github.com/nordcup/ridevault/internal/config"
	"github.com/nordcup/ridevault/internal/loader"
	"github.com/nordcup/ridevault/internal/logger"
	"github.com/nordcup/ridevault/internal/prompt"
	"github.com/nordcup/ridevault/internal/repository"
	"github.com/nordcup/ridevault/internal/service"
	"github.com/nordcup/ridevault/internal/session"
)

var (
	version   string
	buildDate string
)

// main parses command-line flags and runs the viewer once or in watch mode.
func main() {
	var (
		dataURL   string
		publicDir string
		envFile   string
		logLevel  string
		watch     bool
		interval  time.Duration
		showVer   bool
	)

	flag.StringVar(&dataURL, "data", config.DefaultDataURL, "URL of the published statistics file")
	flag.StringVar(&publicDir, "public", config.DefaultPublicDir, "directory behind file:// URLs")
	flag.StringVar(&envFile, "env", config.DefaultEnvFile, "path to .env file")
	flag.StringVar(&logLevel, "log-level", "warn", "log level")
	flag.BoolVar(&watch, "watch", false, "refresh periodically")
	flag.DurationVar(&interval, "interval", viewer.DefaultInterval, "refresh interval in watch mode")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("ridevault viewer\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintln(os.Stderr, "load env file:", err)
			os.Exit(2)
		}
	}

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One process is one browser tab: the session lives in memory only.
	store := session.NewStore(session.NewMemoryBackend(), log.Log)
	client := &http.Client{Transport: loader.NewTransport(publicDir), Timeout: 30 * time.Second}
	passwords := prompt.NewReader(os.Stdin, os.Stderr)

	v := &viewer.Viewer{
		Auth:     auth.New(config.PasswordHashFromEnv(), store, auth.WithLogger(log.Log)),
		Loader:   loader.New(client, store, loader.WithLogger(log.Log)),
		Throttle: service.NewThrottle(repository.NewMemoryAttemptRepository()),
		Password: func() (string, error) { return passwords.Password("Password: ") },
		DataURL:  dataURL,
		Out:      os.Stdout,
		Log:      log.Log,
	}

	var err error
	if watch {
		v.NewBackOff = viewer.RefreshBackOff(interval)
		err = v.Watch(ctx, interval)
	} else {
		err = v.Show(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Log.Debug("viewer stopped", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
