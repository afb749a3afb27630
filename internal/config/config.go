// Package config provides functionality for managing configuration options
// for the server using command-line flags, environment variables, an optional
// JSON config file and an optional .env file.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultAddress        = "localhost:8080"
	DefaultPublicDir      = "public"
	DefaultDataURL        = "file:///strava-data.json"
	DefaultLogLevel       = "info"
	DefaultSessionIdleTTL = 12 * time.Hour
	DefaultConfigPath     = "config.json"
	DefaultEnvFile        = ".env"
)

// Options holds the configuration values for the server.
type Options struct {
	// Address defines the server's listening address (ip:port).
	Address string `json:"server_address"`

	// DatabaseDSN holds the PostgreSQL connection string. Empty keeps the login
	// throttle in memory.
	DatabaseDSN string `json:"database_dsn"`

	// PublicDir is the directory served as static assets.
	PublicDir string `json:"public_dir"`

	// DataURL locates the published statistics file.
	DataURL string `json:"data_url"`

	// PasswordHash is the expected SHA-256 hex digest of the dashboard password.
	PasswordHash string `json:"password_hash"`

	LogLevel string `json:"log_level"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable it only behind a reverse proxy that overwrites those headers.
	TrustProxy bool `json:"trust_proxy"`

	// SessionIdleTTL is how long an unused browser session is kept.
	SessionIdleTTL time.Duration `json:"-"`

	// Config is the path to the config file.
	Config string `json:"-"`
}

// fileOptions mirrors Options for the JSON file, with durations as strings.
type fileOptions struct {
	*Options
	SessionIdleTTL string `json:"session_idle_ttl"`
}

// TLSEnabled reports whether a certificate and key are configured.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}

// Parse builds Options from args (without the program name). Explicit flags
// win over environment variables, which win over the JSON file. A .env file
// only fills variables that are not already set in the environment.
func Parse(args []string) (*Options, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		flagOpts Options
		envFile  string
		idleTTL  time.Duration
	)
	fs.StringVar(&flagOpts.Address, "a", DefaultAddress, "run on ip:port server")
	fs.StringVar(&flagOpts.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&flagOpts.PublicDir, "public", DefaultPublicDir, "directory with static assets")
	fs.StringVar(&flagOpts.DataURL, "data", DefaultDataURL, "URL of the published statistics file")
	fs.StringVar(&flagOpts.LogLevel, "log-level", DefaultLogLevel, "log level")
	fs.StringVar(&flagOpts.TLSCert, "tls-cert", "", "path to TLS certificate")
	fs.StringVar(&flagOpts.TLSKey, "tls-key", "", "path to TLS key")
	fs.BoolVar(&flagOpts.TrustProxy, "trust-proxy", false, "trust X-Forwarded-For and X-Real-IP")
	fs.DurationVar(&idleTTL, "session-ttl", DefaultSessionIdleTTL, "idle lifetime of a browser session")
	fs.StringVar(&flagOpts.Config, "config", DefaultConfigPath, "path to config file")
	fs.StringVar(&flagOpts.Config, "c", DefaultConfigPath, "path to config file (shorthand)")
	fs.StringVar(&envFile, "env", DefaultEnvFile, "path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	options := &Options{
		Address:        DefaultAddress,
		PublicDir:      DefaultPublicDir,
		DataURL:        DefaultDataURL,
		LogLevel:       DefaultLogLevel,
		SessionIdleTTL: DefaultSessionIdleTTL,
		Config:         flagOpts.Config,
	}

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" && !set["config"] && !set["c"] {
		options.Config = configPath
	}
	if err := loadFile(options); err != nil {
		return nil, err
	}
	if err := applyEnv(options); err != nil {
		return nil, err
	}

	overrides := map[string]func(){
		"a":           func() { options.Address = flagOpts.Address },
		"d":           func() { options.DatabaseDSN = flagOpts.DatabaseDSN },
		"public":      func() { options.PublicDir = flagOpts.PublicDir },
		"data":        func() { options.DataURL = flagOpts.DataURL },
		"log-level":   func() { options.LogLevel = flagOpts.LogLevel },
		"tls-cert":    func() { options.TLSCert = flagOpts.TLSCert },
		"tls-key":     func() { options.TLSKey = flagOpts.TLSKey },
		"session-ttl": func() { options.SessionIdleTTL = idleTTL },
		"trust-proxy": func() { options.TrustProxy = flagOpts.TrustProxy },
	}
	for name, apply := range overrides {
		if set[name] {
			apply()
		}
	}

	if options.SessionIdleTTL <= 0 {
		return nil, fmt.Errorf("session idle ttl must be positive, got %v", options.SessionIdleTTL)
	}
	return options, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error while loading env file: %w", err)
	}
	return nil
}

func loadFile(options *Options) error {
	if options.Config == "" {
		return nil
	}
	data, err := os.ReadFile(options.Config)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}

	fo := fileOptions{Options: options}
	if err := json.Unmarshal(data, &fo); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	if fo.SessionIdleTTL != "" {
		d, err := time.ParseDuration(fo.SessionIdleTTL)
		if err != nil {
			return fmt.Errorf("error while parsing config file: session_idle_ttl: %w", err)
		}
		options.SessionIdleTTL = d
	}
	return nil
}

func applyEnv(options *Options) error {
	for name, dst := range map[string]*string{
		"SERVER_ADDRESS": &options.Address,
		"DATABASE_DSN":   &options.DatabaseDSN,
		"PUBLIC_DIR":     &options.PublicDir,
		"DATA_URL":       &options.DataURL,
		"LOG_LEVEL":      &options.LogLevel,
		"TLS_CERT":       &options.TLSCert,
		"TLS_KEY":        &options.TLSKey,
	} {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := PasswordHashFromEnv(); v != "" {
		options.PasswordHash = v
	}

	if v := os.Getenv("TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRUST_PROXY: %w", err)
		}
		options.TrustProxy = b
	}

	if v := os.Getenv("SESSION_IDLE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SESSION_IDLE_TTL: %w", err)
		}
		options.SessionIdleTTL = d
	}
	return nil
}

// PasswordHashFromEnv returns PASSWORD_HASH, falling back to
// NEXT_PUBLIC_PASSWORD_HASH for deployments that still use the old name.
func PasswordHashFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("PASSWORD_HASH")); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv("NEXT_PUBLIC_PASSWORD_HASH"))
}
