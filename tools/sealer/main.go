// Package main seals a statistics JSON file into the encrypted envelope that
// the dashboard server publishes, and prints password digests for PASSWORD_HASH.
//
// Usage:
//
//	sealer -in stats.json -out public/strava-data.json
//	sealer -hash
//	sealer -open public/strava-data.json
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/natefinch/atomic"

	"github.com/nordcup/ridevault/internal/config"
	"github.com/nordcup/ridevault/internal/digest"
	"github.com/nordcup/ridevault/internal/envelope"
	"github.com/nordcup/ridevault/internal/prompt"
)

var errNoHash = errors.New("missing PASSWORD_HASH environment variable, cannot encrypt data")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sealer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "-", "statistics JSON to seal (- for stdin)")
	out := fs.String("out", filepath.Join("public", "strava-data.json"), "envelope file to write")
	envFile := fs.String("env", config.DefaultEnvFile, "path to .env file")
	hash := fs.Bool("hash", false, "read a password and print its PASSWORD_HASH")
	open := fs.String("open", "", "decrypt an envelope file and print its payload")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var err error
	switch {
	case *hash:
		err = printHash(stdin, stdout, stderr)
	case *open != "":
		err = withKey(*envFile, func(key string) error { return openFile(*open, key, stdout) })
	default:
		err = withKey(*envFile, func(key string) error { return seal(*in, *out, key, stdin, stdout) })
	}
	if err != nil {
		fmt.Fprintln(stderr, "sealer:", err)
		return 1
	}
	return 0
}

func printHash(stdin *os.File, stdout, stderr io.Writer) error {
	password, err := prompt.Password(stdin, stderr, "Password: ")
	if err != nil {
		return err
	}
	sum, err := digest.Password(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, sum)
	return err
}

// withKey loads the .env file and calls fn with the configured digest.
func withKey(envFile string, fn func(key string) error) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}
	key := digest.Normalize(config.PasswordHashFromEnv())
	if key == "" {
		return errNoHash
	}
	if !digest.Valid(key) {
		return fmt.Errorf("PASSWORD_HASH must be %d hex characters", digest.Size)
	}
	return fn(key)
}

func seal(inPath, outPath, key string, stdin io.Reader, stdout io.Writer) error {
	var (
		raw []byte
		err error
	)
	if inPath == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(inPath)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var plaintext bytes.Buffer
	if err := json.Indent(&plaintext, bytes.TrimSpace(raw), "", "  "); err != nil {
		return fmt.Errorf("input is not JSON: %w", err)
	}

	env, err := envelope.Seal(plaintext.Bytes(), key)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(outPath, b); err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "Wrote %s (encrypted, %d bytes of JSON)\n", outPath, plaintext.Len())
	return err
}

func openFile(path, key string, stdout io.Writer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := envelope.Parse(raw)
	if err != nil {
		return err
	}
	env, ok := res.(*envelope.Envelope)
	if !ok {
		return fmt.Errorf("%s is not encrypted", path)
	}
	payload, err := envelope.Decrypt(env, key)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(payload))
	return err
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	// published asset, world readable
	return os.Chmod(path, 0o644)
}
