// Package runtime wires the core actor, store, and swarm packages into a
// running per-spec supervisor: environment configuration, the persister
// task (C7), LLM provider selection, and process-wide spec lifecycle.
package runtime

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Errors returned by ConfigFromEnv's security checks.
var (
	ErrRemoteWithoutToken = errors.New(
		"SPECLOOM_ALLOW_REMOTE is true but SPECLOOM_AUTH_TOKEN is not set; refusing to start without authentication",
	)
	ErrNonLoopbackBind = errors.New(
		"SPECLOOM_BIND is a non-loopback address but SPECLOOM_ALLOW_REMOTE is not true; set SPECLOOM_ALLOW_REMOTE=true and SPECLOOM_AUTH_TOKEN to allow remote access",
	)
)

// defaultSnapshotIntervalEvents is the periodic snapshot cadence the
// persister falls back to between lag-triggered snapshots.
const defaultSnapshotIntervalEvents = 200

// Config holds runtime configuration loaded from SPECLOOM_* environment
// variables. The core never reads the environment directly; everything
// flows through this struct so tests can construct one without touching
// process state.
type Config struct {
	Home                   string // root for all persistent state (SPECLOOM_HOME)
	Bind                   string // transport bind address (SPECLOOM_BIND); outside the core's contract
	AllowRemote            bool   // SPECLOOM_ALLOW_REMOTE
	AuthToken              string // SPECLOOM_AUTH_TOKEN
	DefaultProvider        string // SPECLOOM_DEFAULT_PROVIDER
	DefaultModel           string // SPECLOOM_DEFAULT_MODEL
	SnapshotIntervalEvents int    // SPECLOOM_SNAPSHOT_INTERVAL_EVENTS
}

// ConfigFromEnv loads configuration from SPECLOOM_* environment variables
// with sensible defaults, enforcing the remote-access/auth-token invariant
// the core refuses to start without.
func ConfigFromEnv() (*Config, error) {
	home := os.Getenv("SPECLOOM_HOME")
	if home == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "/tmp"
		}
		home = filepath.Join(homeDir, ".specloom")
	}

	bind := envOrDefault("SPECLOOM_BIND", "127.0.0.1:7790")

	allowRemote := false
	if v := os.Getenv("SPECLOOM_ALLOW_REMOTE"); v == "true" || v == "1" || v == "yes" {
		allowRemote = true
	}

	authToken := os.Getenv("SPECLOOM_AUTH_TOKEN")
	defaultProvider := envOrDefault("SPECLOOM_DEFAULT_PROVIDER", "anthropic")
	defaultModel := os.Getenv("SPECLOOM_DEFAULT_MODEL")

	snapshotInterval := defaultSnapshotIntervalEvents
	if v := os.Getenv("SPECLOOM_SNAPSHOT_INTERVAL_EVENTS"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			snapshotInterval = n
		}
	}

	if allowRemote && authToken == "" {
		return nil, ErrRemoteWithoutToken
	}

	if !allowRemote {
		if err := checkLoopbackBind(bind); err != nil {
			return nil, err
		}
	}

	return &Config{
		Home:                   home,
		Bind:                   bind,
		AllowRemote:            allowRemote,
		AuthToken:              authToken,
		DefaultProvider:        defaultProvider,
		DefaultModel:           defaultModel,
		SnapshotIntervalEvents: snapshotInterval,
	}, nil
}

// checkLoopbackBind refuses non-loopback binds unless the caller has
// already confirmed remote access is allowed. Only 127.0.0.0/8, ::1, and
// the conventional "localhost" hostname are treated as safe; an empty host
// (all interfaces) is refused. A bind that does not parse as host:port is
// not checked.
func checkLoopbackBind(bind string) error {
	host, _, err := net.SplitHostPort(bind)
	if err != nil {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() {
			return nil
		}
		return fmt.Errorf("%w: SPECLOOM_BIND=%s", ErrNonLoopbackBind, bind)
	}
	if host == "localhost" {
		return nil
	}
	return fmt.Errorf("%w: SPECLOOM_BIND=%s", ErrNonLoopbackBind, bind)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("value must be positive, got %d", n)
	}
	return n, nil
}
