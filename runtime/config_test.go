package runtime_test

import (
	"errors"
	"testing"

	"github.com/2389-research/specloom/runtime"
)

func withEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"SPECLOOM_HOME", "SPECLOOM_BIND", "SPECLOOM_ALLOW_REMOTE", "SPECLOOM_AUTH_TOKEN", "SPECLOOM_DEFAULT_PROVIDER", "SPECLOOM_DEFAULT_MODEL", "SPECLOOM_SNAPSHOT_INTERVAL_EVENTS"} {
		t.Setenv(k, "")
	}

	cfg, err := runtime.ConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bind != "127.0.0.1:7790" {
		t.Errorf("expected default bind, got %q", cfg.Bind)
	}
	if cfg.AllowRemote {
		t.Error("expected AllowRemote to default false")
	}
	if cfg.DefaultProvider != "anthropic" {
		t.Errorf("expected default provider anthropic, got %q", cfg.DefaultProvider)
	}
	if cfg.SnapshotIntervalEvents != 200 {
		t.Errorf("expected default snapshot interval 200, got %d", cfg.SnapshotIntervalEvents)
	}
}

func TestConfigFromEnvRemoteWithoutTokenFails(t *testing.T) {
	withEnv(t, map[string]string{
		"SPECLOOM_ALLOW_REMOTE": "true",
		"SPECLOOM_AUTH_TOKEN":   "",
	})

	_, err := runtime.ConfigFromEnv()
	if !errors.Is(err, runtime.ErrRemoteWithoutToken) {
		t.Fatalf("expected ErrRemoteWithoutToken, got %v", err)
	}
}

func TestConfigFromEnvNonLoopbackBindWithoutRemoteFails(t *testing.T) {
	withEnv(t, map[string]string{
		"SPECLOOM_BIND":         "0.0.0.0:7790",
		"SPECLOOM_ALLOW_REMOTE": "",
		"SPECLOOM_AUTH_TOKEN":   "",
	})

	_, err := runtime.ConfigFromEnv()
	if !errors.Is(err, runtime.ErrNonLoopbackBind) {
		t.Fatalf("expected ErrNonLoopbackBind, got %v", err)
	}
}

func TestConfigFromEnvRemoteWithTokenSucceeds(t *testing.T) {
	withEnv(t, map[string]string{
		"SPECLOOM_BIND":         "0.0.0.0:7790",
		"SPECLOOM_ALLOW_REMOTE": "true",
		"SPECLOOM_AUTH_TOKEN":   "secret",
	})

	cfg, err := runtime.ConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.AllowRemote || cfg.AuthToken != "secret" {
		t.Errorf("expected remote config to be honored, got %+v", cfg)
	}
}

func TestConfigFromEnvLoopbackBindAlwaysAllowed(t *testing.T) {
	withEnv(t, map[string]string{
		"SPECLOOM_BIND":         "127.0.0.1:9000",
		"SPECLOOM_ALLOW_REMOTE": "",
		"SPECLOOM_AUTH_TOKEN":   "",
	})

	if _, err := runtime.ConfigFromEnv(); err != nil {
		t.Fatalf("unexpected error for loopback bind: %v", err)
	}
}

func TestConfigFromEnvCustomSnapshotInterval(t *testing.T) {
	withEnv(t, map[string]string{
		"SPECLOOM_SNAPSHOT_INTERVAL_EVENTS": "50",
	})

	cfg, err := runtime.ConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SnapshotIntervalEvents != 50 {
		t.Errorf("expected snapshot interval 50, got %d", cfg.SnapshotIntervalEvents)
	}
}
