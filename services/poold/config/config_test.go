package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "poold.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: " :9090 "
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":9090" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.EngineConfig != "./pool.toml" {
		t.Fatalf("expected default engine config path, got %q", cfg.EngineConfig)
	}
	if cfg.DataDir != "./pool-data" {
		t.Fatalf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.Auth.ScopeClaim != "scope" {
		t.Fatalf("expected default scope claim, got %q", cfg.Auth.ScopeClaim)
	}
	if cfg.EventLog.MaxBackups != 7 {
		t.Fatalf("expected default max backups, got %d", cfg.EventLog.MaxBackups)
	}
}

func TestLoadConfigRequiresHMACSecretWhenAuthEnabled(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
auth:
  enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when auth is enabled without an hmac secret")
	}
}

func TestLoadConfigValidatesExecutorBindings(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
executor_auth:
  enabled: true
  secrets:
    exec-a: supersecret
  executors:
    exec-a: pool1exampleaddressexecutora
    exec-b: pool1exampleaddressexecutorb
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when an executor has no matching secret")
	}
}

func TestLoadConfigAcceptsMatchedExecutorBindings(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
executor_auth:
  enabled: true
  secrets:
    exec-a: supersecret
  executors:
    exec-a: pool1exampleaddressexecutora
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ExecutorAuth.TimestampSkewSeconds != 120 {
		t.Fatalf("expected default timestamp skew, got %d", cfg.ExecutorAuth.TimestampSkewSeconds)
	}
}
