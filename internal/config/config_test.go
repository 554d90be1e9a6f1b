package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMergeKeepsDefaultsForBlankFields(t *testing.T) {
	dst := Default()
	Merge(&dst, Config{DocsBaseURL: "http://localhost:9001", DataDir: "/var/lib/signdesk"})

	if dst.AuthBaseURL != "http://localhost:5000" {
		t.Fatalf("auth default lost: %q", dst.AuthBaseURL)
	}
	if dst.DocsBaseURL != "http://localhost:9001" {
		t.Fatalf("docs override lost: %q", dst.DocsBaseURL)
	}
	if dst.DataDir != "/var/lib/signdesk" {
		t.Fatalf("data dir override lost: %q", dst.DataDir)
	}
}

func TestLoadFromPathReadsYaml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "daemon:\n  linkBaseUrl: http://localhost:7143\n  rpcAddr: 127.0.0.1:9000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadFromPath(path)
	if cfg.LinkBaseURL != "http://localhost:7143" {
		t.Fatalf("yaml value lost: %q", cfg.LinkBaseURL)
	}
	if cfg.RPCAddr != "127.0.0.1:9000" {
		t.Fatalf("yaml value lost: %q", cfg.RPCAddr)
	}
	if cfg.AuthBaseURL != "http://localhost:5000" {
		t.Fatalf("default lost: %q", cfg.AuthBaseURL)
	}
}

func TestLoadFromPathToleratesMissingFile(t *testing.T) {
	cfg := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg != Default() {
		t.Fatalf("missing file must yield defaults, got %+v", cfg)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("SIGNDESK_AUTH_BASE_URL", "http://localhost:6000")
	t.Setenv("SIGNDESK_STATE_SECRET", "env-secret")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("daemon:\n  authBaseUrl: http://localhost:5555\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadFromPath(path)
	if cfg.AuthBaseURL != "http://localhost:6000" {
		t.Fatalf("env override lost: %q", cfg.AuthBaseURL)
	}
	if cfg.StateSecret != "env-secret" {
		t.Fatalf("env override lost: %q", cfg.StateSecret)
	}
}
