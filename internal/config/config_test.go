package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amirbrooks/focuslist/internal/rewrite"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"FOCUSLIST_ROOT", "PORT", "OLLAMA_BASE_URL", "OLLAMA_MODEL", "OLLAMA_TIMEOUT_MS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Root != root {
		t.Errorf("Expected root %q, got %q", root, cfg.Root)
	}
	if cfg.Addr != ":4000" {
		t.Errorf("Expected addr :4000, got %q", cfg.Addr)
	}
	if cfg.AI.BaseURL != rewrite.DefaultBaseURL || cfg.AI.Model != rewrite.DefaultModel {
		t.Errorf("Unexpected AI defaults: %#v", cfg.AI)
	}
	if cfg.AI.Timeout != rewrite.DefaultTimeout {
		t.Errorf("Expected default timeout, got %s", cfg.AI.Timeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	t.Setenv("FOCUSLIST_ROOT", root)
	t.Setenv("PORT", "8080")
	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")
	t.Setenv("OLLAMA_MODEL", "qwen2.5:7b")
	t.Setenv("OLLAMA_TIMEOUT_MS", "2500")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Root != root || cfg.Addr != ":8080" {
		t.Errorf("Unexpected root/addr: %q %q", cfg.Root, cfg.Addr)
	}
	if cfg.AI.BaseURL != "http://gpu-box:11434" || cfg.AI.Model != "qwen2.5:7b" {
		t.Errorf("Unexpected AI settings: %#v", cfg.AI)
	}
	if cfg.AI.Timeout != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s timeout, got %s", cfg.AI.Timeout)
	}
}

func TestLoadConfigFileOverridesEnv(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	t.Setenv("OLLAMA_MODEL", "from-env")
	content := "ollama_model: from-file\nollama_timeout_ms: 1200\naddr: 127.0.0.1:9000\n"
	if err := os.WriteFile(filepath.Join(root, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AI.Model != "from-file" {
		t.Errorf("Expected model from file, got %q", cfg.AI.Model)
	}
	if cfg.AI.BaseURL != rewrite.DefaultBaseURL {
		t.Errorf("Expected default base url, got %q", cfg.AI.BaseURL)
	}
	if cfg.AI.Timeout != 1200*time.Millisecond || cfg.Addr != "127.0.0.1:9000" {
		t.Errorf("Unexpected timeout/addr: %s %q", cfg.AI.Timeout, cfg.Addr)
	}
}

func TestLoadRejectsBrokenConfigFile(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "config.yaml"), []byte("ollama_model: [unclosed\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(root); err == nil {
		t.Fatal("Expected error for malformed config.yaml")
	}
}

func TestLoadExpandsHomeInRoot(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("~/focus")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if want := filepath.Join(home, "focus"); cfg.Root != want {
		t.Errorf("Expected root %q, got %q", want, cfg.Root)
	}
}
