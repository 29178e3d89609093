// Package config resolves process configuration from the environment, an
// optional .env file, and an optional config.yaml inside the workspace root.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/amirbrooks/focuslist/internal/rewrite"
	"github.com/amirbrooks/focuslist/internal/store"
)

const (
	DefaultRoot = "~/.focuslist"
	DefaultPort = "4000"
)

// Config is the resolved process configuration.
type Config struct {
	Root string
	Addr string
	// AI holds the process-level rewrite defaults. Values stored in the
	// workspace settings take precedence at call time.
	AI rewrite.Settings
}

// fileConfig mirrors <root>/config.yaml.
type fileConfig struct {
	OllamaBaseURL   string `mapstructure:"ollama_base_url"`
	OllamaModel     string `mapstructure:"ollama_model"`
	OllamaTimeoutMS int    `mapstructure:"ollama_timeout_ms"`
	Addr            string `mapstructure:"addr"`
}

// Load reads .env from the working directory (if present), then the
// environment, then <root>/config.yaml. rootOverride, when non-empty, wins
// over FOCUSLIST_ROOT.
func Load(rootOverride string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("FOCUSLIST_ROOT", DefaultRoot)
	v.SetDefault("PORT", DefaultPort)
	v.SetDefault("OLLAMA_BASE_URL", rewrite.DefaultBaseURL)
	v.SetDefault("OLLAMA_MODEL", rewrite.DefaultModel)
	v.SetDefault("OLLAMA_TIMEOUT_MS", int(rewrite.DefaultTimeout/time.Millisecond))
	v.AutomaticEnv()

	cfg := &Config{
		Root: v.GetString("FOCUSLIST_ROOT"),
		Addr: ":" + strings.TrimPrefix(v.GetString("PORT"), ":"),
		AI: rewrite.Settings{
			BaseURL: v.GetString("OLLAMA_BASE_URL"),
			Model:   v.GetString("OLLAMA_MODEL"),
			Timeout: time.Duration(v.GetInt("OLLAMA_TIMEOUT_MS")) * time.Millisecond,
		},
	}
	if strings.TrimSpace(rootOverride) != "" {
		cfg.Root = rootOverride
	}
	cfg.Root = store.ExpandHome(strings.TrimSpace(cfg.Root))

	if err := loadFile(filepath.Join(cfg.Root, "config.yaml"), cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load config.yaml: %w", err)
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = rewrite.DefaultTimeout
	}
	return cfg, nil
}

// loadFile overlays non-empty values from a yaml file onto cfg.
func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return err
	}
	if fc.OllamaBaseURL != "" {
		cfg.AI.BaseURL = fc.OllamaBaseURL
	}
	if fc.OllamaModel != "" {
		cfg.AI.Model = fc.OllamaModel
	}
	if fc.OllamaTimeoutMS > 0 {
		cfg.AI.Timeout = time.Duration(fc.OllamaTimeoutMS) * time.Millisecond
	}
	if fc.Addr != "" {
		cfg.Addr = fc.Addr
	}
	return nil
}
