package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/focuslist/internal/rewrite"
)

// settingsFile is what settings.yaml holds. Empty fields fall back to the
// workspace defaults.
type settingsFile struct {
	OllamaBaseURL string     `yaml:"ollama_base_url"`
	OllamaModel   string     `yaml:"ollama_model"`
	UserRules     string     `yaml:"user_rules"`
	UpdatedAt     *time.Time `yaml:"updated_at,omitempty"`
}

// SettingsView is the settings shape shown to users.
type SettingsView struct {
	OllamaBaseURL string `json:"ollamaBaseUrl"`
	OllamaModel   string `json:"ollamaModel"`
	UserRules     string `json:"userRules"`
}

// SettingsPatch updates only the fields that are set.
type SettingsPatch struct {
	OllamaBaseURL *string `json:"ollamaBaseUrl"`
	OllamaModel   *string `json:"ollamaModel"`
	UserRules     *string `json:"userRules"`
}

// Settings reads settings.yaml on every call so edits apply to the next
// rewrite without a restart. It implements rewrite.SettingsProvider.
func (w *Workspace) Settings(ctx context.Context) (rewrite.Settings, error) {
	if err := ctx.Err(); err != nil {
		return rewrite.Settings{}, err
	}
	sf, err := w.readSettings()
	if err != nil {
		return w.defaults, err
	}
	s := w.defaults
	if v := strings.TrimSpace(sf.OllamaBaseURL); v != "" {
		s.BaseURL = v
	}
	if v := strings.TrimSpace(sf.OllamaModel); v != "" {
		s.Model = v
	}
	if strings.TrimSpace(sf.UserRules) != "" {
		s.UserRules = sf.UserRules
	}
	return s, nil
}

var _ rewrite.SettingsProvider = (*Workspace)(nil)

func (w *Workspace) SettingsView(ctx context.Context) (SettingsView, error) {
	s, err := w.Settings(ctx)
	if err != nil {
		return SettingsView{}, err
	}
	return SettingsView{OllamaBaseURL: s.BaseURL, OllamaModel: s.Model, UserRules: s.UserRules}, nil
}

func (w *Workspace) SaveSettings(ctx context.Context, p SettingsPatch) (SettingsView, error) {
	sf, err := w.readSettings()
	if err != nil {
		return SettingsView{}, err
	}
	if p.OllamaBaseURL != nil {
		sf.OllamaBaseURL = strings.TrimSpace(*p.OllamaBaseURL)
	}
	if p.OllamaModel != nil {
		sf.OllamaModel = strings.TrimSpace(*p.OllamaModel)
	}
	if p.UserRules != nil {
		sf.UserRules = *p.UserRules
	}
	if err := w.writeSettings(sf); err != nil {
		return SettingsView{}, err
	}
	return w.SettingsView(ctx)
}

func (w *Workspace) readSettings() (settingsFile, error) {
	var sf settingsFile
	b, err := os.ReadFile(w.settingsPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sf, nil
		}
		return sf, err
	}
	if err := yaml.Unmarshal(b, &sf); err != nil {
		return settingsFile{}, err
	}
	return sf, nil
}

func (w *Workspace) writeSettings(sf settingsFile) error {
	now := timeNow()
	sf.UpdatedAt = &now
	b, err := yaml.Marshal(&sf)
	if err != nil {
		return err
	}
	return atomicWriteFile(w.settingsPath(), b, 0o644)
}

func (w *Workspace) settingsPath() string {
	return filepath.Join(w.Root, "settings.yaml")
}
