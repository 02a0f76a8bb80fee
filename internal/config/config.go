package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// LLM contains shared LLM connection settings used by generation and scoring.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Generation contains settings for the staged script-to-shot pipeline.
type Generation struct {
	RetryAttempts int `toml:"retry_attempts"`
	// RetryBackoffMS is the first retry delay; later retries double it.
	RetryBackoffMS int     `toml:"retry_backoff_ms"`
	Temperature    float64 `toml:"temperature"`
}

// Matching contains the similarity constants used when reconciling generated
// entities against the asset library.
type Matching struct {
	JaccardWeight     float64 `toml:"jaccard_weight"`
	DiceWeight        float64 `toml:"dice_weight"`
	ContainmentBonus  float64 `toml:"containment_bonus"`
	ShortNameMaxLen   int     `toml:"short_name_max_len"`
	ShortThreshold    float64 `toml:"short_threshold"`
	MediumNameMaxLen  int     `toml:"medium_name_max_len"`
	MediumThreshold   float64 `toml:"medium_threshold"`
	DefaultThreshold  float64 `toml:"default_threshold"`
	ImageBonus        float64 `toml:"image_bonus"`
	VersionBonus      float64 `toml:"version_bonus"`
	PromptBonusDivide float64 `toml:"prompt_bonus_divisor"`
	PromptBonusCap    float64 `toml:"prompt_bonus_cap"`
	FieldMatchBonus   float64 `toml:"field_match_bonus"`
}

// Quality contains settings for shot quality scoring.
type Quality struct {
	// Mode selects the scorer: "rule" (deterministic) or "model" (LLM-backed
	// with automatic rule fallback).
	Mode string `toml:"mode"`
	// EndFrameModels lists video model name prefixes that interpolate between
	// a start and an end keyframe.
	EndFrameModels []string `toml:"end_frame_models"`
	// Model overrides llm.model for scoring requests when set.
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	RetryBackoffMS int    `toml:"retry_backoff_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Shotforge.
//
// Configuration sections by subsystem:
//   - Paths: checkpoint state and log directories
//   - LLM: model endpoint shared by generation and model-backed scoring
//   - Generation: staged pipeline retry behaviour
//   - Matching: asset library similarity constants and thresholds
//   - Quality: shot scoring mode and model settings
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	LLM        LLM        `toml:"llm"`
	Generation Generation `toml:"generation"`
	Matching   Matching   `toml:"matching"`
	Quality    Quality    `toml:"quality"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shotforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shotforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CheckpointDBPath returns the SQLite database used for pipeline checkpoints.
func (c *Config) CheckpointDBPath() string {
	return filepath.Join(c.Paths.StateDir, "checkpoints.db")
}

// LockDir returns the directory holding per-session run locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains common LLM settings used across features.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the shared LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

// QualityLLM returns the LLM settings for model-backed shot scoring.
// Falls back to [llm] settings when no scoring model is configured.
func (c *Config) QualityLLM() LLMConfig {
	cfg := c.GetLLM()
	cfg.Title = defaultQualityTitle
	if model := strings.TrimSpace(c.Quality.Model); model != "" {
		cfg.Model = model
	}
	if c.Quality.TimeoutSeconds > 0 {
		cfg.TimeoutSeconds = c.Quality.TimeoutSeconds
	}
	return cfg
}

// RequireLLM reports a configuration error when no API key is available.
func (c *Config) RequireLLM() error {
	if strings.TrimSpace(c.LLM.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/shotforge/config.toml"
	}
	return fmt.Errorf("llm.api_key is required. Set SHOTFORGE_LLM_API_KEY or edit %s (create with 'shotforge config init')", defaultPath)
}
