package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeGeneration()
	c.normalizeMatching()
	c.normalizeQuality()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	if value, ok := os.LookupEnv("SHOTFORGE_LLM_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.LLM.APIKey = value
	} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.LLM.APIKey = value
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeGeneration() {
	if c.Generation.RetryAttempts <= 0 {
		c.Generation.RetryAttempts = defaultGenerationRetries
	}
}

// normalizeMatching restores defaults for zero values so partially written
// [matching] sections keep the tuned constants for keys they omit.
func (c *Config) normalizeMatching() {
	d := DefaultMatching()
	m := &c.Matching
	if m.JaccardWeight == 0 {
		m.JaccardWeight = d.JaccardWeight
	}
	if m.DiceWeight == 0 {
		m.DiceWeight = d.DiceWeight
	}
	if m.ContainmentBonus == 0 {
		m.ContainmentBonus = d.ContainmentBonus
	}
	if m.ShortNameMaxLen == 0 {
		m.ShortNameMaxLen = d.ShortNameMaxLen
	}
	if m.ShortThreshold == 0 {
		m.ShortThreshold = d.ShortThreshold
	}
	if m.MediumNameMaxLen == 0 {
		m.MediumNameMaxLen = d.MediumNameMaxLen
	}
	if m.MediumThreshold == 0 {
		m.MediumThreshold = d.MediumThreshold
	}
	if m.DefaultThreshold == 0 {
		m.DefaultThreshold = d.DefaultThreshold
	}
	if m.ImageBonus == 0 {
		m.ImageBonus = d.ImageBonus
	}
	if m.VersionBonus == 0 {
		m.VersionBonus = d.VersionBonus
	}
	if m.PromptBonusDivide == 0 {
		m.PromptBonusDivide = d.PromptBonusDivide
	}
	if m.PromptBonusCap == 0 {
		m.PromptBonusCap = d.PromptBonusCap
	}
	if m.FieldMatchBonus == 0 {
		m.FieldMatchBonus = d.FieldMatchBonus
	}
}

func (c *Config) normalizeQuality() {
	c.Quality.Mode = strings.ToLower(strings.TrimSpace(c.Quality.Mode))
	if c.Quality.Mode == "" {
		c.Quality.Mode = defaultQualityMode
	}
	c.Quality.Model = strings.TrimSpace(c.Quality.Model)
	models := make([]string, 0, len(c.Quality.EndFrameModels))
	seen := make(map[string]struct{}, len(c.Quality.EndFrameModels))
	for _, model := range c.Quality.EndFrameModels {
		normalized := strings.ToLower(strings.TrimSpace(model))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		models = append(models, normalized)
	}
	c.Quality.EndFrameModels = models
	if c.Quality.TimeoutSeconds <= 0 {
		c.Quality.TimeoutSeconds = defaultQualityTimeout
	}
	if c.Quality.RetryAttempts <= 0 {
		c.Quality.RetryAttempts = defaultQualityRetries
	}
	if c.Quality.RetryBackoffMS < 0 {
		c.Quality.RetryBackoffMS = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
