package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	if c.Generation.RetryAttempts <= 0 {
		return errors.New("generation.retry_attempts must be positive")
	}
	if c.Generation.RetryBackoffMS < 0 {
		return errors.New("generation.retry_backoff_ms must be >= 0")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return errors.New("generation.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateMatching() error {
	m := c.Matching
	if err := ensureUnitMap(map[string]float64{
		"matching.jaccard_weight":    m.JaccardWeight,
		"matching.dice_weight":       m.DiceWeight,
		"matching.containment_bonus": m.ContainmentBonus,
		"matching.short_threshold":   m.ShortThreshold,
		"matching.medium_threshold":  m.MediumThreshold,
		"matching.default_threshold": m.DefaultThreshold,
		"matching.image_bonus":       m.ImageBonus,
		"matching.version_bonus":     m.VersionBonus,
		"matching.prompt_bonus_cap":  m.PromptBonusCap,
		"matching.field_match_bonus": m.FieldMatchBonus,
	}); err != nil {
		return err
	}
	if m.ShortNameMaxLen <= 0 {
		return errors.New("matching.short_name_max_len must be positive")
	}
	if m.MediumNameMaxLen <= m.ShortNameMaxLen {
		return errors.New("matching.medium_name_max_len must be greater than matching.short_name_max_len")
	}
	if m.PromptBonusDivide <= 0 {
		return errors.New("matching.prompt_bonus_divisor must be positive")
	}
	return nil
}

func (c *Config) validateQuality() error {
	switch c.Quality.Mode {
	case QualityModeRule, QualityModeModel:
	default:
		return fmt.Errorf("quality.mode must be \"rule\" or \"model\", got %q", c.Quality.Mode)
	}
	if c.Quality.TimeoutSeconds <= 0 {
		return errors.New("quality.timeout_seconds must be positive")
	}
	if c.Quality.RetryAttempts <= 0 {
		return errors.New("quality.retry_attempts must be positive")
	}
	if c.Quality.RetryBackoffMS < 0 {
		return errors.New("quality.retry_backoff_ms must be >= 0")
	}
	return nil
}

func ensureUnitMap(values map[string]float64) error {
	for key, value := range values {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", key)
		}
	}
	return nil
}
