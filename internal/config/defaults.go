package config

// Quality scorer modes.
const (
	QualityModeRule  = "rule"
	QualityModeModel = "model"
)

const (
	defaultStateDir          = "~/.local/share/shotforge/state"
	defaultLogDir            = "~/.local/share/shotforge/logs"
	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMReferer        = "https://github.com/shotforge/shotforge"
	defaultLLMTitle          = "Shotforge"
	defaultQualityTitle      = "Shotforge Quality Review"
	defaultLLMTimeoutSeconds = 120
	defaultGenerationRetries = 3
	defaultGenerationBackoff = 1000
	defaultGenerationTemp    = 0.4
	defaultQualityMode       = QualityModeRule
	defaultQualityTimeout    = 45
	defaultQualityRetries    = 2
	defaultQualityBackoffMS  = 800
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Generation: Generation{
			RetryAttempts:  defaultGenerationRetries,
			RetryBackoffMS: defaultGenerationBackoff,
			Temperature:    defaultGenerationTemp,
		},
		Matching: DefaultMatching(),
		Quality: Quality{
			Mode:           defaultQualityMode,
			EndFrameModels: []string{"veo", "kling", "vidu", "seedance"},
			TimeoutSeconds: defaultQualityTimeout,
			RetryAttempts:  defaultQualityRetries,
			RetryBackoffMS: defaultQualityBackoffMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultMatching returns the empirically tuned similarity constants.
func DefaultMatching() Matching {
	return Matching{
		JaccardWeight:     0.55,
		DiceWeight:        0.45,
		ContainmentBonus:  0.2,
		ShortNameMaxLen:   2,
		ShortThreshold:    0.95,
		MediumNameMaxLen:  4,
		MediumThreshold:   0.72,
		DefaultThreshold:  0.50,
		ImageBonus:        0.04,
		VersionBonus:      0.004,
		PromptBonusDivide: 6000,
		PromptBonusCap:    0.05,
		FieldMatchBonus:   0.03,
	}
}
