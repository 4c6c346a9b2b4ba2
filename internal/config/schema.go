package config

import "fmt"

// Config holds structocr configuration.
type Config struct {
	Run       RunCfg       `mapstructure:"run" yaml:"run" json:"run"`
	Providers ProvidersCfg `mapstructure:"providers" yaml:"providers" json:"providers"`
	Log       LogCfg       `mapstructure:"log" yaml:"log" json:"log"`
}

// RunCfg is the recognized option surface of the extraction workflow.
type RunCfg struct {
	UseOCR                  bool   `mapstructure:"use_ocr" yaml:"use_ocr" json:"use_ocr"`
	LLMOCR                  string `mapstructure:"llm_ocr" yaml:"llm_ocr" json:"llm_ocr"`         // extraction model id
	LLMChecker              string `mapstructure:"llm_checker" yaml:"llm_checker" json:"llm_checker"` // criteria checker model id
	MaxCorrection           int    `mapstructure:"max_correction" yaml:"max_correction" json:"max_correction"`
	CriteriaMetPerc         int    `mapstructure:"criteria_met_perc" yaml:"criteria_met_perc" json:"criteria_met_perc"`
	CriterionScoreThreshold int    `mapstructure:"criterion_score_threshold" yaml:"criterion_score_threshold" json:"criterion_score_threshold"`
	CallTimeoutSeconds      int    `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds" json:"call_timeout_seconds"`
	Workers                 int    `mapstructure:"workers" yaml:"workers" json:"workers"` // batch concurrency (0 = NumCPU)
}

// ProvidersCfg selects and configures the capability providers.
type ProvidersCfg struct {
	LLM LLMProviderCfg `mapstructure:"llm" yaml:"llm" json:"llm"`
	OCR OCRProviderCfg `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
}

// LLMProviderCfg configures the LLM provider.
type LLMProviderCfg struct {
	Type           string  `mapstructure:"type" yaml:"type" json:"type"`         // "openrouter", "openai"
	APIKey         string  `mapstructure:"api_key" yaml:"api_key" json:"api_key"`   // supports ${ENV_VAR} syntax
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url" json:"base_url"` // optional override
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"` // requests per second
	MaxRetries     int     `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
}

// OCRProviderCfg configures the OCR provider.
type OCRProviderCfg struct {
	Type           string  `mapstructure:"type" yaml:"type" json:"type"`       // "mistral-ocr"
	APIKey         string  `mapstructure:"api_key" yaml:"api_key" json:"api_key"` // supports ${ENV_VAR} syntax
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Model          string  `mapstructure:"model" yaml:"model" json:"model"`
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
}

// LogCfg configures slog output.
type LogCfg struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`   // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text", "json"
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Run: RunCfg{
			UseOCR:                  false,
			LLMOCR:                  "anthropic/claude-3.5-sonnet",
			LLMChecker:              "anthropic/claude-3.5-sonnet",
			MaxCorrection:           3,
			CriteriaMetPerc:         80,
			CriterionScoreThreshold: 7,
			CallTimeoutSeconds:      120,
			Workers:                 0,
		},
		Providers: ProvidersCfg{
			LLM: LLMProviderCfg{
				Type:           "openrouter",
				APIKey:         "${OPENROUTER_API_KEY}",
				RateLimit:      10.0,
				MaxRetries:     3,
				TimeoutSeconds: 120,
			},
			OCR: OCRProviderCfg{
				Type:           "mistral-ocr",
				APIKey:         "${MISTRAL_API_KEY}",
				RateLimit:      6.0,
				TimeoutSeconds: 120,
			},
		},
		Log: LogCfg{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the option ranges the workflow depends on.
func (c *Config) Validate() error {
	if c.Run.MaxCorrection < 0 {
		return fmt.Errorf("max_correction must be >= 0, got %d", c.Run.MaxCorrection)
	}
	if c.Run.CriteriaMetPerc < 0 || c.Run.CriteriaMetPerc > 100 {
		return fmt.Errorf("criteria_met_perc must be in [0,100], got %d", c.Run.CriteriaMetPerc)
	}
	if c.Run.CriterionScoreThreshold < 0 || c.Run.CriterionScoreThreshold > 10 {
		return fmt.Errorf("criterion_score_threshold must be in [0,10], got %d", c.Run.CriterionScoreThreshold)
	}
	if c.Run.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Run.Workers)
	}
	return nil
}
