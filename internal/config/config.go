// Package config loads and watches structocr configuration via viper, with
// ${ENV_VAR} expansion for secrets so API keys never live in the file itself.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager owns the loaded configuration and notifies subscribers on reload.
type Manager struct {
	mu        sync.RWMutex
	cfg       *Config
	cfgFile   string
	callbacks []func(*Config)
}

// NewManager loads configuration from cfgFile, or from the default search
// paths when cfgFile is empty, layered over defaults and STRUCTOCR_*
// environment variables.
func NewManager(cfgFile string) (*Manager, error) {
	m := &Manager{cfgFile: cfgFile}
	if err := m.initViper(); err != nil {
		return nil, err
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initViper() error {
	def := DefaultConfig()
	viper.SetDefault("run.use_ocr", def.Run.UseOCR)
	viper.SetDefault("run.llm_ocr", def.Run.LLMOCR)
	viper.SetDefault("run.llm_checker", def.Run.LLMChecker)
	viper.SetDefault("run.max_correction", def.Run.MaxCorrection)
	viper.SetDefault("run.criteria_met_perc", def.Run.CriteriaMetPerc)
	viper.SetDefault("run.criterion_score_threshold", def.Run.CriterionScoreThreshold)
	viper.SetDefault("run.call_timeout_seconds", def.Run.CallTimeoutSeconds)
	viper.SetDefault("run.workers", def.Run.Workers)
	viper.SetDefault("providers.llm.type", def.Providers.LLM.Type)
	viper.SetDefault("providers.llm.api_key", def.Providers.LLM.APIKey)
	viper.SetDefault("providers.llm.base_url", def.Providers.LLM.BaseURL)
	viper.SetDefault("providers.llm.rate_limit", def.Providers.LLM.RateLimit)
	viper.SetDefault("providers.llm.max_retries", def.Providers.LLM.MaxRetries)
	viper.SetDefault("providers.llm.timeout_seconds", def.Providers.LLM.TimeoutSeconds)
	viper.SetDefault("providers.ocr.type", def.Providers.OCR.Type)
	viper.SetDefault("providers.ocr.api_key", def.Providers.OCR.APIKey)
	viper.SetDefault("providers.ocr.base_url", def.Providers.OCR.BaseURL)
	viper.SetDefault("providers.ocr.model", def.Providers.OCR.Model)
	viper.SetDefault("providers.ocr.rate_limit", def.Providers.OCR.RateLimit)
	viper.SetDefault("providers.ocr.timeout_seconds", def.Providers.OCR.TimeoutSeconds)
	viper.SetDefault("log.level", def.Log.Level)
	viper.SetDefault("log.format", def.Log.Format)

	viper.SetEnvPrefix("STRUCTOCR")
	viper.AutomaticEnv()

	if m.cfgFile != "" {
		viper.SetConfigFile(m.cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".structocr"))
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// No file is fine: defaults plus environment carry the run. An
		// explicitly named file that is missing is still an error.
		if errors.As(err, &notFound) {
			return nil
		}
		if m.cfgFile == "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func (m *Manager) load() error {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Providers.LLM.APIKey = ResolveEnvVars(cfg.Providers.LLM.APIKey)
	cfg.Providers.OCR.APIKey = ResolveEnvVars(cfg.Providers.OCR.APIKey)
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.cfg = &cfg
	m.mu.Unlock()
	return nil
}

// Get returns the current configuration snapshot.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// OnChange registers a callback invoked after every successful reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// WatchConfig reloads the configuration when the file changes on disk. A
// reload that fails validation keeps the previous snapshot.
func (m *Manager) WatchConfig(logger *slog.Logger) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed, reloading", "file", e.Name)
		if err := m.load(); err != nil {
			logger.Error("config reload failed, keeping previous config", "error", err)
			return
		}
		m.mu.RLock()
		cbs := make([]func(*Config), len(m.callbacks))
		copy(cbs, m.callbacks)
		cfg := m.cfg
		m.mu.RUnlock()
		for _, fn := range cbs {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references against the process
// environment. Unset variables expand to the empty string.
func ResolveEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// WriteDefault writes a commented default configuration to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}
	header := "# structocr configuration\n# API keys support ${ENV_VAR} expansion; leave them pointing at the\n# environment rather than pasting secrets here.\n\n"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
