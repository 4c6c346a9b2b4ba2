package providers

import (
	"fmt"
	"time"

	"github.com/structocr/structocr/internal/config"
)

// NewLLMClient builds the configured LLM provider.
func NewLLMClient(cfg config.LLMProviderCfg) (LLMClient, error) {
	switch cfg.Type {
	case OpenRouterName, "":
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
			RPS:        cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
		}), nil
	case OpenAIName:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
			Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		}), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider type %q", cfg.Type)
	}
}

// NewOCRProvider builds the configured OCR provider.
func NewOCRProvider(cfg config.OCRProviderCfg) (OCRProvider, error) {
	switch cfg.Type {
	case MistralOCRName, "":
		return NewMistralOCRClient(MistralOCRConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			RateLimit: cfg.RateLimit,
		}), nil
	case "mock":
		return &MockOCRProvider{Text: "mock ocr text"}, nil
	default:
		return nil, fmt.Errorf("unknown ocr provider type %q", cfg.Type)
	}
}
