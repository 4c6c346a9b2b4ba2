package providers

import (
	"testing"

	"github.com/structocr/structocr/internal/config"
)

func TestNewLLMClient(t *testing.T) {
	cases := []struct {
		typ  string
		want string
	}{
		{"openrouter", OpenRouterName},
		{"", OpenRouterName}, // default
		{"openai", OpenAIName},
		{"mock", MockClientName},
	}
	for _, tc := range cases {
		client, err := NewLLMClient(config.LLMProviderCfg{Type: tc.typ, APIKey: "k"})
		if err != nil {
			t.Fatalf("NewLLMClient(%q): %v", tc.typ, err)
		}
		if client.Name() != tc.want {
			t.Errorf("NewLLMClient(%q).Name() = %q, want %q", tc.typ, client.Name(), tc.want)
		}
	}

	if _, err := NewLLMClient(config.LLMProviderCfg{Type: "llama-cpp"}); err == nil {
		t.Error("expected error for unknown provider type")
	}
}

func TestNewOCRProvider(t *testing.T) {
	p, err := NewOCRProvider(config.OCRProviderCfg{Type: "mistral-ocr", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOCRProvider: %v", err)
	}
	if p.Name() != MistralOCRName {
		t.Errorf("Name() = %q", p.Name())
	}

	if _, err := NewOCRProvider(config.OCRProviderCfg{Type: "tesseract"}); err == nil {
		t.Error("expected error for unknown provider type")
	}
}
