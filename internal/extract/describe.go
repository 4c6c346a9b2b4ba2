package extract

import (
	"encoding/json"
	"fmt"

	"github.com/structocr/structocr/internal/providers"
)

// BuildDescriptionRequest constructs the chat request that describes embedded
// images and figures on the page.
func BuildDescriptionRequest(image []byte, model string) *providers.ChatRequest {
	return &providers.ChatRequest{
		Model: model,
		Messages: []providers.Message{
			{Role: "system", Content: descriptionSystemPrompt},
			{
				Role:    "user",
				Content: "Describe the figures on this page.",
				Images:  [][]byte{image},
			},
		},
		ResponseFormat: descriptionResponseFormat(),
		Temperature:    0.0,
	}
}

// ParseDescriptions decodes the description call's structured output.
func ParseDescriptions(raw json.RawMessage) ([]string, error) {
	var out struct {
		Descriptions []string `json:"descriptions"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode descriptions: %w", err)
	}
	return out.Descriptions, nil
}

func descriptionResponseFormat() *providers.ResponseFormat {
	schema := map[string]any{
		"name":   "figure_descriptions",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"descriptions": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "One entry per embedded image or figure: its location on the page, its content, and its caption if present",
				},
			},
			"required":             []string{"descriptions"},
			"additionalProperties": false,
		},
	}
	raw, _ := json.Marshal(schema)
	return &providers.ResponseFormat{
		Type:       "json_schema",
		JSONSchema: raw,
	}
}
