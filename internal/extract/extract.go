// Package extract builds the language-model call contracts for structured
// extraction and figure description, and aggregates their outputs into one
// candidate.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/structocr/structocr/internal/contract"
	"github.com/structocr/structocr/internal/providers"
)

// Input describes one extraction call. Scope, Prior, and Feedback are only
// set for correction rounds: Scope narrows the output to the named field
// paths, Prior supplies the previous candidate for context, and Feedback
// carries the failing criteria's rationale.
type Input struct {
	Image    []byte
	OCRText  string
	Contract *contract.Contract
	Model    string

	Scope    []string
	Prior    contract.Candidate
	Feedback string
}

// BuildRequest constructs the chat request for a full or scoped extraction.
func BuildRequest(in Input) (*providers.ChatRequest, error) {
	ct := in.Contract
	if len(in.Scope) > 0 {
		narrowed, err := ct.Restrict(in.Scope)
		if err != nil {
			return nil, fmt.Errorf("failed to narrow contract: %w", err)
		}
		ct = narrowed
	}

	rf, err := ct.ResponseFormat()
	if err != nil {
		return nil, err
	}

	system := extractionSystemPrompt
	if in.Feedback != "" {
		system = correctionPreamble
	}

	var user strings.Builder
	user.WriteString("Target fields:\n")
	user.WriteString(ct.DescribeFields())

	if in.Feedback != "" {
		user.WriteString("\nProblems to correct:\n")
		user.WriteString(in.Feedback)
		user.WriteString("\n")
	}
	if in.Prior != nil {
		priorJSON, err := json.Marshal(in.Prior)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize prior candidate: %w", err)
		}
		user.WriteString("\nPrevious extraction result:\n")
		user.Write(priorJSON)
		user.WriteString("\n")
	}
	if in.OCRText != "" {
		user.WriteString("\nOCR reference text:\n")
		user.WriteString(in.OCRText)
		user.WriteString("\n")
	}

	return &providers.ChatRequest{
		Model: in.Model,
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{
				Role:    "user",
				Content: user.String(),
				Images:  [][]byte{in.Image},
			},
		},
		ResponseFormat: rf,
		Temperature:    0.0,
	}, nil
}
