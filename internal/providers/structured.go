package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxStructuredRepairAttempts limits self-repair re-asks when structured
// output parsing/validation fails. These re-asks are internal to a single
// capability call and are not correction rounds.
const maxStructuredRepairAttempts = 2

// ErrSchemaViolation is wrapped by StructuredChat when model output cannot be
// coerced to the requested schema even after repair re-asks.
var ErrSchemaViolation = errors.New("structured output violates schema")

// StructuredChat sends a chat request that demands schema-conforming JSON and
// validates the result locally. If the output cannot be parsed or fails
// validation, the model is re-asked with the validation issue up to
// maxStructuredRepairAttempts times before giving up.
func StructuredChat(ctx context.Context, client LLMClient, req *ChatRequest) (json.RawMessage, *ChatResult, error) {
	if req.ResponseFormat == nil || len(req.ResponseFormat.JSONSchema) == 0 {
		return nil, nil, fmt.Errorf("structured chat requires a response format schema")
	}

	var lastResult *ChatResult
	var lastIssue error

	for attempt := 0; attempt <= maxStructuredRepairAttempts; attempt++ {
		attemptReq := req
		if attempt > 0 {
			repaired := *req
			repaired.Messages = append(append([]Message{}, req.Messages...), Message{
				Role:    "user",
				Content: structuredRepairPrompt(req.ResponseFormat.JSONSchema, lastResult.Content, lastIssue),
			})
			attemptReq = &repaired
		}

		result, err := client.Chat(ctx, attemptReq)
		if err != nil {
			return nil, result, err
		}
		lastResult = result

		parsed := result.ParsedJSON
		if len(parsed) == 0 {
			parsed, err = parseStructuredJSON(result.Content)
			if err != nil {
				lastIssue = err
				continue
			}
		}

		if err := validateStructuredJSON(req.ResponseFormat.JSONSchema, parsed); err != nil {
			lastIssue = err
			continue
		}

		result.ParsedJSON = parsed
		result.Success = true
		result.Attempts = attempt + 1
		return parsed, result, nil
	}

	return nil, lastResult, fmt.Errorf("%w after %d repair attempts: %v",
		ErrSchemaViolation, maxStructuredRepairAttempts, lastIssue)
}

// parseStructuredJSON parses JSON from model output, with lightweight recovery
// for markdown code fences and surrounding text.
func parseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty structured output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			normalized, mErr := json.Marshal(parsed)
			if mErr != nil {
				return nil, fmt.Errorf("failed to normalize structured output: %w", mErr)
			}
			return normalized, nil
		}
	}

	return nil, fmt.Errorf("failed to parse structured JSON")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && (arrayStart < 0 || objectStart < arrayStart):
		start = objectStart
		closeChar = "}"
	case arrayStart >= 0:
		start = arrayStart
		closeChar = "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// validateStructuredJSON validates parsed JSON against the canonical schema.
func validateStructuredJSON(schemaRaw, parsed json.RawMessage) error {
	if len(schemaRaw) == 0 || len(parsed) == 0 {
		return nil
	}

	coreSchema, err := extractValidationSchema(schemaRaw)
	if err != nil {
		return err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(coreSchema)); err != nil {
		return fmt.Errorf("failed to load structured schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("failed to compile structured schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return fmt.Errorf("failed to decode structured JSON for validation: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}

// extractValidationSchema unwraps the OpenAI-style {"name","strict","schema"}
// envelope, if present, to get the raw schema document.
func extractValidationSchema(schemaRaw json.RawMessage) (json.RawMessage, error) {
	var root any
	if err := json.Unmarshal(schemaRaw, &root); err != nil {
		return nil, fmt.Errorf("invalid structured schema JSON: %w", err)
	}

	if rootMap, ok := root.(map[string]any); ok {
		if inner, ok := rootMap["schema"]; ok {
			b, err := json.Marshal(inner)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize inner schema: %w", err)
			}
			return b, nil
		}
	}

	// Assume raw schema document.
	return schemaRaw, nil
}

func structuredRepairPrompt(schemaRaw json.RawMessage, lastOutput string, issue error) string {
	lastOutput = strings.TrimSpace(lastOutput)
	if len(lastOutput) > 12000 {
		lastOutput = lastOutput[:12000] + "\n...[truncated]"
	}

	return fmt.Sprintf(`Return ONLY valid JSON (no markdown, no commentary) that strictly conforms to this schema.

Schema:
%s

Your previous output:
%s

Validation issue:
%v`, string(schemaRaw), lastOutput, issue)
}
