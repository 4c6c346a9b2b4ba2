package criteria

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/structocr/structocr/internal/contract"
	"github.com/structocr/structocr/internal/providers"
)

const checkerSystemPrompt = `Be a rigorous and strict checker and grade whether the following criteria are met on a scale of 0 to 10. 10 means perfect and 0 means the criterion is completely ignored. Approximately the score should be the percentage of the criterion that has been met.

The given image shows the scanned source document and the given JSON is the structured extraction result. Thoroughly verify the result against the image, identify any discrepancies, and score each criterion. If the fields are not present in the source they may be null or empty; do not penalize absent source content.

For any criterion scoring below a perfect 10, explain the judgement in the reasons field with specific examples of errors or omissions.`

// Evaluator scores a candidate against criterion definitions with a
// language-model judgment call. The entire candidate is re-scored every
// round: corrections can ripple into logically related fields, so no scores
// are carried over between rounds.
type Evaluator struct {
	Client    providers.LLMClient
	Model     string
	Threshold int // criterion_score_threshold: pass = score >= Threshold
}

// Evaluate produces a fresh Report for the candidate. Zero definitions
// trivially passes without a network call.
func (e *Evaluator) Evaluate(ctx context.Context, image []byte, cand contract.Candidate, defs []Definition) (*Report, error) {
	if len(defs) == 0 {
		return &Report{}, nil
	}

	candJSON, err := json.Marshal(cand)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize candidate: %w", err)
	}

	req := &providers.ChatRequest{
		Model: e.Model,
		Messages: []providers.Message{
			{Role: "system", Content: checkerSystemPrompt},
			{
				Role:    "user",
				Content: checkerUserPrompt(defs, candJSON),
				Images:  [][]byte{image},
			},
		},
		ResponseFormat: scoreResponseFormat(defs),
		Temperature:    0.0,
	}

	parsed, _, err := providers.StructuredChat(ctx, e.Client, req)
	if err != nil {
		return nil, fmt.Errorf("criteria evaluation failed: %w", err)
	}

	var scores map[string]any
	if err := json.Unmarshal(parsed, &scores); err != nil {
		return nil, fmt.Errorf("failed to decode criteria scores: %w", err)
	}

	report := &Report{Results: make([]Result, 0, len(defs))}
	if reasons, ok := scores["reasons"].(string); ok {
		report.Rationale = reasons
	}
	for _, d := range defs {
		raw, ok := scores[d.Name]
		if !ok {
			return nil, fmt.Errorf("checker response missing criterion %q", d.Name)
		}
		num, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("checker response has non-numeric score for %q", d.Name)
		}
		score := int(num)
		report.Results = append(report.Results, Result{
			Name:        d.Name,
			Description: d.Description,
			Score:       score,
			Threshold:   e.Threshold,
			Pass:        score >= e.Threshold,
			Fields:      d.Fields,
		})
	}
	return report, nil
}

func checkerUserPrompt(defs []Definition, candJSON []byte) string {
	var b strings.Builder
	b.WriteString("Criteria to verify:\n")
	for _, d := range defs {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	b.WriteString("\nExtraction result to check:\n")
	b.Write(candJSON)
	return b.String()
}

// scoreResponseFormat builds a strict schema with one 0-10 integer property
// per criterion plus a reasons string.
func scoreResponseFormat(defs []Definition) *providers.ResponseFormat {
	properties := make(map[string]any, len(defs)+1)
	required := make([]string, 0, len(defs)+1)
	for _, d := range defs {
		properties[d.Name] = map[string]any{
			"type":        "integer",
			"minimum":     0,
			"maximum":     10,
			"description": d.Description,
		}
		required = append(required, d.Name)
	}
	properties["reasons"] = map[string]any{
		"type":        "string",
		"description": "Detailed reasons for any criteria not met, with specific examples of errors or omissions",
	}
	required = append(required, "reasons")

	schema := map[string]any{
		"name":   "criteria_scores",
		"strict": true,
		"schema": map[string]any{
			"type":                 "object",
			"properties":           properties,
			"required":             required,
			"additionalProperties": false,
		},
	}
	raw, _ := json.Marshal(schema)
	return &providers.ResponseFormat{
		Type:       "json_schema",
		JSONSchema: raw,
	}
}
