// Package criteria models the named quality checks a candidate is scored
// against, and the per-round report the orchestrator's termination policy is
// driven by.
package criteria

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/structocr/structocr/internal/contract"
)

// Definition is a caller-supplied quality check. Fields lists the dot-paths
// the criterion governs; an empty list means whole-document scope.
type Definition struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Fields      []string `yaml:"fields,omitempty"`
}

// Result is one criterion's outcome for a round.
type Result struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Score       int      `json:"score"` // 0-10
	Threshold   int      `json:"threshold"`
	Pass        bool     `json:"pass"`
	Fields      []string `json:"fields,omitempty"`
}

// Report is the ordered collection of criterion results for one round.
type Report struct {
	Results   []Result `json:"results"`
	Rationale string   `json:"rationale,omitempty"`
}

// PassFraction is 100 × passing/total. An empty report trivially passes.
func (r *Report) PassFraction() float64 {
	if len(r.Results) == 0 {
		return 100
	}
	passing := 0
	for _, res := range r.Results {
		if res.Pass {
			passing++
		}
	}
	return 100 * float64(passing) / float64(len(r.Results))
}

// Met reports whether the pass fraction meets the configured percentage.
func (r *Report) Met(criteriaMetPerc int) bool {
	return r.PassFraction() >= float64(criteriaMetPerc)
}

// Failing returns the criterion results below threshold, in report order.
func (r *Report) Failing() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Pass {
			out = append(out, res)
		}
	}
	return out
}

// ValidateDefinitions checks criterion names are unique and every linked
// field path resolves against the contract.
func ValidateDefinitions(defs []Definition, ct *contract.Contract) error {
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("criterion with empty name")
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("duplicate criterion name %q", d.Name)
		}
		seen[d.Name] = struct{}{}
		if d.Description == "" {
			return fmt.Errorf("criterion %q has no description", d.Name)
		}
		for _, path := range d.Fields {
			if _, err := ct.Resolve(path); err != nil {
				return fmt.Errorf("criterion %q: %w", d.Name, err)
			}
		}
	}
	return nil
}

// LoadFile reads criterion definitions from a YAML file.
func LoadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read criteria file: %w", err)
	}
	var defs []Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse criteria: %w", err)
	}
	return defs, nil
}
