package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/structocr/structocr/internal/config"
	"github.com/structocr/structocr/internal/contract"
	"github.com/structocr/structocr/internal/criteria"
	"github.com/structocr/structocr/internal/providers"
	"github.com/structocr/structocr/internal/workflow"
)

// buildRunner wires the configured providers into a workflow runner.
func buildRunner(cfg *config.Config) (*workflow.Runner, error) {
	llm, err := providers.NewLLMClient(cfg.Providers.LLM)
	if err != nil {
		return nil, err
	}

	var ocr providers.OCRProvider
	if cfg.Run.UseOCR {
		ocr, err = providers.NewOCRProvider(cfg.Providers.OCR)
		if err != nil {
			return nil, err
		}
	}

	return &workflow.Runner{
		LLM:    llm,
		OCR:    ocr,
		Logger: logger,
		Options: workflow.Options{
			UseOCR:                  cfg.Run.UseOCR,
			ExtractModel:            cfg.Run.LLMOCR,
			CheckerModel:            cfg.Run.LLMChecker,
			MaxCorrection:           cfg.Run.MaxCorrection,
			CriteriaMetPerc:         cfg.Run.CriteriaMetPerc,
			CriterionScoreThreshold: cfg.Run.CriterionScoreThreshold,
			CallTimeout:             time.Duration(cfg.Run.CallTimeoutSeconds) * time.Second,
		},
	}, nil
}

// loadInputs reads the contract and optional criteria files shared by the run
// and batch commands.
func loadInputs(contractPath, criteriaPath string) (*contract.Contract, []criteria.Definition, error) {
	ct, err := contract.LoadFile(contractPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading contract: %w", err)
	}

	var defs []criteria.Definition
	if criteriaPath != "" {
		defs, err = criteria.LoadFile(criteriaPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading criteria: %w", err)
		}
	}
	return ct, defs, nil
}

// printResult writes v to stdout in the format selected by --output.
func printResult(v any) error {
	switch outputFormat {
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}
