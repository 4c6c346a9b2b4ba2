package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/structocr/structocr/internal/workflow"
)

var (
	runContractPath string
	runCriteriaPath string
	runUseOCR       bool
)

var runCmd = &cobra.Command{
	Use:   "run <image>",
	Short: "Extract a structured object from one document image",
	Long: `Run the extraction workflow for a single image against a contract.

The contract file (YAML) defines the shape of the object to extract.
The optional criteria file defines the acceptance criteria that drive
the correction loop; with no criteria the first extraction is final.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cfgManager.Get()
		if cmd.Flags().Changed("use-ocr") {
			cfg.Run.UseOCR = runUseOCR
		}

		runner, err := buildRunner(cfg)
		if err != nil {
			return err
		}
		ct, defs, err := loadInputs(runContractPath, runCriteriaPath)
		if err != nil {
			return err
		}

		result, err := runner.Run(cmd.Context(), workflow.Input{
			ImagePath: args[0],
			Contract:  ct,
			Criteria:  defs,
		})
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		return printResult(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runContractPath, "contract", "", "contract file defining the target object shape (required)")
	runCmd.Flags().StringVar(&runCriteriaPath, "criteria", "", "criteria file defining acceptance checks")
	runCmd.Flags().BoolVar(&runUseOCR, "use-ocr", false, "seed extraction with a dedicated OCR pass")
	_ = runCmd.MarkFlagRequired("contract")
}
