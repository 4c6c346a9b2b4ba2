package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/structocr/structocr/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Resolved API keys are secrets: redact before printing.
		cfg := *cfgManager.Get()
		cfg.Providers.LLM.APIKey = redact(cfg.Providers.LLM.APIKey)
		cfg.Providers.OCR.APIKey = redact(cfg.Providers.OCR.APIKey)
		return printResult(cfg)
	},
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		} else if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".structocr", "config.yaml")
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, refusing to overwrite", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
