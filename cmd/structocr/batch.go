package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/structocr/structocr/internal/imaging"
	"github.com/structocr/structocr/internal/ingest"
	"github.com/structocr/structocr/internal/workflow"
)

var (
	batchContractPath string
	batchCriteriaPath string
	batchUseOCR       bool
	batchWorkers      int
	batchPageDir      string
)

var batchCmd = &cobra.Command{
	Use:   "batch <path>...",
	Short: "Extract structured objects from a set of images or a PDF",
	Long: `Run the extraction workflow over many documents.

Each path may be an image file, a directory of images, or a PDF. PDFs
are expanded to one page image each before processing. Results are
reported in input order; a failure on one document does not abort the
others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cfgManager.Get()
		if cmd.Flags().Changed("use-ocr") {
			cfg.Run.UseOCR = batchUseOCR
		}
		if cmd.Flags().Changed("workers") {
			cfg.Run.Workers = batchWorkers
		}

		runner, err := buildRunner(cfg)
		if err != nil {
			return err
		}
		ct, defs, err := loadInputs(batchContractPath, batchCriteriaPath)
		if err != nil {
			return err
		}

		paths, err := expandPaths(cmd, args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no processable images found in %v", args)
		}

		inputs := make([]workflow.Input, len(paths))
		for i, p := range paths {
			inputs[i] = workflow.Input{ImagePath: p, Contract: ct, Criteria: defs}
		}

		results := runner.RunBatch(cmd.Context(), inputs, cfg.Run.Workers)

		type itemOut struct {
			Image  string           `json:"image" yaml:"image"`
			Result *workflow.Result `json:"result,omitempty" yaml:"result,omitempty"`
			Error  string           `json:"error,omitempty" yaml:"error,omitempty"`
		}
		out := make([]itemOut, len(results))
		failed := 0
		for i, item := range results {
			out[i] = itemOut{Image: item.Input.ImagePath, Result: item.Result}
			if item.Err != nil {
				out[i].Error = item.Err.Error()
				failed++
			}
		}
		if err := printResult(out); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed", failed, len(results))
		}
		return nil
	},
}

// expandPaths flattens the argument list into processable image paths. PDFs
// render to per-page images under --page-dir; directories contribute their
// supported image files in name order.
func expandPaths(cmd *cobra.Command, args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}

		switch {
		case info.IsDir():
			entries, err := os.ReadDir(arg)
			if err != nil {
				return nil, err
			}
			var names []string
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				p := filepath.Join(arg, e.Name())
				if imaging.MIMEType(p) != "" {
					names = append(names, p)
				}
			}
			sort.Strings(names)
			paths = append(paths, names...)

		case ingest.IsPDF(arg):
			dir := batchPageDir
			if dir == "" {
				dir, err = os.MkdirTemp("", "structocr-pages-")
				if err != nil {
					return nil, err
				}
			}
			pages, err := ingest.ExpandPDF(cmd.Context(), arg, dir, logger)
			if err != nil {
				return nil, fmt.Errorf("expanding %s: %w", arg, err)
			}
			paths = append(paths, pages...)

		default:
			paths = append(paths, arg)
		}
	}
	return paths, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchContractPath, "contract", "", "contract file defining the target object shape (required)")
	batchCmd.Flags().StringVar(&batchCriteriaPath, "criteria", "", "criteria file defining acceptance checks")
	batchCmd.Flags().BoolVar(&batchUseOCR, "use-ocr", false, "seed extraction with a dedicated OCR pass")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "concurrent documents (0 = number of CPUs)")
	batchCmd.Flags().StringVar(&batchPageDir, "page-dir", "", "directory for rendered PDF pages (default: temp dir)")
	_ = batchCmd.MarkFlagRequired("contract")
}
