// Package ingest expands multi-page PDF input into per-page PNG images so
// batch runs accept PDFs as well as plain image files.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// renderDPI is the resolution pages are rendered at. 300 DPI is a reasonable
// quality floor for OCR input.
const renderDPI = "300"

// IsPDF reports whether the path looks like a PDF file.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// ExpandPDF renders every page of a PDF into outputDir as sequentially
// numbered PNGs and returns their paths in page order.
func ExpandPDF(ctx context.Context, pdfPath, outputDir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pageCount, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF %s: %w", pdfPath, err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("PDF has no pages: %s", pdfPath)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	logger.Info("expanding PDF",
		"pdf", pdfPath,
		"pages", pageCount)

	paths := make([]string, 0, pageCount)
	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := renderPage(ctx, pdfPath, outputDir, page)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", page, err)
		}
		paths = append(paths, out)
	}
	return paths, nil
}

// renderPage renders a single PDF page using pdftoppm (poppler-utils). This
// renders the page correctly, unlike pdfcpu image extraction which pulls
// embedded image objects whose internal numbering may not match page order.
func renderPage(ctx context.Context, pdfPath, outputDir string, page int) (string, error) {
	outputPrefix := filepath.Join(outputDir, fmt.Sprintf("page-%04d", page))

	pageStr := fmt.Sprintf("%d", page)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", renderDPI,
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	outputPath := outputPrefix + ".png"
	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("rendered page not found at %s: %w", outputPath, err)
	}
	return outputPath, nil
}
