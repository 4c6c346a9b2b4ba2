package extract

import (
	"github.com/structocr/structocr/internal/contract"
)

// Aggregate merges OCR raw text, the extraction output, and figure
// descriptions into one candidate shaped by the contract. Pure and
// deterministic: no network calls, inputs are not mutated.
//
// Extraction output is pruned to the contract's shape. Fields annotated with
// source ocr_text or image_descriptions are filled from the corresponding
// input, overriding whatever the extraction produced for them.
func Aggregate(ct *contract.Contract, extracted contract.Candidate, ocrText string, descriptions []string) contract.Candidate {
	out := extracted.Prune(ct)

	for _, f := range ct.FieldsWithSource(contract.SourceOCRText) {
		if ocrText != "" {
			out[f.Name] = ocrText
		}
	}
	for _, f := range ct.FieldsWithSource(contract.SourceDescriptions) {
		list := make([]any, len(descriptions))
		for i, d := range descriptions {
			list[i] = d
		}
		out[f.Name] = list
	}
	return out
}
