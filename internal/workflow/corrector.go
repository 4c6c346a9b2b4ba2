package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/structocr/structocr/internal/contract"
	"github.com/structocr/structocr/internal/criteria"
	"github.com/structocr/structocr/internal/extract"
	"github.com/structocr/structocr/internal/providers"
)

// correct runs one correction round: compute the union of the failing
// criteria's linked field paths, issue a single scoped extraction call with
// the prior candidate and the failing rationale as feedback, and merge the
// returned subtrees back by whole-subtree replacement.
//
// The attempt counter increments exactly once per round regardless of
// outcome: a failed or unparseable correction call degrades to a no-op round
// (candidate unchanged), bounding total retries.
func (r *Runner) correct(ctx context.Context, rs *runState, in Input, opts Options, logger *slog.Logger) {
	failing := rs.report.Failing()
	paths, wholeDocument := failingFieldUnion(failing)
	feedback := correctionFeedback(failing, rs.report.Rationale, opts.CriterionScoreThreshold)

	rs.attempts++

	scope := paths
	if wholeDocument {
		// A failing criterion with no field linkage governs the whole
		// document: fall back to full re-extraction.
		scope = nil
	}

	req, err := extract.BuildRequest(extract.Input{
		Image:    rs.image.PNG,
		OCRText:  rs.ocrText,
		Contract: in.Contract,
		Model:    opts.ExtractModel,
		Scope:    scope,
		Prior:    rs.candidate,
		Feedback: feedback,
	})
	if err != nil {
		logger.Warn("correction round degraded to no-op", "attempt", rs.attempts, "error", err)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
	defer cancel()

	parsed, _, err := providers.StructuredChat(callCtx, r.LLM, req)
	if err != nil {
		logger.Warn("correction round degraded to no-op", "attempt", rs.attempts, "error", err)
		return
	}

	corrected, err := contract.ParseCandidate(parsed)
	if err != nil {
		logger.Warn("correction round degraded to no-op", "attempt", rs.attempts, "error", err)
		return
	}

	if wholeDocument {
		// Full replacement, re-aggregated so source-filled fields survive.
		rs.candidate = extract.Aggregate(in.Contract, corrected, rs.ocrText, rs.descriptions)
		logger.Info("correction round applied", "attempt", rs.attempts, "scope", "whole_document")
		return
	}

	// Whole-subtree replacement at each linked path; paths outside the
	// failing union are never written.
	applied := 0
	for _, path := range paths {
		if v, ok := corrected.GetPath(path); ok {
			rs.candidate.SetPath(path, v)
			applied++
		}
	}
	logger.Info("correction round applied",
		"attempt", rs.attempts,
		"fields", strings.Join(paths, ","),
		"applied", applied)
}

// failingFieldUnion returns the ordered, de-duplicated union of linked field
// paths over the failing criteria. wholeDocument is true when any failing
// criterion has an empty linkage.
func failingFieldUnion(failing []criteria.Result) (paths []string, wholeDocument bool) {
	seen := make(map[string]struct{})
	for _, res := range failing {
		if len(res.Fields) == 0 {
			wholeDocument = true
			continue
		}
		for _, p := range res.Fields {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}
	return paths, wholeDocument
}

// correctionFeedback renders the failing criteria as corrective instructions
// for the scoped extraction call.
func correctionFeedback(failing []criteria.Result, rationale string, threshold int) string {
	var b strings.Builder
	for _, res := range failing {
		fmt.Fprintf(&b, "%s was found to be inadequate (score: %d/%d)\n",
			res.Description, res.Score, threshold)
	}
	if rationale != "" {
		fmt.Fprintf(&b, "Reasons for correction: %s\n", rationale)
	}
	return b.String()
}
