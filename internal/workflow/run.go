// Package workflow sequences the extraction-validate-correct state machine:
// convert the input image, optionally OCR it, extract a structured candidate,
// describe embedded figures, aggregate, then evaluate against the caller's
// criteria and re-extract failing fields until the criteria are met or the
// correction budget runs out.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/structocr/structocr/internal/contract"
	"github.com/structocr/structocr/internal/criteria"
	"github.com/structocr/structocr/internal/extract"
	"github.com/structocr/structocr/internal/imaging"
	"github.com/structocr/structocr/internal/providers"
)

// Options is the recognized configuration surface for a run.
type Options struct {
	UseOCR                  bool
	ExtractModel            string // llm_ocr model id
	CheckerModel            string // llm_checker model id
	MaxCorrection           int    // correction rounds permitted (default 3)
	CriteriaMetPerc         int    // aggregate pass percentage required (default 80)
	CriterionScoreThreshold int    // per-criterion pass score (default 7)
	CallTimeout             time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxCorrection < 0 {
		o.MaxCorrection = 0
	}
	if o.CriteriaMetPerc == 0 {
		o.CriteriaMetPerc = 80
	}
	if o.CriterionScoreThreshold == 0 {
		o.CriterionScoreThreshold = 7
	}
	if o.CallTimeout == 0 {
		o.CallTimeout = 120 * time.Second
	}
	return o
}

// Runner executes single-image runs. It holds no per-run state: one Runner is
// safe to share across concurrent runs.
type Runner struct {
	LLM     providers.LLMClient
	OCR     providers.OCRProvider // required only when Options.UseOCR
	Logger  *slog.Logger
	Options Options
}

// Input is one image to process against a contract and criteria set. The
// contract and criteria are read-only for the duration of the run.
type Input struct {
	ImagePath string
	Contract  *contract.Contract
	Criteria  []criteria.Definition
}

// Result is the outcome of a completed run. Met=false with a candidate means
// the correction budget ran out: a deliberate best-effort return rather than
// a failure, so the caller decides how to act.
type Result struct {
	RunID     string             `json:"run_id"`
	Candidate contract.Candidate `json:"candidate"`
	Report    *criteria.Report   `json:"report"`
	Attempts  int                `json:"attempts"`
	Met       bool               `json:"met"`
}

// runState is the per-invocation working state. Created per run, never
// persisted, discarded after the run returns.
type runState struct {
	image        *imaging.Image
	ocrText      string
	ocrBlocks    []providers.OCRBlock
	extracted    contract.Candidate
	descriptions []string
	candidate    contract.Candidate
	report       *criteria.Report
	attempts     int
}

// Run executes the state machine for one image. Fatal input/service errors
// return a nil Result; budget exhaustion returns Met=false with the
// best-effort candidate and the final report.
func (r *Runner) Run(ctx context.Context, in Input) (*Result, error) {
	opts := r.Options.withDefaults()
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.New().String()
	logger = logger.With("run_id", runID, "image", in.ImagePath)

	if err := criteria.ValidateDefinitions(in.Criteria, in.Contract); err != nil {
		return nil, &InputError{Path: in.ImagePath, Err: err}
	}

	rs := &runState{}
	state := StateConvertFormat

	for !state.Terminal() {
		// Cancellation takes effect at transition boundaries; an in-flight
		// capability call is bounded by its own timeout instead.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var err error
		switch state {
		case StateConvertFormat:
			err = r.convertFormat(rs, in)
		case StateExtractOCR:
			err = r.extractOCR(ctx, rs, opts)
		case StateExtractLLM:
			err = r.extractLLM(ctx, rs, in, opts)
		case StateDescribeImages:
			r.describeImages(ctx, rs, in, opts, logger)
		case StateAggregate:
			rs.candidate = extract.Aggregate(in.Contract, rs.extracted, rs.ocrText, rs.descriptions)
		case StateCheckCriteria:
			err = r.checkCriteria(ctx, rs, in, opts)
		case StateCorrect:
			r.correct(ctx, rs, in, opts, logger)
		}
		if err != nil {
			logger.Error("run failed", "state", state.String(), "error", err)
			return nil, err
		}

		nextState := next(state, opts.UseOCR, rs.report, rs.attempts, opts.MaxCorrection, opts.CriteriaMetPerc)
		logger.Debug("state transition", "from", state.String(), "to", nextState.String())
		state = nextState
	}

	met := rs.report.Met(opts.CriteriaMetPerc)
	logger.Info("run complete",
		"met", met,
		"attempts", rs.attempts,
		"pass_fraction", rs.report.PassFraction())

	return &Result{
		RunID:     runID,
		Candidate: rs.candidate,
		Report:    rs.report,
		Attempts:  rs.attempts,
		Met:       met,
	}, nil
}

func (r *Runner) convertFormat(rs *runState, in Input) error {
	img, err := imaging.Convert(in.ImagePath)
	if err != nil {
		return &InputError{Path: in.ImagePath, Err: err}
	}
	rs.image = img
	return nil
}

func (r *Runner) extractOCR(ctx context.Context, rs *runState, opts Options) error {
	callCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
	defer cancel()

	result, err := r.OCR.ProcessImage(callCtx, rs.image.PNG, 1)
	if err != nil {
		return &ServiceError{Capability: "ocr", Err: err}
	}
	rs.ocrText = result.Text
	rs.ocrBlocks = result.Blocks
	return nil
}

func (r *Runner) extractLLM(ctx context.Context, rs *runState, in Input, opts Options) error {
	req, err := extract.BuildRequest(extract.Input{
		Image:    rs.image.PNG,
		OCRText:  rs.ocrText,
		Contract: in.Contract,
		Model:    opts.ExtractModel,
	})
	if err != nil {
		return &ServiceError{Capability: "extract", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
	defer cancel()

	parsed, _, err := providers.StructuredChat(callCtx, r.LLM, req)
	if err != nil {
		return &ServiceError{Capability: "extract", Err: err}
	}

	cand, err := contract.ParseCandidate(parsed)
	if err != nil {
		return &ServiceError{Capability: "extract", Err: err}
	}
	rs.extracted = cand
	return nil
}

// describeImages runs only when the contract declares a description sink.
// It enriches the candidate rather than defining it, so a failed call
// degrades to an empty description list instead of aborting the run.
func (r *Runner) describeImages(ctx context.Context, rs *runState, in Input, opts Options, logger *slog.Logger) {
	if len(in.Contract.FieldsWithSource(contract.SourceDescriptions)) == 0 {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
	defer cancel()

	req := extract.BuildDescriptionRequest(rs.image.PNG, opts.ExtractModel)
	parsed, _, err := providers.StructuredChat(callCtx, r.LLM, req)
	if err != nil {
		logger.Warn("figure description failed, continuing without", "error", err)
		return
	}
	descriptions, err := extract.ParseDescriptions(parsed)
	if err != nil {
		logger.Warn("figure description unparseable, continuing without", "error", err)
		return
	}
	rs.descriptions = descriptions
}

// checkCriteria fully recomputes the report. No scores are reused across
// rounds.
func (r *Runner) checkCriteria(ctx context.Context, rs *runState, in Input, opts Options) error {
	callCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
	defer cancel()

	evaluator := &criteria.Evaluator{
		Client:    r.LLM,
		Model:     opts.CheckerModel,
		Threshold: opts.CriterionScoreThreshold,
	}
	report, err := evaluator.Evaluate(callCtx, rs.image.PNG, rs.candidate, in.Criteria)
	if err != nil {
		return &ServiceError{Capability: "evaluate", Err: err}
	}
	rs.report = report
	return nil
}
