package workflow

import (
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/structocr/structocr/internal/contract"
	"github.com/structocr/structocr/internal/criteria"
	"github.com/structocr/structocr/internal/providers"
)

func testImagePath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return path
}

func bookContract() *contract.Contract {
	return &contract.Contract{
		Name: "book",
		Fields: []contract.Field{
			{Name: "title", Kind: contract.KindString},
			{Name: "author", Kind: contract.KindString},
		},
	}
}

func accuracyCriteria() []criteria.Definition {
	return []criteria.Definition{
		{Name: "accuracy", Description: "the title matches the page", Fields: []string{"title"}},
	}
}

func testRunner(mock *providers.MockClient, opts Options) *Runner {
	return &Runner{
		LLM:     mock,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Options: opts,
	}
}

func passingScore() map[string]any {
	return map[string]any{"accuracy": 9, "reasons": ""}
}

func failingScore(reasons string) map[string]any {
	return map[string]any{"accuracy": 4, "reasons": reasons}
}

func TestRunFirstPassMeetsCriteria(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(map[string]any{"title": "Go Programming", "author": "A. Donovan"})
	mock.Enqueue(passingScore())

	r := testRunner(mock, Options{MaxCorrection: 3})
	result, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  bookContract(),
		Criteria:  accuracyCriteria(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Met {
		t.Error("Met = false")
	}
	if result.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", result.Attempts)
	}
	if result.Candidate["title"] != "Go Programming" {
		t.Errorf("candidate = %v", result.Candidate)
	}
	if result.RunID == "" {
		t.Error("RunID not assigned")
	}
	// Extraction + one evaluation, no correction call.
	if mock.CallCount() != 2 {
		t.Errorf("calls = %d, want 2", mock.CallCount())
	}
}

func TestRunCorrectionImprovesCandidate(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(map[string]any{"title": "Go Programing", "author": "A. Donovan"})
	mock.Enqueue(failingScore("title misspelled"))
	mock.Enqueue(map[string]any{"title": "Go Programming"}) // scoped correction
	mock.Enqueue(passingScore())

	r := testRunner(mock, Options{MaxCorrection: 3})
	result, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  bookContract(),
		Criteria:  accuracyCriteria(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Met || result.Attempts != 1 {
		t.Errorf("Met = %v, Attempts = %d", result.Met, result.Attempts)
	}
	if result.Candidate["title"] != "Go Programming" {
		t.Errorf("title = %v", result.Candidate["title"])
	}
	if result.Candidate["author"] != "A. Donovan" {
		t.Error("out-of-scope field was touched by correction")
	}

	// Correction writes stay within the failing criteria's linked paths.
	initial := contract.Candidate{"title": "Go Programing", "author": "A. Donovan"}
	for _, path := range contract.DiffPaths(initial, result.Candidate) {
		if path != "title" {
			t.Errorf("correction modified out-of-scope path %q", path)
		}
	}

	// The correction call is scoped: its schema only carries the failing field.
	reqs := mock.Requests()
	correction := reqs[2]
	if schema := string(correction.ResponseFormat.JSONSchema); !strings.Contains(schema, "title") || strings.Contains(schema, "author") {
		t.Errorf("correction schema not scoped: %s", schema)
	}
}

func TestRunBudgetExhaustion(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(map[string]any{"title": "wrong", "author": "A"})
	mock.Enqueue(failingScore("still wrong"))
	mock.Enqueue(map[string]any{"title": "wrong again"})
	mock.Enqueue(failingScore("still wrong"))
	mock.Enqueue(map[string]any{"title": "wrong once more"})
	mock.Enqueue(failingScore("still wrong"))

	r := testRunner(mock, Options{MaxCorrection: 2})
	result, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  bookContract(),
		Criteria:  accuracyCriteria(),
	})
	if err != nil {
		t.Fatalf("budget exhaustion must not be an error: %v", err)
	}

	if result.Met {
		t.Error("Met = true after exhaustion")
	}
	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", result.Attempts)
	}
	// Best-effort candidate and final report are returned.
	if result.Candidate["title"] != "wrong once more" {
		t.Errorf("candidate = %v", result.Candidate)
	}
	if result.Report == nil || len(result.Report.Failing()) != 1 {
		t.Errorf("report = %+v", result.Report)
	}
	// extraction + (corrections+1) evaluations + corrections = 6
	if mock.CallCount() != 6 {
		t.Errorf("calls = %d, want 6", mock.CallCount())
	}
}

func TestRunZeroCorrectionBudget(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(map[string]any{"title": "wrong", "author": "A"})
	mock.Enqueue(failingScore("wrong"))

	r := testRunner(mock, Options{MaxCorrection: 0})
	result, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  bookContract(),
		Criteria:  accuracyCriteria(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Exactly one evaluation, no correction.
	if result.Met || result.Attempts != 0 {
		t.Errorf("Met = %v, Attempts = %d", result.Met, result.Attempts)
	}
	if mock.CallCount() != 2 {
		t.Errorf("calls = %d, want 2", mock.CallCount())
	}
}

func TestRunNoCriteria(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(map[string]any{"title": "T", "author": "A"})

	r := testRunner(mock, Options{MaxCorrection: 3})
	result, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  bookContract(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Met || result.Attempts != 0 {
		t.Errorf("Met = %v, Attempts = %d", result.Met, result.Attempts)
	}
	// The empty criteria set skips the checker network call entirely.
	if mock.CallCount() != 1 {
		t.Errorf("calls = %d, want 1", mock.CallCount())
	}
}

func TestRunUnreadableImage(t *testing.T) {
	mock := providers.NewMockClient()
	r := testRunner(mock, Options{})

	_, err := r.Run(context.Background(), Input{
		ImagePath: filepath.Join(t.TempDir(), "missing.png"),
		Contract:  bookContract(),
	})
	if !IsInputError(err) {
		t.Errorf("err = %v, want InputError", err)
	}
	if mock.CallCount() != 0 {
		t.Error("no service calls expected for unreadable input")
	}
}

func TestRunInvalidCriteria(t *testing.T) {
	mock := providers.NewMockClient()
	r := testRunner(mock, Options{})

	_, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  bookContract(),
		Criteria: []criteria.Definition{
			{Name: "bad", Description: "links a missing field", Fields: []string{"publisher"}},
		},
	})
	if !IsInputError(err) {
		t.Errorf("err = %v, want InputError", err)
	}
}

func TestRunExtractionFailureIsFatal(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ShouldFail = true

	r := testRunner(mock, Options{})
	_, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  bookContract(),
	})
	if !IsServiceError(err) {
		t.Fatalf("err = %v, want ServiceError", err)
	}
	var se *ServiceError
	if errors.As(err, &se); se.Capability != "extract" {
		t.Errorf("capability = %q", se.Capability)
	}
}

func TestRunEvaluationFailureIsFatal(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(map[string]any{"title": "T", "author": "A"})
	mock.FailAfter = 1

	r := testRunner(mock, Options{MaxCorrection: 3})
	_, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  bookContract(),
		Criteria:  accuracyCriteria(),
	})
	if !IsServiceError(err) {
		t.Fatalf("err = %v, want ServiceError", err)
	}
	var se *ServiceError
	if errors.As(err, &se); se.Capability != "evaluate" {
		t.Errorf("capability = %q", se.Capability)
	}
}

func TestRunFailedCorrectionDegradesToNoOp(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(map[string]any{"title": "wrong", "author": "A"})
	mock.Enqueue(failingScore("wrong"))
	mock.EnqueueError(io.ErrUnexpectedEOF) // correction call dies
	mock.Enqueue(failingScore("still wrong"))

	r := testRunner(mock, Options{MaxCorrection: 1})
	result, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  bookContract(),
		Criteria:  accuracyCriteria(),
	})
	if err != nil {
		t.Fatalf("a failed correction round must not abort the run: %v", err)
	}

	// The round still consumed budget and left the candidate unchanged.
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if result.Candidate["title"] != "wrong" {
		t.Errorf("candidate changed by failed correction: %v", result.Candidate)
	}
	if result.Met {
		t.Error("Met = true")
	}
}

func TestRunWithOCR(t *testing.T) {
	ct := &contract.Contract{
		Name: "page",
		Fields: []contract.Field{
			{Name: "title", Kind: contract.KindString},
			{Name: "raw_text", Kind: contract.KindString, Source: contract.SourceOCRText, Optional: true},
		},
	}

	mock := providers.NewMockClient()
	mock.Enqueue(map[string]any{"title": "T", "raw_text": "model guess"})
	ocr := &providers.MockOCRProvider{Text: "THE REAL PAGE TEXT"}

	r := testRunner(mock, Options{UseOCR: true, MaxCorrection: 3})
	r.OCR = ocr

	result, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  ct,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ocr.CallCount() != 1 {
		t.Errorf("ocr calls = %d", ocr.CallCount())
	}
	// The extraction prompt carries the OCR text, and the sink field holds it.
	if reqs := mock.Requests(); !strings.Contains(reqs[0].Messages[1].Content, "THE REAL PAGE TEXT") {
		t.Error("OCR text missing from extraction prompt")
	}
	if result.Candidate["raw_text"] != "THE REAL PAGE TEXT" {
		t.Errorf("raw_text = %v", result.Candidate["raw_text"])
	}
}

func TestRunOCRFailureIsFatal(t *testing.T) {
	mock := providers.NewMockClient()
	r := testRunner(mock, Options{UseOCR: true})
	r.OCR = &providers.MockOCRProvider{ShouldFail: true}

	_, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  bookContract(),
	})
	if !IsServiceError(err) {
		t.Fatalf("err = %v, want ServiceError", err)
	}
	var se *ServiceError
	if errors.As(err, &se); se.Capability != "ocr" {
		t.Errorf("capability = %q", se.Capability)
	}
	if mock.CallCount() != 0 {
		t.Error("extraction should not run after a fatal OCR failure")
	}
}

func TestRunDescribesFiguresWhenContractAsks(t *testing.T) {
	ct := &contract.Contract{
		Name: "page",
		Fields: []contract.Field{
			{Name: "title", Kind: contract.KindString},
			{Name: "figures", Kind: contract.KindArray, Source: contract.SourceDescriptions, Optional: true,
				Items: &contract.Field{Kind: contract.KindString}},
		},
	}

	mock := providers.NewMockClient()
	mock.Enqueue(map[string]any{"title": "T", "figures": []string{}})
	mock.Enqueue(map[string]any{"descriptions": []string{"bar chart, top right"}})

	r := testRunner(mock, Options{MaxCorrection: 3})
	result, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  ct,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	figures, ok := result.Candidate["figures"].([]any)
	if !ok || len(figures) != 1 || figures[0] != "bar chart, top right" {
		t.Errorf("figures = %v", result.Candidate["figures"])
	}
}

func TestRunDescriptionFailureDegrades(t *testing.T) {
	ct := &contract.Contract{
		Name: "page",
		Fields: []contract.Field{
			{Name: "title", Kind: contract.KindString},
			{Name: "figures", Kind: contract.KindArray, Source: contract.SourceDescriptions, Optional: true,
				Items: &contract.Field{Kind: contract.KindString}},
		},
	}

	mock := providers.NewMockClient()
	mock.Enqueue(map[string]any{"title": "T", "figures": []string{}})
	mock.EnqueueError(io.ErrUnexpectedEOF) // description call dies

	r := testRunner(mock, Options{MaxCorrection: 3})
	result, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  ct,
	})
	if err != nil {
		t.Fatalf("description failure must degrade, not abort: %v", err)
	}
	if figures, ok := result.Candidate["figures"].([]any); !ok || len(figures) != 0 {
		t.Errorf("figures = %v, want empty", result.Candidate["figures"])
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := testRunner(providers.NewMockClient(), Options{})
	if _, err := r.Run(ctx, Input{ImagePath: testImagePath(t), Contract: bookContract()}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

