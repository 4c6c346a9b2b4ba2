package workflow

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/structocr/structocr/internal/criteria"
	"github.com/structocr/structocr/internal/providers"
)

func TestFailingFieldUnion(t *testing.T) {
	t.Run("ordered dedup", func(t *testing.T) {
		paths, whole := failingFieldUnion([]criteria.Result{
			{Name: "a", Fields: []string{"title", "seller.name"}},
			{Name: "b", Fields: []string{"seller.name", "total"}},
		})
		if whole {
			t.Error("wholeDocument = true")
		}
		if !reflect.DeepEqual(paths, []string{"title", "seller.name", "total"}) {
			t.Errorf("paths = %v", paths)
		}
	})

	t.Run("empty linkage forces whole document", func(t *testing.T) {
		paths, whole := failingFieldUnion([]criteria.Result{
			{Name: "a", Fields: []string{"title"}},
			{Name: "b"},
		})
		if !whole {
			t.Error("wholeDocument = false")
		}
		if !reflect.DeepEqual(paths, []string{"title"}) {
			t.Errorf("paths = %v", paths)
		}
	})

	t.Run("no failing criteria", func(t *testing.T) {
		paths, whole := failingFieldUnion(nil)
		if len(paths) != 0 || whole {
			t.Errorf("paths = %v, whole = %v", paths, whole)
		}
	})
}

func TestCorrectionFeedback(t *testing.T) {
	failing := []criteria.Result{
		{Name: "accuracy", Description: "the title matches the page", Score: 4, Threshold: 7},
	}
	got := correctionFeedback(failing, "title misread as 'Go Programing'", 7)

	if !strings.Contains(got, "the title matches the page was found to be inadequate (score: 4/7)") {
		t.Errorf("feedback = %q", got)
	}
	if !strings.Contains(got, "Reasons for correction: title misread") {
		t.Errorf("feedback = %q", got)
	}
}

func TestWholeDocumentCorrection(t *testing.T) {
	// A failing criterion with no field linkage re-extracts the whole document.
	mock := providers.NewMockClient()
	mock.Enqueue(map[string]any{"title": "bad", "author": "bad"})
	mock.Enqueue(map[string]any{"overall": 3, "reasons": "everything is off"})
	mock.Enqueue(map[string]any{"title": "Good Title", "author": "Good Author"})
	mock.Enqueue(map[string]any{"overall": 9, "reasons": ""})

	r := testRunner(mock, Options{MaxCorrection: 3})
	result, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  bookContract(),
		Criteria: []criteria.Definition{
			{Name: "overall", Description: "the extraction is plausible"},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Met || result.Attempts != 1 {
		t.Errorf("Met = %v, Attempts = %d", result.Met, result.Attempts)
	}
	if result.Candidate["title"] != "Good Title" || result.Candidate["author"] != "Good Author" {
		t.Errorf("candidate = %v", result.Candidate)
	}

	// The correction request carries the full contract schema, not a scope.
	correction := mock.Requests()[2]
	schema := string(correction.ResponseFormat.JSONSchema)
	if !strings.Contains(schema, "title") || !strings.Contains(schema, "author") {
		t.Errorf("whole-document correction schema narrowed: %s", schema)
	}
}

func TestCorrectionCarriesPriorAndFeedback(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(map[string]any{"title": "Go Programing", "author": "A. Donovan"})
	mock.Enqueue(map[string]any{"accuracy": 4, "reasons": "title misspelled"})
	mock.Enqueue(map[string]any{"title": "Go Programming"})
	mock.Enqueue(map[string]any{"accuracy": 9, "reasons": ""})

	r := testRunner(mock, Options{MaxCorrection: 3})
	if _, err := r.Run(context.Background(), Input{
		ImagePath: testImagePath(t),
		Contract:  bookContract(),
		Criteria:  accuracyCriteria(),
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	correction := mock.Requests()[2]
	user := correction.Messages[1].Content
	if !strings.Contains(user, "Go Programing") {
		t.Error("prior candidate missing from correction prompt")
	}
	if !strings.Contains(user, "title misspelled") {
		t.Error("checker rationale missing from correction prompt")
	}
	if !strings.Contains(user, "(score: 4/7)") {
		t.Error("failing score missing from correction prompt")
	}
}
