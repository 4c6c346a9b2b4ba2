package extract

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/structocr/structocr/internal/contract"
)

func TestAggregate(t *testing.T) {
	ct := testContract()
	extracted := contract.Candidate{
		"number":       "INV-1",
		"seller":       map[string]any{"name": "ACME", "city": "Springfield", "junk": 1},
		"hallucinated": true,
		"raw_text":     "model's own guess",
	}

	out := Aggregate(ct, extracted, "INVOICE 1234", []string{"logo top-left"})

	if out["number"] != "INV-1" {
		t.Errorf("number = %v", out["number"])
	}
	if _, ok := out["hallucinated"]; ok {
		t.Error("undeclared field survived aggregation")
	}
	if _, ok := out["seller"].(map[string]any)["junk"]; ok {
		t.Error("undeclared nested field survived aggregation")
	}

	// Source-annotated fields are filled from their inputs, overriding the
	// extraction output.
	if out["raw_text"] != "INVOICE 1234" {
		t.Errorf("raw_text = %v, want OCR text", out["raw_text"])
	}
	if !reflect.DeepEqual(out["figures"], []any{"logo top-left"}) {
		t.Errorf("figures = %v", out["figures"])
	}
}

func TestAggregateNoOCRText(t *testing.T) {
	ct := testContract()
	out := Aggregate(ct, contract.Candidate{"number": "INV-1"}, "", nil)

	// Without OCR text the sink is left to the extraction output (absent here).
	if _, ok := out["raw_text"]; ok {
		t.Errorf("raw_text = %v, want absent", out["raw_text"])
	}
	// Description sinks always materialize, possibly empty.
	if figures, ok := out["figures"].([]any); !ok || len(figures) != 0 {
		t.Errorf("figures = %v, want empty list", out["figures"])
	}
}

func TestAggregateDoesNotMutateInputs(t *testing.T) {
	ct := testContract()
	extracted := contract.Candidate{
		"number": "INV-1",
		"seller": map[string]any{"name": "ACME"},
	}
	snapshot, _ := json.Marshal(extracted)

	out := Aggregate(ct, extracted, "ocr", []string{"fig"})
	out["number"] = "mutated"
	out["seller"].(map[string]any)["name"] = "mutated"

	after, _ := json.Marshal(extracted)
	if string(snapshot) != string(after) {
		t.Errorf("Aggregate shares state with its input: %s != %s", snapshot, after)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	ct := testContract()
	extracted := contract.Candidate{
		"number": "INV-1",
		"seller": map[string]any{"name": "ACME", "city": "Springfield"},
	}

	a, _ := json.Marshal(Aggregate(ct, extracted, "ocr", []string{"f1", "f2"}))
	b, _ := json.Marshal(Aggregate(ct, extracted, "ocr", []string{"f1", "f2"}))
	if string(a) != string(b) {
		t.Errorf("Aggregate not deterministic:\n%s\n%s", a, b)
	}
}

func TestParseDescriptions(t *testing.T) {
	got, err := ParseDescriptions(json.RawMessage(`{"descriptions":["a chart","a photo"]}`))
	if err != nil {
		t.Fatalf("ParseDescriptions: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a chart", "a photo"}) {
		t.Errorf("descriptions = %v", got)
	}

	if _, err := ParseDescriptions(json.RawMessage(`[1,2]`)); err == nil {
		t.Error("expected error for non-object JSON")
	}
}

func TestBuildDescriptionRequest(t *testing.T) {
	req := BuildDescriptionRequest([]byte("png"), "vision-model")
	if req.Model != "vision-model" {
		t.Errorf("model = %q", req.Model)
	}
	if len(req.Messages[1].Images) != 1 {
		t.Error("source image not attached")
	}
	if req.ResponseFormat == nil {
		t.Fatal("missing response format")
	}
	var envelope struct {
		Schema struct {
			Required []string `json:"required"`
		} `json:"schema"`
	}
	if err := json.Unmarshal(req.ResponseFormat.JSONSchema, &envelope); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if len(envelope.Schema.Required) != 1 || envelope.Schema.Required[0] != "descriptions" {
		t.Errorf("required = %v", envelope.Schema.Required)
	}
}
