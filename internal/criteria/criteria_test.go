package criteria

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/structocr/structocr/internal/contract"
)

func testContract() *contract.Contract {
	return &contract.Contract{
		Name: "person",
		Fields: []contract.Field{
			{Name: "name", Kind: contract.KindString},
			{Name: "address", Kind: contract.KindObject, Fields: []contract.Field{
				{Name: "city", Kind: contract.KindString},
			}},
		},
	}
}

func report(passes ...bool) *Report {
	r := &Report{}
	for i, p := range passes {
		score := 3
		if p {
			score = 9
		}
		r.Results = append(r.Results, Result{
			Name:      string(rune('a' + i)),
			Score:     score,
			Threshold: 7,
			Pass:      p,
		})
	}
	return r
}

func TestReportPassFraction(t *testing.T) {
	cases := []struct {
		name   string
		report *Report
		want   float64
	}{
		{"empty report trivially passes", &Report{}, 100},
		{"all passing", report(true, true), 100},
		{"none passing", report(false, false), 0},
		{"four of five", report(true, true, true, true, false), 80},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.report.PassFraction(); got != tc.want {
				t.Errorf("PassFraction = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestReportMet(t *testing.T) {
	r := report(true, true, true, true, false) // 80%
	if !r.Met(80) {
		t.Error("80%% should meet criteria_met_perc=80")
	}
	if r.Met(81) {
		t.Error("80%% should not meet criteria_met_perc=81")
	}
	if !(&Report{}).Met(100) {
		t.Error("empty report should meet any percentage")
	}
}

func TestReportFailing(t *testing.T) {
	r := report(true, false, true, false)
	failing := r.Failing()
	if len(failing) != 2 {
		t.Fatalf("Failing() = %v", failing)
	}
	// Report order is preserved.
	if failing[0].Name != "b" || failing[1].Name != "d" {
		t.Errorf("failing order = %v", failing)
	}
}

func TestValidateDefinitions(t *testing.T) {
	ct := testContract()

	good := []Definition{
		{Name: "complete", Description: "all fields present", Fields: []string{"name", "address.city"}},
		{Name: "overall", Description: "whole document plausible"},
	}
	if err := ValidateDefinitions(good, ct); err != nil {
		t.Fatalf("valid definitions rejected: %v", err)
	}

	bad := []struct {
		name string
		defs []Definition
	}{
		{"empty name", []Definition{{Description: "d"}}},
		{"no description", []Definition{{Name: "a"}}},
		{"duplicate name", []Definition{
			{Name: "a", Description: "d"},
			{Name: "a", Description: "d"},
		}},
		{"unresolvable field", []Definition{
			{Name: "a", Description: "d", Fields: []string{"address.zip"}},
		}},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateDefinitions(tc.defs, ct); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "criteria.yaml")
	data := `- name: name_complete
  description: the name matches the document
  fields: [name]
- name: overall
  description: the extraction is plausible
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	defs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(defs) != 2 || defs[0].Fields[0] != "name" || len(defs[1].Fields) != 0 {
		t.Errorf("parsed definitions = %+v", defs)
	}
}
