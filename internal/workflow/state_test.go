package workflow

import (
	"testing"

	"github.com/structocr/structocr/internal/criteria"
)

func reportWithPassFraction(passing, total int) *criteria.Report {
	r := &criteria.Report{}
	for i := 0; i < total; i++ {
		r.Results = append(r.Results, criteria.Result{Pass: i < passing})
	}
	return r
}

func TestNextLinearPath(t *testing.T) {
	cases := []struct {
		from   State
		useOCR bool
		want   State
	}{
		{StateConvertFormat, false, StateExtractLLM},
		{StateConvertFormat, true, StateExtractOCR},
		{StateExtractOCR, true, StateExtractLLM},
		{StateExtractLLM, false, StateDescribeImages},
		{StateDescribeImages, false, StateAggregate},
		{StateAggregate, false, StateCheckCriteria},
		{StateCorrect, false, StateCheckCriteria},
	}
	for _, tc := range cases {
		if got := next(tc.from, tc.useOCR, nil, 0, 3, 80); got != tc.want {
			t.Errorf("next(%v, useOCR=%v) = %v, want %v", tc.from, tc.useOCR, got, tc.want)
		}
	}
}

func TestNextCheckCriteria(t *testing.T) {
	met := reportWithPassFraction(4, 5)    // 80%
	unmet := reportWithPassFraction(2, 5)  // 40%

	cases := []struct {
		name          string
		report        *criteria.Report
		attempts      int
		maxCorrection int
		want          State
	}{
		{"met goes to done", met, 0, 3, StateDone},
		{"unmet with budget corrects", unmet, 0, 3, StateCorrect},
		{"unmet mid-budget corrects", unmet, 2, 3, StateCorrect},
		{"unmet at budget stops", unmet, 3, 3, StateDone},
		{"zero budget never corrects", unmet, 0, 0, StateDone},
		{"empty report trivially met", &criteria.Report{}, 0, 3, StateDone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := next(StateCheckCriteria, false, tc.report, tc.attempts, tc.maxCorrection, 80)
			if got != tc.want {
				t.Errorf("next = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStateTerminal(t *testing.T) {
	for s := StateConvertFormat; s <= StateCorrect; s++ {
		if s.Terminal() {
			t.Errorf("%v should not be terminal", s)
		}
	}
	if !StateDone.Terminal() || !StateFailed.Terminal() {
		t.Error("done and failed are terminal")
	}
}

func TestStateString(t *testing.T) {
	if StateCheckCriteria.String() != "check_criteria" {
		t.Errorf("String = %q", StateCheckCriteria.String())
	}
	if State(99).String() != "unknown" {
		t.Errorf("unknown state String = %q", State(99).String())
	}
}
