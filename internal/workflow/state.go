package workflow

import "github.com/structocr/structocr/internal/criteria"

// State identifies one stage of the run state machine. The workflow is a
// linear pipeline with a single bounded correction loop, so an explicit enum
// plus a pure transition function is all the machinery needed.
type State int

const (
	StateConvertFormat State = iota
	StateExtractOCR
	StateExtractLLM
	StateDescribeImages
	StateAggregate
	StateCheckCriteria
	StateCorrect
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateConvertFormat:  "convert_format",
	StateExtractOCR:     "extract_ocr",
	StateExtractLLM:     "extract_llm",
	StateDescribeImages: "describe_images",
	StateAggregate:      "aggregate",
	StateCheckCriteria:  "check_criteria",
	StateCorrect:        "correct",
	StateDone:           "done",
	StateFailed:         "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// next is the pure transition function. At check_criteria it encodes the
// termination policy: done when the aggregate pass fraction meets
// criteriaMetPerc, correct while attempts remain, otherwise done with the
// best-effort result.
func next(s State, useOCR bool, report *criteria.Report, attempts, maxCorrection, criteriaMetPerc int) State {
	switch s {
	case StateConvertFormat:
		if useOCR {
			return StateExtractOCR
		}
		return StateExtractLLM
	case StateExtractOCR:
		return StateExtractLLM
	case StateExtractLLM:
		return StateDescribeImages
	case StateDescribeImages:
		return StateAggregate
	case StateAggregate:
		return StateCheckCriteria
	case StateCheckCriteria:
		if report.Met(criteriaMetPerc) {
			return StateDone
		}
		if attempts < maxCorrection {
			return StateCorrect
		}
		return StateDone
	case StateCorrect:
		return StateCheckCriteria
	default:
		return StateFailed
	}
}
