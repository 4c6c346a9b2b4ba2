package workflow

import (
	"errors"
	"fmt"
)

// InputError means the image was unreadable or malformed. The run aborts
// immediately with no partial candidate.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("unreadable input %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// ServiceError means an OCR or LLM capability call failed: transport, auth,
// rate limit, timeout, or output that could not be coerced to the requested
// contract after repair. Fatal on the initial extraction; correction rounds
// degrade to a no-op instead.
type ServiceError struct {
	Capability string // "ocr", "extract", "describe", "evaluate"
	Err        error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s capability failed: %v", e.Capability, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ErrBudgetExhausted marks runs that returned a best-effort candidate after
// the correction budget ran out. Run itself does not return it: budget
// exhaustion is a Met=false success, and callers that want to treat it as a
// failure can check Result.Met.
var ErrBudgetExhausted = errors.New("correction budget exhausted")

// IsInputError reports whether err is (or wraps) an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// IsServiceError reports whether err is (or wraps) a ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
