package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrAllAttemptsFailed is matched by every AttemptError
var ErrAllAttemptsFailed = errors.New("all attempts failed")

// Failure is one candidate that was tried and failed
type Failure struct {
	Candidate string
	Err       error
}

// AttemptError is returned when no candidate succeeded
type AttemptError struct {
	Failures []Failure
}

func (e *AttemptError) Error() string {
	if len(e.Failures) == 0 {
		return "all attempts failed: no candidates"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Candidate, f.Err))
	}
	return "all attempts failed: " + strings.Join(parts, "; ")
}

func (e *AttemptError) Unwrap() []error {
	errs := []error{ErrAllAttemptsFailed}
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// AttemptInOrder tries candidates sequentially and stops at the first success.
// Failures are returned in the order they happened, whether or not a later
// candidate succeeded.
func AttemptInOrder[C any, R any](
	ctx context.Context,
	candidates []C,
	label func(C) string,
	try func(context.Context, C) (R, error),
) (R, []Failure, error) {
	var zero R
	var failures []Failure

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			failures = append(failures, Failure{Candidate: label(c), Err: err})
			return zero, failures, &AttemptError{Failures: failures}
		}

		result, err := try(ctx, c)
		if err == nil {
			return result, failures, nil
		}
		failures = append(failures, Failure{Candidate: label(c), Err: err})
	}

	return zero, failures, &AttemptError{Failures: failures}
}
