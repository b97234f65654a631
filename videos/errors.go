package videos

import (
	"errors"
	"fmt"
)

// WaitOutcome identifies why a poll session ended without a completed job.
// Failed is a job state; TimedOut and Canceled are session-local outcomes.
type WaitOutcome int

const (
	// OutcomeFailed means the job itself reported failure.
	OutcomeFailed WaitOutcome = iota

	// OutcomeTimedOut means the session's wall-clock budget ran out,
	// measured from the start of the wait, independent of job age.
	OutcomeTimedOut

	// OutcomeCanceled means the caller's context was cancelled. The
	// session is over; no further fetches are attempted.
	OutcomeCanceled
)

// String returns the outcome name for logging.
func (o WaitOutcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// WaitError is the terminal failure of a poll session. The three outcomes
// are distinct and none is retried internally.
type WaitError struct {
	Outcome WaitOutcome
	JobID   string
	Message string
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("videos: job %s %s: %s", e.JobID, e.Outcome, e.Message)
}

// AsWaitError unwraps a *WaitError from an error chain.
func AsWaitError(err error) (*WaitError, bool) {
	var waitErr *WaitError
	if errors.As(err, &waitErr) {
		return waitErr, true
	}
	return nil, false
}

// IsTimedOut reports whether err is a poll-session timeout.
func IsTimedOut(err error) bool {
	waitErr, ok := AsWaitError(err)
	return ok && waitErr.Outcome == OutcomeTimedOut
}

// IsCanceled reports whether err is a cancelled poll session.
func IsCanceled(err error) bool {
	waitErr, ok := AsWaitError(err)
	return ok && waitErr.Outcome == OutcomeCanceled
}

// IsJobFailed reports whether err carries a job-reported failure.
func IsJobFailed(err error) bool {
	waitErr, ok := AsWaitError(err)
	return ok && waitErr.Outcome == OutcomeFailed
}
