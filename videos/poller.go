package videos

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Polling defaults. Video jobs run for minutes; a 10-second interval keeps
// request volume low without noticeably delaying completion detection.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultPollTimeout  = 10 * time.Minute
)

// defaultFailureMessage is attached to a failed job that carries no error
// report of its own.
const defaultFailureMessage = "video generation failed"

// PollOptions configures one wait session.
type PollOptions struct {
	// Interval is the sleep between status fetches.
	Interval time.Duration

	// Timeout is the session's wall-clock budget, measured from the start
	// of the wait, independent of the server-reported job age.
	Timeout time.Duration
}

// withDefaults fills unset options.
func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultPollTimeout
	}
	return o
}

// WaitForCompletion polls a job until it reaches a terminal state.
//
// The loop is strictly sequential: one status fetch at a time, separated
// by the poll interval. Each iteration first honors cancellation (a
// context that is already done produces OutcomeCanceled without issuing a
// request), then the session timeout, then fetches. The context is also
// threaded into the fetch so an in-flight request aborts mid-transfer.
//
// Returns the completed job, or a *WaitError for the three terminal
// failure outcomes (job failure, session timeout, cancellation). Fetch
// errors from the dispatcher propagate as-is. Nothing is retried.
func (s *Service) WaitForCompletion(ctx context.Context, jobID string, opts PollOptions) (*Job, error) {
	opts = opts.withDefaults()
	start := time.Now()

	logger := s.logger.With(zap.String("job_id", jobID))
	logger.Debug("poll session started",
		zap.Duration("interval", opts.Interval),
		zap.Duration("timeout", opts.Timeout),
	)

	for {
		select {
		case <-ctx.Done():
			return nil, &WaitError{
				Outcome: OutcomeCanceled,
				JobID:   jobID,
				Message: ctx.Err().Error(),
			}
		default:
		}

		elapsed := time.Since(start)
		if elapsed > opts.Timeout {
			return nil, &WaitError{
				Outcome: OutcomeTimedOut,
				JobID:   jobID,
				Message: "no terminal state within " + opts.Timeout.String(),
			}
		}

		job, err := s.Retrieve(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch job.Status {
		case StatusCompleted:
			logger.Info("job completed", zap.Duration("elapsed", elapsed))
			return job, nil
		case StatusFailed:
			message := defaultFailureMessage
			if job.Error != nil && job.Error.Message != "" {
				message = job.Error.Message
			}
			return nil, &WaitError{
				Outcome: OutcomeFailed,
				JobID:   jobID,
				Message: message,
			}
		}

		// Informational only: a linear extrapolation of time remaining.
		// It drives no control-flow decision.
		progress := job.ProgressPercent()
		if progress > 0 && progress < 100 {
			estimatedTotal := time.Duration(float64(elapsed) / progress * 100)
			logger.Debug("job in progress",
				zap.String("status", string(job.Status)),
				zap.Float64("progress", progress),
				zap.Duration("estimated_remaining", estimatedTotal-elapsed),
			)
		} else {
			logger.Debug("job in progress", zap.String("status", string(job.Status)))
		}

		if err := sleepCtx(ctx, opts.Interval); err != nil {
			return nil, &WaitError{
				Outcome: OutcomeCanceled,
				JobID:   jobID,
				Message: err.Error(),
			}
		}
	}
}

// sleepCtx suspends for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
