package viewer

import (
	"context"
	"errors"
	"time"

	"github.com/carlaviz/startpositions/internal/carla"
)

// OutcomeKind says what the loop does after an attempt.
type OutcomeKind int

const (
	// Success ends the loop.
	Success OutcomeKind = iota
	// Retry waits Delay and tries again.
	Retry
	// Stop waits Delay and ends the loop without an error.
	Stop
	// Abort ends the loop with Err.
	Abort
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Retry:
		return "retry"
	case Stop:
		return "stop"
	case Abort:
		return "abort"
	}
	return "unknown"
}

// Outcome is the classified result of an attempt.
type Outcome struct {
	Kind  OutcomeKind
	Delay time.Duration
	Err   error
}

// Classify maps an attempt error to an outcome. Connection failures are
// retried and invalid positions stop the run. Anything else aborts it,
// including cancellation and a reply that does not decode.
func Classify(err error, backoff time.Duration) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: Success}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Outcome{Kind: Abort, Err: err}
	case errors.Is(err, carla.ErrMalformedMessage):
		return Outcome{Kind: Abort, Err: err}
	case errors.Is(err, carla.ErrConnection):
		return Outcome{Kind: Retry, Delay: backoff, Err: err}
	case errors.Is(err, ErrInvalidPosition):
		return Outcome{Kind: Stop, Delay: backoff, Err: err}
	}
	return Outcome{Kind: Abort, Err: err}
}

// Run repeats Attempt until it succeeds, stops or aborts. A stop returns
// nil; cancellation returns the context error.
func (v *Viewer) Run(ctx context.Context) error {
	for {
		v.opts.Metrics.Attempt(ctx)
		_, err := v.Attempt(ctx)
		out := Classify(err, v.opts.Backoff)

		switch out.Kind {
		case Success:
			v.logger.Info("Done.")
			return nil
		case Retry:
			v.logger.Error("connection failed", "error", out.Err, "attempt", v.Attempts(), "retry_in", out.Delay)
			v.opts.Metrics.Retry(ctx)
			if err := v.opts.Sleep(ctx, out.Delay); err != nil {
				return err
			}
		case Stop:
			v.logger.Error("Position selected is invalid", "error", out.Err)
			return v.opts.Sleep(ctx, out.Delay)
		default:
			return out.Err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
