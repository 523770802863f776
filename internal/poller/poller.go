// Package poller drives an asynchronous remote transcription job to a terminal status.
package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/jonathan/transcript-pipeline/internal/retry"
)

// RemoteState is the status reported by the transcription service.
type RemoteState string

// Remote states. Completed and failed are terminal.
const (
	StateQueued     RemoteState = "queued"
	StateProcessing RemoteState = "processing"
	StateCompleted  RemoteState = "completed"
	StateFailed     RemoteState = "failed"
)

// IsTerminal reports whether polling should stop at this state.
func (s RemoteState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Status is one status response for a remote job.
type Status struct {
	JobID   string
	State   RemoteState
	Error   string
	Payload json.RawMessage
}

// StatusClient queries the remote status of a submitted job.
type StatusClient interface {
	GetStatus(ctx context.Context, jobID string) (*Status, error)
}

// Policy configures the multiplicative poll backoff: delay = min(Interval * Factor^n, MaxDelay).
// It is independent from retry.Policy.
type Policy struct {
	Interval    time.Duration
	Factor      float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// Delay returns the wait after the n-th poll (1-based). A MaxDelay of zero disables the cap.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 1
	}
	d := float64(p.Interval) * math.Pow(factor, float64(n))
	if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Poller repeatedly queries a StatusClient until a terminal status or the poll limit.
type Poller struct {
	client StatusClient
	policy Policy
	logger *slog.Logger
	sleep  retry.Sleeper
	onPoll func(jobID string, attempt int, state RemoteState)
}

// Option customizes a Poller.
type Option func(*Poller)

// WithSleeper replaces the timer-based sleep, mainly for tests.
func WithSleeper(s retry.Sleeper) Option {
	return func(p *Poller) { p.sleep = s }
}

// WithOnPoll registers a callback invoked after every status query.
func WithOnPoll(fn func(jobID string, attempt int, state RemoteState)) Option {
	return func(p *Poller) { p.onPoll = fn }
}

// New creates a Poller.
func New(client StatusClient, policy Policy, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		client: client,
		policy: policy,
		logger: logger,
		sleep:  retry.SleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy returns the configured backoff policy.
func (p *Poller) Policy() Policy {
	return p.policy
}

// Poll blocks until jobID reaches a terminal status.
// It returns *RemoteFailureError when the service reports failure and *TimeoutError
// when MaxAttempts polls did not observe a terminal status. A failed status query
// counts as a poll and polling continues.
func (p *Poller) Poll(ctx context.Context, jobID string) (*Status, error) {
	maxAttempts := p.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastState RemoteState
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		st, err := p.client.GetStatus(ctx, jobID)
		if err == nil && st == nil {
			err = ErrEmptyStatus
		}
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			p.logger.Warn("status query failed", "job_id", jobID, "attempt", attempt, "error", err)
		default:
			lastErr = nil
			lastState = st.State
			if p.onPoll != nil {
				p.onPoll(jobID, attempt, st.State)
			}
			p.logger.Debug("polled remote job", "job_id", jobID, "attempt", attempt, "status", st.State)

			if st.State.IsTerminal() {
				if st.State == StateFailed {
					return nil, &RemoteFailureError{JobID: jobID, Detail: st.Error}
				}
				return st, nil
			}
		}

		if attempt == maxAttempts {
			break
		}
		if err := p.sleep(ctx, p.policy.Delay(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, &TimeoutError{JobID: jobID, Attempts: maxAttempts, LastState: lastState, LastErr: lastErr}
}
