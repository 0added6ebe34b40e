package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mverdani/primanota/internal/domain"
)

// Launcher starts a batch reconciliation on the collaborator. The
// response carries either a task ID to poll or, when the collaborator
// only supports synchronous execution, the finished result directly.
type Launcher interface {
	LaunchReconciliation(ctx context.Context, period *domain.Period) (*LaunchResponse, error)
}

// StatusFetcher reads the current state of a launched job.
type StatusFetcher interface {
	ReconciliationStatus(ctx context.Context, taskID string) (*JobStatus, error)
}

// LaunchResponse is the background-or-sync launch contract.
type LaunchResponse struct {
	TaskID string                  `json:"task_id,omitempty"`
	Result *domain.ReconcileResult `json:"result,omitempty"`
}

// JobStatus is one observed poll of a running job.
type JobStatus struct {
	Running bool
	Result  *domain.ReconcileResult
	Err     string
}

// OutcomeState is the terminal state of one orchestrated run.
type OutcomeState string

const (
	// OutcomeCompleted means the job finished and reported counts.
	OutcomeCompleted OutcomeState = "completed"
	// OutcomeErrored means the job itself reported a failure.
	OutcomeErrored OutcomeState = "errored"
	// OutcomeTimedOut means the attempt budget ran out with the job
	// still not terminal; the operator must check status manually.
	OutcomeTimedOut OutcomeState = "timed_out"
)

// Outcome is what the orchestrator hands back to the operator.
type Outcome struct {
	State    OutcomeState
	TaskID   string
	Result   *domain.ReconcileResult
	Err      error
	Attempts int
}

// Orchestrator drives one reconciliation run: launch, then poll at a
// fixed interval until a terminal status or until the attempt budget is
// exhausted. Exactly one poll is in flight at a time, and the loop stops
// when the context is cancelled. The background job itself is never
// cancelled; a caller may reattach later by polling the same task ID.
type Orchestrator struct {
	launcher Launcher
	fetcher  StatusFetcher
	log      zerolog.Logger

	// Interval between polls and the attempt budget. The defaults are
	// two seconds and sixty attempts, about two minutes of waiting.
	Interval    time.Duration
	MaxAttempts int
}

// NewOrchestrator creates an orchestrator with the default polling
// schedule.
func NewOrchestrator(launcher Launcher, fetcher StatusFetcher, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		launcher:    launcher,
		fetcher:     fetcher,
		log:         log,
		Interval:    2 * time.Second,
		MaxAttempts: 60,
	}
}

// Run launches a batch reconciliation for the period and follows it to a
// terminal outcome. A synchronous launch result short-circuits the poll
// loop. The returned error is non-nil only for launch failures or
// context cancellation; job failures and timeouts are reported through
// the Outcome so the operator sees them distinctly.
func (o *Orchestrator) Run(ctx context.Context, period *domain.Period) (*Outcome, error) {
	resp, err := o.launcher.LaunchReconciliation(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("Run: launch reconciliation: %w", err)
	}

	// Synchronous fallback: the collaborator did the work in the launch
	// call itself.
	if resp.Result != nil {
		o.log.Info().
			Int("matched", resp.Result.Matched).
			Int("unmatched", resp.Result.Unmatched).
			Msg("Reconciliation completed synchronously")
		return &Outcome{State: OutcomeCompleted, Result: resp.Result}, nil
	}

	if resp.TaskID == "" {
		return nil, errors.New("Run: launch returned neither task ID nor result")
	}

	return o.follow(ctx, resp.TaskID)
}

// follow polls one task to a terminal outcome.
func (o *Orchestrator) follow(ctx context.Context, taskID string) (*Outcome, error) {
	outcome := &Outcome{TaskID: taskID}
	ticker := time.NewTimer(o.Interval)
	defer ticker.Stop()

	for outcome.Attempts < o.MaxAttempts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		outcome.Attempts++

		status, err := o.fetcher.ReconciliationStatus(ctx, taskID)
		if err != nil {
			// Transient collaborator failure: the attempt is spent but
			// polling continues up to the budget.
			o.log.Warn().
				Err(err).
				Str("task_id", taskID).
				Int("attempt", outcome.Attempts).
				Msg("Status poll failed")
			ticker.Reset(o.Interval)
			continue
		}

		switch {
		case status.Err != "":
			outcome.State = OutcomeErrored
			outcome.Err = errors.New(status.Err)
			o.log.Error().
				Str("task_id", taskID).
				Str("job_error", status.Err).
				Msg("Reconciliation job failed")
			return outcome, nil
		case !status.Running:
			outcome.State = OutcomeCompleted
			outcome.Result = status.Result
			o.log.Info().
				Str("task_id", taskID).
				Int("attempts", outcome.Attempts).
				Msg("Reconciliation job completed")
			return outcome, nil
		}

		ticker.Reset(o.Interval)
	}

	outcome.State = OutcomeTimedOut
	o.log.Warn().
		Str("task_id", taskID).
		Int("attempts", outcome.Attempts).
		Msg("Reconciliation polling budget exhausted; check job status manually")
	return outcome, nil
}
