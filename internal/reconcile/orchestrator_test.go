package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mverdani/primanota/internal/domain"
)

// scriptedJob plays back a fixed sequence of poll responses.
type scriptedJob struct {
	taskID     string
	syncResult *domain.ReconcileResult
	launchErr  error

	polls     []JobStatus
	pollErrs  []error
	pollCount int
}

func (s *scriptedJob) LaunchReconciliation(ctx context.Context, period *domain.Period) (*LaunchResponse, error) {
	if s.launchErr != nil {
		return nil, s.launchErr
	}
	return &LaunchResponse{TaskID: s.taskID, Result: s.syncResult}, nil
}

func (s *scriptedJob) ReconciliationStatus(ctx context.Context, taskID string) (*JobStatus, error) {
	i := s.pollCount
	s.pollCount++
	if i < len(s.pollErrs) && s.pollErrs[i] != nil {
		return nil, s.pollErrs[i]
	}
	if i >= len(s.polls) {
		// Keep reporting the last scripted status forever.
		i = len(s.polls) - 1
	}
	st := s.polls[i]
	return &st, nil
}

func fastOrchestrator(s *scriptedJob) *Orchestrator {
	o := NewOrchestrator(s, s, zerolog.Nop())
	o.Interval = time.Millisecond
	return o
}

func running(n int) []JobStatus {
	out := make([]JobStatus, n)
	for i := range out {
		out[i] = JobStatus{Running: true}
	}
	return out
}

func TestOrchestratorCompletesOnTerminalStatus(t *testing.T) {
	script := append(running(2), JobStatus{Result: &domain.ReconcileResult{Matched: 4, Unmatched: 1}})
	s := &scriptedJob{taskID: "task-1", polls: script}

	outcome, err := fastOrchestrator(s).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.State != OutcomeCompleted {
		t.Errorf("state = %s, want completed", outcome.State)
	}
	if outcome.Result == nil || outcome.Result.Matched != 4 || outcome.Result.Unmatched != 1 {
		t.Errorf("result = %+v, want matched=4 unmatched=1", outcome.Result)
	}
	if outcome.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", outcome.Attempts)
	}
}

func TestOrchestratorCompletesOnLastAttempt(t *testing.T) {
	// Running for 59 polls, completed on the 60th; attempt 61 never happens.
	script := append(running(59), JobStatus{Result: &domain.ReconcileResult{Matched: 1}})
	s := &scriptedJob{taskID: "task-1", polls: script}

	outcome, err := fastOrchestrator(s).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.State != OutcomeCompleted {
		t.Errorf("state = %s, want completed", outcome.State)
	}
	if outcome.Attempts != 60 || s.pollCount != 60 {
		t.Errorf("attempts = %d, polls = %d, want both 60", outcome.Attempts, s.pollCount)
	}
}

func TestOrchestratorTimesOutWithinBudget(t *testing.T) {
	s := &scriptedJob{taskID: "task-1", polls: running(1)}

	outcome, err := fastOrchestrator(s).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.State != OutcomeTimedOut {
		t.Errorf("state = %s, want timed_out (not error, not success)", outcome.State)
	}
	if outcome.Err != nil {
		t.Error("timeout is not a job error")
	}
	if outcome.Result != nil {
		t.Error("timeout must not be treated as success")
	}
	if s.pollCount != 60 {
		t.Errorf("polls = %d, want exactly the attempt budget of 60", s.pollCount)
	}
}

func TestOrchestratorSurfacesJobError(t *testing.T) {
	script := append(running(1), JobStatus{Err: "scadenze non disponibili"})
	s := &scriptedJob{taskID: "task-1", polls: script}

	outcome, err := fastOrchestrator(s).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.State != OutcomeErrored {
		t.Errorf("state = %s, want errored", outcome.State)
	}
	if outcome.Err == nil || outcome.Err.Error() != "scadenze non disponibili" {
		t.Errorf("err = %v, want original job error verbatim", outcome.Err)
	}
	if s.pollCount != 2 {
		t.Errorf("polls = %d, polling must stop at the error", s.pollCount)
	}
}

func TestOrchestratorToleratesTransientPollFailures(t *testing.T) {
	s := &scriptedJob{
		taskID:   "task-1",
		polls:    []JobStatus{{Running: true}, {Running: true}, {Result: &domain.ReconcileResult{}}},
		pollErrs: []error{nil, errors.New("timeout"), nil},
	}

	outcome, err := fastOrchestrator(s).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.State != OutcomeCompleted {
		t.Errorf("state = %s, want completed despite one transient failure", outcome.State)
	}
}

func TestOrchestratorSynchronousFallback(t *testing.T) {
	s := &scriptedJob{syncResult: &domain.ReconcileResult{Matched: 7}}

	outcome, err := fastOrchestrator(s).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.State != OutcomeCompleted || outcome.Result.Matched != 7 {
		t.Errorf("outcome = %+v, want immediate completion", outcome)
	}
	if s.pollCount != 0 {
		t.Errorf("polls = %d, synchronous result must skip polling", s.pollCount)
	}
}

func TestOrchestratorLaunchFailure(t *testing.T) {
	s := &scriptedJob{launchErr: errors.New("backend down")}

	if _, err := fastOrchestrator(s).Run(context.Background(), nil); err == nil {
		t.Fatal("launch failure must be returned as an error")
	}
}

func TestOrchestratorCancellable(t *testing.T) {
	s := &scriptedJob{taskID: "task-1", polls: running(1)}
	o := NewOrchestrator(s, s, zerolog.Nop())
	o.Interval = time.Hour // only cancellation can end the wait

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := o.Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
