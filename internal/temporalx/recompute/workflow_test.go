package recompute

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

type countingExecutor struct {
	calls []uuid.UUID
	err   error
}

func (c *countingExecutor) ExecuteRecompute(_ context.Context, jobID uuid.UUID) error {
	c.calls = append(c.calls, jobID)
	return c.err
}

func newEnv(t *testing.T, exec Executor) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	acts := &Activities{Exec: exec}
	env.RegisterWorkflow(Workflow)
	env.RegisterActivityWithOptions(acts.Execute, activity.RegisterOptions{Name: ActivityExecute})
	return env
}

func TestWorkflowExecutesJobOnce(t *testing.T) {
	exec := &countingExecutor{}
	env := newEnv(t, exec)
	id := uuid.New()

	env.ExecuteWorkflow(Workflow, Input{JobID: id.String()})
	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if len(exec.calls) != 1 || exec.calls[0] != id {
		t.Fatalf("calls = %v, want [%s]", exec.calls, id)
	}
}

func TestWorkflowDoesNotRetryFailedJob(t *testing.T) {
	exec := &countingExecutor{err: errors.New("engine down")}
	env := newEnv(t, exec)

	env.ExecuteWorkflow(Workflow, Input{JobID: uuid.NewString()})
	if env.GetWorkflowError() == nil {
		t.Fatalf("expected workflow error")
	}
	if len(exec.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(exec.calls))
	}
}

func TestWorkflowRejectsBadInput(t *testing.T) {
	exec := &countingExecutor{}
	env := newEnv(t, exec)

	env.ExecuteWorkflow(Workflow, Input{})
	if env.GetWorkflowError() == nil {
		t.Fatalf("expected error for empty job id")
	}
	if len(exec.calls) != 0 {
		t.Fatalf("executor called for empty job id")
	}
}

func TestWorkflowID(t *testing.T) {
	if got := WorkflowID("abc"); got != "recompute-abc" {
		t.Fatalf("WorkflowID = %q", got)
	}
}
