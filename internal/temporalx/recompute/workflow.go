package recompute

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow runs the recompute activity exactly once. The job row records
// failure itself, so the activity is never retried.
func Workflow(ctx workflow.Context, in Input) error {
	if strings.TrimSpace(in.JobID) == "" {
		return fmt.Errorf("recompute: missing job_id")
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	return workflow.ExecuteActivity(ctx, ActivityExecute, in).Get(ctx, nil)
}
