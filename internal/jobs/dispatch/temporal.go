package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/agrisense/agrisense-backend/internal/platform/logger"
	"github.com/agrisense/agrisense-backend/internal/temporalx/recompute"
)

// Temporal starts one workflow per job. The workflow id is derived from the
// job id, so re-dispatching a job is a no-op.
type Temporal struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewTemporal(baseLog *logger.Logger, tc temporalsdkclient.Client, taskQueue string) *Temporal {
	return &Temporal{log: baseLog.With("component", "TemporalDispatcher"), tc: tc, taskQueue: taskQueue}
}

func (t *Temporal) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	if t.tc == nil {
		return fmt.Errorf("temporal client is not configured")
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:        recompute.WorkflowID(jobID.String()),
		TaskQueue: t.taskQueue,
	}
	run, err := t.tc.ExecuteWorkflow(ctx, opts, recompute.WorkflowName, recompute.Input{JobID: jobID.String()})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			t.log.Info("recompute workflow already started", "job_id", jobID)
			return nil
		}
		return err
	}
	t.log.Info("recompute workflow started", "job_id", jobID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}
