package recompute

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/agrisense/agrisense-backend/internal/platform/ctxutil"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

type Executor interface {
	ExecuteRecompute(ctx context.Context, jobID uuid.UUID) error
}

type Activities struct {
	Log  *logger.Logger
	Exec Executor
}

func (a *Activities) Execute(ctx context.Context, in Input) error {
	if a == nil || a.Exec == nil {
		return fmt.Errorf("recompute: activity not configured")
	}
	jobID, err := uuid.Parse(strings.TrimSpace(in.JobID))
	if err != nil || jobID == uuid.Nil {
		return fmt.Errorf("recompute: invalid job_id %q", in.JobID)
	}

	td := &ctxutil.TraceData{RequestID: jobID.String(), Origin: ctxutil.OriginTemporal}
	if activity.IsActivity(ctx) {
		td.TraceID = activity.GetInfo(ctx).WorkflowExecution.RunID
	}
	ctx = ctxutil.WithTraceData(ctx, td)

	stop := startHeartbeat(ctx, 10*time.Second)
	defer stop()

	if err := a.Exec.ExecuteRecompute(ctx, jobID); err != nil {
		if a.Log != nil {
			a.Log.Warn("recompute activity failed", "job_id", jobID, "error", err)
		}
		return err
	}
	return nil
}

func startHeartbeat(ctx context.Context, every time.Duration) func() {
	if !activity.IsActivity(ctx) {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
