package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/agrisense/agrisense-backend/internal/platform/ctxutil"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

// Executor runs one recompute job to completion and records its outcome.
type Executor interface {
	ExecuteRecompute(ctx context.Context, jobID uuid.UUID) error
}

// Local runs jobs in process on a bounded pool. Jobs are detached from the
// request that queued them.
type Local struct {
	log  *logger.Logger
	exec Executor
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
}

func NewLocal(baseLog *logger.Logger, exec Executor, concurrency int) *Local {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Local{
		log:  baseLog.With("component", "LocalDispatcher"),
		exec: exec,
		sem:  semaphore.NewWeighted(int64(concurrency)),
	}
}

func (l *Local) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	if l.exec == nil {
		return fmt.Errorf("local dispatcher has no executor")
	}
	base := ctxutil.Detached(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.sem.Acquire(base, 1); err != nil {
			l.log.Error("recompute slot acquire failed", "job_id", jobID, "error", err)
			return
		}
		defer l.sem.Release(1)
		l.run(base, jobID)
	}()
	return nil
}

func (l *Local) run(ctx context.Context, jobID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("recompute panic", "job_id", jobID, "panic", r)
		}
	}()
	if err := l.exec.ExecuteRecompute(ctx, jobID); err != nil {
		l.log.Warn("recompute failed", append([]interface{}{"job_id", jobID, "error", err}, ctxutil.LogFields(ctx)...)...)
	}
}

// Wait blocks until every dispatched job has returned.
func (l *Local) Wait() { l.wg.Wait() }
