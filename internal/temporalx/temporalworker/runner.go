package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/agrisense/agrisense-backend/internal/platform/logger"
	"github.com/agrisense/agrisense-backend/internal/temporalx"
	"github.com/agrisense/agrisense-backend/internal/temporalx/recompute"
)

// Runner polls the recompute task queue and hands each job to exec.
type Runner struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	cfg  temporalx.Config
	exec recompute.Executor
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, exec recompute.Executor) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if exec == nil {
		return nil, fmt.Errorf("temporal worker missing executor")
	}
	return &Runner{log: log.With("component", "TemporalWorker"), tc: tc, cfg: cfg, exec: exec}, nil
}

// Start retries worker startup until DialMaxWait and stops the worker when
// ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("starting temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	attempt := 0
	start := func() error {
		attempt++
		w := r.newWorker()
		err := w.Start()
		if err == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(err, &nfe) {
			if !r.cfg.AutoRegister {
				return backoff.Permanent(fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, err))
			}
			if eerr := temporalx.EnsureNamespace(ctx, r.cfg, r.log); eerr != nil {
				r.log.Warn("temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", eerr)
			}
		}
		r.log.Warn("temporal worker failed to start; retrying", "task_queue", r.cfg.TaskQueue, "attempt", attempt, "error", err)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = r.cfg.DialMaxWait
	if err := backoff.Retry(start, backoff.WithContext(b, ctx)); err != nil {
		return err
	}
	r.log.Info("temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
	return nil
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.cfg.WorkerConcurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.cfg.WorkerConcurrency,
	})
	acts := &recompute.Activities{Log: r.log, Exec: r.exec}
	w.RegisterWorkflowWithOptions(recompute.Workflow, workflow.RegisterOptions{Name: recompute.WorkflowName})
	w.RegisterActivityWithOptions(acts.Execute, activity.RegisterOptions{Name: recompute.ActivityExecute})
	return w
}
