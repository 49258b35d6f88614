package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"golang.org/x/sync/singleflight"

	"github.com/agrisense/agrisense-backend/internal/data/repos"
	types "github.com/agrisense/agrisense-backend/internal/domain"
	domainjobs "github.com/agrisense/agrisense-backend/internal/domain/jobs"
	"github.com/agrisense/agrisense-backend/internal/engine"
	"github.com/agrisense/agrisense-backend/internal/graphcache"
	"github.com/agrisense/agrisense-backend/internal/observability"
	apperr "github.com/agrisense/agrisense-backend/internal/pkg/errors"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
	"github.com/agrisense/agrisense-backend/internal/realtime/bus"
)

// RecomputeDispatcher hands a queued job to whatever runs it. Dispatch must
// lead to exactly one ExecuteRecompute call.
type RecomputeDispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

type RecomputeService interface {
	CreateJob(ctx context.Context, farmID uuid.UUID) (*types.RecomputeJob, error)
	GetJobStatus(ctx context.Context, jobID uuid.UUID) (*types.RecomputeJob, error)
	ExecuteRecompute(ctx context.Context, jobID uuid.UUID) error
	SetDispatcher(d RecomputeDispatcher)
}

const (
	jobEventStart   = "start"
	jobEventSucceed = "succeed"
	jobEventFail    = "fail"
	jobEventReject  = "reject"
)

type recomputeService struct {
	log      *logger.Logger
	repos    repos.Set
	topology TopologyService
	cache    StatusCache
	metrics  *observability.Metrics
	dispatch RecomputeDispatcher
	reads    singleflight.Group
}

func NewRecomputeService(baseLog *logger.Logger, set repos.Set, topology TopologyService, cache StatusCache, metrics *observability.Metrics) RecomputeService {
	if cache == nil {
		cache = NewMemoryStatusCache()
	}
	return &recomputeService{
		log:      baseLog.With("service", "RecomputeService"),
		repos:    set,
		topology: topology,
		cache:    cache,
		metrics:  metrics,
	}
}

// SetDispatcher closes the loop between the service and its dispatcher,
// which itself needs the service to execute jobs.
func (s *recomputeService) SetDispatcher(d RecomputeDispatcher) { s.dispatch = d }

func jobMachine(current types.JobStatus) *fsm.FSM {
	return fsm.NewFSM(
		string(current),
		fsm.Events{
			{Name: jobEventStart, Src: []string{string(domainjobs.JobStatusQueued)}, Dst: string(domainjobs.JobStatusRunning)},
			{Name: jobEventSucceed, Src: []string{string(domainjobs.JobStatusRunning)}, Dst: string(domainjobs.JobStatusSucceeded)},
			{Name: jobEventFail, Src: []string{string(domainjobs.JobStatusRunning)}, Dst: string(domainjobs.JobStatusFailed)},
			{Name: jobEventReject, Src: []string{string(domainjobs.JobStatusQueued)}, Dst: string(domainjobs.JobStatusFailed)},
		},
		fsm.Callbacks{},
	)
}

func (s *recomputeService) CreateJob(ctx context.Context, farmID uuid.UUID) (*types.RecomputeJob, error) {
	dbc := dbctx.Context{Ctx: ctx}
	f, err := s.repos.Farm.GetByID(dbc, farmID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, apperr.NotFound("farm %s not found", farmID)
	}
	job, err := s.repos.Jobs.Create(dbc, &types.RecomputeJob{FarmID: farmID, Status: domainjobs.JobStatusQueued})
	if err != nil {
		return nil, err
	}
	s.metrics.JobTransition(string(job.Status))
	s.mirror(ctx, job)

	if s.dispatch == nil {
		return job, nil
	}
	if err := s.dispatch.Dispatch(ctx, job.ID); err != nil {
		s.log.Error("recompute dispatch failed", "job_id", job.ID, "farm_id", farmID, "error", err)
		if failed, terr := s.transition(ctx, job, jobEventReject, map[string]interface{}{
			"completed_at": time.Now().UTC(),
			"error":        domainjobs.TruncateError("dispatch: " + err.Error()),
		}); terr == nil {
			job = failed
		}
		return job, err
	}
	return job, nil
}

func (s *recomputeService) GetJobStatus(ctx context.Context, jobID uuid.UUID) (*types.RecomputeJob, error) {
	var cached types.RecomputeJob
	if ok, err := s.cache.Get(ctx, bus.JobStatusKey(jobID.String()), &cached); err != nil {
		s.log.Warn("job status cache read failed", "job_id", jobID, "error", err)
	} else if ok {
		return &cached, nil
	}

	v, err, _ := s.reads.Do(jobID.String(), func() (interface{}, error) {
		job, err := s.repos.Jobs.GetByID(dbctx.Context{Ctx: ctx}, jobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, apperr.NotFound("job %s not found", jobID)
		}
		s.mirror(ctx, job)
		return job, nil
	})
	if err != nil {
		return nil, err
	}
	job := *v.(*types.RecomputeJob)
	return &job, nil
}

func (s *recomputeService) ExecuteRecompute(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.repos.Jobs.GetByID(dbctx.Context{Ctx: ctx}, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return apperr.NotFound("job %s not found", jobID)
	}

	job, err = s.transition(ctx, job, jobEventStart, map[string]interface{}{
		"started_at": time.Now().UTC(),
		"error":      nil,
	})
	if err != nil {
		return err
	}

	runErr := s.rebuild(ctx, job.FarmID)
	if runErr != nil {
		if _, err := s.transition(ctx, job, jobEventFail, map[string]interface{}{
			"completed_at": time.Now().UTC(),
			"error":        domainjobs.TruncateError(runErr.Error()),
		}); err != nil {
			s.log.Error("recording job failure failed", "job_id", jobID, "error", err, "cause", runErr)
		}
		return runErr
	}

	if _, err := s.transition(ctx, job, jobEventSucceed, map[string]interface{}{
		"completed_at": time.Now().UTC(),
		"error":        nil,
	}); err != nil {
		return err
	}
	return nil
}

// rebuild runs a full graph build under a fresh scope, then refreshes the
// Neo4j projection. A projection failure does not fail the job.
func (s *recomputeService) rebuild(ctx context.Context, farmID uuid.UUID) error {
	scoped := graphcache.WithScope(ctx)
	key := farmID.String()
	state, err := graphcache.FromContext(scoped).Get(scoped, key, func(c context.Context) (engine.GraphState, error) {
		return s.topology.GetGraph(dbctx.Context{Ctx: c}, farmID)
	})
	if err != nil {
		return err
	}
	s.log.Info("graph recomputed", "farm_id", farmID, "version", state.Version)
	if err := s.topology.ProjectTopology(ctx, farmID); err != nil {
		s.log.Warn("topology projection failed", "farm_id", farmID, "error", err)
	}
	return nil
}

// transition applies event through the job machine and persists the new
// status only if the row still holds the status the machine started from.
func (s *recomputeService) transition(ctx context.Context, job *types.RecomputeJob, event string, updates map[string]interface{}) (*types.RecomputeJob, error) {
	m := jobMachine(job.Status)
	if err := m.Event(ctx, event); err != nil {
		return nil, apperr.Invalid("job %s cannot %s from status %s", job.ID, event, job.Status)
	}
	next := types.JobStatus(m.Current())
	updates["status"] = next

	dbc := dbctx.Context{Ctx: ctx}
	ok, err := s.repos.Jobs.UpdateFieldsIfStatus(dbc, job.ID, job.Status, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Invalid("job %s is no longer %s", job.ID, job.Status)
	}
	fresh, err := s.repos.Jobs.GetByID(dbc, job.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, apperr.NotFound("job %s not found", job.ID)
	}
	s.metrics.JobTransition(string(next))
	s.log.Info("job transition", "job_id", job.ID, "farm_id", job.FarmID, "from", job.Status, "to", next)
	s.mirror(ctx, fresh)
	return fresh, nil
}

func (s *recomputeService) mirror(ctx context.Context, job *types.RecomputeJob) {
	if err := s.cache.Set(ctx, bus.JobStatusKey(job.ID.String()), job, JobStatusTTL); err != nil {
		s.log.Warn("job status cache write failed", "job_id", job.ID, "error", err)
	}
}
