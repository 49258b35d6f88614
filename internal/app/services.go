package app

import (
	"gorm.io/gorm"

	"github.com/agrisense/agrisense-backend/internal/data/repos"
	"github.com/agrisense/agrisense-backend/internal/ingest"
	"github.com/agrisense/agrisense-backend/internal/jobs/dispatch"
	"github.com/agrisense/agrisense-backend/internal/observability"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
	"github.com/agrisense/agrisense-backend/internal/services"
	"github.com/agrisense/agrisense-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Topology  services.TopologyService
	Ingest    *ingest.Service
	Recompute services.RecomputeService
	Analytics services.AnalyticsService

	LocalDispatch  *dispatch.Local
	TemporalWorker *temporalworker.Runner
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, set repos.Set, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	var cache services.StatusCache
	if clients.Redis != nil {
		cache = services.NewRedisStatusCache(log, clients.Redis)
	} else {
		cache = services.NewMemoryStatusCache()
	}

	topo := services.NewTopologyService(db, log, set, clients.Engine, clients.Neo4j)
	out := Services{
		Topology:  topo,
		Ingest:    ingest.NewService(db, log, set, topo, clients.Engine, clients.LiveBus, metrics),
		Recompute: services.NewRecomputeService(log, set, topo, cache, metrics),
		Analytics: services.NewAnalyticsService(log, set, topo, clients.Engine, cache),
	}

	// The dispatcher needs the service to run jobs, so it is attached after
	// both exist.
	if clients.Temporal != nil {
		runner, err := temporalworker.NewRunner(log, clients.Temporal, clients.TemporalCfg, out.Recompute)
		if err != nil {
			return Services{}, err
		}
		out.TemporalWorker = runner
		out.Recompute.SetDispatcher(dispatch.NewTemporal(log, clients.Temporal, clients.TemporalCfg.TaskQueue))
	} else {
		out.LocalDispatch = dispatch.NewLocal(log, out.Recompute, cfg.RecomputeConcurrency)
		out.Recompute.SetDispatcher(out.LocalDispatch)
	}
	return out, nil
}
