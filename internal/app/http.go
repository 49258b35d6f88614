package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/heptiolabs/healthcheck"
	temporalsdkclient "go.temporal.io/sdk/client"

	agrihttp "github.com/agrisense/agrisense-backend/internal/http"
	httpH "github.com/agrisense/agrisense-backend/internal/http/handlers"
	"github.com/agrisense/agrisense-backend/internal/mqttbridge"
	"github.com/agrisense/agrisense-backend/internal/observability"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

type Handlers struct {
	Farm      *httpH.FarmHandler
	Ingest    *httpH.IngestHandler
	Job       *httpH.JobHandler
	Analytics *httpH.AnalyticsHandler
	Live      *httpH.LiveHandler
	Health    *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, sqlDB *sql.DB, clients Clients, svcs Services, bridge *mqttbridge.Bridge, metrics *observability.Metrics) Handlers {
	log.Info("Wiring handlers...")
	extra := map[string]healthcheck.Check{}
	if bridge != nil {
		extra["mqtt"] = bridge.Check()
	}
	if tc := clients.Temporal; tc != nil {
		extra["temporal"] = healthcheck.Timeout(func() error {
			_, err := tc.CheckHealth(context.Background(), &temporalsdkclient.CheckHealthRequest{})
			return err
		}, 2*time.Second)
	}
	if neo := clients.Neo4j; neo != nil {
		extra["neo4j"] = healthcheck.Timeout(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return neo.Ping(ctx)
		}, 3*time.Second)
	}
	return Handlers{
		Farm:      httpH.NewFarmHandler(svcs.Topology),
		Ingest:    httpH.NewIngestHandler(svcs.Ingest),
		Job:       httpH.NewJobHandler(svcs.Recompute),
		Analytics: httpH.NewAnalyticsHandler(svcs.Analytics),
		Live:      httpH.NewLiveHandler(log, svcs.Topology, clients.LiveBus, metrics),
		Health:    httpH.NewHealthHandler(sqlDB, clients.Redis, extra),
	}
}

func wireServer(log *logger.Logger, cfg Config, h Handlers, metrics *observability.Metrics) *agrihttp.Server {
	return agrihttp.NewServer(agrihttp.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		ServiceName:      cfg.ServiceName,
		CORSOrigins:      cfg.CORSOrigins,
		FarmHandler:      h.Farm,
		IngestHandler:    h.Ingest,
		JobHandler:       h.Job,
		AnalyticsHandler: h.Analytics,
		LiveHandler:      h.Live,
		HealthHandler:    h.Health,
	})
}
