package repos

import (
	"gorm.io/gorm"

	"github.com/agrisense/agrisense-backend/internal/data/repos/jobs"
	"github.com/agrisense/agrisense-backend/internal/data/repos/telemetry"
	"github.com/agrisense/agrisense-backend/internal/data/repos/topology"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

type FarmRepo = topology.FarmRepo
type ZoneRepo = topology.ZoneRepo
type VertexRepo = topology.VertexRepo
type HyperEdgeRepo = topology.HyperEdgeRepo

type TelemetryRepo = telemetry.TelemetryRepo

type RecomputeJobRepo = jobs.RecomputeJobRepo

func NewFarmRepo(db *gorm.DB, baseLog *logger.Logger) FarmRepo {
	return topology.NewFarmRepo(db, baseLog)
}

func NewZoneRepo(db *gorm.DB, baseLog *logger.Logger) ZoneRepo {
	return topology.NewZoneRepo(db, baseLog)
}

func NewVertexRepo(db *gorm.DB, baseLog *logger.Logger) VertexRepo {
	return topology.NewVertexRepo(db, baseLog)
}

func NewHyperEdgeRepo(db *gorm.DB, baseLog *logger.Logger) HyperEdgeRepo {
	return topology.NewHyperEdgeRepo(db, baseLog)
}

func NewTelemetryRepo(db *gorm.DB, baseLog *logger.Logger) TelemetryRepo {
	return telemetry.NewTelemetryRepo(db, baseLog)
}

func NewRecomputeJobRepo(db *gorm.DB, baseLog *logger.Logger) RecomputeJobRepo {
	return jobs.NewRecomputeJobRepo(db, baseLog)
}

// Set bundles every repo so services and tests can be wired from one value.
type Set struct {
	Farm      FarmRepo
	Zone      ZoneRepo
	Vertex    VertexRepo
	HyperEdge HyperEdgeRepo
	Telemetry TelemetryRepo
	Jobs      RecomputeJobRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Farm:      NewFarmRepo(db, baseLog),
		Zone:      NewZoneRepo(db, baseLog),
		Vertex:    NewVertexRepo(db, baseLog),
		HyperEdge: NewHyperEdgeRepo(db, baseLog),
		Telemetry: NewTelemetryRepo(db, baseLog),
		Jobs:      NewRecomputeJobRepo(db, baseLog),
	}
}
