package domain

import (
	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	"github.com/agrisense/agrisense-backend/internal/domain/jobs"
	"github.com/agrisense/agrisense-backend/internal/domain/telemetry"
)

type (
	Farm       = farm.Farm
	FarmType   = farm.FarmType
	Zone       = farm.Zone
	ZoneType   = farm.ZoneType
	Vertex     = farm.Vertex
	VertexType = farm.VertexType
	HyperEdge  = farm.HyperEdge
	Layer      = farm.Layer

	SoilReading     = telemetry.SoilReading
	WeatherReading  = telemetry.WeatherReading
	IrrigationEvent = telemetry.IrrigationEvent
	NpkSample       = telemetry.NpkSample
	VisionEvent     = telemetry.VisionEvent
	LightingReading = telemetry.LightingReading

	RecomputeJob = jobs.RecomputeJob
	JobStatus    = jobs.JobStatus
)

// Models lists every persisted model in migration order.
func Models() []any {
	return []any{
		&Farm{},
		&Zone{},
		&Vertex{},
		&HyperEdge{},

		&SoilReading{},
		&WeatherReading{},
		&IrrigationEvent{},
		&NpkSample{},
		&VisionEvent{},
		&LightingReading{},

		&RecomputeJob{},
	}
}
