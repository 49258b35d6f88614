package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	httpH "github.com/agrisense/agrisense-backend/internal/http/handlers"
	httpMW "github.com/agrisense/agrisense-backend/internal/http/middleware"
	"github.com/agrisense/agrisense-backend/internal/observability"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	FarmHandler      *httpH.FarmHandler
	IngestHandler    *httpH.IngestHandler
	JobHandler       *httpH.JobHandler
	AnalyticsHandler *httpH.AnalyticsHandler
	LiveHandler      *httpH.LiveHandler
	HealthHandler    *httpH.HealthHandler
}

var ingestLayers = []farm.Layer{
	farm.LayerSoil,
	farm.LayerWeather,
	farm.LayerIrrigation,
	farm.LayerNPK,
	farm.LayerVision,
	farm.LayerLighting,
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.GraphScope())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/live", cfg.HealthHandler.Live)
		r.GET("/ready", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Live (WebSocket)
	if cfg.LiveHandler != nil {
		r.GET("/ws/:farmId/live", cfg.LiveHandler.WebSocket)
	}

	api := r.Group("/api/v1")

	// Farms
	if cfg.FarmHandler != nil {
		api.POST("/farms", cfg.FarmHandler.CreateFarm)
		api.GET("/farms", cfg.FarmHandler.ListFarms)
		api.GET("/farms/:farmId", cfg.FarmHandler.GetFarm)
		api.DELETE("/farms/:farmId", cfg.FarmHandler.DeleteFarm)
		api.POST("/farms/:farmId/zones", cfg.FarmHandler.CreateZone)
		api.DELETE("/farms/:farmId/zones/:zoneId", cfg.FarmHandler.DeleteZone)
		api.POST("/farms/:farmId/sensors", cfg.FarmHandler.CreateVertex)
		api.POST("/farms/:farmId/hyperedges", cfg.FarmHandler.CreateHyperEdge)
		api.GET("/farms/:farmId/graph", cfg.FarmHandler.GetGraph)
	}
	if cfg.LiveHandler != nil {
		api.GET("/farms/:farmId/live", cfg.LiveHandler.SSE)
	}

	// Ingest
	if cfg.IngestHandler != nil {
		for _, layer := range ingestLayers {
			api.POST("/ingest/"+string(layer), cfg.IngestHandler.Ingest(layer))
		}
		api.POST("/ingest/bulk", cfg.IngestHandler.IngestBulk)
		api.POST("/ingest/irrigation/:eventId/close", cfg.IngestHandler.CloseIrrigationEvent)
	}

	// Jobs
	if cfg.JobHandler != nil {
		api.POST("/jobs/:farmId/recompute", cfg.JobHandler.CreateRecompute)
		api.GET("/jobs/:jobId/status", cfg.JobHandler.GetStatus)
	}

	// Analytics
	if cfg.AnalyticsHandler != nil {
		an := api.Group("/analytics/:farmId")
		an.GET("/status", cfg.AnalyticsHandler.FarmStatus)
		an.GET("/zones/:zoneId", cfg.AnalyticsHandler.ZoneDetail)
		an.GET("/vertices/:vertexId", cfg.AnalyticsHandler.VertexDetail)
		an.GET("/irrigation/schedule", cfg.AnalyticsHandler.IrrigationSchedule)
		an.GET("/nutrients/report", cfg.AnalyticsHandler.NutrientReport)
		an.GET("/yield/forecast", cfg.AnalyticsHandler.YieldForecast)
		an.POST("/yield/train", cfg.AnalyticsHandler.TrainYieldResidual)
		an.GET("/alerts", cfg.AnalyticsHandler.Alerts)
		api.POST("/synthetic", cfg.AnalyticsHandler.GenerateSynthetic)
	}

	return r
}
