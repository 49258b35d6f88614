package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/agrisense/agrisense-backend/internal/data/db"
	"github.com/agrisense/agrisense-backend/internal/data/repos"
	agrihttp "github.com/agrisense/agrisense-backend/internal/http"
	"github.com/agrisense/agrisense-backend/internal/mqttbridge"
	"github.com/agrisense/agrisense-backend/internal/observability"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Services Services
	Server   *agrihttp.Server
	Bridge   *mqttbridge.Bridge

	dbSvc        *db.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig()
	if err != nil {
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	dbSvc, err := db.NewService(cfg.Database, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.Migrate(dbSvc.DB()); err != nil {
		_ = dbSvc.Close()
		log.Sync()
		return nil, fmt.Errorf("database migrate: %w", err)
	}
	theDB := dbSvc.DB()
	sqlDB, err := theDB.DB()
	if err != nil {
		_ = dbSvc.Close()
		return nil, fmt.Errorf("database handle: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg, metrics)
	if err != nil {
		_ = dbSvc.Close()
		log.Sync()
		return nil, err
	}

	log.Info("Wiring repos...")
	set := repos.NewSet(theDB, log)

	svcs, err := wireServices(theDB, log, cfg, set, clients, metrics)
	if err != nil {
		clients.Close()
		_ = dbSvc.Close()
		log.Sync()
		return nil, err
	}

	var bridge *mqttbridge.Bridge
	if mcfg := mqttbridge.LoadConfig(); mcfg.Enabled() {
		bridge = mqttbridge.New(log, mcfg, svcs.Ingest, metrics)
	}

	handlers := wireHandlers(log, sqlDB, clients, svcs, bridge, metrics)
	server := wireServer(log, cfg, handlers, metrics)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Clients:      clients,
		Services:     svcs,
		Server:       server,
		Bridge:       bridge,
		dbSvc:        dbSvc,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background pieces: the Temporal worker and the MQTT
// bridge. The local dispatcher needs no start.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Services.TemporalWorker != nil {
		if err := a.Services.TemporalWorker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	if a.Bridge != nil {
		if err := a.Bridge.Start(ctx); err != nil {
			return fmt.Errorf("start mqtt bridge: %w", err)
		}
	}
	return nil
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("Server listening", "addr", addr)
	return a.Server.Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Bridge != nil {
		a.Bridge.Stop()
	}
	if a.Services.LocalDispatch != nil {
		a.Services.LocalDispatch.Wait()
	}
	a.Clients.Close()
	if a.dbSvc != nil {
		_ = a.dbSvc.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
