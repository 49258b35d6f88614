package services_test

import (
	"testing"

	"gorm.io/gorm"

	"github.com/agrisense/agrisense-backend/internal/data/repos"
	"github.com/agrisense/agrisense-backend/internal/data/repos/testutil"
	"github.com/agrisense/agrisense-backend/internal/engine"
	"github.com/agrisense/agrisense-backend/internal/engine/mock"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
	"github.com/agrisense/agrisense-backend/internal/services"
)

type env struct {
	db      *gorm.DB
	log     *logger.Logger
	set     repos.Set
	backend *mock.Engine
	engine  *engine.Client
	topo    services.TopologyService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	backend := mock.New()
	eng := engine.NewClient(backend, log, nil)
	set := repos.NewSet(db, log)
	return &env{
		db:      db,
		log:     log,
		set:     set,
		backend: backend,
		engine:  eng,
		topo:    services.NewTopologyService(db, log, set, eng, nil),
	}
}
