package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/agrisense/agrisense-backend/internal/domain"
	domainjobs "github.com/agrisense/agrisense-backend/internal/domain/jobs"
	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	"github.com/agrisense/agrisense-backend/internal/data/repos/testutil"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
)

func TestRecomputeJobRepoConditionalUpdate(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewRecomputeJobRepo(db, testutil.Logger(t))

	f := testutil.SeedFarm(t, ctx, tx, farm.FarmTypeGreenhouse)
	job, err := repo.Create(dbc, &types.RecomputeJob{FarmID: f.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.Status != domainjobs.JobStatusQueued {
		t.Fatalf("expected queued default, got %q", job.Status)
	}

	active, err := repo.HasActiveForFarm(dbc, f.ID)
	if err != nil || !active {
		t.Fatalf("expected active job: active=%v err=%v", active, err)
	}

	now := time.Now()
	ok, err := repo.UpdateFieldsIfStatus(dbc, job.ID, domainjobs.JobStatusQueued, map[string]interface{}{
		"status":     domainjobs.JobStatusRunning,
		"started_at": now,
	})
	if err != nil || !ok {
		t.Fatalf("queued->running: ok=%v err=%v", ok, err)
	}
	ok, err = repo.UpdateFieldsIfStatus(dbc, job.ID, domainjobs.JobStatusQueued, map[string]interface{}{
		"status": domainjobs.JobStatusRunning,
	})
	if err != nil || ok {
		t.Fatalf("stale expected status must not update: ok=%v err=%v", ok, err)
	}

	got, err := repo.GetByID(dbc, job.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got.Status != domainjobs.JobStatusRunning || got.StartedAt == nil {
		t.Fatalf("unexpected job: %+v", got)
	}

	missing, err := repo.GetByID(dbc, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("missing job: got=%v err=%v", missing, err)
	}
}
