package repoerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	perrors "github.com/agrisense/agrisense-backend/internal/pkg/errors"
)

func TestMap(t *testing.T) {
	if Map(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	if !perrors.IsNotFound(Map(gorm.ErrRecordNotFound)) {
		t.Fatalf("record not found should map to not found")
	}
	if !perrors.IsInvalid(Map(&pgconn.PgError{Code: "23505", ConstraintName: "farm_pkey"})) {
		t.Fatalf("unique violation should map to invalid request")
	}
	if !perrors.IsInvalid(Map(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}))) {
		t.Fatalf("wrapped fk violation should map to invalid request")
	}

	plain := errors.New("connection reset")
	if got := Map(plain); got != plain {
		t.Fatalf("unknown errors must pass through, got %v", got)
	}
	if perrors.KindOf(Map(plain)) != perrors.KindInternal {
		t.Fatalf("unknown errors must stay internal")
	}

	tagged := perrors.NotFound("farm %s not found", "x")
	if Map(tagged) != tagged {
		t.Fatalf("tagged errors must pass through")
	}
}
