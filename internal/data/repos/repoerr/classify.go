package repoerr

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	perrors "github.com/agrisense/agrisense-backend/internal/pkg/errors"
)

// Map translates storage failures into the service error taxonomy. Errors
// that are already categorized pass through untouched.
func Map(err error) error {
	if err == nil {
		return nil
	}
	var tagged *perrors.Error
	if errors.As(err, &tagged) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return perrors.Wrap(perrors.KindNotFound, err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return perrors.Wrap(perrors.KindInvalidRequest, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505": // unique_violation
			return perrors.Invalid("duplicate record: %s", pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return perrors.Invalid("referenced record does not exist: %s", pgErr.ConstraintName)
		case "23514", "22P02": // check_violation, invalid_text_representation
			return perrors.Wrap(perrors.KindInvalidRequest, err)
		}
	}
	return err
}
