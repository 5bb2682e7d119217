package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/config"
)

// pgError is the driver-neutral part of a PostgreSQL error
type pgError struct {
	Code       string
	Constraint string
	Message    string
}

// asPgError extracts the SQLSTATE from either lib/pq or pgx errors
func asPgError(err error) (pgError, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgError{Code: string(pqErr.Code), Constraint: pqErr.Constraint, Message: pqErr.Message}, true
	}
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgError{Code: pgxErr.Code, Constraint: pgxErr.ConstraintName, Message: pgxErr.Message}, true
	}
	return pgError{}, false
}

// constraintErrors maps constraint violations to the business error callers see
var constraintErrors = map[string]func() error{
	config.ConstraintUserEmail: func() error {
		return apperrors.Conflict(apperrors.MsgEmailTaken)
	},
	config.ConstraintCategoryName: func() error {
		return apperrors.Conflict(apperrors.MsgCategoryNameTaken)
	},
	config.ConstraintOneActiveLoan: func() error {
		return apperrors.Conflict(apperrors.MsgUserHasActiveLoan)
	},
	config.ConstraintBookCategory: func() error {
		return apperrors.Validation("invalid book",
			apperrors.Violation{Field: "categoryId", Message: "category does not exist"})
	},
	config.ConstraintBookCopies: func() error {
		return apperrors.Conflict(apperrors.MsgBookUnavailable)
	},
	config.ConstraintLoanUser: func() error {
		return apperrors.NotFound("user not found")
	},
	config.ConstraintLoanBook: func() error {
		return apperrors.NotFound("book not found")
	},
}

// mapError converts driver errors into application errors. Errors that are
// neither constraint violations nor connectivity faults pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}

	if pgErr, ok := asPgError(err); ok {
		if build, found := constraintErrors[pgErr.Constraint]; found {
			return build()
		}
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return apperrors.Conflict("duplicate value")
		case pgErr.Code == pgerrcode.ForeignKeyViolation:
			return apperrors.Conflict("record is still referenced")
		case pgErr.Code == pgerrcode.CheckViolation:
			return apperrors.Conflict("value violates a storage rule")
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgErr.Code == pgerrcode.AdminShutdown,
			pgErr.Code == pgerrcode.CannotConnectNow,
			pgErr.Code == pgerrcode.TooManyConnections:
			return apperrors.Unavailable("database unavailable", err)
		}
		return err
	}

	if isConnectionError(err) {
		return apperrors.Unavailable("database unavailable", err)
	}

	return err
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "bad connection")
}

// isConstraint reports whether err violates the named constraint
func isConstraint(err error, constraint string) bool {
	pgErr, ok := asPgError(err)
	return ok && pgErr.Constraint == constraint
}
