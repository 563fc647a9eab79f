package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	xerrors "subscription-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// isTransient reports whether a failed call may succeed if repeated.
// Constraint violations and caller cancellation never are.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case pgErr.Code == "40001", // serialization_failure
			pgErr.Code == "40P01", // deadlock_detected
			pgErr.Code == "57P01", // admin_shutdown
			pgErr.Code == "53300": // too_many_connections
			return true
		}
		return false
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if xerrors.KindOf(err) != xerrors.KindUnknown {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return &xerrors.Error{Kind: xerrors.KindConflict, Op: op, Message: constraintMessage(pgErr), Err: err}
		case codeForeignKeyViolation:
			return &xerrors.Error{Kind: xerrors.KindNotFound, Op: op, Message: "referenced record not found", Err: err}
		case codeCheckViolation:
			return &xerrors.Error{Kind: xerrors.KindInvalidRequest, Op: op, Message: "value out of range", Err: err}
		}
	}

	if isTransient(err) {
		return xerrors.TransientStore(op, err)
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}

func constraintMessage(pgErr *pgconn.PgError) string {
	switch pgErr.ConstraintName {
	case constraintOneActive:
		return "user already has an active subscription"
	case "users_username_key":
		return "username already registered"
	case "users_email_key":
		return "email already registered"
	case "plans_name_key":
		return "plan name already exists"
	}
	return "duplicate entry"
}
