package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/devarispbrown/gtsd/models"
)

var (
	// ErrLockTimeout means the per-user streak lock was not acquired in time. Retryable.
	ErrLockTimeout = errors.New("streak lock wait timed out")
	// ErrStorageUnavailable wraps database failures that are worth retrying.
	ErrStorageUnavailable = errors.New("streak storage unavailable")
	// ErrTaskStoreUnavailable means tasks for the day could not be read. Retryable.
	ErrTaskStoreUnavailable = errors.New("task store unavailable")
	// ErrIntegrityViolation aborts a write whose result would break a ledger invariant.
	ErrIntegrityViolation = errors.New("streak data integrity violation")
	// ErrInvalidTimezone is returned for a stored timezone that is not a known IANA name.
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrTimezoneRequired is returned when crediting requires a configured timezone.
	ErrTimezoneRequired = errors.New("timezone not configured")
	// ErrUserNotFound is returned when the user profile does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// IsRetryable reports whether the caller should retry the operation later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrTaskStoreUnavailable)
}

// classifyDBError maps driver errors onto the package taxonomy.
func classifyDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrLockTimeout), errors.Is(err, ErrIntegrityViolation),
		errors.Is(err, ErrStorageUnavailable), errors.Is(err, ErrTaskStoreUnavailable),
		errors.Is(err, ErrInvalidTimezone), errors.Is(err, ErrTimezoneRequired),
		errors.Is(err, ErrUserNotFound), errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, models.ErrStreakInvariant), isConstraintViolation(err):
		return fmt.Errorf("%w: %w", ErrIntegrityViolation, err)
	case isLockTimeout(err):
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}

func isLockTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", // lock_not_available
			"40P01", // deadlock_detected
			"40001": // serialization_failure
			return true
		}
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// 1205 lock wait timeout, 1213 deadlock
		return myErr.Number == 1205 || myErr.Number == 1213
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23")
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062 || myErr.Number == 1452 || myErr.Number == 3819
	}
	return strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}
