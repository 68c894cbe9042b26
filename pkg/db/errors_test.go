package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_serial_units_code"}

	require.True(t, IsUniqueViolation(pgErr))
	require.True(t, IsUniqueViolation(fmt.Errorf("inserting unit: %w", pgErr)))
	require.True(t, IsUniqueViolation(pgErr, "idx_serial_units_code"))
	require.False(t, IsUniqueViolation(pgErr, "idx_products_sku"))

	require.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: refunds.refund_number")))
	require.True(t, IsUniqueViolation(errors.New(`duplicate key value violates unique constraint "idx_products_sku"`)))
	require.False(t, IsUniqueViolation(errors.New("connection reset")))
	require.False(t, IsUniqueViolation(nil))
}

func TestIsLockTimeout(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{Code: "55P03"}

	require.True(t, IsLockTimeout(pgErr))
	require.True(t, IsLockTimeout(fmt.Errorf("locking stock item: %w", pgErr)))
	require.True(t, IsLockTimeout(apperrors.Wrap(apperrors.CodeInternal, pgErr, "locking stock item")))
	require.False(t, IsLockTimeout(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsLockTimeout(errors.New("connection reset")))
	require.False(t, IsLockTimeout(nil))
}

func TestTranslateTxError(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{Code: "55P03"}

	translated := translateTxError(pgErr)
	require.Equal(t, apperrors.CodeLockTimeout, apperrors.As(translated).Code())
	require.True(t, errors.Is(translated, pgErr))

	// Errors already wrapped by a service layer are re-coded as retryable.
	wrapped := apperrors.Wrap(apperrors.CodeInternal, pgErr, "locking stock item")
	require.Equal(t, apperrors.CodeLockTimeout, apperrors.As(translateTxError(wrapped)).Code())

	// Domain errors pass through untouched.
	conflict := apperrors.New(apperrors.CodeInsufficientStock, "2 on hand, 5 requested")
	require.Same(t, conflict, apperrors.As(translateTxError(conflict)))

	plain := errors.New("connection reset")
	require.Same(t, plain, translateTxError(plain))
	require.NoError(t, translateTxError(nil))
}
