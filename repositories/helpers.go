package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx, so repositories can
// run inside or outside a transaction.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// psql builds Postgres-flavoured statements ($1, $2, ...).
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

// pqErrorCode returns the SQLSTATE of a lib/pq error, or "" for other errors.
func pqErrorCode(err error) (pq.ErrorCode, string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code, pqErr.Constraint
	}
	return "", ""
}

// isTxConflict reports whether Postgres aborted the transaction because it
// raced another one. Retrying from fresh reads resolves both cases.
func isTxConflict(err error) bool {
	code, _ := pqErrorCode(err)
	return code == pqDeadlockDetected || code == pqSerializationFailure
}

const (
	pqUniqueViolation      pq.ErrorCode = "23505"
	pqForeignKeyViolation  pq.ErrorCode = "23503"
	pqCheckViolation       pq.ErrorCode = "23514"
	pqSerializationFailure pq.ErrorCode = "40001"
	pqDeadlockDetected     pq.ErrorCode = "40P01"
)
