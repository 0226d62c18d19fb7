package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// PostgreSQL error codes mapped onto the domain taxonomy.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgDuplicateTable      = "42P07"
	pgDuplicateColumn     = "42701"
	pgUndefinedTable      = "42P01"
	pgUndefinedColumn     = "42703"
	pgInvalidText         = "22P02"
	pgInvalidDatetime     = "22007"
	pgDatetimeOverflow    = "22008"
	pgNumericOutOfRange   = "22003"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so repositories work both
// inside and outside a transaction. Begin on a pgx.Tx opens a savepoint.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// runInTx commits when fn succeeds and rolls back otherwise. On a pgx.Tx it
// runs fn under a savepoint.
func runInTx(ctx context.Context, db DBTX, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, db, fn)
}

// psql is the shared statement builder: PostgreSQL $n placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// quoteIdent quotes a single identifier. Identifiers reaching this point have
// already gone through core.Sanitize; quoting is a second barrier.
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// mapPgError converts driver errors into domain errors so raw driver messages
// never leak to callers. Unrecognized errors are wrapped with op context.
func mapPgError(err error, identifier, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.AsError(err); ok {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound(identifier, "%s: not found", op)
	}
	switch pgCode(err) {
	case pgUniqueViolation, pgDuplicateTable:
		return &domain.Error{Kind: domain.ErrDuplicateIdentifier, Identifier: identifier, Message: "identifier already in use", Cause: err}
	case pgDuplicateColumn:
		return &domain.Error{Kind: domain.ErrColumnConflict, Identifier: identifier, Message: "column already exists", Cause: err}
	case pgUndefinedTable, pgUndefinedColumn:
		return &domain.Error{Kind: domain.ErrNotFound, Identifier: identifier, Message: op + ": relation or column does not exist", Cause: err}
	case pgForeignKeyViolation:
		return &domain.Error{Kind: domain.ErrNotFound, Identifier: identifier, Message: op + ": referenced account or table does not exist", Cause: err}
	case pgInvalidText, pgInvalidDatetime, pgDatetimeOverflow, pgNumericOutOfRange:
		return &domain.Error{Kind: domain.ErrInvalidInput, Identifier: identifier, Message: op + ": value does not fit the column type", Cause: err}
	}
	return fmt.Errorf("database error during %s: %w", op, err)
}

// describePgError gives a short message for per-row batch errors.
func describePgError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}
	return err.Error()
}
