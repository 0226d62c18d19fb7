package storage

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// duplicateQuery asks whether a row with exactly these values exists. Each
// parameter is cast to the column's live type so "1", 1 and 1.0 compare as
// numbers, text compares with timestamps or uuids adopted by reconcile, and
// NULL matches NULL. Columns missing from liveTypes fall back to the storage
// type of their logical type.
func duplicateQuery(table domain.DynamicTable, liveTypes map[string]string, rec domain.Record) (string, []any, error) {
	conds := make(squirrel.And, 0, len(table.Fields))
	for _, f := range table.Fields {
		st, ok := liveTypes[f.Name]
		if !ok {
			if st, ok = core.StorageTypeFor(f.Type); !ok {
				return "", nil, domain.InvalidInput(f.Name, "unsupported field type %q", f.Type)
			}
		}
		conds = append(conds, squirrel.Expr(
			fmt.Sprintf("%s IS NOT DISTINCT FROM CAST(? AS %s)", quoteIdent(f.Name), st),
			rec[f.Name].Any(),
		))
	}
	return psql.Select("1").
		From(quoteIdent(table.InternalName)).
		Where(conds).
		Limit(1).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
}

// InsertBatch inserts validated records, skipping rows whose full value tuple
// already exists. The whole batch runs in one transaction holding a
// table-scoped advisory lock, so concurrent identical batches cannot both
// pass the duplicate check. Each row is checked and inserted under a
// savepoint: a value the column rejects becomes a per-row error and the rest
// of the batch continues.
func (r *RecordRepo) InsertBatch(ctx context.Context, table domain.DynamicTable, records []domain.Record) (domain.BatchOutcome, error) {
	var out domain.BatchOutcome
	err := runInTx(ctx, r.db, func(tx pgx.Tx) error {
		out = domain.BatchOutcome{}
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, table.InternalName); err != nil {
			return mapPgError(err, table.InternalName, "lock table for import")
		}
		liveTypes, err := columnTypes(ctx, tx, r.schema, table.InternalName)
		if err != nil {
			return err
		}

		for i, rec := range records {
			row := i + 1
			dupSQL, dupArgs, err := duplicateQuery(table, liveTypes, rec)
			if err != nil {
				return err
			}

			var duplicate bool
			err = runInTx(ctx, tx, func(sp pgx.Tx) error {
				if err := sp.QueryRow(ctx, dupSQL, dupArgs...).Scan(&duplicate); err != nil {
					return mapPgError(err, table.InternalName, "check duplicate")
				}
				if duplicate {
					return nil
				}
				_, err := insertRecord(ctx, sp, table, rec)
				return err
			})
			switch {
			case err != nil:
				out.Errors = append(out.Errors, fmt.Sprintf("row %d: %s", row, describeBatchError(err)))
			case duplicate:
				out.Duplicates++
			default:
				out.Inserted++
			}
		}
		return nil
	})
	if err != nil {
		customLog.Warnf("Storage: Batch insert into '%s' failed: %v", table.InternalName, err)
		return domain.BatchOutcome{}, err
	}
	customLog.Printf("Storage: Batch into '%s': %d inserted, %d duplicates, %d errors",
		table.InternalName, out.Inserted, out.Duplicates, len(out.Errors))
	return out, nil
}

func describeBatchError(err error) string {
	if de, ok := domain.AsError(err); ok {
		if de.Cause != nil {
			return describePgError(de.Cause)
		}
		return de.Message
	}
	return describePgError(err)
}
