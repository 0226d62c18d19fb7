package service

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
	"github.com/Annany2002/cadastro-backend/internal/ingest"
)

// InsertRecord coerces values against the catalog and inserts one row.
func (e *Engine) InsertRecord(ctx context.Context, actor domain.Account, tableName string, values map[string]any) (int64, error) {
	table, err := e.authorizeTable(ctx, actor, tableName, domain.VerbInsert, true)
	if err != nil {
		return 0, err
	}
	rec, err := core.CoerceRecord(table, values, false)
	if err != nil {
		return 0, err
	}
	id, err := e.records.Insert(ctx, table, rec)
	if err != nil {
		return 0, err
	}
	customLog.Debugf("Engine: Record %d inserted into %s by %s", id, table.InternalName, actor.Username)
	return id, nil
}

// ImportBatch validates the whole batch first; only a clean batch reaches
// insertion, where existing rows are skipped as duplicates. A rejected batch
// returns the result with Validated=false together with a ValidationFailed
// error.
func (e *Engine) ImportBatch(ctx context.Context, actor domain.Account, tableName string, batch ingest.Batch) (domain.ImportResult, error) {
	result := domain.ImportResult{BatchID: uuid.New().String(), Errors: []string{}}

	table, err := e.authorizeTable(ctx, actor, tableName, domain.VerbInsert, true)
	if err != nil {
		return result, err
	}

	validation := ingest.Validate(batch, table)
	result.Warnings = validation.Warnings
	if !validation.OK {
		result.Errors = validation.Errors
		customLog.Warnf("Engine: Batch %s for %s rejected with %d problem(s)", result.BatchID, table.InternalName, len(validation.Errors))
		return result, validation.Err(table.InternalName)
	}
	result.Validated = true

	outcome, err := e.records.InsertBatch(ctx, table, validation.Records)
	if err != nil {
		return result, err
	}
	result.Inserted = outcome.Inserted
	result.Duplicates = outcome.Duplicates
	if outcome.Errors != nil {
		result.Errors = outcome.Errors
	}
	customLog.Printf("Engine: Batch %s into %s by %s: %d inserted, %d duplicate(s), %d error(s)",
		result.BatchID, table.InternalName, actor.Username, result.Inserted, result.Duplicates, len(result.Errors))
	return result, nil
}

// ImportCSV decodes a CSV upload and imports it.
func (e *Engine) ImportCSV(ctx context.Context, actor domain.Account, tableName string, r io.Reader) (domain.ImportResult, error) {
	if _, err := e.authorizeTable(ctx, actor, tableName, domain.VerbInsert, false); err != nil {
		return domain.ImportResult{Errors: []string{}}, err
	}
	batch, err := ingest.FromCSV(r)
	if err != nil {
		return domain.ImportResult{Errors: []string{}}, err
	}
	return e.ImportBatch(ctx, actor, tableName, batch)
}

// UpdateRecord coerces only the supplied columns and updates one row.
func (e *Engine) UpdateRecord(ctx context.Context, actor domain.Account, tableName string, id int64, values map[string]any) error {
	table, err := e.authorizeTable(ctx, actor, tableName, domain.VerbUpdate, true)
	if err != nil {
		return err
	}
	rec, err := core.CoerceRecord(table, values, true)
	if err != nil {
		return err
	}
	return e.records.Update(ctx, table, id, rec)
}

// DeleteRecord removes one row. Rows are the only thing ever hard-deleted.
func (e *Engine) DeleteRecord(ctx context.Context, actor domain.Account, tableName string, id int64) error {
	table, err := e.authorizeTable(ctx, actor, tableName, domain.VerbDelete, false)
	if err != nil {
		return err
	}
	return e.records.Delete(ctx, table, id)
}

// GetRecord returns one row. Requires can_view.
func (e *Engine) GetRecord(ctx context.Context, actor domain.Account, tableName string, id int64) (map[string]any, error) {
	table, err := e.authorizeTable(ctx, actor, tableName, domain.VerbView, false)
	if err != nil {
		return nil, err
	}
	return e.records.Get(ctx, table, id)
}

// ListRecords returns one page of rows, optionally filtered by a text search
// and sorted by id or a catalog field.
func (e *Engine) ListRecords(ctx context.Context, actor domain.Account, tableName string, opts core.ListQueryOptions) (domain.RecordPage, error) {
	table, err := e.authorizeTable(ctx, actor, tableName, domain.VerbView, false)
	if err != nil {
		return domain.RecordPage{}, err
	}
	if err := opts.CheckSortColumn(table); err != nil {
		return domain.RecordPage{}, err
	}
	return e.records.List(ctx, table, opts)
}
