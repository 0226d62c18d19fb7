package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// RecordRepo runs DML against dynamic tables. Column and table names come
// from the catalog; every value is a bound parameter.
type RecordRepo struct {
	db     DBTX
	schema string
}

// NewRecordRepo creates the dynamic-table record repository for the schema
// holding the dynamic tables.
func NewRecordRepo(db DBTX, schema string) *RecordRepo {
	if schema == "" {
		schema = "public"
	}
	return &RecordRepo{db: db, schema: schema}
}

// orderedColumns returns the record's columns in catalog order.
func orderedColumns(table domain.DynamicTable, rec domain.Record) ([]string, []any) {
	cols := make([]string, 0, len(rec))
	vals := make([]any, 0, len(rec))
	for _, f := range table.Fields {
		v, ok := rec[f.Name]
		if !ok {
			continue
		}
		cols = append(cols, quoteIdent(f.Name))
		vals = append(vals, v.Any())
	}
	return cols, vals
}

func insertQuery(table domain.DynamicTable, rec domain.Record) (string, []any, error) {
	cols, vals := orderedColumns(table, rec)
	if len(cols) == 0 {
		return "", nil, domain.InvalidInput(table.InternalName, "record has no values")
	}
	return psql.Insert(quoteIdent(table.InternalName)).
		Columns(cols...).
		Values(vals...).
		Suffix("RETURNING id").
		ToSql()
}

// Insert adds one row and returns its generated id.
func (r *RecordRepo) Insert(ctx context.Context, table domain.DynamicTable, rec domain.Record) (int64, error) {
	return insertRecord(ctx, r.db, table, rec)
}

func insertRecord(ctx context.Context, db DBTX, table domain.DynamicTable, rec domain.Record) (int64, error) {
	sqlStr, args, err := insertQuery(table, rec)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := db.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		customLog.Warnf("Storage: Failed INSERT into '%s': %v", table.InternalName, err)
		return 0, mapPgError(err, table.InternalName, "insert record")
	}
	return id, nil
}

// Update applies a partial record to row id.
func (r *RecordRepo) Update(ctx context.Context, table domain.DynamicTable, id int64, rec domain.Record) error {
	cols, vals := orderedColumns(table, rec)
	if len(cols) == 0 {
		return domain.InvalidInput(table.InternalName, "no fields to update")
	}
	q := psql.Update(quoteIdent(table.InternalName)).Where(squirrel.Eq{"id": id})
	for i, c := range cols {
		q = q.Set(c, vals[i])
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	tag, err := r.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		customLog.Warnf("Storage: Failed UPDATE on '%s' id %d: %v", table.InternalName, id, err)
		return mapPgError(err, table.InternalName, "update record")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(fmt.Sprintf("%s/%d", table.InternalName, id), "record not found")
	}
	return nil
}

// Delete removes row id.
func (r *RecordRepo) Delete(ctx context.Context, table domain.DynamicTable, id int64) error {
	sqlStr, args, err := psql.Delete(quoteIdent(table.InternalName)).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	tag, err := r.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		customLog.Warnf("Storage: Failed DELETE on '%s' id %d: %v", table.InternalName, id, err)
		return mapPgError(err, table.InternalName, "delete record")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(fmt.Sprintf("%s/%d", table.InternalName, id), "record not found")
	}
	return nil
}

// selectColumns lists id plus catalog fields, so columns unknown to the
// catalog never leak into responses.
func selectColumns(table domain.DynamicTable) []string {
	cols := make([]string, 0, len(table.Fields)+1)
	cols = append(cols, "id")
	for _, f := range table.Fields {
		cols = append(cols, quoteIdent(f.Name))
	}
	return cols
}

// Get returns row id as a JSON-ready map.
func (r *RecordRepo) Get(ctx context.Context, table domain.DynamicTable, id int64) (map[string]any, error) {
	sqlStr, args, err := psql.Select(selectColumns(table)...).
		From(quoteIdent(table.InternalName)).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}
	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapPgError(err, table.InternalName, "get record")
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(fmt.Sprintf("%s/%d", table.InternalName, id), "record not found")
		}
		return nil, mapPgError(err, table.InternalName, "get record")
	}
	return normalizeRow(table, row), nil
}

// searchFilter is the fixed ILIKE scan over the table's text columns.
func searchFilter(table domain.DynamicTable, term string) squirrel.Sqlizer {
	if term == "" {
		return nil
	}
	pattern := "%" + escapeLike(term) + "%"
	var or squirrel.Or
	for _, f := range table.Fields {
		if f.Type == domain.TypeText {
			or = append(or, squirrel.ILike{quoteIdent(f.Name): pattern})
		}
	}
	if len(or) == 0 {
		// No text columns: a search can never match.
		return squirrel.Expr("FALSE")
	}
	return or
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func listQueries(table domain.DynamicTable, opts core.ListQueryOptions) (squirrel.SelectBuilder, squirrel.SelectBuilder) {
	from := quoteIdent(table.InternalName)
	list := psql.Select(selectColumns(table)...).From(from)
	count := psql.Select("COUNT(*)").From(from)
	if filter := searchFilter(table, opts.Search); filter != nil {
		list = list.Where(filter)
		count = count.Where(filter)
	}

	sortCol := "id"
	if opts.SortBy != "" && opts.SortBy != "id" {
		sortCol = quoteIdent(opts.SortBy)
	}
	direction := "ASC"
	if opts.SortOrder == "desc" {
		direction = "DESC"
	}
	list = list.OrderBy(sortCol+" "+direction, "id "+direction).
		Limit(uint64(opts.Limit)).
		Offset(uint64(opts.Offset()))
	return list, count
}

// List returns one page of rows with the total count of matching rows.
func (r *RecordRepo) List(ctx context.Context, table domain.DynamicTable, opts core.ListQueryOptions) (domain.RecordPage, error) {
	if opts.Limit < 1 {
		opts.Limit = core.DefaultLimit
	}
	if opts.Page < 1 {
		opts.Page = core.DefaultPage
	}
	listQ, countQ := listQueries(table, opts)

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return domain.RecordPage{}, fmt.Errorf("failed to build count: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return domain.RecordPage{}, mapPgError(err, table.InternalName, "count records")
	}

	listSQL, listArgs, err := listQ.ToSql()
	if err != nil {
		return domain.RecordPage{}, fmt.Errorf("failed to build list: %w", err)
	}
	rows, err := r.db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		customLog.Warnf("Storage: Failed listing '%s': %v", table.InternalName, err)
		return domain.RecordPage{}, mapPgError(err, table.InternalName, "list records")
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return domain.RecordPage{}, fmt.Errorf("failed reading records: %w", err)
	}

	page := domain.RecordPage{
		Records: make([]map[string]any, 0, len(maps)),
		Page:    opts.Page,
		Limit:   opts.Limit,
		Total:   total,
		Pages:   (total + int64(opts.Limit) - 1) / int64(opts.Limit),
	}
	for _, m := range maps {
		page.Records = append(page.Records, normalizeRow(table, m))
	}
	return page, nil
}

// Count returns the number of rows in the table.
func (r *RecordRepo) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n); err != nil {
		return 0, mapPgError(err, table, "count records")
	}
	return n, nil
}

// normalizeRow renders DATE columns as YYYY-MM-DD.
func normalizeRow(table domain.DynamicTable, row map[string]any) map[string]any {
	for _, f := range table.Fields {
		if f.Type != domain.TypeDate {
			continue
		}
		if t, ok := row[f.Name].(time.Time); ok {
			row[f.Name] = t.Format(domain.DateLayout)
		}
	}
	return row
}
