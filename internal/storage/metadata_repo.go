// internal/storage/metadata_repo.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// MetadataRepo is the tables_metadata catalog.
type MetadataRepo struct {
	db     DBTX
	schema string
}

// NewMetadataRepo creates the catalog repository. schema is where dynamic
// tables live, used when reconciling against information_schema.
func NewMetadataRepo(db DBTX, schema string) *MetadataRepo {
	if schema == "" {
		schema = "public"
	}
	return &MetadataRepo{db: db, schema: schema}
}

const metadataColumns = `internal_name, display_name, description, fields, status, created_by, created_at, updated_at`

func encodeFields(fields []domain.Field) (string, error) {
	if fields == nil {
		fields = []domain.Field{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode field list: %w", err)
	}
	return string(b), nil
}

func decodeFields(raw []byte) ([]domain.Field, error) {
	var fields []domain.Field
	if len(raw) == 0 {
		return []domain.Field{}, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("corrupt field list in catalog: %w", err)
	}
	return fields, nil
}

func scanTable(row pgx.Row) (domain.DynamicTable, error) {
	var (
		t         domain.DynamicTable
		rawFields []byte
		status    string
	)
	if err := row.Scan(&t.InternalName, &t.DisplayName, &t.Description, &rawFields, &status, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.DynamicTable{}, err
	}
	fields, err := decodeFields(rawFields)
	if err != nil {
		return domain.DynamicTable{}, err
	}
	t.Fields = fields
	t.Status = domain.Status(status)
	return t, nil
}

// Insert records a new table. An existing row is left untouched and reported
// as a DuplicateIdentifier, so a creator never overwrites another's fields.
func (r *MetadataRepo) Insert(ctx context.Context, t *domain.DynamicTable) error {
	fields, err := encodeFields(t.Fields)
	if err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = domain.StatusActive
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO tables_metadata (internal_name, display_name, description, fields, status, created_by)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (internal_name) DO NOTHING
		RETURNING created_at, updated_at`,
		t.InternalName, t.DisplayName, t.Description, fields, string(t.Status), t.CreatedBy,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DuplicateIdentifier(t.InternalName)
		}
		customLog.Warnf("Storage: Failed to insert metadata for '%s': %v", t.InternalName, err)
		return mapPgError(err, t.InternalName, "insert metadata")
	}
	return nil
}

// Upsert inserts or updates the catalog row keyed by internal_name and fills
// in the timestamps. Used to edit display name, description and status of an
// existing table; creation goes through Insert.
func (r *MetadataRepo) Upsert(ctx context.Context, t *domain.DynamicTable) error {
	fields, err := encodeFields(t.Fields)
	if err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = domain.StatusActive
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO tables_metadata (internal_name, display_name, description, fields, status, created_by)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (internal_name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			description  = EXCLUDED.description,
			fields       = EXCLUDED.fields,
			status       = EXCLUDED.status,
			updated_at   = NOW()
		RETURNING created_at, updated_at`,
		t.InternalName, t.DisplayName, t.Description, fields, string(t.Status), t.CreatedBy,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		customLog.Warnf("Storage: Failed to upsert metadata for '%s': %v", t.InternalName, err)
		return mapPgError(err, t.InternalName, "upsert metadata")
	}
	return nil
}

// Get returns one catalog entry regardless of status.
func (r *MetadataRepo) Get(ctx context.Context, name string) (domain.DynamicTable, error) {
	t, err := scanTable(r.db.QueryRow(ctx,
		`SELECT `+metadataColumns+` FROM tables_metadata WHERE internal_name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DynamicTable{}, domain.NotFound(name, "table not found")
		}
		customLog.Warnf("Storage: Failed to load metadata for '%s': %v", name, err)
		return domain.DynamicTable{}, mapPgError(err, name, "get metadata")
	}
	return t, nil
}

// List returns the catalog ordered by display name; inactive tables only
// when includeInactive is set.
func (r *MetadataRepo) List(ctx context.Context, includeInactive bool) ([]domain.DynamicTable, error) {
	q := psql.Select(metadataColumns).From("tables_metadata").OrderBy("display_name", "internal_name")
	if !includeInactive {
		q = q.Where("status = ?", string(domain.StatusActive))
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata query: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		customLog.Warnf("Storage: Error listing metadata: %v", err)
		return nil, mapPgError(err, "tables_metadata", "list metadata")
	}
	defer rows.Close()

	tables := make([]domain.DynamicTable, 0)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed processing table list: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading table list: %w", err)
	}
	return tables, nil
}

// SetStatus flips a table between active and inactive.
func (r *MetadataRepo) SetStatus(ctx context.Context, name string, status domain.Status) error {
	if !status.Valid() {
		return domain.InvalidInput(name, "invalid status %q", status)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE tables_metadata SET status = $2, updated_at = NOW() WHERE internal_name = $1`,
		name, string(status))
	if err != nil {
		return mapPgError(err, name, "set table status")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(name, "table not found")
	}
	customLog.Printf("Storage: Table '%s' is now %s", name, status)
	return nil
}

// AppendField adds a field to the end of the catalog's list unless a field
// with that name is already recorded.
func (r *MetadataRepo) AppendField(ctx context.Context, name string, field domain.Field) error {
	return runInTx(ctx, r.db, func(tx pgx.Tx) error {
		t, err := lockTable(ctx, tx, name)
		if err != nil {
			return err
		}
		if _, exists := t.FieldByName(field.Name); exists {
			return nil
		}
		return writeFields(ctx, tx, name, append(t.Fields, field))
	})
}

// Reconcile appends every live column missing from the catalog's field list,
// mapping storage types back to logical types. Catalog fields whose column
// vanished are kept. Returns the fields that were added.
func (r *MetadataRepo) Reconcile(ctx context.Context, name string) ([]domain.Field, error) {
	var added []domain.Field
	err := runInTx(ctx, r.db, func(tx pgx.Tx) error {
		t, err := lockTable(ctx, tx, name)
		if err != nil {
			return err
		}
		cols, err := liveColumns(ctx, tx, r.schema, name)
		if err != nil {
			return err
		}
		merged, newFields := mergeLiveFields(t.Fields, columnsToFields(cols))
		if len(newFields) == 0 {
			return nil
		}
		added = newFields
		return writeFields(ctx, tx, name, merged)
	})
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		customLog.Printf("Storage: Reconciled '%s': adopted %d column(s) into the catalog", name, len(added))
	}
	return added, nil
}

// mergeLiveFields appends live fields absent from the catalog, preserving the
// catalog order and never dropping an entry.
func mergeLiveFields(catalog, live []domain.Field) (merged, added []domain.Field) {
	known := make(map[string]bool, len(catalog))
	for _, f := range catalog {
		known[f.Name] = true
	}
	merged = append(merged, catalog...)
	for _, f := range live {
		if known[f.Name] {
			continue
		}
		known[f.Name] = true
		merged = append(merged, f)
		added = append(added, f)
	}
	return merged, added
}

func lockTable(ctx context.Context, tx pgx.Tx, name string) (domain.DynamicTable, error) {
	t, err := scanTable(tx.QueryRow(ctx,
		`SELECT `+metadataColumns+` FROM tables_metadata WHERE internal_name = $1 FOR UPDATE`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DynamicTable{}, domain.NotFound(name, "table not found")
		}
		return domain.DynamicTable{}, mapPgError(err, name, "lock metadata")
	}
	return t, nil
}

func writeFields(ctx context.Context, tx pgx.Tx, name string, fields []domain.Field) error {
	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE tables_metadata SET fields = $2::jsonb, updated_at = NOW() WHERE internal_name = $1`,
		name, encoded); err != nil {
		return mapPgError(err, name, "update field list")
	}
	return nil
}
