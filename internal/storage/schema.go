package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// Column is one live storage-layer column as reported by information_schema.
type Column struct {
	Name     string
	DataType string
}

// SchemaManager wraps every DDL statement issued against dynamic tables.
// Statements run on the pool directly, never inside a transaction that also
// holds DML locks.
type SchemaManager struct {
	db     DBTX
	schema string
}

// NewSchemaManager creates a SchemaManager for the given schema.
func NewSchemaManager(db DBTX, schema string) *SchemaManager {
	if schema == "" {
		schema = "public"
	}
	return &SchemaManager{db: db, schema: schema}
}

// createTableSQL builds CREATE TABLE with an identity id and one column per
// field. There is no IF NOT EXISTS: of two concurrent creators exactly one
// gets the relation, the other a DuplicateIdentifier.
func createTableSQL(table string, fields []domain.Field) (string, error) {
	if !core.IsValidIdentifier(table) {
		return "", domain.InvalidInput(table, "invalid table identifier")
	}
	cols := make([]string, 0, len(fields)+1)
	cols = append(cols, "id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY")
	for _, f := range fields {
		def, err := columnDefinition(f)
		if err != nil {
			return "", err
		}
		cols = append(cols, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", quoteIdent(table), strings.Join(cols, ",\n\t")), nil
}

func addColumnSQL(table string, f domain.Field) (string, error) {
	if !core.IsValidIdentifier(table) {
		return "", domain.InvalidInput(table, "invalid table identifier")
	}
	def, err := columnDefinition(f)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), def), nil
}

func columnDefinition(f domain.Field) (string, error) {
	if !core.IsValidIdentifier(f.Name) || f.Name == "id" {
		return "", domain.InvalidInput(f.Name, "invalid column identifier")
	}
	st, ok := core.StorageTypeFor(f.Type)
	if !ok {
		return "", domain.InvalidInput(f.Name, "unsupported field type %q", f.Type)
	}
	return quoteIdent(f.Name) + " " + st, nil
}

// CreateTable emits CREATE TABLE. An existing relation of the same name is a
// DuplicateIdentifier; catalog uniqueness is the caller's responsibility.
func (s *SchemaManager) CreateTable(ctx context.Context, table string, fields []domain.Field) error {
	stmt, err := createTableSQL(table, fields)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, stmt); err != nil {
		customLog.Warnf("Storage: Failed to create table '%s': %v", table, err)
		return mapPgError(err, table, "create table")
	}
	customLog.Printf("Storage: Table '%s' created with %d field(s)", table, len(fields))
	return nil
}

// AddColumn emits ALTER TABLE ... ADD COLUMN. An existing column surfaces as
// ColumnConflict.
func (s *SchemaManager) AddColumn(ctx context.Context, table string, field domain.Field) error {
	stmt, err := addColumnSQL(table, field)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, stmt); err != nil {
		if pgCode(err) == pgDuplicateColumn {
			return domain.ColumnConflict(table, field.Name)
		}
		customLog.Warnf("Storage: Failed to add column '%s' to '%s': %v", field.Name, table, err)
		return mapPgError(err, table, "add column")
	}
	customLog.Printf("Storage: Column '%s' (%s) added to '%s'", field.Name, field.Type, table)
	return nil
}

// DropTable physically drops a table. Product-level deletion is a status
// flip; this is only used to compensate a failed create.
func (s *SchemaManager) DropTable(ctx context.Context, table string) error {
	if !core.IsValidIdentifier(table) {
		return domain.InvalidInput(table, "invalid table identifier")
	}
	if _, err := s.db.Exec(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		customLog.Warnf("Storage: Failed to drop table '%s': %v", table, err)
		return mapPgError(err, table, "drop table")
	}
	customLog.Printf("Storage: Table '%s' dropped", table)
	return nil
}

// TableExists reports whether a base table with this name exists in the schema.
func (s *SchemaManager) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2 AND table_type = 'BASE TABLE'
		)`, s.schema, table).Scan(&exists)
	if err != nil {
		return false, mapPgError(err, table, "check table")
	}
	return exists, nil
}

// liveColumns lists the table's real columns in ordinal order, excluding id.
func liveColumns(ctx context.Context, db DBTX, schema, table string) ([]Column, error) {
	rows, err := db.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 AND column_name <> 'id'
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		customLog.Warnf("Storage: Failed reading columns of '%s': %v", table, err)
		return nil, mapPgError(err, table, "read columns")
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading column info: %w", err)
	}
	return cols, nil
}

// columnTypes returns each live column's type as a cast target, spelled the
// way format_type prints it ("character varying(40)", "timestamp without
// time zone", schema-qualified enums).
func columnTypes(ctx context.Context, db DBTX, schema, table string) (map[string]string, error) {
	rows, err := db.Query(ctx, `
		SELECT a.attname, format_type(a.atttypid, a.atttypmod)
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped`, schema, table)
	if err != nil {
		return nil, mapPgError(err, table, "read column types")
	}
	defer rows.Close()

	types := make(map[string]string)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan column type: %w", err)
		}
		types[name] = typ
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading column types: %w", err)
	}
	return types, nil
}

// columnsToFields maps storage types back to logical types.
func columnsToFields(cols []Column) []domain.Field {
	fields := make([]domain.Field, 0, len(cols))
	for _, c := range cols {
		fields = append(fields, domain.Field{Name: c.Name, Type: core.LogicalTypeForStorage(c.DataType)})
	}
	return fields
}
