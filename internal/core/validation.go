// internal/core/validation.go
package core

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// MaxIdentifierLength is PostgreSQL's NAMEDATALEN-1.
const MaxIdentifierLength = 63

// ReservedTableNames are catalog relations living in the same schema as the
// dynamic tables.
var ReservedTableNames = map[string]bool{
	"accounts":            true,
	"tables_metadata":     true,
	"table_permissions":   true,
	"general_permissions": true,
	"schema_migrations":   true,
}

// Storage types for each logical type (uppercase, PostgreSQL spelling). int
// is 64-bit so every value CoerceInt accepts fits the column.
var StorageTypes = map[domain.LogicalType]string{
	domain.TypeText:  "TEXT",
	domain.TypeInt:   "BIGINT",
	domain.TypeFloat: "DOUBLE PRECISION",
	domain.TypeDate:  "DATE",
	domain.TypeBool:  "BOOLEAN",
}

// IsValidIdentifier checks that name is already in sanitized form and fits
// PostgreSQL's identifier length. Used on path parameters, which must name an
// existing object exactly.
func IsValidIdentifier(name string) bool {
	return name != "" && len(name) <= MaxIdentifierLength && Sanitize(name) == name
}

// StorageTypeFor returns the column type for a logical type.
func StorageTypeFor(t domain.LogicalType) (string, bool) {
	st, ok := StorageTypes[t]
	return st, ok
}

// LogicalTypeForStorage maps an information_schema data_type back to a
// logical type. Unknown storage types are adopted as text.
func LogicalTypeForStorage(dataType string) domain.LogicalType {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "integer", "int", "int4", "bigint", "int8", "smallint", "int2":
		return domain.TypeInt
	case "real", "float4", "double precision", "float8", "numeric", "decimal":
		return domain.TypeFloat
	case "date":
		return domain.TypeDate
	case "boolean", "bool":
		return domain.TypeBool
	}
	return domain.TypeText
}

// FieldSpec is a user-supplied column definition before sanitizing.
type FieldSpec struct {
	Name string `json:"name" validate:"required,max=200"`
	Type string `json:"type" validate:"required"`
}

type tableSpec struct {
	DisplayName string      `validate:"required,max=200"`
	Fields      []FieldSpec `validate:"required,min=1,dive"`
}

var validate = validator.New()

// NormalizeTableName validates a display name and returns its identifier.
func NormalizeTableName(displayName string) (string, error) {
	if strings.TrimSpace(displayName) == "" {
		return "", domain.InvalidInput("display_name", "table name is required")
	}
	ident := Sanitize(displayName)
	if err := checkIdentifier(ident); err != nil {
		return "", err
	}
	if ReservedTableNames[ident] {
		return "", domain.InvalidInput(ident, "table name is reserved")
	}
	return ident, nil
}

// NormalizeField validates one field definition and returns the typed Field.
func NormalizeField(spec FieldSpec) (domain.Field, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return domain.Field{}, domain.InvalidInput("name", "field name is required")
	}
	lt, ok := domain.ParseLogicalType(spec.Type)
	if !ok {
		return domain.Field{}, domain.InvalidInput(spec.Name, "unsupported field type %q", spec.Type)
	}
	ident := Sanitize(spec.Name)
	if err := checkIdentifier(ident); err != nil {
		return domain.Field{}, err
	}
	if ident == "id" {
		return domain.Field{}, domain.InvalidInput(ident, "'id' is generated by the server and cannot be a field")
	}
	return domain.Field{Name: ident, Type: lt, Label: strings.TrimSpace(spec.Name)}, nil
}

// NormalizeTableSpec validates a complete create-table request: display
// name, at least one field, and no two fields sanitizing to the same column.
func NormalizeTableSpec(displayName string, specs []FieldSpec) (string, []domain.Field, error) {
	if err := validate.Struct(tableSpec{DisplayName: strings.TrimSpace(displayName), Fields: specs}); err != nil {
		return "", nil, &domain.Error{
			Kind:    domain.ErrInvalidInput,
			Message: "malformed table definition",
			Details: describeValidation(err),
			Cause:   err,
		}
	}

	ident, err := NormalizeTableName(displayName)
	if err != nil {
		return "", nil, err
	}

	fields := make([]domain.Field, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		f, err := NormalizeField(spec)
		if err != nil {
			return "", nil, err
		}
		if seen[f.Name] {
			return "", nil, domain.DuplicateIdentifier(f.Name)
		}
		seen[f.Name] = true
		fields = append(fields, f)
	}
	return ident, fields, nil
}

func checkIdentifier(ident string) error {
	if ident == "" || strings.Trim(ident, "_") == "" {
		return domain.InvalidInput(ident, "name must contain at least one letter or digit")
	}
	if len(ident) > MaxIdentifierLength {
		return domain.InvalidInput(ident, "name is longer than %d bytes once sanitized", MaxIdentifierLength)
	}
	return nil
}

func describeValidation(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return out
}
